package favicon

import "time"

const (
	// FailedRetryAfter is how long a failed fetch (empty data) is trusted.
	FailedRetryAfter = 3600 * time.Second
	// StaleAfter is how long a fetched favicon is trusted.
	StaleAfter = 86400 * time.Second
)

// Entry is a cached favicon. Empty Data records a failed fetch.
type Entry struct {
	URL               string `db:"favicon_url"`
	Data              []byte `db:"data"`
	LastSyncTimestamp int64  `db:"last_sync_timestamp"`
}

// Failed reports whether the entry records a failed fetch.
func (e *Entry) Failed() bool {
	return len(e.Data) == 0
}

// Age returns the time elapsed since the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(e.LastSyncTimestamp, 0))
}

// NeedsRefresh applies the staleness policy: a missing entry is fetched, a
// failed one is retried after FailedRetryAfter and a good one after
// StaleAfter.
func NeedsRefresh(e *Entry, now time.Time) bool {
	if e == nil {
		return true
	}

	if e.Failed() {
		return e.Age(now) >= FailedRetryAfter
	}

	return e.Age(now) >= StaleAfter
}
