package reconcile

import (
	"errors"
	"fmt"
)

var (
	ErrRefreshInProgress = errors.New("refresh in progress")
	ErrAccountNotFound   = errors.New("account not found")
	ErrImportCancelled   = errors.New("import cancelled")
	ErrProvider          = errors.New("provider failure")
)

// Progress is reported after each step of a multi-item operation.
type Progress struct {
	Current     int
	Total       int
	Label       string
	Cancellable bool
}

// Level classifies a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
	// LevelAuth asks the user to fix the account's credentials.
	LevelAuth
)

// Notice is a user-facing message. Failures during multi-item operations
// produce one notice per affected item.
type Notice struct {
	Level     Level
	AccountID int64
	Text      string
	Err       error
}

func (n Notice) String() string {
	if n.Err == nil {
		return n.Text
	}

	return fmt.Sprintf("%s: %v", n.Text, n.Err)
}

// ImportReport is the outcome of a bulk import.
type ImportReport struct {
	BatchID   int64
	Total     int
	Imported  int
	Skipped   int // items never started
	Cancelled bool
	Failed    string // URL of the item that stopped the batch, if any
}

func (r ImportReport) String() string {
	if r.Cancelled {
		return fmt.Sprintf("imported %d of %d bookmarks, %d cancelled", r.Imported, r.Total, r.Skipped)
	}

	return fmt.Sprintf("imported %d bookmarks", r.Imported)
}
