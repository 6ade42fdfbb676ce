package reconcile

import (
	"sync"

	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
	"github.com/vkhitrin/cosmicding-sub000/pkg/cursor"
)

// State is the engine's position in its lifecycle.
type State int

const (
	Loading State = iota
	NoEnabledRemoteAccounts
	Ready
	Refreshing
)

var stateNames = map[State]string{
	Loading:                 "loading",
	NoEnabledRemoteAccounts: "no enabled remote accounts",
	Ready:                   "ready",
	Refreshing:              "refreshing",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}

	return "unknown"
}

// Source is what the session's cursors read from.
type Source interface {
	cursor.AccountSource
	cursor.BookmarkSource
}

// Session holds the long-lived state of one UI session: the engine state,
// the current operation id used to cancel imports, and the list cursors.
// The cursors are reloaded by the engine after every mutation.
type Session struct {
	mu     sync.Mutex
	state  State
	opID   int64
	synced bool

	Accounts  *cursor.Accounts
	Bookmarks *cursor.Bookmarks
}

// NewSession returns a session in the Loading state.
func NewSession(src Source, perPage int, sort bookmark.SortOrder) *Session {
	return &Session{
		state:     Loading,
		Accounts:  cursor.NewAccounts(src, perPage),
		Bookmarks: cursor.NewBookmarks(src, perPage, sort),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// beginRefresh moves to Refreshing unless a refresh is running. It returns
// the state to restore if the refresh is abandoned.
func (s *Session) beginRefresh() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Refreshing {
		return s.state, false
	}

	prev := s.state
	s.state = Refreshing

	return prev, true
}

// Synced reports whether a refresh of all accounts ran to completion in
// this session.
func (s *Session) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.synced
}

func (s *Session) markSynced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = true
}

// OperationID returns the id of the running cancellable operation, or 0.
func (s *Session) OperationID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opID
}

func (s *Session) setOperation(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opID = id
}

// clearOperation resets the operation id if it still belongs to id.
func (s *Session) clearOperation(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opID == id {
		s.opID = 0
	}
}

// CancelOperation cancels the running import, if any. Items not yet
// started are dropped.
func (s *Session) CancelOperation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opID = 0
}
