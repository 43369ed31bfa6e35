package reading

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of one book's activation.
type State int32

const (
	// Idle means no session is open for the book.
	Idle State = iota
	// Open means a session row exists and page reports are being recorded.
	Open
	// Closing means the session is being reconciled.
	Closing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Activation is a read-only snapshot of an open session.
type Activation struct {
	BookID      uint      `json:"book_id"`
	SessionID   uint      `json:"session_id"`
	StartPage   int       `json:"start_page"`
	CurrentPage int       `json:"current_page"`
	StartedAt   time.Time `json:"started_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// activation holds the per-book state machine. Entries are created on first
// use and never removed, so two callers always agree on the same instance.
//
// mu serializes Activate and Deactivate for the book. The remaining fields
// are atomics so that page reports and snapshots never wait on store I/O.
type activation struct {
	mu     sync.Mutex
	bookID uint

	// baseline is the book's pagesRead when the session opened. Guarded by mu.
	baseline int
	// swept is set when SweepIdle closed the last session. Guarded by mu.
	swept bool

	state     atomic.Int32
	sessionID atomic.Uint64
	startPage atomic.Int64
	current   atomic.Int64
	startedAt atomic.Int64 // unix nanos
	lastSeen  atomic.Int64 // unix nanos
}

func (a *activation) loadState() State {
	return State(a.state.Load())
}

func (a *activation) setState(s State) {
	a.state.Store(int32(s))
}

func (a *activation) snapshot() Activation {
	return Activation{
		BookID:      a.bookID,
		SessionID:   uint(a.sessionID.Load()),
		StartPage:   int(a.startPage.Load()),
		CurrentPage: int(a.current.Load()),
		StartedAt:   time.Unix(0, a.startedAt.Load()).UTC(),
		LastSeen:    time.Unix(0, a.lastSeen.Load()).UTC(),
	}
}
