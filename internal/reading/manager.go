// Package reading owns the reading session lifecycle.
//
// Each book has a small state machine:
//
//	Idle --Activate--> Open --Deactivate--> Closing --> Idle
//
// Activate inserts a session row. Page reports while Open only touch memory.
// Deactivate reconciles the book's progress first and then writes the final
// values of the session row, so a failure between the two leaves the book
// correct and only the session's audit values missing.
//
// Callers that own a viewing scope should prefer Open/WithView, which
// guarantee exactly one close for every exit path.
package reading

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mrlokans/readinglog/internal/entities"
)

// ErrSessionsOpen is returned by ResetSessions while any session is open.
var ErrSessionsOpen = errors.New("reading sessions are still open")

// BookProgress is the slice of the book repository the manager writes to.
type BookProgress interface {
	GetByID(ctx context.Context, id uint) (*entities.Book, error)
	SetPagesRead(ctx context.Context, id uint, n int) (bool, error)
	SetTotalPages(ctx context.Context, id uint, n int) error
}

// SessionStore persists session rows.
type SessionStore interface {
	Open(ctx context.Context, bookID uint, startingPage int, at time.Time) (uint, error)
	CreatedAt(ctx context.Context, id uint) (time.Time, error)
	Close(ctx context.Context, id uint, c entities.SessionClose) error
	DeleteAll(ctx context.Context) (int64, error)
}

// Manager tracks the open reading session of every book.
type Manager struct {
	books    BookProgress
	sessions SessionStore
	now      func() time.Time

	// gate keeps ResetSessions from racing with Activate and Deactivate.
	gate        sync.RWMutex
	activations sync.Map // uint -> *activation
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager writing through books and sessions.
func NewManager(books BookProgress, sessions SessionStore, opts ...Option) *Manager {
	m := &Manager{
		books:    books,
		sessions: sessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) activation(bookID uint) *activation {
	if a, ok := m.activations.Load(bookID); ok {
		return a.(*activation)
	}
	a, _ := m.activations.LoadOrStore(bookID, &activation{bookID: bookID})
	return a.(*activation)
}

func (m *Manager) lookup(bookID uint) (*activation, bool) {
	a, ok := m.activations.Load(bookID)
	if !ok {
		return nil, false
	}
	return a.(*activation), true
}

// Activate opens a session for book. It is a no-op when a session is already
// open for the book. On a store fault the book stays Idle and the error is
// returned; viewing is expected to continue regardless.
func (m *Manager) Activate(ctx context.Context, book entities.Book) error {
	_, err := m.activate(ctx, book)
	return err
}

// activate returns the id of the session it opened, or 0 when one was
// already open.
func (m *Manager) activate(ctx context.Context, book entities.Book) (uint, error) {
	if book.ID == 0 {
		return 0, fmt.Errorf("activate: book has no id")
	}

	m.gate.RLock()
	defer m.gate.RUnlock()

	a := m.activation(book.ID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loadState() == Open {
		return 0, nil
	}
	if err := m.open(ctx, a, book); err != nil {
		return 0, err
	}
	return uint(a.sessionID.Load()), nil
}

// open inserts the session row for book and moves a to Open. a.mu must be held.
func (m *Manager) open(ctx context.Context, a *activation, book entities.Book) error {
	startingPage := book.PagesRead
	if startingPage < 1 {
		startingPage = 1
	}

	now := m.now()
	id, err := m.sessions.Open(ctx, book.ID, startingPage, now)
	if err != nil {
		log.Printf("[SESSION] Failed to open session for book %d: %v", book.ID, err)
		return err
	}

	a.baseline = book.PagesRead
	a.swept = false
	a.sessionID.Store(uint64(id))
	a.startPage.Store(int64(startingPage))
	a.current.Store(int64(startingPage))
	a.startedAt.Store(now.UnixNano())
	a.lastSeen.Store(now.UnixNano())
	a.setState(Open)

	log.Printf("[SESSION] Opened session %d for book %d at page %d", id, book.ID, startingPage)
	return nil
}

// ReportPage records the page currently shown for bookID. It never touches the
// store and is ignored unless a session is open. It reports whether the page
// was recorded.
//
// A report racing with Deactivate may land after the close has read the
// current page; that page is not reconciled. The viewer's next report or
// activation carries it.
func (m *Manager) ReportPage(bookID uint, page int) bool {
	a, ok := m.lookup(bookID)
	if !ok || a.loadState() != Open || page < 1 {
		return false
	}
	a.current.Store(int64(page))
	a.lastSeen.Store(m.now().UnixNano())
	return true
}

// Deactivate closes the open session of bookID. Calling it when no session is
// open is a no-op. The close runs to completion even if ctx is canceled.
func (m *Manager) Deactivate(ctx context.Context, bookID uint) error {
	return m.deactivate(ctx, bookID, 0, false)
}

// deactivate closes the session of bookID. A non-zero sessionID restricts the
// close to that session. idle marks a close made by SweepIdle, which Resume
// may undo.
func (m *Manager) deactivate(ctx context.Context, bookID, sessionID uint, idle bool) error {
	a, ok := m.lookup(bookID)
	if !ok {
		return nil
	}

	m.gate.RLock()
	defer m.gate.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loadState() != Open {
		// The viewer has gone; a late report must not reopen a swept session.
		if !idle {
			a.swept = false
		}
		return nil
	}
	id := uint(a.sessionID.Load())
	if sessionID != 0 && id != sessionID {
		return nil
	}

	a.setState(Closing)
	defer func() {
		a.swept = idle
		a.sessionID.Store(0)
		a.setState(Idle)
	}()

	ctx = context.WithoutCancel(ctx)
	current := int(a.current.Load())
	delta := current - a.baseline

	if _, err := m.books.SetPagesRead(ctx, bookID, current); err != nil {
		log.Printf("[SESSION] Failed to update progress of book %d (session %d): %v", bookID, id, err)
		return err
	}

	createdAt, err := m.sessions.CreatedAt(ctx, id)
	if err != nil {
		log.Printf("[SESSION] Failed to read start of session %d: %v", id, err)
		return err
	}

	closedAt := m.now()
	duration := closedAt.Sub(createdAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	err = m.sessions.Close(ctx, id, entities.SessionClose{
		LastReadPage:   current,
		TotalPagesRead: delta,
		DurationMs:     duration,
		ClosedAt:       closedAt,
	})
	if err != nil {
		log.Printf("[SESSION] Failed to close session %d: %v", id, err)
		return err
	}

	log.Printf("[SESSION] Closed session %d for book %d: page %d, delta %d, %dms", id, bookID, current, delta, duration)
	return nil
}

// Resume records page for bookID, reopening the session when SweepIdle closed
// it while the viewer was still showing the book. It reports whether a session
// is open for the book afterwards. Books closed any other way are not
// reopened.
func (m *Manager) Resume(ctx context.Context, bookID uint, page int) (bool, error) {
	_, ok, err := m.resume(ctx, bookID, page)
	return ok, err
}

// resume returns the id of the session it reopened, or 0 when none was opened.
func (m *Manager) resume(ctx context.Context, bookID uint, page int) (uint, bool, error) {
	a, ok := m.lookup(bookID)
	if !ok || page < 1 {
		return 0, false, nil
	}

	m.gate.RLock()
	defer m.gate.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loadState() == Open {
		a.current.Store(int64(page))
		a.lastSeen.Store(m.now().UnixNano())
		return 0, true, nil
	}
	if !a.swept {
		return 0, false, nil
	}

	book, err := m.books.GetByID(ctx, bookID)
	if err != nil {
		log.Printf("[SESSION] Failed to load book %d to resume its session: %v", bookID, err)
		return 0, false, err
	}
	if err := m.open(ctx, a, *book); err != nil {
		return 0, false, err
	}
	a.current.Store(int64(page))

	id := uint(a.sessionID.Load())
	log.Printf("[SESSION] Resumed book %d after idle close in session %d at page %d", bookID, id, page)
	return id, true, nil
}

// ReportPageCount stores the page count reported by the viewer. It does not
// depend on the session state.
func (m *Manager) ReportPageCount(ctx context.Context, bookID uint, n int) error {
	if err := m.books.SetTotalPages(ctx, bookID, n); err != nil {
		log.Printf("[SESSION] Failed to set page count of book %d: %v", bookID, err)
		return err
	}
	return nil
}

// State returns the lifecycle state of bookID.
func (m *Manager) State(bookID uint) State {
	a, ok := m.lookup(bookID)
	if !ok {
		return Idle
	}
	return a.loadState()
}

// OpenSessions returns a snapshot of every open session ordered by book id.
func (m *Manager) OpenSessions() []Activation {
	open := []Activation{}
	m.activations.Range(func(_, value any) bool {
		a := value.(*activation)
		if a.loadState() == Open {
			open = append(open, a.snapshot())
		}
		return true
	})
	sort.Slice(open, func(i, j int) bool { return open[i].BookID < open[j].BookID })
	return open
}

// SweepIdle closes sessions that have not received a page report for longer
// than maxIdle and returns how many were closed. It catches viewers that went
// away without deactivating.
func (m *Manager) SweepIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle).UnixNano()
	closed := 0
	for _, s := range m.OpenSessions() {
		a, ok := m.lookup(s.BookID)
		if !ok || a.lastSeen.Load() > cutoff {
			continue
		}
		if err := m.deactivate(ctx, s.BookID, s.SessionID, true); err != nil {
			continue
		}
		log.Printf("[SESSION] Closed idle session %d for book %d", s.SessionID, s.BookID)
		closed++
	}
	return closed
}

// CloseAll deactivates every open session. It is called on shutdown.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, s := range m.OpenSessions() {
		if err := m.deactivate(ctx, s.BookID, s.SessionID, false); err != nil {
			errs = append(errs, fmt.Errorf("book %d: %w", s.BookID, err))
		}
	}
	return errors.Join(errs...)
}

// ResetSessions deletes every session row. It refuses to run while any
// session is open, since closing one afterwards would target a deleted row.
// Closes already in progress finish before the rows are deleted.
func (m *Manager) ResetSessions(ctx context.Context) (int64, error) {
	m.gate.Lock()
	defer m.gate.Unlock()

	if open := m.OpenSessions(); len(open) > 0 {
		return 0, fmt.Errorf("%w: %d", ErrSessionsOpen, len(open))
	}

	deleted, err := m.sessions.DeleteAll(ctx)
	if err != nil {
		log.Printf("[SESSION] Failed to reset sessions: %v", err)
		return 0, err
	}
	log.Printf("[SESSION] Deleted %d sessions", deleted)
	return deleted, nil
}
