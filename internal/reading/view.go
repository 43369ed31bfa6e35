package reading

import (
	"context"
	"sync/atomic"

	"github.com/mrlokans/readinglog/internal/entities"
)

// View is the handle a document viewer holds while a book is on screen. All
// lifecycle hooks of the viewer (blur, unmount, navigation, teardown) should
// funnel into a single Close; repeated calls are harmless.
//
// A view owns the session it opened. A second view on a book that is already
// open shares that session: its page reports are recorded, but its Close
// leaves the session to the owner.
type View struct {
	m         *Manager
	bookID    uint
	sessionID atomic.Uint64
	err       error
	closed    atomic.Bool
}

// Open activates book and returns its view. Activation faults do not prevent
// viewing: the view is still returned and Err reports the fault.
func (m *Manager) Open(ctx context.Context, book entities.Book) *View {
	v := &View{m: m, bookID: book.ID}
	var id uint
	if id, v.err = m.activate(ctx, book); v.err == nil {
		v.sessionID.Store(uint64(id))
	}
	return v
}

// WithView opens book, runs fn, and closes the view on every exit path,
// including a panic in fn. The close error is returned when fn succeeded.
func (m *Manager) WithView(ctx context.Context, book entities.Book, fn func(*View) error) (err error) {
	v := m.Open(ctx, book)
	defer func() {
		if closeErr := v.Close(ctx); err == nil {
			err = closeErr
		}
	}()
	return fn(v)
}

// BookID returns the book shown by the view.
func (v *View) BookID() uint {
	return v.bookID
}

// SessionID returns the session owned by the view, or 0 if activation failed
// or the view joined a session opened elsewhere.
func (v *View) SessionID() uint {
	return uint(v.sessionID.Load())
}

// Err returns the activation error, if any.
func (v *View) Err() error {
	return v.err
}

// PageChanged records the page on screen. If the session was closed by the
// idle sweep while the book stayed on screen, a new one is opened and the view
// takes ownership of it.
func (v *View) PageChanged(page int) {
	if v.closed.Load() || v.m.ReportPage(v.bookID, page) {
		return
	}

	ctx := context.Background()
	id, _, err := v.m.resume(ctx, v.bookID, page)
	if err != nil || id == 0 {
		return
	}
	v.sessionID.Store(uint64(id))
	if v.closed.Load() {
		// Closed while resuming.
		_ = v.m.deactivate(ctx, v.bookID, id, false)
	}
}

// LoadComplete records the page count once the document has rendered.
func (v *View) LoadComplete(ctx context.Context, totalPages int) error {
	return v.m.ReportPageCount(ctx, v.bookID, totalPages)
}

// Close deactivates the session opened for this view. Only the first call has
// an effect, and a session opened later by another view is left alone.
func (v *View) Close(ctx context.Context) error {
	if v.closed.Swap(true) {
		return nil
	}
	id := uint(v.sessionID.Load())
	if id == 0 {
		return nil
	}
	return v.m.deactivate(ctx, v.bookID, id, false)
}
