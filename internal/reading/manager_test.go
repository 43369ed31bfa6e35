package reading

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/readinglog/internal/apperr"
	"github.com/mrlokans/readinglog/internal/database"
	"github.com/mrlokans/readinglog/internal/database/books"
	"github.com/mrlokans/readinglog/internal/database/sessions"
	"github.com/mrlokans/readinglog/internal/entities"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	manager  *Manager
	books    *books.Repository
	sessions *sessions.Repository
	clock    *fakeClock
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "reading.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := newFakeClock()
	bookRepo := books.NewRepository(db.DB, books.WithClock(clock.Now))
	sessionRepo := sessions.NewRepository(db.DB)

	return &testEnv{
		manager:  NewManager(bookRepo, sessionRepo, WithClock(clock.Now)),
		books:    bookRepo,
		sessions: sessionRepo,
		clock:    clock,
	}
}

// addBook creates a book with the given progress. totalPages <= 0 leaves the
// page count unknown.
func (e *testEnv) addBook(t *testing.T, pagesRead, totalPages int) entities.Book {
	t.Helper()
	ctx := context.Background()
	book, err := e.books.Create(ctx, books.BookFields{
		ContentRef: "file:///emma.pdf",
		Name:       "Emma",
		Author:     "Jane Austen",
		Genre:      "Romance",
	})
	require.NoError(t, err)
	if totalPages > 0 {
		require.NoError(t, e.books.SetTotalPages(ctx, book.ID, totalPages))
	}
	if pagesRead > 0 {
		_, err = e.books.SetPagesRead(ctx, book.ID, pagesRead)
		require.NoError(t, err)
	}
	book, err = e.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	return *book
}

func (e *testEnv) pagesRead(t *testing.T, bookID uint) int {
	t.Helper()
	book, err := e.books.GetByID(context.Background(), bookID)
	require.NoError(t, err)
	return book.PagesRead
}

func TestManager_ReadingAdvancesProgress(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 10, 200)

	require.NoError(t, env.manager.Activate(ctx, book))
	assert.Equal(t, Open, env.manager.State(book.ID))

	env.clock.Advance(3 * time.Minute)
	assert.True(t, env.manager.ReportPage(book.ID, 45))
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))
	assert.Equal(t, Idle, env.manager.State(book.ID))

	rows, err := env.sessions.ListForBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 45, rows[0].LastReadPage)
	assert.Equal(t, 35, rows[0].TotalPagesRead)
	assert.Equal(t, int64(180000), rows[0].DurationMs)
	assert.True(t, env.clock.Now().Equal(rows[0].UpdatedAt.Time))

	assert.Equal(t, 45, env.pagesRead(t, book.ID))
}

func TestManager_ProgressIsHighWaterMark(t *testing.T) {
	for _, before := range []int{0, 10, 50} {
		for _, page := range []int{1, 10, 30, 80} {
			t.Run(fmt.Sprintf("before=%d/page=%d", before, page), func(t *testing.T) {
				env := setupTestEnv(t)
				ctx := context.Background()
				book := env.addBook(t, before, 0)

				require.NoError(t, env.manager.Activate(ctx, book))
				env.manager.ReportPage(book.ID, page)
				require.NoError(t, env.manager.Deactivate(ctx, book.ID))

				assert.Equal(t, max(before, page), env.pagesRead(t, book.ID))
			})
		}
	}
}

func TestManager_StartingPageDefaultsToOne(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 0, 0)

	require.NoError(t, env.manager.Activate(ctx, book))

	open := env.manager.OpenSessions()
	require.Len(t, open, 1)
	assert.Equal(t, 1, open[0].StartPage)
	assert.Equal(t, 1, open[0].CurrentPage)

	// Closing without moving counts the first page against an empty baseline.
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))
	rows, err := env.sessions.ListForBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].LastReadPage)
	assert.Equal(t, 1, rows[0].TotalPagesRead)
}

func TestManager_DeactivateTwiceIsNoop(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 10, 0)

	require.NoError(t, env.manager.Activate(ctx, book))
	env.clock.Advance(time.Minute)
	env.manager.ReportPage(book.ID, 20)
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))

	env.clock.Advance(time.Hour)
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))

	rows, err := env.sessions.ListForBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(60000), rows[0].DurationMs)
	assert.Equal(t, 10, rows[0].TotalPagesRead)
}

func TestManager_DeactivateUnknownBook(t *testing.T) {
	env := setupTestEnv(t)
	assert.NoError(t, env.manager.Deactivate(context.Background(), 404))
}

func TestManager_ActivateTwiceKeepsOneSession(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 10, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.manager.Activate(ctx, book))
		}()
	}
	wg.Wait()

	count, err := env.sessions.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, env.manager.OpenSessions(), 1)
}

func TestManager_NegativeDeltaIsRecorded(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 10, 200)

	require.NoError(t, env.manager.Activate(ctx, book))
	env.manager.ReportPage(book.ID, 5)
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))

	rows, err := env.sessions.ListForBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].LastReadPage)
	assert.Equal(t, -5, rows[0].TotalPagesRead)
	assert.Equal(t, 10, env.pagesRead(t, book.ID), "progress never regresses")
}

func TestManager_ConsecutiveSessions(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 10, 200)

	require.NoError(t, env.manager.Activate(ctx, book))
	env.manager.ReportPage(book.ID, 45)
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))

	// The second activation uses the reconciled progress as its baseline.
	reloaded, err := env.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	require.NoError(t, env.manager.Activate(ctx, *reloaded))
	env.manager.ReportPage(book.ID, 65)
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))

	rows, err := env.sessions.ListForBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 20, rows[0].TotalPagesRead)
	assert.Equal(t, 45, rows[1].LastReadPage)
	assert.Equal(t, 65, env.pagesRead(t, book.ID))
}

func TestManager_ReportPageIgnoredWhenIdle(t *testing.T) {
	env := setupTestEnv(t)
	book := env.addBook(t, 0, 0)

	assert.False(t, env.manager.ReportPage(book.ID, 12))
	assert.False(t, env.manager.ReportPage(999, 12))
	assert.Equal(t, Idle, env.manager.State(book.ID))
}

func TestManager_ReportPageCount(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 0, 0)

	// Independent of whether a session is open.
	require.NoError(t, env.manager.ReportPageCount(ctx, book.ID, 320))
	reloaded, err := env.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.TotalPages)
	assert.Equal(t, 320, *reloaded.TotalPages)

	err = env.manager.ReportPageCount(ctx, book.ID, 0)
	assert.True(t, apperr.IsValidation(err))
}

func TestManager_ReportPageCountBelowProgressKeepsProgress(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 300, 0)

	err := env.manager.ReportPageCount(ctx, book.ID, 200)
	assert.True(t, apperr.IsValidation(err))

	reloaded, err := env.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 300, reloaded.PagesRead)
	assert.Nil(t, reloaded.TotalPages)
}

func TestManager_DeactivateIgnoresCanceledContext(t *testing.T) {
	env := setupTestEnv(t)
	book := env.addBook(t, 10, 0)

	require.NoError(t, env.manager.Activate(context.Background(), book))
	env.manager.ReportPage(book.ID, 30)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))

	assert.Equal(t, 30, env.pagesRead(t, book.ID))
}

func TestManager_SweepIdle(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	stale := env.addBook(t, 0, 0)
	active := env.addBook(t, 0, 0)

	require.NoError(t, env.manager.Activate(ctx, stale))
	require.NoError(t, env.manager.Activate(ctx, active))
	env.manager.ReportPage(stale.ID, 7)

	env.clock.Advance(20 * time.Minute)
	env.manager.ReportPage(active.ID, 3)
	env.clock.Advance(time.Minute)

	closed := env.manager.SweepIdle(ctx, 15*time.Minute)
	assert.Equal(t, 1, closed)
	assert.Equal(t, Idle, env.manager.State(stale.ID))
	assert.Equal(t, Open, env.manager.State(active.ID))
	assert.Equal(t, 7, env.pagesRead(t, stale.ID))
}

func TestManager_ResumeAfterIdleSweep(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 0, 0)

	require.NoError(t, env.manager.Activate(ctx, book))
	env.manager.ReportPage(book.ID, 10)
	env.clock.Advance(31 * time.Minute)
	require.Equal(t, 1, env.manager.SweepIdle(ctx, 30*time.Minute))
	assert.Equal(t, 10, env.pagesRead(t, book.ID))

	assert.False(t, env.manager.ReportPage(book.ID, 50))
	resumed, err := env.manager.Resume(ctx, book.ID, 50)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, Open, env.manager.State(book.ID))

	env.clock.Advance(time.Minute)
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))
	assert.Equal(t, 50, env.pagesRead(t, book.ID))

	rows, err := env.sessions.ListForBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 40, rows[0].TotalPagesRead)
	assert.Equal(t, 10, rows[1].TotalPagesRead)
}

func TestManager_ResumeOnlyAfterIdleSweep(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 0, 0)

	resumed, err := env.manager.Resume(ctx, book.ID, 5)
	require.NoError(t, err)
	assert.False(t, resumed, "never opened")

	require.NoError(t, env.manager.Activate(ctx, book))
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))
	resumed, err = env.manager.Resume(ctx, book.ID, 5)
	require.NoError(t, err)
	assert.False(t, resumed, "closed by the viewer")

	require.NoError(t, env.manager.Activate(ctx, book))
	env.clock.Advance(time.Hour)
	require.Equal(t, 1, env.manager.SweepIdle(ctx, 30*time.Minute))
	// The viewer closes after the sweep; a late report stays dropped.
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))
	resumed, err = env.manager.Resume(ctx, book.ID, 5)
	require.NoError(t, err)
	assert.False(t, resumed, "closed by the viewer after the sweep")
	assert.Equal(t, Idle, env.manager.State(book.ID))
}

func TestManager_ResetWaitsForClosingSession(t *testing.T) {
	store := newStubStore()
	release := make(chan struct{})
	entered := make(chan struct{})
	blocking := &blockingProgress{stubStore: store, entered: entered, release: release}
	m := NewManager(blocking, store)
	ctx := context.Background()

	require.NoError(t, m.Activate(ctx, entities.Book{ID: 1}))
	m.ReportPage(1, 9)

	closeErr := make(chan error, 1)
	go func() { closeErr <- m.Deactivate(ctx, 1) }()
	<-entered

	resetDone := make(chan struct{})
	go func() {
		_, _ = m.ResetSessions(ctx)
		close(resetDone)
	}()

	select {
	case <-resetDone:
		t.Fatal("reset ran while a session was closing")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-closeErr)
	<-resetDone
	require.Len(t, store.closed, 1)
	assert.Equal(t, 9, store.closed[0].LastReadPage)
}

// blockingProgress holds SetPagesRead until release is closed.
type blockingProgress struct {
	*stubStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProgress) SetPagesRead(ctx context.Context, id uint, n int) (bool, error) {
	close(b.entered)
	<-b.release
	return b.stubStore.SetPagesRead(ctx, id, n)
}

func TestManager_CloseAll(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	first := env.addBook(t, 0, 0)
	second := env.addBook(t, 0, 0)

	require.NoError(t, env.manager.Activate(ctx, first))
	require.NoError(t, env.manager.Activate(ctx, second))
	env.manager.ReportPage(first.ID, 11)
	env.manager.ReportPage(second.ID, 22)

	require.NoError(t, env.manager.CloseAll(ctx))
	assert.Empty(t, env.manager.OpenSessions())
	assert.Equal(t, 11, env.pagesRead(t, first.ID))
	assert.Equal(t, 22, env.pagesRead(t, second.ID))
}

func TestManager_ResetSessions(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 0, 0)

	require.NoError(t, env.manager.Activate(ctx, book))
	_, err := env.manager.ResetSessions(ctx)
	assert.ErrorIs(t, err, ErrSessionsOpen)

	require.NoError(t, env.manager.Deactivate(ctx, book.ID))
	deleted, err := env.manager.ResetSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err := env.sessions.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestManager_ConcurrentPageReportsDuringClose(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, 0, 0)
	require.NoError(t, env.manager.Activate(ctx, book))

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			env.manager.ReportPage(book.ID, page)
		}(i)
	}
	require.NoError(t, env.manager.Deactivate(ctx, book.ID))
	wg.Wait()

	rows, err := env.sessions.ListForBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rows[0].LastReadPage, env.pagesRead(t, book.ID))
}

// stubStore injects faults into the manager's collaborators.
type stubStore struct {
	mu          sync.Mutex
	openErr     error
	progressErr error
	closeErr    error
	nextID      uint
	closed      []entities.SessionClose
	pagesRead   map[uint]int
	createdAt   map[uint]time.Time
}

func newStubStore() *stubStore {
	return &stubStore{pagesRead: map[uint]int{}, createdAt: map[uint]time.Time{}}
}

func (s *stubStore) SetPagesRead(_ context.Context, id uint, n int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progressErr != nil {
		return false, s.progressErr
	}
	if n <= s.pagesRead[id] {
		return false, nil
	}
	s.pagesRead[id] = n
	return true, nil
}

func (s *stubStore) GetByID(_ context.Context, id uint) (*entities.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &entities.Book{ID: id, PagesRead: s.pagesRead[id]}, nil
}

func (s *stubStore) SetTotalPages(context.Context, uint, int) error {
	return nil
}

func (s *stubStore) Open(_ context.Context, _ uint, _ int, at time.Time) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return 0, s.openErr
	}
	s.nextID++
	s.createdAt[s.nextID] = at
	return s.nextID, nil
}

func (s *stubStore) CreatedAt(_ context.Context, id uint) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.createdAt[id]
	if !ok {
		return time.Time{}, apperr.NotFound("session", id)
	}
	return at, nil
}

func (s *stubStore) Close(_ context.Context, _ uint, c entities.SessionClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return s.closeErr
	}
	s.closed = append(s.closed, c)
	return nil
}

func (s *stubStore) DeleteAll(context.Context) (int64, error) {
	return 0, nil
}

func TestManager_ActivateFailureStaysIdle(t *testing.T) {
	store := newStubStore()
	store.openErr = apperr.Store("insert session", errors.New("disk I/O error"))
	m := NewManager(store, store)
	book := entities.Book{ID: 1, PagesRead: 10}

	err := m.Activate(context.Background(), book)
	require.Error(t, err)
	assert.True(t, apperr.IsStore(err))
	assert.Equal(t, Idle, m.State(book.ID))
	assert.False(t, m.ReportPage(book.ID, 20))
	assert.NoError(t, m.Deactivate(context.Background(), book.ID))

	// A later attempt succeeds once the store recovers.
	store.openErr = nil
	require.NoError(t, m.Activate(context.Background(), book))
	assert.Equal(t, Open, m.State(book.ID))
}

func TestManager_ProgressFailureAbortsClose(t *testing.T) {
	store := newStubStore()
	m := NewManager(store, store)
	book := entities.Book{ID: 1, PagesRead: 10}

	require.NoError(t, m.Activate(context.Background(), book))
	m.ReportPage(book.ID, 40)

	store.progressErr = apperr.Store("set pages read", errors.New("database is locked"))
	err := m.Deactivate(context.Background(), book.ID)
	require.Error(t, err)

	assert.Equal(t, Idle, m.State(book.ID), "the identity is released even on failure")
	assert.Empty(t, store.closed, "the session row is not finalized without progress")
}

func TestManager_SessionCloseFailureKeepsProgress(t *testing.T) {
	store := newStubStore()
	m := NewManager(store, store)
	book := entities.Book{ID: 1, PagesRead: 10}

	require.NoError(t, m.Activate(context.Background(), book))
	m.ReportPage(book.ID, 40)

	store.closeErr = apperr.Store("close session", errors.New("disk full"))
	require.Error(t, m.Deactivate(context.Background(), book.ID))

	assert.Equal(t, 40, store.pagesRead[book.ID])
	assert.Equal(t, Idle, m.State(book.ID))
}

func TestManager_DurationNeverNegative(t *testing.T) {
	store := newStubStore()
	clock := newFakeClock()
	m := NewManager(store, store, WithClock(clock.Now))
	book := entities.Book{ID: 1}

	require.NoError(t, m.Activate(context.Background(), book))
	clock.Advance(-time.Minute)
	require.NoError(t, m.Deactivate(context.Background(), book.ID))

	require.Len(t, store.closed, 1)
	assert.Equal(t, int64(0), store.closed[0].DurationMs)
}
