package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/readinglog/internal/database"
	"github.com/mrlokans/readinglog/internal/database/books"
	"github.com/mrlokans/readinglog/internal/database/notes"
	"github.com/mrlokans/readinglog/internal/database/sessions"
	"github.com/mrlokans/readinglog/internal/entities"
	"github.com/mrlokans/readinglog/internal/insights"
	"github.com/mrlokans/readinglog/internal/reading"
	"github.com/mrlokans/readinglog/internal/tasks"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, task backlite.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, task)
	return "task-42", nil
}

func (q *fakeQueue) Status(_ context.Context, taskID string) (backlite.TaskStatus, error) {
	if taskID == "task-42" {
		return backlite.TaskStatusSuccess, nil
	}
	return backlite.TaskStatusNotFound, nil
}

type apiEnv struct {
	router   *gin.Engine
	clock    *testClock
	books    *books.Repository
	sessions *sessions.Repository
	notes    *notes.Repository
	manager  *reading.Manager
}

func setupAPI(t *testing.T, queue TaskQueue) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "api.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &testClock{now: time.Date(2024, 10, 7, 20, 0, 0, 0, time.UTC)}
	env := &apiEnv{
		clock:    clock,
		books:    books.NewRepository(db.DB, books.WithClock(clock.Now)),
		sessions: sessions.NewRepository(db.DB),
		notes:    notes.NewRepository(db.DB, notes.WithClock(clock.Now)),
	}
	env.manager = reading.NewManager(env.books, env.sessions, reading.WithClock(clock.Now))

	env.router = NewRouter(RouterConfig{
		Database:       db,
		Books:          env.books,
		Notes:          env.notes,
		Sessions:       env.manager,
		Insights:       insights.NewAggregator(env.sessions, env.books, insights.WithLocation(time.UTC)),
		SessionCleaner: env.sessions,
		NoteCleaner:    env.notes,
		TaskQueue:      queue,
		Version:        "test",
	})
	return env
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) createBook(t *testing.T, name string) entities.Book {
	t.Helper()
	w := e.do(t, "POST", "/api/books", books.BookFields{
		ContentRef: "file:///library/" + name + ".pdf",
		SizeBytes:  2048,
		Name:       name,
		Author:     "Frank Herbert",
		Genre:      "science fiction",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var book entities.Book
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))
	return book
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestBooksAPI(t *testing.T) {
	env := setupAPI(t, nil)

	dune := env.createBook(t, "Dune")
	assert.Equal(t, "Science Fiction", dune.Genre)
	assert.Zero(t, dune.PagesRead)
	assert.Nil(t, dune.TotalPages)

	t.Run("rejects a book without a name", func(t *testing.T) {
		w := env.do(t, "POST", "/api/books", books.BookFields{ContentRef: "x", Author: "a", Genre: "g"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "name")
	})

	t.Run("gets a book", func(t *testing.T) {
		w := env.do(t, "GET", "/api/books/1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Dune", decode[entities.Book](t, w).Name)

		assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/books/99", nil).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/books/abc", nil).Code)
	})

	t.Run("patches only the given fields", func(t *testing.T) {
		w := env.do(t, "PATCH", "/api/books/1", map[string]any{"author": "F. Herbert"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		book := decode[entities.Book](t, w)
		assert.Equal(t, "F. Herbert", book.Author)
		assert.Equal(t, "Dune", book.Name)
		assert.Equal(t, int64(2048), book.SizeBytes)

		w = env.do(t, "PATCH", "/api/books/1", map[string]any{"name": "  "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("lists and filters", func(t *testing.T) {
		env.createBook(t, "Children of Dune")

		w := env.do(t, "GET", "/api/books?q=children", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[struct {
			Books []entities.Book `json:"books"`
			Count int             `json:"count"`
		}](t, w)
		assert.Equal(t, 1, resp.Count)

		w = env.do(t, "GET", "/api/books?genre=All", nil)
		assert.Contains(t, w.Body.String(), `"count": 2`)

		w = env.do(t, "GET", "/api/books?genre=Poetry", nil)
		assert.Contains(t, w.Body.String(), `"count": 0`)
	})

	t.Run("lists genres", func(t *testing.T) {
		w := env.do(t, "GET", "/api/genres", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Science Fiction")
	})

	t.Run("deletes a book", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/books/2", nil).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, "DELETE", "/api/books/2", nil).Code)
	})
}

func TestSessionLifecycleAPI(t *testing.T) {
	env := setupAPI(t, nil)
	book := env.createBook(t, "Dune")
	ctx := context.Background()

	_, err := env.books.SetPagesRead(ctx, book.ID, 10)
	require.NoError(t, err)

	w := env.do(t, "POST", "/api/books/1/session", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state := decode[sessionStateResponse](t, w)
	assert.Equal(t, "open", state.State)
	require.NotNil(t, state.Activation)
	assert.Equal(t, 10, state.Activation.StartPage)

	for _, page := range []int{12, 30, 45} {
		env.clock.Advance(time.Minute)
		assert.Equal(t, http.StatusNoContent, env.do(t, "PUT", "/api/books/1/session/page", gin.H{"page": page}).Code)
	}
	assert.Equal(t, http.StatusBadRequest, env.do(t, "PUT", "/api/books/1/session/page", gin.H{"page": 0}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "PUT", "/api/books/1/session/page", gin.H{}).Code)

	w = env.do(t, "GET", "/api/sessions/open", nil)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = env.do(t, "DELETE", "/api/books/1/session", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "idle", decode[sessionStateResponse](t, w).State)

	stored, err := env.books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, stored.PagesRead)

	rows, err := env.sessions.ListForBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 35, rows[0].TotalPagesRead)
	assert.Equal(t, int64(180000), rows[0].DurationMs)

	t.Run("deactivate without a session is a no-op", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/books/1/session", nil).Code)
	})

	t.Run("page reports while idle are refused", func(t *testing.T) {
		w := env.do(t, "PUT", "/api/books/1/session/page", gin.H{"page": 99})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"session_not_open"`)
		assert.Contains(t, w.Body.String(), `"state":"idle"`)

		stored, err := env.books.GetByID(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 45, stored.PagesRead)
	})

	t.Run("page report after an idle sweep reopens the session", func(t *testing.T) {
		require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/books/1/session", nil).Code)
		require.Equal(t, http.StatusNoContent, env.do(t, "PUT", "/api/books/1/session/page", gin.H{"page": 60}).Code)
		env.clock.Advance(time.Hour)
		require.Equal(t, 1, env.manager.SweepIdle(ctx, 30*time.Minute))

		assert.Equal(t, http.StatusNoContent, env.do(t, "PUT", "/api/books/1/session/page", gin.H{"page": 80}).Code)
		require.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/books/1/session", nil).Code)

		stored, err := env.books.GetByID(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 80, stored.PagesRead)
	})

	t.Run("activating a missing book", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(t, "POST", "/api/books/99/session", nil).Code)
	})

	t.Run("page count", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, env.do(t, "PUT", "/api/books/1/session/page-count", gin.H{"total_pages": 412}).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(t, "PUT", "/api/books/1/session/page-count", gin.H{"total_pages": 0}).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, "PUT", "/api/books/99/session/page-count", gin.H{"total_pages": 10}).Code)

		stored, err := env.books.GetByID(ctx, book.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.TotalPages)
		assert.Equal(t, 412, *stored.TotalPages)
	})
}

func TestResetSessionsAPI(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		env := setupAPI(t, nil)
		env.createBook(t, "Dune")

		require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/books/1/session", nil).Code)
		assert.Equal(t, http.StatusConflict, env.do(t, "DELETE", "/api/sessions", nil).Code)

		require.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/books/1/session", nil).Code)
		w := env.do(t, "DELETE", "/api/sessions", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deleted":1}`, w.Body.String())

		n, err := env.sessions.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("queued", func(t *testing.T) {
		queue := &fakeQueue{}
		env := setupAPI(t, queue)

		w := env.do(t, "DELETE", "/api/sessions", nil)
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), "task-42")
		require.Len(t, queue.tasks, 1)
		assert.IsType(t, tasks.ResetSessionsTask{}, queue.tasks[0])
	})

	t.Run("queue failure", func(t *testing.T) {
		env := setupAPI(t, &fakeQueue{err: errors.New("queue closed")})
		assert.Equal(t, http.StatusInternalServerError, env.do(t, "DELETE", "/api/sessions", nil).Code)
	})
}

func TestNotesAPI(t *testing.T) {
	env := setupAPI(t, nil)
	env.createBook(t, "Dune")

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/books/1/note", nil).Code)

	w := env.do(t, "PUT", "/api/books/1/note", gin.H{"content": "Fear is the mind-killer."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, "PUT", "/api/books/1/note", gin.H{"content": "Walk without rhythm."})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/books/1/note", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Walk without rhythm.", decode[entities.Note](t, w).Content)

	assert.Equal(t, http.StatusNotFound, env.do(t, "PUT", "/api/books/99/note", gin.H{"content": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "PUT", "/api/books/1/note", gin.H{}).Code)

	assert.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/books/1/note", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "DELETE", "/api/books/1/note", nil).Code)
}

func TestInsightsAPI(t *testing.T) {
	env := setupAPI(t, nil)

	t.Run("empty ledger", func(t *testing.T) {
		w := env.do(t, "GET", "/api/insights", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[map[string]any](t, w)
		assert.Equal(t, false, resp["has_sessions"])
		assert.Equal(t, float64(0), resp["average_pages_per_session"])
		assert.Equal(t, []any{}, resp["sessions"])
	})

	env.createBook(t, "Dune")
	require.Equal(t, http.StatusNoContent, env.do(t, "PUT", "/api/books/1/session/page-count", gin.H{"total_pages": 100}).Code)

	read := func(to int) {
		require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/books/1/session", nil).Code)
		env.clock.Advance(2 * time.Minute)
		require.Equal(t, http.StatusNoContent, env.do(t, "PUT", "/api/books/1/session/page", gin.H{"page": to}).Code)
		require.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/books/1/session", nil).Code)
	}
	read(35)
	read(55)

	t.Run("summary", func(t *testing.T) {
		w := env.do(t, "GET", "/api/insights", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[map[string]any](t, w)
		assert.Equal(t, true, resp["has_sessions"])
		assert.Equal(t, float64(2), resp["total_sessions"])
		assert.Equal(t, float64(55), resp["total_pages_read"])
		assert.Equal(t, "4m 0s", resp["total_duration"])
		assert.Equal(t, "2m 0s", resp["average_time_per_session"])
	})

	t.Run("daily", func(t *testing.T) {
		w := env.do(t, "GET", "/api/insights/daily", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[struct {
			Days []insights.DailyPoint `json:"days"`
		}](t, w)
		require.Len(t, resp.Days, 1)
		assert.Equal(t, "7 Oct", resp.Days[0].Label)
		assert.Equal(t, 55, resp.Days[0].PagesRead)
	})

	t.Run("completion", func(t *testing.T) {
		w := env.do(t, "GET", "/api/insights/completion", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[struct {
			Books []insights.BookCompletion `json:"books"`
		}](t, w)
		require.Len(t, resp.Books, 1)
		assert.Equal(t, 55.0, resp.Books[0].PercentComplete)
	})

	t.Run("currently reading", func(t *testing.T) {
		w := env.do(t, "GET", "/api/insights/reading?limit=5", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"tier":"past_halfway"`)

		assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/insights/reading?limit=-1", nil).Code)
	})
}

func TestTasksAPI(t *testing.T) {
	t.Run("queue disabled", func(t *testing.T) {
		env := setupAPI(t, nil)
		env.createBook(t, "Dune")
		require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/books/1/session", nil).Code)
		require.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/books/1/session", nil).Code)
		require.Equal(t, http.StatusOK, env.do(t, "PUT", "/api/books/1/note", gin.H{"content": "x"}).Code)
		require.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/books/1", nil).Code)

		assert.Equal(t, http.StatusServiceUnavailable, env.do(t, "GET", "/api/tasks/abc", nil).Code)

		w := env.do(t, "POST", "/api/admin/sessions/cleanup-orphans", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"sessions_deleted":1,"notes_deleted":1}`, w.Body.String())
	})

	t.Run("queue enabled", func(t *testing.T) {
		queue := &fakeQueue{}
		env := setupAPI(t, queue)

		w := env.do(t, "POST", "/api/admin/sessions/cleanup-orphans", nil)
		require.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, queue.tasks, 1)
		assert.IsType(t, tasks.CleanupOrphanSessionsTask{}, queue.tasks[0])

		w = env.do(t, "GET", "/api/tasks/task-42", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"task-42","status":"success"}`, w.Body.String())
	})
}

func TestRouter_Headers(t *testing.T) {
	env := setupAPI(t, nil)

	w := env.do(t, "GET", "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
