package http

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/readinglog/internal/database/books"
	"github.com/mrlokans/readinglog/internal/entities"
	"github.com/mrlokans/readinglog/internal/insights"
	"github.com/mrlokans/readinglog/internal/reading"
)

// This file consolidates the store interfaces used by HTTP controllers.
// Each controller depends on the narrowest one it needs.

// BookGetter provides read access to books.
type BookGetter interface {
	GetByID(ctx context.Context, id uint) (*entities.Book, error)
}

// BookStore is the book repository surface used by BooksController.
type BookStore interface {
	BookGetter
	Create(ctx context.Context, fields books.BookFields) (*entities.Book, error)
	Update(ctx context.Context, id uint, fields books.BookFields) (*entities.Book, error)
	ListAll(ctx context.Context, opts books.ListOptions) ([]entities.Book, error)
	Delete(ctx context.Context, id uint) error
}

// NoteStore persists the per-book note.
type NoteStore interface {
	Upsert(ctx context.Context, bookID uint, content string) (*entities.Note, error)
	GetForBook(ctx context.Context, bookID uint) (*entities.Note, error)
	Delete(ctx context.Context, bookID uint) error
}

// SessionLifecycle is the reading.Manager surface driven by the viewer.
type SessionLifecycle interface {
	Activate(ctx context.Context, book entities.Book) error
	ReportPage(bookID uint, page int) bool
	Resume(ctx context.Context, bookID uint, page int) (bool, error)
	ReportPageCount(ctx context.Context, bookID uint, n int) error
	Deactivate(ctx context.Context, bookID uint) error
	State(bookID uint) reading.State
	OpenSessions() []reading.Activation
	ResetSessions(ctx context.Context) (int64, error)
}

// InsightsSource computes the dashboard aggregates.
type InsightsSource interface {
	Summarize(ctx context.Context) (*insights.Insights, error)
	PerBookCompletion(ctx context.Context) ([]insights.BookCompletion, error)
	CurrentlyReading(ctx context.Context, limit int) ([]insights.ReadingProgress, error)
}

// TaskQueue enqueues background tasks and reports their status.
type TaskQueue interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// taskTimeout bounds queue round-trips made from a request.
const taskTimeout = 5 * time.Second
