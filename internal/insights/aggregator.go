// Package insights derives read-only statistics from closed reading sessions
// and book progress.
package insights

import (
	"context"
	"math"
	"time"

	"github.com/mrlokans/readinglog/internal/database/books"
	"github.com/mrlokans/readinglog/internal/entities"
)

// SessionSource lists sessions joined with their (still existing) book.
type SessionSource interface {
	ListWithBooks(ctx context.Context) ([]entities.SessionWithBook, error)
}

// BookSource lists books, most recently updated first.
type BookSource interface {
	ListAll(ctx context.Context, opts books.ListOptions) ([]entities.Book, error)
}

// Aggregator computes Insights from the store.
type Aggregator struct {
	sessions SessionSource
	books    BookSource
	location *time.Location
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLocation sets the time zone used to assign sessions to calendar days.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.location = loc
		}
	}
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(sessions SessionSource, books BookSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		sessions: sessions,
		books:    books,
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Insights is the summary of every session whose book still exists.
//
// A nil *Insights means nothing has been loaded; a loaded result with no
// sessions has TotalSessions == 0 and an empty Sessions slice.
type Insights struct {
	TotalSessions           int                        `json:"total_sessions"`
	TotalPagesRead          int                        `json:"total_pages_read"`
	TotalDurationMs         int64                      `json:"total_duration_ms"`
	AveragePagesPerSession  float64                    `json:"average_pages_per_session"`
	AverageTimePerSessionMs float64                    `json:"average_time_per_session_ms"`
	Sessions                []entities.SessionWithBook `json:"sessions"`

	location *time.Location
}

// HasSessions reports whether the averages are meaningful.
func (i *Insights) HasSessions() bool {
	return i != nil && i.TotalSessions > 0
}

// Daily returns the chart series for the summarized sessions.
func (i *Insights) Daily() []DailyPoint {
	if i == nil {
		return []DailyPoint{}
	}
	return DailySeries(i.Sessions, i.location)
}

// Summarize loads every session and computes totals and averages. Negative
// per-session deltas count toward the totals.
func (a *Aggregator) Summarize(ctx context.Context) (*Insights, error) {
	rows, err := a.sessions.ListWithBooks(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(rows, a.location), nil
}

func summarize(rows []entities.SessionWithBook, loc *time.Location) *Insights {
	if rows == nil {
		rows = []entities.SessionWithBook{}
	}
	result := &Insights{
		TotalSessions: len(rows),
		Sessions:      rows,
		location:      loc,
	}
	for _, s := range rows {
		result.TotalPagesRead += s.TotalPagesRead
		result.TotalDurationMs += s.DurationMs
	}
	if result.TotalSessions > 0 {
		result.AveragePagesPerSession = float64(result.TotalPagesRead) / float64(result.TotalSessions)
		result.AverageTimePerSessionMs = float64(result.TotalDurationMs) / float64(result.TotalSessions)
	}
	return result
}

// BookCompletion is one slice of the per-book completion chart.
type BookCompletion struct {
	BookID          uint    `json:"book_id"`
	Name            string  `json:"name"`
	Author          string  `json:"author"`
	PagesRead       int     `json:"pages_read"`
	TotalPages      int     `json:"total_pages"`
	PercentComplete float64 `json:"percent_complete"`
}

// PerBookCompletion returns the completion percentage of every book with
// progress and a known page count. Books without a page count are excluded.
func (a *Aggregator) PerBookCompletion(ctx context.Context) ([]BookCompletion, error) {
	all, err := a.books.ListAll(ctx, books.ListOptions{})
	if err != nil {
		return nil, err
	}
	return Completion(all), nil
}

// Completion computes BookCompletion for the books that qualify.
func Completion(all []entities.Book) []BookCompletion {
	result := []BookCompletion{}
	for _, b := range all {
		if b.PagesRead <= 0 || !b.HasPageCount() {
			continue
		}
		result = append(result, BookCompletion{
			BookID:          b.ID,
			Name:            b.Name,
			Author:          b.Author,
			PagesRead:       b.PagesRead,
			TotalPages:      *b.TotalPages,
			PercentComplete: round2(100 * float64(b.PagesRead) / float64(*b.TotalPages)),
		})
	}
	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
