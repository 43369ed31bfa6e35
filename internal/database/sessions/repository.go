// Package sessions provides database operations for reading session rows.
//
// A row is inserted when a book becomes the active view (Open) and updated
// exactly once when it stops being active (Close). The lifecycle itself is
// owned by the reading package; this package only persists it.
package sessions

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/readinglog/internal/apperr"
	"github.com/mrlokans/readinglog/internal/entities"
)

// Repository handles reading session database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new sessions repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Open inserts a session row for bookID starting at startingPage and returns
// its id. The book is not checked for existence.
func (r *Repository) Open(ctx context.Context, bookID uint, startingPage int, at time.Time) (uint, error) {
	if bookID == 0 {
		return 0, apperr.Required("book_id")
	}
	if startingPage < 1 {
		return 0, apperr.Invalid("last_read_page", "must be at least 1")
	}

	ts := entities.NewTimestamp(at)
	session := entities.ReadingSession{
		BookID:       bookID,
		LastReadPage: startingPage,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if err := r.db.WithContext(ctx).Create(&session).Error; err != nil {
		return 0, apperr.Store("insert session", err)
	}
	return session.ID, nil
}

// CreatedAt returns the start time of a session as stored.
func (r *Repository) CreatedAt(ctx context.Context, id uint) (time.Time, error) {
	var session entities.ReadingSession
	err := r.db.WithContext(ctx).Select("id", "createdAt").First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, apperr.NotFound("session", id)
	}
	if err != nil {
		return time.Time{}, apperr.Store("get session start", err)
	}
	return session.CreatedAt.Time, nil
}

// Close writes the reconciled values of a session.
func (r *Repository) Close(ctx context.Context, id uint, c entities.SessionClose) error {
	result := r.db.WithContext(ctx).Model(&entities.ReadingSession{}).Where("id = ?", id).Updates(map[string]any{
		"lastReadPage":   c.LastReadPage,
		"totalPagesRead": c.TotalPagesRead,
		"duration":       c.DurationMs,
		"updatedAt":      entities.NewTimestamp(c.ClosedAt),
	})
	if result.Error != nil {
		return apperr.Store("close session", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("session", id)
	}
	return nil
}

// GetByID retrieves a single session row.
func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.ReadingSession, error) {
	var session entities.ReadingSession
	err := r.db.WithContext(ctx).First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("session", id)
	}
	if err != nil {
		return nil, apperr.Store("get session", err)
	}
	return &session, nil
}

// ListWithBooks returns every session whose book still exists, joined with
// the book name and ordered by updatedAt ascending. Orphaned rows are skipped.
func (r *Repository) ListWithBooks(ctx context.Context) ([]entities.SessionWithBook, error) {
	rows := []entities.SessionWithBook{}
	err := r.db.WithContext(ctx).
		Table("reading_session AS rs").
		Select("rs.*, b.bookName AS bookTitle").
		Joins("INNER JOIN books b ON b.id = rs.bookId").
		Order("rs.updatedAt ASC, rs.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Store("list sessions", err)
	}
	return rows, nil
}

// ListForBook returns the sessions of one book, newest first.
func (r *Repository) ListForBook(ctx context.Context, bookID uint) ([]entities.ReadingSession, error) {
	rows := []entities.ReadingSession{}
	err := r.db.WithContext(ctx).
		Where("bookId = ?", bookID).
		Order("createdAt DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Store("list book sessions", err)
	}
	return rows, nil
}

// Count returns the number of session rows, orphans included.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.ReadingSession{}).Count(&count).Error; err != nil {
		return 0, apperr.Store("count sessions", err)
	}
	return count, nil
}

// DeleteAll removes every session row and resets the id sequence, so the next
// session starts again at id 1.
func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec("DELETE FROM reading_session")
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return tx.Exec("DELETE FROM sqlite_sequence WHERE name = ?", entities.ReadingSession{}.TableName()).Error
	})
	if err != nil {
		return 0, apperr.Store("delete sessions", err)
	}
	return deleted, nil
}

// DeleteOrphans removes sessions whose book no longer exists.
func (r *Repository) DeleteOrphans(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Exec("DELETE FROM reading_session WHERE bookId NOT IN (SELECT id FROM books)")
	if result.Error != nil {
		return 0, apperr.Store("delete orphan sessions", result.Error)
	}
	return result.RowsAffected, nil
}
