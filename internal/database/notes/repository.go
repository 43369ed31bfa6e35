// Package notes provides database operations for per-book notes.
package notes

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/readinglog/internal/apperr"
	"github.com/mrlokans/readinglog/internal/entities"
)

// Repository handles note database operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for updatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// NewRepository creates a new notes repository.
func NewRepository(db *gorm.DB, opts ...Option) *Repository {
	r := &Repository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert stores content as the note of bookID, replacing the existing note.
// Older files may hold several notes for one book; the newest is the one
// updated.
func (r *Repository) Upsert(ctx context.Context, bookID uint, content string) (*entities.Note, error) {
	if bookID == 0 {
		return nil, apperr.Required("book_id")
	}

	var note entities.Note
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := latest(tx, bookID).First(&note).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			note = entities.Note{BookID: bookID}
		case err != nil:
			return err
		}

		note.Content = content
		note.UpdatedAt = entities.NewTimestamp(r.now())
		return tx.Save(&note).Error
	})
	if err != nil {
		return nil, apperr.Store("upsert note", err)
	}
	return &note, nil
}

// GetForBook returns the note of a book.
func (r *Repository) GetForBook(ctx context.Context, bookID uint) (*entities.Note, error) {
	var note entities.Note
	err := latest(r.db.WithContext(ctx), bookID).First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("note for book", bookID)
	}
	if err != nil {
		return nil, apperr.Store("get note", err)
	}
	return &note, nil
}

// Delete removes every note of a book.
func (r *Repository) Delete(ctx context.Context, bookID uint) error {
	result := r.db.WithContext(ctx).Where("bookId = ?", bookID).Delete(&entities.Note{})
	if result.Error != nil {
		return apperr.Store("delete note", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("note for book", bookID)
	}
	return nil
}

// DeleteOrphans removes notes whose book no longer exists.
func (r *Repository) DeleteOrphans(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Exec("DELETE FROM notes WHERE bookId NOT IN (SELECT id FROM books)")
	if result.Error != nil {
		return 0, apperr.Store("delete orphan notes", result.Error)
	}
	return result.RowsAffected, nil
}

func latest(db *gorm.DB, bookID uint) *gorm.DB {
	return db.Where("bookId = ?", bookID).Order("updatedAt DESC, id DESC")
}
