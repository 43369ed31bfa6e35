// Package books provides database operations for the personal library.
//
// Progress writes go through SetPagesRead, which is a single conditional
// UPDATE: the stored value only ever grows and is capped at the page count
// once one is known.
//
// # Usage
//
//	repo := books.NewRepository(db.DB)
//	book, err := repo.GetByID(ctx, 42)
//	applied, err := repo.SetPagesRead(ctx, 42, 120)
package books

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/readinglog/internal/apperr"
	"github.com/mrlokans/readinglog/internal/entities"
)

// Repository handles all book database operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB, opts ...Option) *Repository {
	r := &Repository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BookFields are the user-editable attributes of a book.
type BookFields struct {
	CoverRef   string `json:"cover_ref"`
	ContentRef string `json:"content_ref"`
	SizeBytes  int64  `json:"size_bytes"`
	Name       string `json:"name"`
	Author     string `json:"author"`
	Genre      string `json:"genre"`
}

// Validate reports the first missing required field.
func (f BookFields) Validate() error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return apperr.Required("name")
	case strings.TrimSpace(f.ContentRef) == "":
		return apperr.Required("content_ref")
	case strings.TrimSpace(f.Author) == "":
		return apperr.Required("author")
	case strings.TrimSpace(f.Genre) == "":
		return apperr.Required("genre")
	case f.SizeBytes < 0:
		return apperr.Invalid("size_bytes", "must not be negative")
	}
	return nil
}

func (f BookFields) normalized() BookFields {
	f.CoverRef = strings.TrimSpace(f.CoverRef)
	f.ContentRef = strings.TrimSpace(f.ContentRef)
	f.Name = strings.TrimSpace(f.Name)
	f.Author = strings.TrimSpace(f.Author)
	f.Genre = entities.NormalizeGenre(f.Genre)
	return f
}

// ListOptions narrows ListAll. Empty values (and the "All" genre) disable the
// corresponding filter.
type ListOptions struct {
	Genre string
	Query string
}

// Create inserts a new book with no progress and an unknown page count.
func (r *Repository) Create(ctx context.Context, fields BookFields) (*entities.Book, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	fields = fields.normalized()
	now := entities.NewTimestamp(r.now())

	book := entities.Book{
		CoverRef:   fields.CoverRef,
		ContentRef: fields.ContentRef,
		SizeBytes:  fields.SizeBytes,
		Name:       fields.Name,
		Author:     fields.Author,
		Genre:      fields.Genre,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.db.WithContext(ctx).Create(&book).Error; err != nil {
		return nil, apperr.Store("insert book", err)
	}
	return &book, nil
}

// GetByID retrieves a book by its ID.
func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("book", id)
	}
	if err != nil {
		return nil, apperr.Store("get book", err)
	}
	return &book, nil
}

// Update replaces the editable metadata of a book. Progress columns are left
// untouched.
func (r *Repository) Update(ctx context.Context, id uint, fields BookFields) (*entities.Book, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	fields = fields.normalized()

	result := r.db.WithContext(ctx).Model(&entities.Book{}).Where("id = ?", id).Updates(map[string]any{
		"bookCover": fields.CoverRef,
		"bookUri":   fields.ContentRef,
		"bookSize":  fields.SizeBytes,
		"bookName":  fields.Name,
		"author":    fields.Author,
		"genre":     fields.Genre,
		"updatedAt": entities.NewTimestamp(r.now()),
	})
	if result.Error != nil {
		return nil, apperr.Store("update book", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperr.NotFound("book", id)
	}
	return r.GetByID(ctx, id)
}

// ListAll returns books ordered by most recently updated first.
func (r *Repository) ListAll(ctx context.Context, opts ListOptions) ([]entities.Book, error) {
	query := r.db.WithContext(ctx).Model(&entities.Book{})

	if genre := strings.TrimSpace(opts.Genre); genre != "" && !strings.EqualFold(genre, entities.GenreAll) {
		query = query.Where("LOWER(genre) = LOWER(?)", entities.NormalizeGenre(genre))
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		searchPattern := "%" + q + "%"
		query = query.Where("LOWER(bookName) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?)", searchPattern, searchPattern)
	}

	books := []entities.Book{}
	if err := query.Order("updatedAt DESC, id DESC").Find(&books).Error; err != nil {
		return nil, apperr.Store("list books", err)
	}
	return books, nil
}

// Count returns the number of books in the library.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Book{}).Count(&count).Error; err != nil {
		return 0, apperr.Store("count books", err)
	}
	return count, nil
}

// SetTotalPages records the page count reported by the viewer. It overwrites
// any previous value, but a count below the stored pagesRead is rejected with
// a validation error so that progress never exceeds the page count.
func (r *Repository) SetTotalPages(ctx context.Context, id uint, totalPages int) error {
	if totalPages <= 0 {
		return apperr.Invalid("total_pages", "must be positive")
	}

	result := r.db.WithContext(ctx).Exec(
		`UPDATE books SET totalPages = ?,
			isComplete = CASE WHEN COALESCE(pagesRead, 0) >= ? THEN 1 ELSE COALESCE(isComplete, 0) END,
			updatedAt = ?
		WHERE id = ? AND COALESCE(pagesRead, 0) <= ?`,
		totalPages, totalPages, entities.NewTimestamp(r.now()), id, totalPages,
	)
	if result.Error != nil {
		return apperr.Store("set total pages", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("book", id)
	}
	return apperr.Invalid("total_pages", fmt.Sprintf("%d is below the pages already read", totalPages))
}

// SetPagesRead advances the stored progress to n when n is ahead of it. With a
// known page count the stored value is capped at totalPages and isComplete is
// set once it is reached. The comparison and write happen in one statement,
// so concurrent callers can never move progress backwards.
//
// The returned flag reports whether the row changed.
func (r *Repository) SetPagesRead(ctx context.Context, id uint, n int) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE books SET
			pagesRead = MIN(?, COALESCE(NULLIF(totalPages, 0), ?)),
			isComplete = CASE WHEN NULLIF(totalPages, 0) IS NOT NULL AND ? >= totalPages THEN 1 ELSE COALESCE(isComplete, 0) END,
			updatedAt = ?
		WHERE id = ?
			AND COALESCE(pagesRead, 0) < ?
			AND (NULLIF(totalPages, 0) IS NULL OR COALESCE(pagesRead, 0) < totalPages)`,
		n, n, n, entities.NewTimestamp(r.now()), id, n,
	)
	if result.Error != nil {
		return false, apperr.Store("set pages read", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, apperr.NotFound("book", id)
	}
	return false, nil
}

// Delete removes a book. Its sessions and notes are left in place; see
// sessions.Repository.DeleteOrphans.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.Book{}, id)
	if result.Error != nil {
		return apperr.Store("delete book", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("book", id)
	}
	return nil
}

func (r *Repository) exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Book{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, apperr.Store("check book", err)
	}
	return count > 0, nil
}
