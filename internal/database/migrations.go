package database

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"
)

// migration is one additive schema step. Applied versions are recorded in
// schema_migrations and never run twice.
type migration struct {
	version string
	up      func(tx *gorm.DB) error
}

var migrations = []migration{
	{version: "0001_books", up: execSQL(`
		CREATE TABLE IF NOT EXISTS books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bookCover TEXT,
			bookUri TEXT,
			bookSize INTEGER,
			bookName TEXT,
			author TEXT,
			genre TEXT,
			isComplete INTEGER,
			pagesRead INTEGER,
			totalPages INTEGER,
			createdAt TEXT,
			updatedAt TEXT
		)`)},
	{version: "0002_reading_session", up: execSQL(`
		CREATE TABLE IF NOT EXISTS reading_session (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bookId INTEGER,
			lastReadPage INTEGER,
			totalPagesRead INTEGER,
			duration INTEGER,
			createdAt TEXT,
			updatedAt TEXT
		)`)},
	{version: "0003_notes", up: execSQL(`
		CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bookId INTEGER,
			content TEXT,
			updatedAt TEXT
		)`)},
	// Older builds created books without isComplete.
	{version: "0004_books_is_complete", up: addColumnIfMissing("books", "isComplete", "INTEGER")},
	{version: "0005_reading_session_book_index", up: execSQL(
		`CREATE INDEX IF NOT EXISTS idx_reading_session_book_id ON reading_session (bookId)`)},
	// Older builds stored bookSize in megabytes (as REAL or TEXT) and left
	// progress columns NULL.
	{version: "0006_books_backfill", up: execSQL(
		`UPDATE books SET bookSize = CAST(ROUND(bookSize * 1048576) AS INTEGER) WHERE typeof(bookSize) = 'real'`,
		`UPDATE books SET bookSize = 0 WHERE bookSize IS NULL OR typeof(bookSize) = 'text'`,
		`UPDATE books SET pagesRead = 0 WHERE pagesRead IS NULL`,
		`UPDATE books SET isComplete = 0 WHERE isComplete IS NULL`,
		`UPDATE books SET bookCover = '' WHERE bookCover IS NULL`,
	)},
	{version: "0007_notes_book_index", up: execSQL(
		`CREATE INDEX IF NOT EXISTS idx_notes_book_id ON notes (bookId)`)},
}

func execSQL(statements ...string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		for _, stmt := range statements {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return nil
	}
}

func addColumnIfMissing(table, column, decl string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		var count int64
		err := tx.Raw("SELECT COUNT(1) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&count).Error
		if err != nil {
			return fmt.Errorf("inspect %s: %w", table, err)
		}
		if count > 0 {
			return nil
		}
		return tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)).Error
	}
}

// EnsureSchema applies every pending migration in a single transaction. It is
// safe to call on every start and never drops data.
func (d *Database) EnsureSchema(ctx context.Context) error {
	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TEXT)").Error; err != nil {
			return fmt.Errorf("ensure schema_migrations: %w", err)
		}

		for _, m := range migrations {
			var count int64
			if err := tx.Raw("SELECT COUNT(1) FROM schema_migrations WHERE version = ?", m.version).Scan(&count).Error; err != nil {
				return fmt.Errorf("check migration %s: %w", m.version, err)
			}
			if count > 0 {
				continue
			}
			if err := m.up(tx); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.version, err)
			}
			if err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.version).Error; err != nil {
				return fmt.Errorf("record migration %s: %w", m.version, err)
			}
			log.Printf("Applied migration %s", m.version)
		}
		return nil
	})
}

// AppliedMigrations lists the recorded migration versions in order.
func (d *Database) AppliedMigrations(ctx context.Context) ([]string, error) {
	var versions []string
	err := d.DB.WithContext(ctx).Raw("SELECT version FROM schema_migrations ORDER BY version").Scan(&versions).Error
	return versions, err
}
