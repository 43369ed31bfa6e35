// Package database provides the data access layer for the reading ledger.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and options
//	├── migrations.go    # Versioned, additive schema migrations
//	├── store.go         # Raw Execute/Query access
//	├── books/           # Book CRUD and clamped progress updates
//	├── sessions/        # Reading session rows
//	└── notes/           # Per-book notes
//
// # Using Sub-packages
//
// The Database handle is created once and passed explicitly; there is no
// package-level connection:
//
//	db, err := database.NewDatabase("./library.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	sessionsRepo := sessions.NewRepository(db.DB)
//
//	book, err := booksRepo.GetByID(ctx, 1)
//
// # Schema
//
// Table and column names match the layout older builds of the app wrote, so
// an existing library file can be opened in place. Schema changes are added
// as new entries at the end of the migrations list; entries are never edited
// or removed once released.
//
// # Deletes
//
// Deleting a book does not cascade to its sessions or notes. Orphaned rows are
// excluded by the joins that read them and can be removed explicitly with
// sessions.Repository.DeleteOrphans and notes.Repository.DeleteOrphans.
package database
