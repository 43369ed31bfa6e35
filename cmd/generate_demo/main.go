// Command generate_demo creates a demo library with public domain books and a
// few weeks of reading sessions.
// Usage: go run ./cmd/generate_demo [-db path/to/demo.db] [-days 21]
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"time"

	"gorm.io/gorm/logger"

	"github.com/mrlokans/readinglog/internal/database"
	"github.com/mrlokans/readinglog/internal/database/books"
	"github.com/mrlokans/readinglog/internal/database/notes"
	"github.com/mrlokans/readinglog/internal/database/sessions"
	"github.com/mrlokans/readinglog/internal/reading"
)

const defaultDemoDatabasePath = "./demo/demo.db"

// demoClock is advanced by the generator so sessions land on past days.
type demoClock struct {
	now time.Time
}

func (c *demoClock) Now() time.Time { return c.now }

type demoBook struct {
	Fields     books.BookFields
	TotalPages int
	Note       string
}

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	days := flag.Int("days", 21, "number of days of reading history to generate")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.NewDatabase(*dbPath, database.WithLogLevel(logger.Silent))
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	clock := &demoClock{now: time.Now().AddDate(0, 0, -*days).Truncate(24 * time.Hour).Add(19 * time.Hour)}
	bookRepo := books.NewRepository(db.DB, books.WithClock(clock.Now))
	noteRepo := notes.NewRepository(db.DB, notes.WithClock(clock.Now))
	manager := reading.NewManager(bookRepo, sessions.NewRepository(db.DB), reading.WithClock(clock.Now))

	var ids []uint
	for _, demo := range publicDomainBooks() {
		book, err := bookRepo.Create(ctx, demo.Fields)
		if err != nil {
			log.Printf("Failed to save book %s: %v", demo.Fields.Name, err)
			continue
		}
		if err := manager.ReportPageCount(ctx, book.ID, demo.TotalPages); err != nil {
			log.Printf("Failed to set page count of %s: %v", book.Name, err)
		}
		if demo.Note != "" {
			if _, err := noteRepo.Upsert(ctx, book.ID, demo.Note); err != nil {
				log.Printf("Failed to save note for %s: %v", book.Name, err)
			}
		}
		ids = append(ids, book.ID)
		log.Printf("Saved: %s by %s", book.Name, book.Author)
	}
	if len(ids) == 0 {
		log.Fatalf("No books were saved")
	}

	rng := rand.New(rand.NewSource(*seed))
	total := 0
	for day := 0; day < *days; day++ {
		// Skip some evenings.
		if rng.Intn(4) == 0 {
			clock.now = clock.now.Add(24 * time.Hour)
			continue
		}
		start := clock.now
		for session := 0; session < 1+rng.Intn(2); session++ {
			if readSession(ctx, manager, bookRepo, clock, ids[rng.Intn(len(ids))], rng) {
				total++
			}
			clock.now = clock.now.Add(time.Duration(10+rng.Intn(50)) * time.Minute)
		}
		clock.now = start.Add(24 * time.Hour)
	}

	log.Printf("Demo database generated successfully with %d sessions!", total)
}

// readSession drives one viewing session through the manager, the same way
// the viewer does: open, a run of page reports, close.
func readSession(ctx context.Context, manager *reading.Manager, repo *books.Repository, clock *demoClock, bookID uint, rng *rand.Rand) bool {
	book, err := repo.GetByID(ctx, bookID)
	if err != nil {
		log.Printf("Failed to load book %d: %v", bookID, err)
		return false
	}
	if book.IsComplete {
		return false
	}

	view := manager.Open(ctx, *book)
	if view.Err() != nil {
		log.Printf("Failed to open session for %s: %v", book.Name, view.Err())
		return false
	}

	page := book.PagesRead
	if page < 1 {
		page = 1
	}
	for i := 0; i < 5+rng.Intn(30); i++ {
		clock.now = clock.now.Add(time.Duration(40+rng.Intn(120)) * time.Second)
		page++
		view.PageChanged(page)
	}

	if err := view.Close(ctx); err != nil {
		log.Printf("Failed to close session for %s: %v", book.Name, err)
		return false
	}
	return true
}

func publicDomainBooks() []demoBook {
	return []demoBook{
		{
			Fields: books.BookFields{
				ContentRef: "file:///library/meditations.pdf",
				CoverRef:   "file:///library/covers/meditations.jpg",
				SizeBytes:  1_245_184,
				Name:       "Meditations",
				Author:     "Marcus Aurelius",
				Genre:      "Philosophy",
			},
			TotalPages: 254,
			Note:       "The happiness of your life depends upon the quality of your thoughts.",
		},
		{
			Fields: books.BookFields{
				ContentRef: "file:///library/letters-from-a-stoic.pdf",
				SizeBytes:  2_097_152,
				Name:       "Letters from a Stoic",
				Author:     "Seneca",
				Genre:      "Philosophy",
			},
			TotalPages: 352,
		},
		{
			Fields: books.BookFields{
				ContentRef: "file:///library/pride-and-prejudice.epub",
				CoverRef:   "file:///library/covers/pride-and-prejudice.jpg",
				SizeBytes:  786_432,
				Name:       "Pride and Prejudice",
				Author:     "Jane Austen",
				Genre:      "Classics",
			},
			TotalPages: 432,
			Note:       "Re-read the Netherfield ball chapters.",
		},
		{
			Fields: books.BookFields{
				ContentRef: "file:///library/time-machine.pdf",
				SizeBytes:  524_288,
				Name:       "The Time Machine",
				Author:     "H. G. Wells",
				Genre:      "Science Fiction",
			},
			TotalPages: 118,
		},
		{
			Fields: books.BookFields{
				ContentRef: "file:///library/hound-of-the-baskervilles.epub",
				SizeBytes:  655_360,
				Name:       "The Hound of the Baskervilles",
				Author:     "Arthur Conan Doyle",
				Genre:      "Mystery",
			},
			TotalPages: 256,
		},
	}
}
