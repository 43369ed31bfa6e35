package http

import (
	"github.com/mrlokans/readinglog/internal/tasks"
)

// RouterConfig holds all dependencies needed to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database Pinger
	Books    BookStore
	Notes    NoteStore
	Sessions SessionLifecycle
	Insights InsightsSource

	// Orphan cleanup, used inline when TaskQueue is nil
	SessionCleaner tasks.OrphanCleaner
	NoteCleaner    tasks.OrphanCleaner

	// Task queue (optional)
	TaskQueue TaskQueue

	// Application info
	Version string
}
