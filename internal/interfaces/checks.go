package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/readinglog/internal/database"
	"github.com/mrlokans/readinglog/internal/database/books"
	"github.com/mrlokans/readinglog/internal/database/notes"
	"github.com/mrlokans/readinglog/internal/database/sessions"
	"github.com/mrlokans/readinglog/internal/http"
	"github.com/mrlokans/readinglog/internal/insights"
	"github.com/mrlokans/readinglog/internal/reading"
	"github.com/mrlokans/readinglog/internal/scheduler"
	"github.com/mrlokans/readinglog/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// Session lifecycle writes
var _ reading.BookProgress = (*books.Repository)(nil)
var _ reading.SessionStore = (*sessions.Repository)(nil)

// Insights reads
var _ insights.SessionSource = (*sessions.Repository)(nil)
var _ insights.BookSource = (*books.Repository)(nil)

// HTTP stores
var _ http.BookStore = (*books.Repository)(nil)
var _ http.NoteStore = (*notes.Repository)(nil)
var _ http.Pinger = (*database.Database)(nil)

// =============================================================================
// Session Lifecycle
// =============================================================================

var _ http.SessionLifecycle = (*reading.Manager)(nil)
var _ http.OpenSessionLister = (*reading.Manager)(nil)
var _ http.InsightsSource = (*insights.Aggregator)(nil)
var _ scheduler.SessionSweeper = (*reading.Manager)(nil)

// =============================================================================
// Background Tasks
// =============================================================================

var _ tasks.OrphanCleaner = (*sessions.Repository)(nil)
var _ tasks.OrphanCleaner = (*notes.Repository)(nil)
var _ tasks.SessionResetter = (*reading.Manager)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.TaskEnqueuer = (*tasks.Client)(nil)
