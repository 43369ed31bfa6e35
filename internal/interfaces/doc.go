// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - reading.BookProgress: pagesRead and totalPages writes (internal/reading/manager.go)
//   - reading.SessionStore: session row lifecycle (internal/reading/manager.go)
//   - insights.SessionSource, insights.BookSource: aggregate reads (internal/insights/aggregator.go)
//   - http.BookStore, http.NoteStore: API storage (internal/http/stores.go)
//
// ## Session Lifecycle Interfaces
//
//   - http.SessionLifecycle: viewer events driven over HTTP (internal/http/stores.go)
//   - scheduler.SessionSweeper: idle session sweep (internal/scheduler/sessions.go)
//
// ## Background Task Interfaces
//
//   - tasks.OrphanCleaner: orphan session and note removal (internal/tasks/cleanup_orphans.go)
//   - tasks.SessionResetter: bulk session reset (internal/tasks/reset_sessions.go)
//   - scheduler.TaskEnqueuer, http.TaskQueue: queue access (tasks.Client)
//
// # Adding a New Maintenance Task
//
//  1. Define the task and its queue in internal/tasks/:
//
//     type ArchiveSessionsTask struct{ Before time.Time }
//
//     func (t ArchiveSessionsTask) Config() backlite.QueueConfig
//
//     func NewArchiveSessionsQueue(archiver SessionArchiver) backlite.Queue
//
//  2. Register the queue in App.StartTasks (internal/entrypoint/app.go)
//
//  3. Enqueue it from the scheduler or an HTTP handler through TaskEnqueuer
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
