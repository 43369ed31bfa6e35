package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// OrphanCleaner deletes rows whose book no longer exists.
type OrphanCleaner interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

// CleanupOrphanSessionsTask removes sessions and notes left behind by deleted
// books. Deleting a book never cascades; this task is the explicit cleanup.
type CleanupOrphanSessionsTask struct{}

// Config returns the queue configuration for orphan cleanup tasks.
func (t CleanupOrphanSessionsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_orphan_sessions",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupOrphanSessionsProcessor creates a processor function for
// CleanupOrphanSessionsTask.
func CleanupOrphanSessionsProcessor(sessions, notes OrphanCleaner) backlite.QueueProcessor[CleanupOrphanSessionsTask] {
	return func(ctx context.Context, task CleanupOrphanSessionsTask) error {
		if sessions == nil || notes == nil {
			return fmt.Errorf("orphan cleaners not configured")
		}

		deletedSessions, err := sessions.DeleteOrphans(ctx)
		if err != nil {
			return fmt.Errorf("cleanup orphan sessions: %w", err)
		}
		deletedNotes, err := notes.DeleteOrphans(ctx)
		if err != nil {
			return fmt.Errorf("cleanup orphan notes: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d orphan sessions and %d orphan notes", deletedSessions, deletedNotes)
		return nil
	}
}

// NewCleanupOrphanSessionsQueue creates a backlite queue for orphan cleanup.
func NewCleanupOrphanSessionsQueue(sessions, notes OrphanCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupOrphanSessionsProcessor(sessions, notes))
}
