package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// SessionResetter deletes every reading session.
type SessionResetter interface {
	ResetSessions(ctx context.Context) (int64, error)
}

// ResetSessionsTask wipes the session history. Books keep their progress.
type ResetSessionsTask struct{}

// Config returns the queue configuration for session reset tasks. A reset
// refused because sessions are open is not retried.
func (t ResetSessionsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "reset_sessions",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ResetSessionsProcessor creates a processor function for ResetSessionsTask.
func ResetSessionsProcessor(resetter SessionResetter) backlite.QueueProcessor[ResetSessionsTask] {
	return func(ctx context.Context, task ResetSessionsTask) error {
		if resetter == nil {
			return fmt.Errorf("session resetter not configured")
		}

		deleted, err := resetter.ResetSessions(ctx)
		if err != nil {
			return fmt.Errorf("reset sessions: %w", err)
		}

		log.Printf("[TASK] Reset %d reading sessions", deleted)
		return nil
	}
}

// NewResetSessionsQueue creates a backlite queue for session reset tasks.
func NewResetSessionsQueue(resetter SessionResetter) backlite.Queue {
	return backlite.NewQueue(ResetSessionsProcessor(resetter))
}
