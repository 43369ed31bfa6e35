package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readinglog/internal/tasks"
)

// TasksController handles task queue endpoints.
type TasksController struct {
	queue    TaskQueue // nil when the task queue is disabled
	sessions tasks.OrphanCleaner
	notes    tasks.OrphanCleaner
}

// NewTasksController creates a new TasksController. The cleaners run the
// orphan cleanup inline when queue is nil.
func NewTasksController(queue TaskQueue, sessions, notes tasks.OrphanCleaner) *TasksController {
	return &TasksController{queue: queue, sessions: sessions, notes: notes}
}

// GetTaskStatus handles GET /api/tasks/:id
// Returns the status of a specific task.
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	if tc.queue == nil {
		respondError(c, http.StatusServiceUnavailable, "task queue is disabled")
		return
	}

	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), taskTimeout)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": tasks.StatusName(status),
	})
}

// CleanupOrphans handles POST /api/admin/sessions/cleanup-orphans
// Removes sessions and notes whose book was deleted.
func (tc *TasksController) CleanupOrphans(c *gin.Context) {
	if tc.queue != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), taskTimeout)
		defer cancel()

		taskID, err := tc.queue.Enqueue(ctx, tasks.CleanupOrphanSessionsTask{})
		if err != nil {
			respondInternalError(c, err, "enqueue orphan cleanup")
			return
		}
		respondAccepted(c, "orphan cleanup queued", gin.H{"task_id": taskID})
		return
	}

	ctx := c.Request.Context()
	sessions, err := tc.sessions.DeleteOrphans(ctx)
	if err != nil {
		respondAppError(c, err, "delete orphan sessions")
		return
	}
	notes, err := tc.notes.DeleteOrphans(ctx)
	if err != nil {
		respondAppError(c, err, "delete orphan notes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions_deleted": sessions, "notes_deleted": notes})
}
