package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readinglog/internal/reading"
	"github.com/mrlokans/readinglog/internal/tasks"
)

// SessionsController receives the viewer lifecycle events.
type SessionsController struct {
	books    BookGetter
	sessions SessionLifecycle
	queue    TaskQueue // nil runs resets inline
}

func NewSessionsController(books BookGetter, sessions SessionLifecycle, queue TaskQueue) *SessionsController {
	return &SessionsController{
		books:    books,
		sessions: sessions,
		queue:    queue,
	}
}

type pageRequest struct {
	Page *int `json:"page" binding:"required"`
}

type pageCountRequest struct {
	TotalPages *int `json:"total_pages" binding:"required"`
}

type sessionStateResponse struct {
	BookID     uint                `json:"book_id"`
	State      string              `json:"state"`
	Activation *reading.Activation `json:"activation,omitempty"`
}

func (sc *SessionsController) stateOf(bookID uint) sessionStateResponse {
	resp := sessionStateResponse{BookID: bookID, State: sc.sessions.State(bookID).String()}
	for _, a := range sc.sessions.OpenSessions() {
		if a.BookID == bookID {
			resp.Activation = &a
			break
		}
	}
	return resp
}

// Activate handles POST /api/books/:id/session. Activating a book that
// already has an open session returns that session.
func (sc *SessionsController) Activate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	book, err := sc.books.GetByID(ctx, id)
	if err != nil {
		respondAppError(c, err, "get book")
		return
	}

	if err := sc.sessions.Activate(ctx, *book); err != nil {
		respondAppError(c, err, "activate session")
		return
	}
	c.JSON(http.StatusOK, sc.stateOf(id))
}

// ReportPage handles PUT /api/books/:id/session/page. A session closed by the
// idle sweep is reopened; a book with no session at all answers 409 so the
// viewer can activate it again.
func (sc *SessionsController) ReportPage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.Page < 1 {
		respondBadRequest(c, "page must be a positive integer")
		return
	}

	if sc.sessions.ReportPage(id, *req.Page) {
		c.Status(http.StatusNoContent)
		return
	}

	open, err := sc.sessions.Resume(c.Request.Context(), id, *req.Page)
	if err != nil {
		respondAppError(c, err, "resume session")
		return
	}
	if !open {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "no open session for book",
			Code:    codeNoSession,
			Details: sc.stateOf(id),
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// ReportPageCount handles PUT /api/books/:id/session/page-count
func (sc *SessionsController) ReportPageCount(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req pageCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "total_pages is required")
		return
	}

	if err := sc.sessions.ReportPageCount(c.Request.Context(), id, *req.TotalPages); err != nil {
		respondAppError(c, err, "report page count")
		return
	}
	c.Status(http.StatusNoContent)
}

// Deactivate handles DELETE /api/books/:id/session. It is a no-op when the
// book has no open session.
func (sc *SessionsController) Deactivate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := sc.sessions.Deactivate(c.Request.Context(), id); err != nil {
		respondAppError(c, err, "deactivate session")
		return
	}
	c.JSON(http.StatusOK, sc.stateOf(id))
}

// ListOpen handles GET /api/sessions/open
func (sc *SessionsController) ListOpen(c *gin.Context) {
	open := sc.sessions.OpenSessions()
	c.JSON(http.StatusOK, gin.H{"sessions": open, "count": len(open)})
}

// Reset handles DELETE /api/sessions. With a task queue the deletion runs in
// the background and the task id is returned.
func (sc *SessionsController) Reset(c *gin.Context) {
	if open := sc.sessions.OpenSessions(); len(open) > 0 {
		respondAppError(c, fmt.Errorf("%w: %d", reading.ErrSessionsOpen, len(open)), "reset sessions")
		return
	}

	if sc.queue == nil {
		deleted, err := sc.sessions.ResetSessions(c.Request.Context())
		if err != nil {
			respondAppError(c, err, "reset sessions")
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), taskTimeout)
	defer cancel()

	taskID, err := sc.queue.Enqueue(ctx, tasks.ResetSessionsTask{})
	if err != nil {
		respondInternalError(c, err, "enqueue session reset")
		return
	}
	respondAccepted(c, "session reset queued", gin.H{"task_id": taskID})
}
