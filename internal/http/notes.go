package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NotesController serves the note kept for each book.
type NotesController struct {
	books BookGetter
	notes NoteStore
}

func NewNotesController(books BookGetter, notes NoteStore) *NotesController {
	return &NotesController{books: books, notes: notes}
}

// GetNote handles GET /api/books/:id/note
func (nc *NotesController) GetNote(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	note, err := nc.notes.GetForBook(c.Request.Context(), id)
	if err != nil {
		respondAppError(c, err, "get note")
		return
	}
	c.JSON(http.StatusOK, note)
}

// PutNote handles PUT /api/books/:id/note. The book must exist.
func (nc *NotesController) PutNote(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Content *string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "content is required")
		return
	}

	ctx := c.Request.Context()
	if _, err := nc.books.GetByID(ctx, id); err != nil {
		respondAppError(c, err, "get book")
		return
	}

	note, err := nc.notes.Upsert(ctx, id, *req.Content)
	if err != nil {
		respondAppError(c, err, "save note")
		return
	}
	c.JSON(http.StatusOK, note)
}

// DeleteNote handles DELETE /api/books/:id/note
func (nc *NotesController) DeleteNote(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := nc.notes.Delete(c.Request.Context(), id); err != nil {
		respondAppError(c, err, "delete note")
		return
	}
	respondSuccess(c, "note deleted")
}
