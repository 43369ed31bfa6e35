package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readinglog/internal/database/books"
	"github.com/mrlokans/readinglog/internal/entities"
)

type BooksController struct {
	store BookStore
}

func NewBooksController(store BookStore) *BooksController {
	return &BooksController{
		store: store,
	}
}

// GetAllBooks handles GET /api/books?genre=&q=
func (controller *BooksController) GetAllBooks(c *gin.Context) {
	list, err := controller.store.ListAll(c.Request.Context(), books.ListOptions{
		Genre: c.Query("genre"),
		Query: c.Query("q"),
	})
	if err != nil {
		respondAppError(c, err, "list books")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": list, "count": len(list)})
}

// CreateBook handles POST /api/books
func (controller *BooksController) CreateBook(c *gin.Context) {
	var fields books.BookFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	book, err := controller.store.Create(c.Request.Context(), fields)
	if err != nil {
		respondAppError(c, err, "create book")
		return
	}
	respondCreated(c, book)
}

// GetBook handles GET /api/books/:id
func (controller *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := controller.store.GetByID(c.Request.Context(), id)
	if err != nil {
		respondAppError(c, err, "get book")
		return
	}
	c.IndentedJSON(http.StatusOK, book)
}

// UpdateBook handles PATCH /api/books/:id. Absent fields keep their stored
// values; the merged record is validated like a new book.
func (controller *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var patch struct {
		CoverRef   *string `json:"cover_ref"`
		ContentRef *string `json:"content_ref"`
		SizeBytes  *int64  `json:"size_bytes"`
		Name       *string `json:"name"`
		Author     *string `json:"author"`
		Genre      *string `json:"genre"`
	}
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	current, err := controller.store.GetByID(ctx, id)
	if err != nil {
		respondAppError(c, err, "get book")
		return
	}

	fields := books.BookFields{
		CoverRef:   pick(patch.CoverRef, current.CoverRef),
		ContentRef: pick(patch.ContentRef, current.ContentRef),
		SizeBytes:  pick(patch.SizeBytes, current.SizeBytes),
		Name:       pick(patch.Name, current.Name),
		Author:     pick(patch.Author, current.Author),
		Genre:      pick(patch.Genre, current.Genre),
	}

	book, err := controller.store.Update(ctx, id, fields)
	if err != nil {
		respondAppError(c, err, "update book")
		return
	}
	c.IndentedJSON(http.StatusOK, book)
}

// DeleteBook handles DELETE /api/books/:id. Sessions and the note of the book
// are left for the orphan cleanup task.
func (controller *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := controller.store.Delete(c.Request.Context(), id); err != nil {
		respondAppError(c, err, "delete book")
		return
	}
	respondSuccess(c, "book deleted")
}

// GetGenres handles GET /api/genres
func (controller *BooksController) GetGenres(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"genres": entities.Genres, "all": entities.GenreAll})
}

func pick[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
