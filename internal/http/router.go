package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeaders())

	queue := cfg.TaskQueue

	health := NewHealthController(cfg.Database, cfg.Sessions, cfg.Version)
	booksController := NewBooksController(cfg.Books)
	sessionsController := NewSessionsController(cfg.Books, cfg.Sessions, queue)
	notesController := NewNotesController(cfg.Books, cfg.Notes)
	insightsController := NewInsightsController(cfg.Insights)
	tasksController := NewTasksController(queue, cfg.SessionCleaner, cfg.NoteCleaner)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	api := router.Group("/api")

	// Books
	api.GET("/books", booksController.GetAllBooks)
	api.POST("/books", booksController.CreateBook)
	api.GET("/books/:id", booksController.GetBook)
	api.PATCH("/books/:id", booksController.UpdateBook)
	api.DELETE("/books/:id", booksController.DeleteBook)
	api.GET("/genres", booksController.GetGenres)

	// Viewer lifecycle
	api.POST("/books/:id/session", sessionsController.Activate)
	api.PUT("/books/:id/session/page", sessionsController.ReportPage)
	api.PUT("/books/:id/session/page-count", sessionsController.ReportPageCount)
	api.DELETE("/books/:id/session", sessionsController.Deactivate)
	api.GET("/sessions/open", sessionsController.ListOpen)
	api.DELETE("/sessions", sessionsController.Reset)

	// Notes
	api.GET("/books/:id/note", notesController.GetNote)
	api.PUT("/books/:id/note", notesController.PutNote)
	api.DELETE("/books/:id/note", notesController.DeleteNote)

	// Insights
	api.GET("/insights", insightsController.Summary)
	api.GET("/insights/daily", insightsController.Daily)
	api.GET("/insights/completion", insightsController.Completion)
	api.GET("/insights/reading", insightsController.Reading)

	// Tasks
	api.GET("/tasks/:id", tasksController.GetTaskStatus)
	api.POST("/admin/sessions/cleanup-orphans", tasksController.CleanupOrphans)

	return router
}
