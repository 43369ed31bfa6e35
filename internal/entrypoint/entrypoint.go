package entrypoint

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readinglog/internal/config"
	http_controllers "github.com/mrlokans/readinglog/internal/http"
	"github.com/mrlokans/readinglog/internal/scheduler"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then calls onShutdown
// before the server stops accepting requests. onShutdown also runs when the
// listener fails.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    cfg.HTTP.Address(),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server at %s", srv.Addr)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var listenErr error
	select {
	case listenErr = <-serveErr:
	case <-quit:
		log.Printf("Shutdown Server, waiting %v before killing", timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to close open sessions)
	if onShutdown != nil {
		onShutdown(ctx)
	}
	if listenErr != nil {
		return listenErr
	}

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	log.Println("Server exiting")
	return nil
}

// Run wires the application and serves it until a shutdown signal arrives.
func Run(cfg *config.Config, version string) error {
	log.Printf("Starting Reading Log v%s", version)

	app, err := Open(cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("Error closing application: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.StartTasks(ctx); err != nil {
		return err
	}

	queue := app.TaskQueue()
	var enqueuer scheduler.TaskEnqueuer
	if queue != nil {
		enqueuer = queue
	}
	sched := scheduler.NewSessionScheduler(app.Manager, enqueuer, scheduler.Config{
		SweepSchedule:         cfg.Sessions.SweepSchedule,
		IdleTimeout:           cfg.Sessions.IdleTimeout,
		OrphanCleanupSchedule: cfg.Sessions.OrphanCleanupSchedule,
	})
	if err := sched.Start(ctx); err != nil {
		app.StopTasks(ctx)
		return err
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       app.DB,
		Books:          app.Books,
		Notes:          app.Notes,
		Sessions:       app.Manager,
		Insights:       app.Insights,
		SessionCleaner: app.Sessions,
		NoteCleaner:    app.Notes,
		TaskQueue:      queue,
		Version:        version,
	})

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		if err := app.Manager.CloseAll(ctx); err != nil {
			log.Printf("Error closing open sessions: %v", err)
		}
		sched.Stop()
		app.StopTasks(ctx)
	}

	return Serve(router, cfg, onShutdown)
}
