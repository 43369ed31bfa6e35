package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofrs/flock"

	"github.com/mrlokans/readinglog/internal/config"
	"github.com/mrlokans/readinglog/internal/database"
	"github.com/mrlokans/readinglog/internal/database/books"
	"github.com/mrlokans/readinglog/internal/database/notes"
	"github.com/mrlokans/readinglog/internal/database/sessions"
	http_controllers "github.com/mrlokans/readinglog/internal/http"
	"github.com/mrlokans/readinglog/internal/insights"
	"github.com/mrlokans/readinglog/internal/reading"
	"github.com/mrlokans/readinglog/internal/tasks"
)

// ErrLocked is returned when another process already owns the library.
var ErrLocked = errors.New("library database is in use by another process")

// App is the wired set of components shared by the server and the CLI.
type App struct {
	Config   *config.Config
	DB       *database.Database
	Books    *books.Repository
	Sessions *sessions.Repository
	Notes    *notes.Repository
	Manager  *reading.Manager
	Insights *insights.Aggregator

	// Tasks is nil until StartTasks runs, and stays nil when the queue is
	// disabled.
	Tasks     *tasks.Client
	tasksStop context.CancelFunc

	lock *flock.Flock
}

// LockPath returns the lock file guarding the library database.
func LockPath(dbPath string) string {
	return dbPath + ".lock"
}

// Open opens the library database and builds the repositories, the session
// manager and the insights aggregator. With exclusive set, Open first takes
// the library lock: open sessions live in process memory, so only one
// writer may run against a database at a time.
func Open(cfg *config.Config, exclusive bool) (*App, error) {
	app := &App{Config: cfg}

	if exclusive {
		lock := flock.New(LockPath(cfg.Database.Path))
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return nil, ErrLocked
		}
		app.lock = lock
	}

	db, err := database.NewDatabase(cfg.Database.Path, database.WithLogLevel(database.ParseLogLevel(cfg.Database.LogLevel)))
	if err != nil {
		app.unlock()
		return nil, err
	}
	app.DB = db

	app.Books = books.NewRepository(db.DB)
	app.Sessions = sessions.NewRepository(db.DB)
	app.Notes = notes.NewRepository(db.DB)
	app.Manager = reading.NewManager(app.Books, app.Sessions)
	app.Insights = insights.NewAggregator(app.Sessions, app.Books, insights.WithLocation(cfg.Insights.Location()))

	return app, nil
}

// StartTasks creates the task queue, registers the maintenance queues and
// starts the workers. It does nothing when tasks are disabled.
func (a *App) StartTasks(ctx context.Context) error {
	if !a.Config.Tasks.Enabled || a.Tasks != nil {
		return nil
	}

	client, err := tasks.NewClient(a.Config.Database.Path, tasks.Config{
		Workers:         a.Config.Tasks.Workers,
		ReleaseAfter:    a.Config.Tasks.ReleaseAfter,
		CleanupInterval: a.Config.Tasks.CleanupInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize task queue: %w", err)
	}

	client.Register(
		tasks.NewCleanupOrphanSessionsQueue(a.Sessions, a.Notes),
		tasks.NewResetSessionsQueue(a.Manager),
	)

	taskCtx, cancel := context.WithCancel(ctx)
	client.Start(taskCtx)

	a.Tasks = client
	a.tasksStop = cancel
	return nil
}

// StopTasks drains the task queue. It returns false if ctx expired first.
func (a *App) StopTasks(ctx context.Context) bool {
	if a.Tasks == nil {
		return true
	}
	ok := a.Tasks.Stop(ctx)
	a.tasksStop()
	return ok
}

// TaskQueue returns the queue as an interface value that is nil when tasks
// are disabled.
func (a *App) TaskQueue() http_controllers.TaskQueue {
	if a.Tasks == nil {
		return nil
	}
	return a.Tasks
}

// Close closes open sessions, the task queue database and the library
// database, then releases the lock.
func (a *App) Close() error {
	var errs []error
	if a.Manager != nil {
		if err := a.Manager.CloseAll(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Tasks != nil {
		if err := a.Tasks.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close task client: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	a.unlock()
	return errors.Join(errs...)
}

func (a *App) unlock() {
	if a.lock == nil {
		return
	}
	if err := a.lock.Unlock(); err != nil {
		log.Printf("Error releasing lock %s: %v", a.lock.Path(), err)
	}
}
