package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/readinglog/internal/tasks"
)

// SessionSweeper closes sessions that stopped receiving page reports.
type SessionSweeper interface {
	SweepIdle(ctx context.Context, maxIdle time.Duration) int
}

// TaskEnqueuer adds a task to the background queue.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// Config holds the schedules of the session maintenance jobs. An empty
// schedule disables the job.
type Config struct {
	SweepSchedule         string
	IdleTimeout           time.Duration
	OrphanCleanupSchedule string
}

const (
	jobSweep         = "session_sweep"
	jobOrphanCleanup = "orphan_cleanup"
)

// SessionScheduler runs periodic session maintenance: the idle sweep, and
// enqueueing orphan cleanup on the task queue.
type SessionScheduler struct {
	sweeper  SessionSweeper
	enqueuer TaskEnqueuer
	config   Config

	cron       *cron.Cron
	entries    map[string]cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewSessionScheduler creates a new scheduler instance. enqueuer may be nil,
// in which case orphan cleanup is not scheduled.
func NewSessionScheduler(sweeper SessionSweeper, enqueuer TaskEnqueuer, cfg Config) *SessionScheduler {
	return &SessionScheduler{
		sweeper:  sweeper,
		enqueuer: enqueuer,
		config:   cfg,
		cron:     cron.New(cron.WithParser(parser)),
		entries:  map[string]cron.EntryID{},
	}
}

// Start registers the configured jobs and starts the cron scheduler.
func (s *SessionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	jobCtx, cancel := context.WithCancel(ctx)

	err := s.addJobs(jobCtx)
	if err != nil || len(s.entries) == 0 {
		s.removeJobs()
		cancel()
		return err
	}

	s.cancelFunc = cancel
	s.cron.Start()
	s.isRunning = true

	go func() {
		<-jobCtx.Done()
		s.Stop()
	}()

	return nil
}

func (s *SessionScheduler) addJobs(ctx context.Context) error {
	if s.config.SweepSchedule != "" && s.config.IdleTimeout > 0 {
		if err := s.addJob(ctx, jobSweep, s.config.SweepSchedule, s.runSweep); err != nil {
			return err
		}
	} else {
		log.Printf("[SCHEDULER] Session sweep: disabled")
	}

	if s.config.OrphanCleanupSchedule != "" && s.enqueuer != nil {
		if err := s.addJob(ctx, jobOrphanCleanup, s.config.OrphanCleanupSchedule, s.runOrphanCleanup); err != nil {
			return err
		}
	} else {
		log.Printf("[SCHEDULER] Orphan cleanup: disabled")
	}
	return nil
}

func (s *SessionScheduler) addJob(ctx context.Context, name, schedule string, run func(context.Context)) error {
	if err := ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s' for %s: %w", schedule, name, err)
	}
	id, err := s.cron.AddFunc(schedule, func() { run(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.entries[name] = id

	next, _ := NextRunTime(schedule, time.Now())
	log.Printf("[SCHEDULER] %s: scheduled '%s' (%s). Next run: %v", name, schedule, DescribeSchedule(schedule), next)
	return nil
}

// Stop stops the scheduler and waits for running jobs to complete.
func (s *SessionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.removeJobs()
	s.cancelFunc()
	s.isRunning = false

	log.Printf("[SCHEDULER] Session maintenance stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *SessionScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRuns returns the next fire time of every scheduled job.
func (s *SessionScheduler) NextRuns() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		next[name] = s.cron.Entry(id).Next
	}
	return next
}

func (s *SessionScheduler) removeJobs() {
	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

func (s *SessionScheduler) runSweep(ctx context.Context) {
	closed := s.sweeper.SweepIdle(ctx, s.config.IdleTimeout)
	if closed > 0 {
		log.Printf("[SCHEDULER] Session sweep: closed %d idle sessions", closed)
	}
}

func (s *SessionScheduler) runOrphanCleanup(ctx context.Context) {
	id, err := s.enqueuer.Enqueue(ctx, tasks.CleanupOrphanSessionsTask{})
	if err != nil {
		log.Printf("[SCHEDULER] Orphan cleanup: failed to enqueue: %v", err)
		return
	}
	log.Printf("[SCHEDULER] Orphan cleanup: enqueued task %s", id)
}
