package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one named periodic unit of work. Run returns an error for
// logging and statistics only; a failing task reschedules normally.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs registered tasks on independent timers. Tasks never block
// one another; each gets its own goroutine and ticker. Tests drive tasks
// directly through RunTask instead of waiting on wall-clock ticks.
type Scheduler struct {
	log zerolog.Logger

	mu      sync.Mutex
	tasks   []Task
	cancel  context.CancelFunc
	running bool

	wg sync.WaitGroup
}

// New creates an empty scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		log: log.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers a task. Tasks added after Start are picked up on the next
// Start only.
func (s *Scheduler) Add(t Task) {
	if t.Interval <= 0 {
		t.Interval = 15 * time.Minute
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
}

// Tasks returns the registered tasks.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// RunTask runs one registered task by name immediately. Used by tests and
// the manual trigger endpoint.
func (s *Scheduler) RunTask(ctx context.Context, name string) error {
	for _, t := range s.Tasks() {
		if t.Name == name {
			return t.Run(ctx)
		}
	}
	return nil
}

// Start launches all task loops. Each task runs once immediately, then on
// its own ticker until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	tasks := make([]Task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	for _, t := range tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}

	s.log.Info().Int("tasks", len(tasks)).Msg("scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()

	s.runOnce(ctx, t)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	start := time.Now()
	err := t.Run(ctx)
	if err != nil && ctx.Err() == nil {
		s.log.Warn().
			Str("task", t.Name).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("task failed")
		return
	}
	s.log.Debug().
		Str("task", t.Name).
		Dur("elapsed", time.Since(start)).
		Msg("task complete")
}

// Stop cancels scheduling and waits for in-flight task runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}
