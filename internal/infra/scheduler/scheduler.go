package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Task is one unit of periodic work. RunOnce must be safe to call again
// after an error.
type Task interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Scheduler runs a Task every interval with a single-flight guard: a tick
// that fires while the previous run is still in flight is skipped, never
// queued. Start/Stop are explicit; Stop cancels in-flight work.
type Scheduler struct {
	interval time.Duration
	task     Task
	log      *zerolog.Logger

	running int32 // single-flight guard
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// New constructs a scheduler that runs task every interval.
// If interval <= 0 it defaults to 1 minute.
func New(interval time.Duration, task Task, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		interval: interval,
		task:     task,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// Start begins the loop in a background goroutine. Calling Start twice has
// no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return // already started
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Str("task", s.task.Name()).Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Str("task", s.task.Name()).Msg("scheduler stopping")
			return
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
				s.log.Debug().Str("task", s.task.Name()).Msg("previous run still in flight; skipping tick")
				continue
			}
			runCtx, cancel := context.WithTimeout(s.ctx, s.interval)
			if err := s.task.RunOnce(runCtx); err != nil {
				s.log.Error().Err(err).Str("task", s.task.Name()).Msg("task run failed")
			}
			cancel()
			atomic.StoreInt32(&s.running, 0)
		}
	}
}

// Stop cancels the scheduler and waits for the loop to finish. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return // not started
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
}
