package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"AlphaDesk/pkg/logger"
)

// Func is the body of a periodic task.
type Func func(ctx context.Context)

// Scheduler owns named periodic tasks that can be replaced or cancelled independently.
type Scheduler interface {
	// Schedule creates the task or replaces an existing one with the same name.
	// The first run happens one period after scheduling.
	Schedule(name string, every time.Duration, fn Func)
	Cancel(name string) bool
	StopAll()
	Tasks() []string
}

type task struct {
	every  time.Duration
	cancel context.CancelFunc
}

// Ticker runs each task on its own time.Ticker. Every firing runs fn in a
// fresh goroutine, so a slow run never delays other tasks or the next firing.
// Cancelling a task stops future firings only; runs in flight continue.
type Ticker struct {
	mu    sync.Mutex
	tasks map[string]*task
	base  context.Context
	log   *logger.Logger
}

func New(base context.Context, log *logger.Logger) *Ticker {
	return &Ticker{
		tasks: make(map[string]*task),
		base:  context.WithoutCancel(base),
		log:   log,
	}
}

func (s *Ticker) Schedule(name string, every time.Duration, fn Func) {
	if every <= 0 {
		s.log.Warn("refusing to schedule task with non-positive period", logger.String("task", name))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if old, ok := s.tasks[name]; ok {
		old.cancel()
	}
	s.tasks[name] = &task{every: every, cancel: cancel}
	s.mu.Unlock()

	go s.loop(ctx, name, every, fn)
}

func (s *Ticker) loop(ctx context.Context, name string, every time.Duration, fn Func) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			go s.run(name, fn)
		}
	}
}

func (s *Ticker) run(name string, fn Func) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled task panicked", logger.String("task", name), logger.Any("panic", r))
		}
	}()
	fn(s.base)
}

func (s *Ticker) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		return false
	}
	t.cancel()
	delete(s.tasks, name)
	return true
}

func (s *Ticker) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.tasks {
		t.cancel()
		delete(s.tasks, name)
	}
}

func (s *Ticker) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
