// Package dispatch runs systems over an ecs.World on a fixed worker pool.
// Every unit of work declares its full data-access needs up front; a unit
// acquires the guards for its whole access set in the world's fixed global
// order before running, so non-conflicting units execute concurrently and
// conflicting units serialize without any chance of deadlock. Structural
// mutations from running units go through the deferred command log,
// applied at the Wait barrier.
package dispatch

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keelforge/keel/ecs"
)

// System is one registered unit of work, dispatched every round.
type System interface {
	Name() string
	Access() ecs.Access
	Run(t *Tick)
}

// Tick is the per-run context handed to units. Storage access must stay
// within the unit's declared access set; entity creation/destruction and
// component insert/remove go through Commands.
type Tick struct {
	World    *ecs.World
	Commands *ecs.CommandBuffer
}

type unit struct {
	name   string
	access ecs.Access
	run    func(*Tick)
}

// Scheduler owns the worker pool and the registered systems. Dispatch
// issues one non-blocking round over all systems; Wait is the sole
// barrier, after which the accumulated command log has been applied.
type Scheduler struct {
	w        *ecs.World
	log      *zap.Logger
	commands *ecs.CommandBuffer
	systems  []unit
	jobs     chan unit
	wg       sync.WaitGroup
	workers  int

	errMu sync.Mutex
	errs  []error
}

type Option func(*Scheduler)

// WithWorkers sets the worker pool size. Defaults to runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger attaches a logger for per-unit timing at debug level.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

func New(w *ecs.World, opts ...Option) *Scheduler {
	s := &Scheduler{
		w:        w,
		log:      zap.NewNop(),
		commands: ecs.NewCommandBuffer(),
		workers:  runtime.NumCPU(),
		jobs:     make(chan unit, 256),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := 0; i < s.workers; i++ {
		go s.worker()
	}
	return s
}

// Register adds a system to every future round. Not safe to call between
// Dispatch and Wait.
func (s *Scheduler) Register(sys System) {
	s.systems = append(s.systems, unit{
		name:   sys.Name(),
		access: sys.Access(),
		run:    sys.Run,
	})
}

// Dispatch submits one round over all registered systems in registration
// order and returns without waiting for completion.
func (s *Scheduler) Dispatch() {
	for _, u := range s.systems {
		s.submit(u)
	}
}

// Exec submits one ad-hoc unit into the current round under the same
// access-declaration and locking contract as registered systems.
func (s *Scheduler) Exec(name string, access ecs.Access, fn func(*Tick)) {
	s.submit(unit{name: name, access: access, run: fn})
}

// Wait blocks until every unit issued since the previous barrier has
// completed, then applies the deferred command log in submission order.
// Returns any unit setup errors and command-log failures.
func (s *Scheduler) Wait() error {
	s.wg.Wait()

	s.errMu.Lock()
	errs := s.errs
	s.errs = nil
	s.errMu.Unlock()

	if err := s.commands.Flush(s.w); err != nil {
		errs = append(errs, fmt.Errorf("apply command log: %w", err))
	}
	return errors.Join(errs...)
}

// Commands returns the scheduler's deferred log, for staging structural
// work from outside a running unit.
func (s *Scheduler) Commands() *ecs.CommandBuffer { return s.commands }

// Close stops the worker pool. The scheduler must be idle (after Wait).
func (s *Scheduler) Close() { close(s.jobs) }

func (s *Scheduler) submit(u unit) {
	s.wg.Add(1)
	s.jobs <- u
}

func (s *Scheduler) worker() {
	for u := range s.jobs {
		s.runUnit(u)
	}
}

// runUnit blocks until the unit's whole access set is held, runs it to
// completion, then releases. Units have no internal suspension points.
func (s *Scheduler) runUnit(u unit) {
	defer s.wg.Done()

	release, err := s.w.Acquire(u.access)
	if err != nil {
		s.errMu.Lock()
		s.errs = append(s.errs, fmt.Errorf("unit %s: %w", u.name, err))
		s.errMu.Unlock()
		return
	}
	start := time.Now()
	u.run(&Tick{World: s.w, Commands: s.commands})
	release()

	s.log.Debug("unit complete",
		zap.String("unit", u.name),
		zap.Duration("took", time.Since(start)))
}
