package streambox

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pipeline is anything backed by a Box: *Box, *Inbox and *Outbox.
type Pipeline interface {
	Box() *Box
}

// Lifecycle starts one Scheduler per registered box according to SchedulerProperties and
// stops them all on shutdown.
type Lifecycle struct {
	props    SchedulerProperties
	registry *SchedulerRegistry
	opts     []Option
	cfg      Config

	mu      sync.Mutex
	boxes   []*Box
	names   map[string]struct{}
	running bool
	started []*Scheduler
}

// NewLifecycle constructs a Lifecycle. A nil registry is replaced with an empty one.
// opts are passed to every scheduler it creates.
func NewLifecycle(props SchedulerProperties, registry *SchedulerRegistry, opts ...Option) *Lifecycle {
	if registry == nil {
		registry = NewSchedulerRegistry()
	}

	return &Lifecycle{
		props:    props,
		registry: registry,
		opts:     opts,
		cfg:      newConfig(opts),
		names:    make(map[string]struct{}),
	}
}

// Add registers pipelines to be scheduled on the next Start.
func (l *Lifecycle) Add(pipelines ...Pipeline) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range pipelines {
		box := p.Box()
		if _, ok := l.names[box.Name()]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateBox, box.Name())
		}
		l.names[box.Name()] = struct{}{}
		l.boxes = append(l.boxes, box)
	}

	return nil
}

// Registry returns the scheduler registry populated by Start.
func (l *Lifecycle) Registry() *SchedulerRegistry {
	return l.registry
}

// Running reports whether Start has been called without a matching Stop.
func (l *Lifecycle) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.running
}

// Start resolves each box's schedule and starts its scheduler. A box whose configuration
// cannot be parsed is skipped and its error is included in the returned error; the other
// boxes still start. Nothing is started when scheduling is disabled.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	l.running = true

	if !l.props.Enabled {
		l.cfg.Logger.Info("streambox schedulers disabled", "boxes", len(l.boxes))

		return nil
	}

	var errs []error
	for _, box := range l.boxes {
		schedule, err := ResolveSchedule(l.props, box.Kind(), box.Name())
		if err != nil {
			l.cfg.Logger.Error("streambox scheduler not started", "box", box.Name(), "err", err)
			errs = append(errs, fmt.Errorf("box %s: %w", box.Name(), err))

			continue
		}

		scheduler := NewScheduler(box, l.opts...)
		if err := scheduler.Start(ctx, schedule); err != nil {
			l.cfg.Logger.Error("streambox scheduler not started", "box", box.Name(), "err", err)
			errs = append(errs, fmt.Errorf("box %s: %w", box.Name(), err))

			continue
		}
		l.registry.Register(box.Name(), scheduler)
		l.started = append(l.started, scheduler)
	}

	return errors.Join(errs...)
}

// Stop stops every started scheduler, waiting for in-flight ticks.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}

	var wg sync.WaitGroup
	for _, scheduler := range l.started {
		wg.Add(1)
		go func(s *Scheduler) {
			defer wg.Done()
			s.Stop()
		}(scheduler)
	}
	wg.Wait()

	l.started = nil
	l.running = false
}
