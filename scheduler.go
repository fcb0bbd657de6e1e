package streambox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Schedule is a resolved, validated timing configuration for one scheduler.
type Schedule struct {
	PollInterval time.Duration
	InitialDelay time.Duration
	BatchLimit   int
}

// Report summarizes a single Consume call.
type Report struct {
	Claimed  int
	Finished int
	Failed   int
	// Skipped is set when another tick of the same scheduler was still running.
	Skipped bool
}

// Scheduler periodically claims and processes batches of one Box.
type Scheduler struct {
	box *Box
	cfg Config

	// tick serializes Consume calls so a slow tick drops, rather than overlaps, the next.
	tick sync.Mutex

	pendingMu sync.Mutex
	pendingAt time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler constructs a stopped Scheduler for box.
func NewScheduler(box *Box, opts ...Option) *Scheduler {
	if box == nil {
		panic("streambox: nil Box")
	}

	return &Scheduler{
		box: box,
		cfg: newConfig(opts),
	}
}

// Box returns the box the scheduler drives.
func (s *Scheduler) Box() *Box {
	return s.box
}

// Running reports whether the periodic loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Start launches the periodic loop: one tick after the initial delay, then one tick per
// poll interval. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context, schedule Schedule) error {
	if schedule.PollInterval <= 0 {
		return &ConfigParseError{Field: "pollInterval", Value: schedule.PollInterval.String(), Err: errors.New("must be positive")}
	}
	if schedule.InitialDelay < 0 {
		return &ConfigParseError{Field: "initialDelay", Value: schedule.InitialDelay.String(), Err: errors.New("must not be negative")}
	}
	if schedule.BatchLimit <= 0 {
		return ErrInvalidBatchSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	go s.loop(ctx, schedule, s.stop, s.done)

	s.cfg.Logger.Info("streambox scheduler started",
		"box", s.box.Name(),
		"kind", s.box.Kind(),
		"pollInterval", schedule.PollInterval,
		"initialDelay", schedule.InitialDelay,
		"batchLimit", schedule.BatchLimit,
	)

	return nil
}

// Stop cancels future ticks and waits for an in-flight tick to finish. Stopping a
// stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()

		return
	}
	close(s.stop)
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	s.cfg.Logger.Info("streambox scheduler stopped", "box", s.box.Name())
}

// Runnable returns a function performing one tick, for use with an external driver.
func (s *Scheduler) Runnable(limit int) func() {
	return func() {
		s.runTick(context.Background(), limit)
	}
}

// Consume claims up to limit records and runs each through the box strategy in claim
// order. A failing record is logged and left pending; it does not abort the batch.
// Errors are returned only for claim and commit failures.
func (s *Scheduler) Consume(ctx context.Context, limit int) (Report, error) {
	if !s.tick.TryLock() {
		s.cfg.Logger.Debug("streambox tick skipped, previous tick still running", "box", s.box.Name())

		return Report{Skipped: true}, nil
	}
	defer s.tick.Unlock()

	start := time.Now()
	defer func() {
		s.cfg.Metrics.ObserveBatchDuration(s.box.Name(), time.Since(start))
	}()

	batch, err := s.box.LockNextBatch(ctx, limit)
	if err != nil {
		return Report{}, err
	}

	records := batch.Records()
	report := Report{Claimed: len(records)}
	if len(records) == 0 {
		if err := batch.Rollback(); err != nil {
			return report, fmt.Errorf("streambox %s: release empty batch: %w", s.box.Name(), err)
		}
		s.maybeRecordPending(ctx)

		return report, nil
	}
	s.cfg.Metrics.AddClaimed(s.box.Name(), len(records))

	scope := batch.Scope(ctx)
	for i := range records {
		record := records[i]
		if err := s.handle(scope, record); err != nil {
			if ctx.Err() != nil {
				return report, s.rollbackWith(batch, ctx.Err())
			}
			s.recordFailure(ctx, record, err)
			report.Failed++

			continue
		}
		report.Finished++
	}

	if err := batch.Commit(); err != nil {
		return report, s.rollbackWith(batch, fmt.Errorf("streambox %s: commit batch: %w", s.box.Name(), err))
	}

	s.cfg.Metrics.AddProcessed(s.box.Name(), report.Finished)
	s.cfg.Metrics.AddErrors(s.box.Name(), report.Failed)
	s.maybeRecordPending(ctx)

	return report, nil
}

func (s *Scheduler) handle(ctx context.Context, record Record) (err error) {
	if s.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.HandlerTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
		}
	}()

	return s.box.HandleStreamBox(ctx, record)
}

func (s *Scheduler) recordFailure(ctx context.Context, record Record, err error) {
	s.cfg.Logger.Warn("streambox record left pending",
		"box", s.box.Name(),
		"id", record.ID,
		"type", record.Type,
		"err", err,
	)
	if s.cfg.ErrorHandler != nil {
		s.cfg.ErrorHandler(ctx, record, err)
	}
}

func (s *Scheduler) rollbackWith(batch Batch, err error) error {
	rollbackErr := batch.Rollback()
	if rollbackErr == nil {
		return err
	}

	return errors.Join(err, fmt.Errorf("streambox %s: rollback batch: %w", s.box.Name(), rollbackErr))
}

func (s *Scheduler) loop(parent context.Context, schedule Schedule, stop, done chan struct{}) {
	defer close(done)

	// Ticks are detached from cancellation so Stop lets an in-flight batch complete.
	ctx := context.WithoutCancel(parent)

	if schedule.InitialDelay > 0 {
		timer := time.NewTimer(schedule.InitialDelay)
		select {
		case <-stop:
			timer.Stop()

			return
		case <-parent.Done():
			timer.Stop()

			return
		case <-timer.C:
		}
	}
	s.runTick(ctx, schedule.BatchLimit)

	ticker := time.NewTicker(schedule.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-parent.Done():
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			s.runTick(ctx, schedule.BatchLimit)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, limit int) {
	defer func() {
		if rec := recover(); rec != nil {
			s.cfg.Logger.Error("streambox tick panic", "box", s.box.Name(), "err", fmt.Errorf("%w: %v", ErrTickPanic, rec))
		}
	}()

	report, err := s.Consume(ctx, limit)
	if err != nil {
		s.cfg.Logger.Error("streambox tick failed", "box", s.box.Name(), "err", err)

		return
	}
	if report.Claimed > 0 {
		s.cfg.Logger.Debug("streambox tick completed",
			"box", s.box.Name(),
			"claimed", report.Claimed,
			"finished", report.Finished,
			"failed", report.Failed,
		)
	}
}

func (s *Scheduler) maybeRecordPending(ctx context.Context) {
	counter, ok := s.box.Store().(PendingCounter)
	if !ok {
		return
	}
	if s.cfg.PendingInterval <= 0 {
		return
	}
	if ctx.Err() != nil {
		return
	}

	now := s.cfg.Clock.Now()
	s.pendingMu.Lock()
	nextAllowed := s.pendingAt.Add(s.cfg.PendingInterval)
	if !s.pendingAt.IsZero() && now.Before(nextAllowed) {
		s.pendingMu.Unlock()

		return
	}
	s.pendingAt = now
	s.pendingMu.Unlock()

	count, err := counter.PendingCount(ctx)
	if err != nil {
		s.cfg.Logger.Warn("streambox pending count failed", "box", s.box.Name(), "err", err)

		return
	}

	s.cfg.Metrics.SetPending(s.box.Name(), count)
}
