package tick

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrDriverStopped is returned when work is submitted to a stopped Driver.
var ErrDriverStopped = errors.New("tick: driver stopped")

// Driver advances a Scheduler from a wall-clock ticker on its own goroutine.
// Every other goroutine hands work to the scheduler through Submit or Do, so
// all game state is touched from a single goroutine.
//
// Driver implements server.Service.
type Driver struct {
	sched    *Scheduler
	interval time.Duration
	maxStep  time.Duration
	logger   *zap.Logger

	cmds chan func()
	done chan struct{}
	once sync.Once
	now  func() time.Time
}

// NewDriver returns a stopped Driver for sched.
//
// Precondition: sched and logger must be non-nil; interval must be > 0;
// maxStep must be >= interval.
// Postcondition: Returns a Driver ready to Start.
func NewDriver(sched *Scheduler, interval, maxStep time.Duration, logger *zap.Logger) *Driver {
	if interval <= 0 {
		panic("tick.NewDriver: interval must be > 0")
	}
	if maxStep < interval {
		maxStep = interval
	}
	return &Driver{
		sched:    sched,
		interval: interval,
		maxStep:  maxStep,
		logger:   logger,
		cmds:     make(chan func(), 64),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start runs the tick loop until Stop is called.
//
// Postcondition: the scheduler is advanced once per interval by the elapsed
// wall-clock time, clamped to maxStep.
func (d *Driver) Start() error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("tick driver started",
		zap.Duration("interval", d.interval),
		zap.Duration("max_step", d.maxStep),
	)
	last := d.now()
	for {
		select {
		case <-d.done:
			d.logger.Info("tick driver stopped",
				zap.Uint64("ticks", d.sched.Ticks()),
				zap.Duration("game_time", d.sched.Now()),
			)
			return nil
		case fn := <-d.cmds:
			fn()
		case <-ticker.C:
			current := d.now()
			dt := current.Sub(last)
			last = current
			if dt > d.maxStep {
				d.logger.Debug("tick step clamped",
					zap.Duration("elapsed", dt),
					zap.Duration("max_step", d.maxStep),
				)
				dt = d.maxStep
			}
			d.sched.Advance(dt)
		}
	}
}

// Stop ends the tick loop. Calling Stop is idempotent.
func (d *Driver) Stop() {
	d.once.Do(func() { close(d.done) })
}

// Submit queues fn to run on the driver goroutine between ticks.
//
// Postcondition: Returns ErrDriverStopped if the driver has been stopped.
func (d *Driver) Submit(fn func()) error {
	select {
	case <-d.done:
		return ErrDriverStopped
	default:
	}
	select {
	case d.cmds <- fn:
		return nil
	case <-d.done:
		return ErrDriverStopped
	}
}

// Do runs fn on the driver goroutine and waits for it to finish.
//
// Postcondition: Returns ctx.Err() if ctx ends first, ErrDriverStopped if the
// driver stops first, or nil once fn has run.
func (d *Driver) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := d.Submit(func() {
		fn()
		close(finished)
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrDriverStopped
	}
}
