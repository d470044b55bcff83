// Package journal buffers combat events off the tick goroutine and writes them
// to a Store in batches.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/config"
	"github.com/cory-johannsen/melee/internal/game/combat"
)

// Store persists batches of combat events.
type Store interface {
	AppendEvents(ctx context.Context, events []combat.Event) error
}

// writeTimeout bounds a single batch write.
const writeTimeout = 5 * time.Second

// Writer is a combat.Sink that queues events in a bounded buffer and a
// server.Service that flushes them to its Store. Record never blocks; events
// arriving while the buffer is full are dropped and counted.
type Writer struct {
	store  Store
	cfg    config.JournalConfig
	logger *zap.Logger

	events chan combat.Event
	done   chan struct{}
	once   sync.Once

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewWriter returns a Writer flushing to store.
//
// Precondition: store and logger must be non-nil; cfg buffer size, batch size
// and flush interval must be > 0.
func NewWriter(store Store, cfg config.JournalConfig, logger *zap.Logger) (*Writer, error) {
	var errs []error
	if store == nil {
		errs = append(errs, errors.New("store must be non-nil"))
	}
	if logger == nil {
		errs = append(errs, errors.New("logger must be non-nil"))
	}
	if cfg.BufferSize <= 0 || cfg.BatchSize <= 0 || cfg.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("buffer size, batch size and flush interval must be > 0, got %d/%d/%s",
			cfg.BufferSize, cfg.BatchSize, cfg.FlushInterval))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("journal: NewWriter: %w", err)
	}
	return &Writer{
		store:  store,
		cfg:    cfg,
		logger: logger,
		events: make(chan combat.Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}, nil
}

// Record queues e for writing.
func (w *Writer) Record(e combat.Event) {
	select {
	case <-w.done:
		w.dropped.Add(1)
		return
	default:
	}
	select {
	case w.events <- e:
	default:
		if w.dropped.Add(1) == 1 {
			w.logger.Warn("journal buffer full; dropping events",
				zap.Int("buffer_size", w.cfg.BufferSize),
			)
		}
	}
}

// Start flushes queued events until Stop is called, then drains the buffer
// and flushes once more.
func (w *Writer) Start() error {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]combat.Event, 0, w.cfg.BatchSize)
	for {
		select {
		case e := <-w.events:
			batch = append(batch, e)
			if len(batch) >= w.cfg.BatchSize {
				batch = w.flush(batch)
			}
		case <-ticker.C:
			batch = w.flush(batch)
		case <-w.done:
			for {
				select {
				case e := <-w.events:
					batch = append(batch, e)
					if len(batch) >= w.cfg.BatchSize {
						batch = w.flush(batch)
					}
				default:
					w.flush(batch)
					w.logger.Info("journal writer stopped",
						zap.Int64("written", w.written.Load()),
						zap.Int64("dropped", w.dropped.Load()),
						zap.Int64("failed", w.failed.Load()),
					)
					return nil
				}
			}
		}
	}
}

// flush writes batch and returns it emptied. A failed batch is logged and
// discarded.
func (w *Writer) flush(batch []combat.Event) []combat.Event {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := w.store.AppendEvents(ctx, batch); err != nil {
		w.failed.Add(int64(len(batch)))
		w.logger.Error("writing journal batch",
			zap.Int("events", len(batch)),
			zap.Error(err),
		)
	} else {
		w.written.Add(int64(len(batch)))
		w.logger.Debug("journal batch written", zap.Int("events", len(batch)))
	}
	return batch[:0]
}

// Stop ends Start after a final flush. Idempotent.
func (w *Writer) Stop() {
	w.once.Do(func() { close(w.done) })
}

// Written returns the number of events stored successfully.
func (w *Writer) Written() int64 { return w.written.Load() }

// Dropped returns the number of events discarded because the buffer was full
// or the writer had stopped.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Failed returns the number of events lost to store errors.
func (w *Writer) Failed() int64 { return w.failed.Load() }
