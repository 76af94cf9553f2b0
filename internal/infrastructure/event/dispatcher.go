// Package event provides the after-commit event dispatcher.
package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corpelima/backend/internal/domain/shared"
	"github.com/corpelima/backend/internal/infrastructure/persistence"
)

// Dispatcher runs event handlers on a bounded worker pool, strictly after
// the publishing transaction has committed. Delivery is at-most-once: a
// failing handler is logged and counted, never retried, and its error never
// reaches the publisher.
//
// The queue of one unit of work is handed to a single worker as one task,
// so its events run in publish order; queues from different units of work
// may interleave freely.
type Dispatcher struct {
	logger  *zap.Logger
	metrics *Metrics

	tasks chan []persistence.PendingEvent

	mu      sync.Mutex
	closed  bool
	workers sync.WaitGroup
}

// Ensure Dispatcher satisfies the unit-of-work sink contract.
var _ persistence.EventSink = (*Dispatcher)(nil)

// Config holds dispatcher pool sizing.
type Config struct {
	Workers   int
	QueueSize int
}

// NewDispatcher creates a Dispatcher and starts its workers. Metrics may be
// nil when outcome counters are not wanted (tests).
func NewDispatcher(cfg Config, logger *zap.Logger, metrics *Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		logger:  logger.Named("dispatcher"),
		metrics: metrics,
		tasks:   make(chan []persistence.PendingEvent, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.workers.Add(1)
		go d.worker()
	}
	return d
}

// Publish queues an event on the unit of work. The handler runs only if the
// unit of work later commits.
func (d *Dispatcher) Publish(uow *persistence.UnitOfWork, ev shared.DomainEvent, handler persistence.EventHandlerFunc) error {
	if err := uow.Enqueue(persistence.PendingEvent{Event: ev, Handler: handler}); err != nil {
		return err
	}
	d.count(func(m *Metrics) { m.Published(context.Background(), ev.EventType()) })
	return nil
}

// Dispatch receives a committed queue. After Shutdown the queue is dropped
// with a warning; the originating transaction is already durable, so this
// is a delivery loss, not a data loss.
func (d *Dispatcher) Dispatch(events []persistence.PendingEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("Dropping committed events, dispatcher is shut down",
			zap.Int("count", len(events)),
		)
		for _, pe := range events {
			d.count(func(m *Metrics) { m.Discarded(context.Background(), pe.Event.EventType()) })
		}
		return
	}
	d.tasks <- events
	d.mu.Unlock()
}

// Discard receives the queue of a rolled-back unit of work.
func (d *Dispatcher) Discard(events []persistence.PendingEvent) {
	for _, pe := range events {
		d.logger.Warn("Event discarded by rollback",
			zap.String("event_type", pe.Event.EventType()),
			zap.String("event_id", pe.Event.EventID().String()),
		)
		d.count(func(m *Metrics) { m.Discarded(context.Background(), pe.Event.EventType()) })
	}
}

// Shutdown stops intake and waits for in-flight handlers, bounded by ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.workers.Done()
	for queue := range d.tasks {
		for _, pe := range queue {
			d.run(pe)
		}
	}
}

// run executes one handler with panic isolation. Handlers receive a fresh
// background context: the request context that produced the event may be
// long gone by the time the handler runs.
func (d *Dispatcher) run(pe persistence.PendingEvent) {
	ctx := context.Background()
	d.count(func(m *Metrics) { m.Dispatched(ctx, pe.Event.EventType()) })

	start := time.Now()
	err := d.invoke(ctx, pe)
	if err != nil {
		d.logger.Error("Event handler failed",
			zap.String("event_type", pe.Event.EventType()),
			zap.String("event_id", pe.Event.EventID().String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		d.count(func(m *Metrics) { m.Failed(ctx, pe.Event.EventType()) })
		return
	}
	d.count(func(m *Metrics) { m.Succeeded(ctx, pe.Event.EventType()) })
}

func (d *Dispatcher) invoke(ctx context.Context, pe persistence.PendingEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return pe.Handler(ctx, pe.Event)
}

func (d *Dispatcher) count(fn func(*Metrics)) {
	if d.metrics != nil {
		fn(d.metrics)
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.value)
}
