package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/corpelima/backend/internal/domain/shared"
	"github.com/corpelima/backend/internal/infrastructure/persistence"
)

type stubEvent struct {
	shared.BaseDomainEvent
	Label string
}

func newStubEvent(label string) *stubEvent {
	return &stubEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("test.stub", "Stub", uuid.New()),
		Label:           label,
	}
}

// recorder collects handler invocations in order.
type recorder struct {
	mu     sync.Mutex
	labels []string
}

func (r *recorder) handler(label string) persistence.EventHandlerFunc {
	return func(_ context.Context, _ shared.DomainEvent) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.labels = append(r.labels, label)
		return nil
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

func (r *recorder) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		got := len(r.labels)
		r.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d handler invocations, got %d", n, len(r.snapshot()))
}

func newTestDispatcher(t *testing.T, workers int) *Dispatcher {
	t.Helper()
	d := NewDispatcher(Config{Workers: workers, QueueSize: 16}, nil, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})
	return d
}

func openTestUoWManager(t *testing.T, sink persistence.EventSink) *persistence.UnitOfWorkManager {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return persistence.NewUnitOfWorkManager(db, sink, nil)
}

func TestDispatcherRunsHandlerOnlyAfterCommit(t *testing.T) {
	d := newTestDispatcher(t, 2)
	uowm := openTestUoWManager(t, d)
	rec := &recorder{}

	uow, err := uowm.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.Publish(uow, newStubEvent("a"), rec.handler("a")))

	// Not yet committed: the handler must not have run.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	require.NoError(t, uow.Commit())
	rec.waitFor(t, 1)
	assert.Equal(t, []string{"a"}, rec.snapshot())
}

func TestDispatcherDiscardsQueueOnRollback(t *testing.T) {
	d := newTestDispatcher(t, 2)
	uowm := openTestUoWManager(t, d)
	rec := &recorder{}

	uow, err := uowm.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.Publish(uow, newStubEvent("a"), rec.handler("a")))
	require.NoError(t, d.Publish(uow, newStubEvent("b"), rec.handler("b")))
	require.NoError(t, uow.Rollback())

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "rolled-back events must never reach handlers")
}

func TestDispatcherPreservesOrderWithinOneUnitOfWork(t *testing.T) {
	// A single worker is not required: one committed queue is a single task.
	d := newTestDispatcher(t, 4)
	uowm := openTestUoWManager(t, d)
	rec := &recorder{}

	uow, err := uowm.Begin(context.Background())
	require.NoError(t, err)
	labels := []string{"first", "second", "third", "fourth", "fifth"}
	for _, l := range labels {
		require.NoError(t, d.Publish(uow, newStubEvent(l), rec.handler(l)))
	}
	require.NoError(t, uow.Commit())

	rec.waitFor(t, len(labels))
	assert.Equal(t, labels, rec.snapshot())
}

func TestDispatcherDeliversAtMostOnce(t *testing.T) {
	d := newTestDispatcher(t, 2)
	uowm := openTestUoWManager(t, d)
	rec := &recorder{}

	uow, err := uowm.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.Publish(uow, newStubEvent("once"), rec.handler("once")))
	require.NoError(t, uow.Commit())

	rec.waitFor(t, 1)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"once"}, rec.snapshot())

	// Reusing a finished unit of work is rejected.
	err = d.Publish(uow, newStubEvent("late"), rec.handler("late"))
	assert.ErrorIs(t, err, persistence.ErrUnitOfWorkFinished)
	assert.Error(t, uow.Commit())
}

func TestDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := newTestDispatcher(t, 1)
	rec := &recorder{}

	failing := func(_ context.Context, _ shared.DomainEvent) error {
		return errors.New("boom")
	}
	d.Dispatch([]persistence.PendingEvent{
		{Event: newStubEvent("fail"), Handler: failing},
		{Event: newStubEvent("ok"), Handler: rec.handler("ok")},
	})

	rec.waitFor(t, 1)
	assert.Equal(t, []string{"ok"}, rec.snapshot())
}

func TestDispatcherRecoversFromHandlerPanic(t *testing.T) {
	d := newTestDispatcher(t, 1)
	rec := &recorder{}

	panicking := func(_ context.Context, _ shared.DomainEvent) error {
		panic("handler exploded")
	}
	d.Dispatch([]persistence.PendingEvent{
		{Event: newStubEvent("panic"), Handler: panicking},
		{Event: newStubEvent("after-panic"), Handler: rec.handler("after-panic")},
	})
	rec.waitFor(t, 1)

	// The single worker survived the panic and still accepts new work.
	d.Dispatch([]persistence.PendingEvent{
		{Event: newStubEvent("next-queue"), Handler: rec.handler("next-queue")},
	})
	rec.waitFor(t, 2)
	assert.Equal(t, []string{"after-panic", "next-queue"}, rec.snapshot())
}

func TestDispatcherShutdownDrainsInFlightWork(t *testing.T) {
	d := NewDispatcher(Config{Workers: 2, QueueSize: 16}, nil, nil)
	rec := &recorder{}

	slow := func(label string) persistence.EventHandlerFunc {
		return func(_ context.Context, _ shared.DomainEvent) error {
			time.Sleep(50 * time.Millisecond)
			rec.mu.Lock()
			rec.labels = append(rec.labels, label)
			rec.mu.Unlock()
			return nil
		}
	}
	for i := 0; i < 4; i++ {
		d.Dispatch([]persistence.PendingEvent{
			{Event: newStubEvent("slow"), Handler: slow("slow")},
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	assert.Len(t, rec.snapshot(), 4, "shutdown must wait for queued handlers")

	// Idempotent.
	require.NoError(t, d.Shutdown(ctx))
}

func TestDispatcherDropsCommittedQueueAfterShutdown(t *testing.T) {
	d := NewDispatcher(Config{Workers: 1, QueueSize: 4}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	rec := &recorder{}
	d.Dispatch([]persistence.PendingEvent{
		{Event: newStubEvent("late"), Handler: rec.handler("late")},
	})
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestDispatcherCountsOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	d := NewDispatcher(Config{Workers: 1, QueueSize: 16}, nil, metrics)
	uowm := openTestUoWManager(t, d)
	rec := &recorder{}

	// One committed success, one committed failure.
	uow, err := uowm.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.Publish(uow, newStubEvent("ok"), rec.handler("ok")))
	require.NoError(t, d.Publish(uow, newStubEvent("fail"), func(_ context.Context, _ shared.DomainEvent) error {
		return errors.New("boom")
	}))
	require.NoError(t, uow.Commit())
	rec.waitFor(t, 1)

	// One rolled-back event.
	uow2, err := uowm.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.Publish(uow2, newStubEvent("dropped"), rec.handler("dropped")))
	require.NoError(t, uow2.Rollback())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				typ, _ := dp.Attributes.Value(attribute.Key("event_type"))
				assert.Equal(t, "test.stub", typ.AsString())
				total += dp.Value
			}
			sums[m.Name] = total
		}
	}

	assert.Equal(t, int64(3), sums["procurement_events_published_total"])
	assert.Equal(t, int64(2), sums["procurement_events_dispatched_total"])
	assert.Equal(t, int64(1), sums["procurement_events_succeeded_total"])
	assert.Equal(t, int64(1), sums["procurement_events_failed_total"])
	assert.Equal(t, int64(1), sums["procurement_events_discarded_total"])
}
