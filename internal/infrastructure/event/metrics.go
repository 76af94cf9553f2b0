package event

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// attrEventType labels every dispatcher counter with the event type.
var attrEventType = attribute.Key("event_type")

// Metrics records dispatcher outcomes. Handler failures are swallowed by
// contract, so these counters are the primary way to notice them short of
// reading logs.
type Metrics struct {
	published  metric.Int64Counter
	dispatched metric.Int64Counter
	succeeded  metric.Int64Counter
	failed     metric.Int64Counter
	discarded  metric.Int64Counter
}

// NewMetrics registers the dispatcher counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.published, err = meter.Int64Counter(
		"procurement_events_published_total",
		metric.WithDescription("Events queued on a unit of work"),
		metric.WithUnit("{events}"),
	); err != nil {
		return nil, err
	}
	if m.dispatched, err = meter.Int64Counter(
		"procurement_events_dispatched_total",
		metric.WithDescription("Events handed to a handler after commit"),
		metric.WithUnit("{events}"),
	); err != nil {
		return nil, err
	}
	if m.succeeded, err = meter.Int64Counter(
		"procurement_events_succeeded_total",
		metric.WithDescription("Handler invocations that completed without error"),
		metric.WithUnit("{events}"),
	); err != nil {
		return nil, err
	}
	if m.failed, err = meter.Int64Counter(
		"procurement_events_failed_total",
		metric.WithDescription("Handler invocations that returned an error or panicked"),
		metric.WithUnit("{events}"),
	); err != nil {
		return nil, err
	}
	if m.discarded, err = meter.Int64Counter(
		"procurement_events_discarded_total",
		metric.WithDescription("Events dropped by rollback or shutdown"),
		metric.WithUnit("{events}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Published counts an event queued on a unit of work.
func (m *Metrics) Published(ctx context.Context, eventType string) {
	m.published.Add(ctx, 1, metric.WithAttributes(attrEventType.String(eventType)))
}

// Dispatched counts an event handed to its handler.
func (m *Metrics) Dispatched(ctx context.Context, eventType string) {
	m.dispatched.Add(ctx, 1, metric.WithAttributes(attrEventType.String(eventType)))
}

// Succeeded counts a handler success.
func (m *Metrics) Succeeded(ctx context.Context, eventType string) {
	m.succeeded.Add(ctx, 1, metric.WithAttributes(attrEventType.String(eventType)))
}

// Failed counts a handler failure.
func (m *Metrics) Failed(ctx context.Context, eventType string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attrEventType.String(eventType)))
}

// Discarded counts an event that will never reach its handler.
func (m *Metrics) Discarded(ctx context.Context, eventType string) {
	m.discarded.Add(ctx, 1, metric.WithAttributes(attrEventType.String(eventType)))
}
