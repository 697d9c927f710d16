// Package otelbus provides OpenTelemetry instrumentation for the event
// bus: metrics over the bus Observer hook and a span-per-delivery handler
// wrapper.
package otelbus

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics translates bus observer notifications into OpenTelemetry
// metrics. It records counters for posts, dead events, and dispatch
// errors, a histogram for callback invocation duration, and an up-down
// counter tracking active subscriptions.
type Metrics struct {
	posts          metric.Int64Counter
	deadEvents     metric.Int64Counter
	dispatchErrors metric.Int64Counter
	deliveryTime   metric.Float64Histogram
	subscriptions  metric.Int64UpDownCounter
}

// NewMetrics creates a Metrics observer that uses the given meter to
// create its instruments.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	posts, err := meter.Int64Counter("evbus.posts",
		metric.WithDescription("Number of events posted"),
	)
	if err != nil {
		return nil, err
	}

	dead, err := meter.Int64Counter("evbus.dead_events",
		metric.WithDescription("Number of events with zero matching subscriptions"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter("evbus.dispatch_errors",
		metric.WithDescription("Number of recovered subscriber errors"),
	)
	if err != nil {
		return nil, err
	}

	delivery, err := meter.Float64Histogram("evbus.delivery.duration",
		metric.WithDescription("Duration of subscriber callback invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	subs, err := meter.Int64UpDownCounter("evbus.subscriptions",
		metric.WithDescription("Number of active subscriptions"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		posts:          posts,
		deadEvents:     dead,
		dispatchErrors: errs,
		deliveryTime:   delivery,
		subscriptions:  subs,
	}, nil
}

// SubscriptionAdded increments the active subscription counter.
func (m *Metrics) SubscriptionAdded(eventType reflect.Type) {
	m.subscriptions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("event_type", eventType.String()),
	))
}

// SubscriptionRemoved decrements the active subscription counter.
func (m *Metrics) SubscriptionRemoved(eventType reflect.Type) {
	m.subscriptions.Add(context.Background(), -1, metric.WithAttributes(
		attribute.String("event_type", eventType.String()),
	))
}

// EventPosted increments the post counter with the snapshot size.
func (m *Metrics) EventPosted(event any, matched int) {
	m.posts.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("event_type", fmt.Sprintf("%T", event)),
		attribute.Int("matched", matched),
	))
}

// EventDelivered records the callback invocation duration.
func (m *Metrics) EventDelivered(event any, elapsed time.Duration) {
	m.deliveryTime.Record(context.Background(), elapsed.Seconds(), metric.WithAttributes(
		attribute.String("event_type", fmt.Sprintf("%T", event)),
	))
}

// EventDead increments the dead-event counter.
func (m *Metrics) EventDead(event any) {
	m.deadEvents.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("event_type", fmt.Sprintf("%T", event)),
	))
}

// DispatchError increments the dispatch error counter.
func (m *Metrics) DispatchError(event any, err error) {
	m.dispatchErrors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("event_type", fmt.Sprintf("%T", event)),
	))
}
