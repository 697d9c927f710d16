package otelbus

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldline/evbus"
)

// Traced wraps a subscriber handler so each invocation runs inside its
// own span. A panic from the wrapped handler is recorded on the span and
// re-raised, so the bus error handling still sees it.
func Traced[T any](tracer trace.Tracer, name string, handler evbus.Handler[T]) evbus.Handler[T] {
	return func(event T) {
		_, span := tracer.Start(context.Background(), name,
			trace.WithAttributes(
				attribute.String("evbus.event_type", fmt.Sprintf("%T", event)),
			),
		)
		defer span.End()
		defer func() {
			if r := recover(); r != nil {
				span.SetStatus(codes.Error, fmt.Sprintf("%v", r))
				if err, ok := r.(error); ok {
					span.RecordError(err)
				}
				panic(r)
			}
		}()

		handler(event)
		span.SetStatus(codes.Ok, "")
	}
}
