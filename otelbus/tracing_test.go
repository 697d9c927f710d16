package otelbus_test

import (
	"testing"

	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fieldline/evbus"
	"github.com/fieldline/evbus/otelbus"
)

// newTestTracer returns a tracer backed by an in-memory span exporter.
func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	return exporter, tp
}

func TestTraced_SpanPerInvocation(t *testing.T) {
	exporter, tp := newTestTracer()
	tracer := tp.Tracer("test")

	var calls int
	handler := otelbus.Traced(tracer, "handle-event", func(testEvent) {
		calls++
	})

	handler(testEvent{N: 1})
	handler(testEvent{N: 2})

	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, span := range spans {
		if span.Name != "handle-event" {
			t.Errorf("span name = %q, want handle-event", span.Name)
		}
		if span.Status.Code != otelcodes.Ok {
			t.Errorf("span status = %v, want Ok", span.Status.Code)
		}
	}

	found := false
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "evbus.event_type" && attr.Value.AsString() == "otelbus_test.testEvent" {
			found = true
		}
	}
	if !found {
		t.Error("expected evbus.event_type attribute on span")
	}
}

func TestTraced_PanicSetsErrorStatusAndRepanics(t *testing.T) {
	exporter, tp := newTestTracer()
	tracer := tp.Tracer("test")

	handler := otelbus.Traced(tracer, "explode", func(testEvent) {
		panic("kaboom")
	})

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		handler(testEvent{})
	}()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != otelcodes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status.Code)
	}
}

func TestTraced_OnBusPanicReachesErrorHandler(t *testing.T) {
	_, tp := newTestTracer()
	tracer := tp.Tracer("test")

	var dispatchErr error
	bus, err := evbus.New(evbus.Config[any]{
		ErrorHandler: func(event any, sub *evbus.Subscription, err error) {
			dispatchErr = err
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	h, err := evbus.Subscribe(bus, otelbus.Traced(tracer, "boom", func(testEvent) {
		panic("dead inside")
	}))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer h.Unsubscribe()

	if err := bus.Post(testEvent{}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if dispatchErr == nil {
		t.Fatal("expected the recovered panic to reach the bus error handler")
	}
}
