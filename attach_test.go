package evbus

import (
	"errors"
	"testing"
)

type shapeWatcher struct {
	circles int
	shapes  int
	other   int
}

func (w *shapeWatcher) OnCircle(circle) { w.circles++ }
func (w *shapeWatcher) OnShape(shape)   { w.shapes++ }
func (w *shapeWatcher) Refresh(circle)  { w.other++ }

type badWatcher struct{}

func (badWatcher) OnCircle(circle) error { return nil }

type arityWatcher struct{}

func (arityWatcher) OnPair(circle, square) {}

func TestAttach_DiscoversMarkedMethods(t *testing.T) {
	b := newTestBus(t, Config[any]{})

	w := &shapeWatcher{}
	h, err := b.Attach(w)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if h == nil {
		t.Fatalf("Attach returned nil handle for a type with marked methods")
	}
	defer h.Unsubscribe()

	if got := len(h.Subscriptions()); got != 2 {
		t.Fatalf("Attach created %d subscriptions, want 2", got)
	}

	if err := b.Post(circle{radius: 1}); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if w.circles != 1 || w.shapes != 1 {
		t.Errorf("circles=%d shapes=%d, want 1/1", w.circles, w.shapes)
	}
	if w.other != 0 {
		t.Errorf("unmarked method was subscribed")
	}
}

func TestAttach_InvalidMethodFailsAtomically(t *testing.T) {
	b := newTestBus(t, Config[any]{})

	if _, err := b.Attach(badWatcher{}); !errors.Is(err, ErrInvalidSubscriber) {
		t.Fatalf("Attach(badWatcher) = %v, want ErrInvalidSubscriber", err)
	}
	if _, err := b.Attach(arityWatcher{}); !errors.Is(err, ErrInvalidSubscriber) {
		t.Fatalf("Attach(arityWatcher) = %v, want ErrInvalidSubscriber", err)
	}

	// Nothing was registered by the failed attempts.
	if keys := b.reg.keys(); len(keys) != 0 {
		t.Fatalf("failed Attach left %d registrations behind", len(keys))
	}
}

func TestAttach_NoCandidates(t *testing.T) {
	b := newTestBus(t, Config[any]{})

	h, err := b.Attach(struct{ X int }{})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if h != nil {
		t.Fatalf("Attach returned a handle for zero candidates")
	}
}

func TestAttach_NilSource(t *testing.T) {
	b := newTestBus(t, Config[any]{})

	if _, err := b.Attach(nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("Attach(nil) = %v, want ErrNilSource", err)
	}
}

func TestAttach_UnsubscribeByOrigin(t *testing.T) {
	b := newTestBus(t, Config[any]{})

	w := &shapeWatcher{}
	h, err := b.Attach(w)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer h.Unsubscribe()

	if removed := b.UnsubscribeOrigin(w); removed != 2 {
		t.Fatalf("UnsubscribeOrigin removed %d, want 2", removed)
	}

	if err := b.Post(circle{radius: 1}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if w.circles != 0 || w.shapes != 0 {
		t.Fatalf("origin-removed subscriber was invoked")
	}
}

func TestAttachFuncs(t *testing.T) {
	b := newTestBus(t, Config[any]{})

	var circles, ignored int
	origin := "funcs"

	h, err := b.AttachFuncs(origin, map[string]any{
		"OnCircle": func(circle) { circles++ },
		"Helper":   func(circle) { ignored++ },
	})
	if err != nil {
		t.Fatalf("AttachFuncs: %v", err)
	}
	if h == nil {
		t.Fatalf("AttachFuncs returned nil handle")
	}
	defer h.Unsubscribe()

	if err := b.Post(circle{radius: 1}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if circles != 1 {
		t.Fatalf("marked func got %d calls, want 1", circles)
	}
	if ignored != 0 {
		t.Fatalf("unmarked func was subscribed")
	}
}

func TestAttachFuncs_Validation(t *testing.T) {
	b := newTestBus(t, Config[any]{})

	cases := map[string]any{
		"OnNotAFunc":  42,
		"OnReturns":   func(circle) error { return nil },
		"OnTwoParams": func(circle, square) {},
	}
	for name, f := range cases {
		if _, err := b.AttachFuncs("o", map[string]any{name: f}); !errors.Is(err, ErrInvalidSubscriber) {
			t.Errorf("AttachFuncs(%s) = %v, want ErrInvalidSubscriber", name, err)
		}
	}
}

func TestAttach_CustomMarkerPrefix(t *testing.T) {
	b := newTestBus(t, Config[any]{MarkerPrefix: "Handle"})

	var calls int
	h, err := b.AttachFuncs("o", map[string]any{
		"HandleCircle": func(circle) { calls++ },
		"OnCircle":     func(circle) { calls += 100 },
	})
	if err != nil {
		t.Fatalf("AttachFuncs: %v", err)
	}
	defer h.Unsubscribe()

	if err := b.Post(circle{radius: 1}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want only the Handle-prefixed func", calls)
	}
}
