package evbus

import (
	"fmt"
	"reflect"
	"sync"
	"time"
	"weak"

	"github.com/google/uuid"
)

// callback boxes the invocable form of a subscriber so the registry can
// hold it weakly. The Handle returned from a subscribe call is the strong
// owner of the box.
type callback struct {
	invoke func(event any)
}

// Subscription is one registered binding from an event type to a callback.
// It is reachable from the registry only under its declared event type and
// holds the callback through a weak pointer; a reference count pins the
// callback during each in-flight delivery.
type Subscription struct {
	id        uuid.UUID
	eventType reflect.Type
	origin    any
	userData  any
	onError   DispatchErrorHandler
	core      *busCore
	ref       weak.Pointer[callback]

	mu       sync.Mutex
	refs     int
	resolved *callback
	detached bool
}

func newSubscription(core *busCore, eventType reflect.Type, box *callback, cfg SubscriberConfig) *Subscription {
	return &Subscription{
		id:        uuid.New(),
		eventType: eventType,
		origin:    cfg.Origin,
		userData:  cfg.UserData,
		onError:   cfg.ErrorHandler,
		core:      core,
		ref:       weak.Make(box),
	}
}

// ID returns the unique identifier of this subscription.
func (s *Subscription) ID() uuid.UUID { return s.id }

// EventType returns the declared event type this subscription accepts.
func (s *Subscription) EventType() reflect.Type { return s.eventType }

// Origin returns the value this subscription was registered under, if any.
func (s *Subscription) Origin() any { return s.origin }

// UserData returns the opaque value attached at subscribe time, if any.
func (s *Subscription) UserData() any { return s.userData }

// pin increments the reference count, resolving the weak pointer to a
// strong one on the 0->1 transition. It reports false when the callback
// has been collected or the subscription detached; every successful pin
// must be paired with exactly one unpin.
func (s *Subscription) pin() (*callback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detached {
		return nil, false
	}
	if s.refs == 0 {
		cb := s.ref.Value()
		if cb == nil {
			s.detached = true
			return nil, false
		}
		s.resolved = cb
	}
	s.refs++
	return s.resolved, true
}

// unpin decrements the reference count and drops the strong hold on the
// callback on the transition to zero, making it collectible again.
func (s *Subscription) unpin() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		s.resolved = nil
	}
}

// detach moves the subscription to its terminal state. In-flight
// deliveries keep their pinned callback until they complete; future pins
// fail. Idempotent.
func (s *Subscription) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detached = true
	if s.refs == 0 {
		s.resolved = nil
	}
}

// alive reports whether the subscription can still deliver: not detached
// and its callback either pinned or not yet collected.
func (s *Subscription) alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detached {
		return false
	}
	return s.refs > 0 || s.ref.Value() != nil
}

// deliver pins the callback and submits its invocation to the bus
// executor. The unpin runs after the invocation completes, success or
// failure, so the callback cannot be collected mid-call. A subscription
// whose callback was collected is silently skipped.
func (s *Subscription) deliver(event any) {
	cb, ok := s.pin()
	if !ok {
		return
	}
	s.core.exec.Execute(func() {
		defer s.unpin()
		defer func() {
			if r := recover(); r != nil {
				s.reportError(event, recoveredError(r))
			}
		}()
		start := time.Now()
		cb.invoke(event)
		s.core.notifyDelivered(event, time.Since(start))
	})
}

// reportError routes a recovered callback error to the per-subscription
// handler, else the bus handler, else a debug log line. Errors raised by
// the handlers themselves are not protected against.
func (s *Subscription) reportError(event any, err error) {
	s.core.notifyError(event, err)
	switch {
	case s.onError != nil:
		s.onError(event, s, err)
	case s.core.errHandler != nil:
		s.core.errHandler(event, s, err)
	default:
		s.core.logger.Debug("evbus: dispatch error discarded",
			"event_type", fmt.Sprintf("%T", event),
			"subscription", s.id.String(),
			"error", err,
		)
	}
}

func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("evbus: subscriber panic: %w", err)
	}
	return fmt.Errorf("evbus: subscriber panic: %v", r)
}

// Handle represents the subscriptions created by a single subscribe call
// and owns the strong references to their callbacks.
type Handle struct {
	mu    sync.Mutex
	reg   *registry
	core  *busCore
	prune bool
	subs  []*Subscription
	owned []*callback
}

func newHandle(reg *registry, core *busCore, prune bool, subs []*Subscription, owned []*callback) *Handle {
	return &Handle{
		reg:   reg,
		core:  core,
		prune: prune,
		subs:  subs,
		owned: owned,
	}
}

// Unsubscribe detaches every subscription represented by this handle from
// the registry and releases the callbacks. Idempotent: calls after the
// first are no-ops.
func (h *Handle) Unsubscribe() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		return
	}
	for _, s := range h.subs {
		s.detach()
		h.reg.remove(s, h.prune)
		h.core.notifyRemoved(s.eventType)
	}
	h.subs = nil
	h.owned = nil
}

// Subscriptions returns the subscriptions represented by this handle, or
// nil after Unsubscribe.
func (h *Handle) Subscriptions() []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Subscription(nil), h.subs...)
}
