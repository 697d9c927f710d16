package evbus

import (
	"fmt"
	"reflect"
)

// SubscriberConfig carries optional per-subscription settings.
type SubscriberConfig struct {
	// ErrorHandler receives dispatch errors from this subscription,
	// taking precedence over the bus-level handler.
	ErrorHandler DispatchErrorHandler

	// UserData is an opaque value retrievable from the Subscription.
	UserData any

	// Origin associates the subscription with a value for bulk removal
	// via UnsubscribeOrigin.
	Origin any
}

// Subscribe registers fn for events of type T. T must be assignable to
// the bus root type. Subscribing to an interface type receives every
// posted event that implements it.
//
// The bus references fn only weakly through the returned Handle; drop the
// handle (without calling Unsubscribe) and the subscription becomes
// collectible, to be purged on the next cleaning pass.
func Subscribe[T any, E any](b *Bus[E], fn Handler[T]) (*Handle, error) {
	return SubscribeWith(b, fn, SubscriberConfig{})
}

// SubscribeWith is Subscribe with per-subscription configuration.
func SubscribeWith[T any, E any](b *Bus[E], fn Handler[T], cfg SubscriberConfig) (*Handle, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	return b.subscribe(t, func(event any) { fn(event.(T)) }, cfg)
}

// SubscribeType registers fn for events of the given reflect type. It is
// the runtime-typed counterpart of Subscribe, used when the event type is
// not known at compile time.
func (b *Bus[E]) SubscribeType(eventType reflect.Type, fn func(event any), cfg SubscriberConfig) (*Handle, error) {
	if eventType == nil {
		return nil, fmt.Errorf("%w: nil event type", ErrNotAssignable)
	}
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.subscribe(eventType, fn, cfg)
}

func (b *Bus[E]) subscribe(eventType reflect.Type, fn func(event any), cfg SubscriberConfig) (*Handle, error) {
	if !eventType.AssignableTo(b.root) {
		return nil, fmt.Errorf("%w: %s is not assignable to %s", ErrNotAssignable, eventType, b.root)
	}

	box := &callback{invoke: fn}
	sub := newSubscription(b.core, eventType, box, cfg)

	b.reg.add(eventType, sub)
	b.core.notifyAdded(eventType)

	return newHandle(b.reg, b.core, b.selfClean, []*Subscription{sub}, []*callback{box}), nil
}

// subscribeBatch registers several (type, callback) bindings under one
// handle, all-or-nothing. Used by Attach and AttachFuncs.
func (b *Bus[E]) subscribeBatch(entries []batchEntry) *Handle {
	subs := make([]*Subscription, 0, len(entries))
	owned := make([]*callback, 0, len(entries))
	for _, e := range entries {
		box := &callback{invoke: e.invoke}
		sub := newSubscription(b.core, e.eventType, box, e.cfg)
		b.reg.add(e.eventType, sub)
		b.core.notifyAdded(e.eventType)
		subs = append(subs, sub)
		owned = append(owned, box)
	}
	return newHandle(b.reg, b.core, b.selfClean, subs, owned)
}

type batchEntry struct {
	eventType reflect.Type
	invoke    func(event any)
	cfg       SubscriberConfig
}
