package evbus

import (
	"reflect"
	"time"
)

// Observer receives bus lifecycle notifications. It is the hook
// instrumentation attaches through (see the otelbus package); the bus
// calls it synchronously on the goroutine where the event occurred, so
// implementations must be fast and must not post back into the bus.
type Observer interface {
	// SubscriptionAdded fires after a subscription is registered.
	SubscriptionAdded(eventType reflect.Type)

	// SubscriptionRemoved fires after a subscription is detached.
	SubscriptionRemoved(eventType reflect.Type)

	// EventPosted fires once per Post with the snapshot size.
	EventPosted(event any, matched int)

	// EventDelivered fires after each successful callback invocation.
	EventDelivered(event any, elapsed time.Duration)

	// EventDead fires when a posted event matched zero live subscriptions.
	EventDead(event any)

	// DispatchError fires when a callback error is recovered, before the
	// error handlers run.
	DispatchError(event any, err error)
}

// ObserverFuncs adapts individual functions to the Observer interface.
// Nil fields are ignored.
type ObserverFuncs struct {
	OnSubscriptionAdded   func(eventType reflect.Type)
	OnSubscriptionRemoved func(eventType reflect.Type)
	OnEventPosted         func(event any, matched int)
	OnEventDelivered      func(event any, elapsed time.Duration)
	OnEventDead           func(event any)
	OnDispatchError       func(event any, err error)
}

func (o ObserverFuncs) SubscriptionAdded(t reflect.Type) {
	if o.OnSubscriptionAdded != nil {
		o.OnSubscriptionAdded(t)
	}
}

func (o ObserverFuncs) SubscriptionRemoved(t reflect.Type) {
	if o.OnSubscriptionRemoved != nil {
		o.OnSubscriptionRemoved(t)
	}
}

func (o ObserverFuncs) EventPosted(event any, matched int) {
	if o.OnEventPosted != nil {
		o.OnEventPosted(event, matched)
	}
}

func (o ObserverFuncs) EventDelivered(event any, elapsed time.Duration) {
	if o.OnEventDelivered != nil {
		o.OnEventDelivered(event, elapsed)
	}
}

func (o ObserverFuncs) EventDead(event any) {
	if o.OnEventDead != nil {
		o.OnEventDead(event)
	}
}

func (o ObserverFuncs) DispatchError(event any, err error) {
	if o.OnDispatchError != nil {
		o.OnDispatchError(event, err)
	}
}

// MultiObserver fans notifications out to several observers in order.
func MultiObserver(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) SubscriptionAdded(t reflect.Type) {
	for _, o := range m {
		if o != nil {
			o.SubscriptionAdded(t)
		}
	}
}

func (m multiObserver) SubscriptionRemoved(t reflect.Type) {
	for _, o := range m {
		if o != nil {
			o.SubscriptionRemoved(t)
		}
	}
}

func (m multiObserver) EventPosted(event any, matched int) {
	for _, o := range m {
		if o != nil {
			o.EventPosted(event, matched)
		}
	}
}

func (m multiObserver) EventDelivered(event any, elapsed time.Duration) {
	for _, o := range m {
		if o != nil {
			o.EventDelivered(event, elapsed)
		}
	}
}

func (m multiObserver) EventDead(event any) {
	for _, o := range m {
		if o != nil {
			o.EventDead(event)
		}
	}
}

func (m multiObserver) DispatchError(event any, err error) {
	for _, o := range m {
		if o != nil {
			o.DispatchError(event, err)
		}
	}
}

// Compile-time interface checks.
var (
	_ Observer = ObserverFuncs{}
	_ Observer = multiObserver(nil)
)
