// Package evbus provides an in-process, typed publish/subscribe event bus.
//
// Components subscribe to event types they care about and producers post
// event values; the bus delivers each posted event to every subscription
// whose declared type the event is assignable to. Subscribing to an
// interface type therefore receives every event that implements it, while
// subscribing to a concrete type receives exactly that type.
//
// # Quick start
//
//	bus, err := evbus.New(evbus.Config[any]{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	handle, err := evbus.Subscribe(bus, func(e UserCreated) {
//		fmt.Println("welcome,", e.Name)
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer handle.Unsubscribe()
//
//	bus.Post(UserCreated{Name: "ada"})
//
// # Root event type
//
// A bus is parameterized by a root event type E. Every subscribed and
// posted type must be assignable to E. The common choice is `any`, which
// places no constraint; a domain interface narrows the bus to one event
// family at compile time.
//
// # Subscriber lifetime
//
// The bus holds only a weak reference to each callback; the Handle
// returned from a subscribe call is the strong owner. Dropping the last
// strong reference makes the subscription collectible without an explicit
// Unsubscribe, and the next cleaning pass purges it from the registry. A
// reference count pins the callback during each in-flight delivery, so a
// callback is never collected mid-invocation.
//
// # Dispatch
//
// The default dispatcher queues events per posting goroutine: events
// posted from within a subscriber callback are delivered after the
// current event finishes, in posting order, without growing the call
// stack. NewDirectDispatcher delivers synchronously and recursively
// instead. Callback invocation itself is handed to the configured
// Executor, which runs tasks inline unless replaced (see the executor
// subpackage for serial and pooled variants).
//
// Subscriber panics never propagate to the poster; they are recovered and
// reported to the per-subscription or bus-level error handler.
package evbus
