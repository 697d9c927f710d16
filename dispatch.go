package evbus

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Dispatcher decides delivery order and re-entrancy handling for a posted
// event and its snapshot of matching subscriptions. A Dispatcher never
// fails on a subscriber error; each subscription reports its own.
type Dispatcher interface {
	Dispatch(event any, subs []*Subscription)
}

// NewDirectDispatcher returns a dispatcher that delivers to each
// subscription synchronously, in snapshot order, on the calling
// goroutine. A reentrant Post simply runs to completion before the outer
// delivery continues, growing the stack with nesting depth.
func NewDirectDispatcher() Dispatcher {
	return directDispatcher{}
}

type directDispatcher struct{}

func (directDispatcher) Dispatch(event any, subs []*Subscription) {
	for _, s := range subs {
		s.deliver(event)
	}
}

// NewQueuedDispatcher returns a dispatcher that maintains a queue per
// posting goroutine. The first Dispatch on a goroutine enters a drain
// loop; a reentrant Dispatch from within a callback on the same goroutine
// only enqueues and returns, so events posted by one goroutine are
// delivered in posting order and nesting never grows the call stack.
func NewQueuedDispatcher() Dispatcher {
	return &queuedDispatcher{queues: make(map[uint64]*postQueue)}
}

type queuedDispatcher struct {
	mu     sync.Mutex
	queues map[uint64]*postQueue
}

type postQueue struct {
	items []queuedEvent
}

type queuedEvent struct {
	event any
	subs  []*Subscription
}

func (d *queuedDispatcher) Dispatch(event any, subs []*Subscription) {
	id := goroutineID()

	d.mu.Lock()
	if q, ok := d.queues[id]; ok {
		// Reentrant post from a callback on this goroutine: the outer
		// drain loop delivers it later.
		q.items = append(q.items, queuedEvent{event: event, subs: subs})
		d.mu.Unlock()
		return
	}
	q := &postQueue{items: []queuedEvent{{event: event, subs: subs}}}
	d.queues[id] = q
	d.mu.Unlock()

	for {
		d.mu.Lock()
		if len(q.items) == 0 {
			delete(d.queues, id)
			d.mu.Unlock()
			return
		}
		next := q.items[0]
		q.items = q.items[1:]
		d.mu.Unlock()

		for _, s := range next.subs {
			s.deliver(next.event)
		}
	}
}

// goroutineID extracts the current goroutine's id from its stack header
// ("goroutine N [..."). Go deliberately offers no goroutine-local
// storage; parsing the stack header is the established technique and the
// id is used only as a map key scoped to one drain.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := buf[:n]
	header = bytes.TrimPrefix(header, []byte("goroutine "))
	if i := bytes.IndexByte(header, ' '); i >= 0 {
		header = header[:i]
	}
	id, _ := strconv.ParseUint(string(header), 10, 64)
	return id
}
