package evbus

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// registry maps event types to their active subscriptions. Bucket slices
// are copy-on-write: writers replace the slice under the lock, so a
// snapshot taken by Post can be iterated without holding it. Structural
// mutation of the outer map is serialized by the same lock; it is rare
// relative to Post.
type registry struct {
	mu      sync.RWMutex
	buckets map[reflect.Type][]*Subscription

	// keyGen increments whenever a previously-unseen type key is added,
	// invalidating listening-type cache entries computed against the old
	// key set.
	keyGen atomic.Uint64
}

func newRegistry() *registry {
	return &registry{buckets: make(map[reflect.Type][]*Subscription)}
}

// add inserts subscriptions into the bucket keyed by their event type,
// creating the bucket if absent.
func (r *registry) add(t reflect.Type, subs ...*Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, existed := r.buckets[t]
	next := make([]*Subscription, 0, len(old)+len(subs))
	next = append(next, old...)
	next = append(next, subs...)
	r.buckets[t] = next

	if !existed {
		r.keyGen.Add(1)
	}
}

// remove drops one subscription from its bucket. When prune is set, dead
// subscriptions in the same bucket are dropped too and an empty bucket is
// deleted.
func (r *registry) remove(sub *Subscription, prune bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.buckets[sub.eventType]
	if !ok {
		return
	}
	next := make([]*Subscription, 0, len(old))
	for _, s := range old {
		if s == sub {
			continue
		}
		if prune && !s.alive() {
			continue
		}
		next = append(next, s)
	}
	r.replaceLocked(sub.eventType, next, prune)
}

// removeWhere detaches and removes every subscription matching the
// predicate, returning the removed subscriptions. When prune is set,
// dead entries and empty buckets are dropped along the way.
func (r *registry) removeWhere(pred func(*Subscription) bool, prune bool) []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*Subscription
	for t, old := range r.buckets {
		next := make([]*Subscription, 0, len(old))
		changed := false
		for _, s := range old {
			if pred(s) {
				s.detach()
				removed = append(removed, s)
				changed = true
				continue
			}
			if prune && !s.alive() {
				changed = true
				continue
			}
			next = append(next, s)
		}
		if changed {
			r.replaceLocked(t, next, prune)
		}
	}
	return removed
}

// snapshot returns the union of live subscriptions across the given
// listening types. Dangling entries encountered during the read are
// filtered out of the result; when prune is set they are also purged from
// the registry as a side effect.
func (r *registry) snapshot(types []reflect.Type, prune bool) []*Subscription {
	r.mu.RLock()
	var out []*Subscription
	var dangling []*Subscription
	for _, t := range types {
		for _, s := range r.buckets[t] {
			if s.alive() {
				out = append(out, s)
			} else {
				dangling = append(dangling, s)
			}
		}
	}
	r.mu.RUnlock()

	if prune && len(dangling) > 0 {
		r.mu.Lock()
		for _, s := range dangling {
			r.dropLocked(s)
		}
		r.mu.Unlock()
	}
	return out
}

// keys returns the currently registered type keys.
func (r *registry) keys() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reflect.Type, 0, len(r.buckets))
	for t := range r.buckets {
		out = append(out, t)
	}
	return out
}

func (r *registry) generation() uint64 {
	return r.keyGen.Load()
}

// prune drops dead subscriptions and empty buckets. Used by Cleanup on
// buses that are not self-cleaning.
func (r *registry) prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for t, old := range r.buckets {
		next := make([]*Subscription, 0, len(old))
		for _, s := range old {
			if s.alive() {
				next = append(next, s)
			}
		}
		r.replaceLocked(t, next, true)
	}
}

// reset detaches every subscription and clears the registry.
func (r *registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, bucket := range r.buckets {
		for _, s := range bucket {
			s.detach()
		}
	}
	r.buckets = make(map[reflect.Type][]*Subscription)
}

// dropLocked removes one subscription and deletes its bucket if empty.
// Caller holds the write lock.
func (r *registry) dropLocked(sub *Subscription) {
	old, ok := r.buckets[sub.eventType]
	if !ok {
		return
	}
	next := make([]*Subscription, 0, len(old))
	for _, s := range old {
		if s != sub {
			next = append(next, s)
		}
	}
	r.replaceLocked(sub.eventType, next, true)
}

// replaceLocked installs a new bucket slice, deleting empty buckets when
// pruning. Caller holds the write lock.
func (r *registry) replaceLocked(t reflect.Type, next []*Subscription, prune bool) {
	if prune && len(next) == 0 {
		delete(r.buckets, t)
		return
	}
	r.buckets[t] = next
}
