package evbus

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"
	"unicode"

	"github.com/fieldline/evbus/executor"
)

var (
	// ErrNilEvent is returned by Post when the event is nil.
	ErrNilEvent = errors.New("evbus: nil event")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("evbus: nil handler")

	// ErrNilSource is returned by Attach when the source is nil.
	ErrNilSource = errors.New("evbus: nil source")

	// ErrNotAssignable is returned when a subscribed event type is not
	// assignable to the bus root type.
	ErrNotAssignable = errors.New("evbus: event type outside bus root type")

	// ErrInvalidMarker is returned by New when the configured marker
	// prefix could never match an exported method name.
	ErrInvalidMarker = errors.New("evbus: marker prefix must be exported")

	// ErrInvalidSubscriber is returned by Attach when a marked method has
	// the wrong shape (parameter count, return values, or parameter type).
	ErrInvalidSubscriber = errors.New("evbus: invalid subscriber method")
)

// DefaultMarkerPrefix is the method-name prefix that identifies subscriber
// methods during Attach when Config.MarkerPrefix is empty.
const DefaultMarkerPrefix = "On"

// Handler processes events of type T.
type Handler[T any] func(event T)

// Executor runs callback invocations. Execute must run the task exactly
// once; errors inside the task are the bus's concern, not the executor's.
// The executor subpackage provides direct, serial, and pooled
// implementations.
type Executor interface {
	Execute(task func())
}

// DispatchErrorHandler receives errors recovered from subscriber
// callbacks. It runs on the executor that ran the failing callback.
type DispatchErrorHandler func(event any, sub *Subscription, err error)

// Config configures a Bus. The zero value is usable: queued dispatch,
// inline execution, self-cleaning enabled, no handlers.
type Config[E any] struct {
	// Dispatcher decides delivery order and re-entrancy handling.
	// Default: NewQueuedDispatcher.
	Dispatcher Dispatcher

	// Executor runs each callback invocation. Default: executor.Direct.
	Executor Executor

	// ManualCleanup disables eager purging of dangling subscriptions and
	// empty registry buckets; callers must invoke Cleanup instead.
	ManualCleanup bool

	// MarkerPrefix identifies subscriber methods during Attach.
	// Default: DefaultMarkerPrefix. Must start with an uppercase letter,
	// since unexported methods are not reachable through reflection.
	MarkerPrefix string

	// Mapper enumerates candidate methods during Attach.
	// Default: DeclaredMethods.
	Mapper MethodMapper

	// ErrorHandler receives dispatch errors from subscriptions that have
	// no handler of their own. When absent, errors are discarded after a
	// debug log line.
	ErrorHandler DispatchErrorHandler

	// DeadHandler receives events that matched zero live subscriptions.
	DeadHandler Handler[E]

	// Observer receives bus lifecycle notifications (see otelbus).
	Observer Observer

	// Logger used for internal diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// ResolverCacheSize bounds the listening-type cache (default 256).
	ResolverCacheSize int
}

// Bus is an in-process publish/subscribe event bus rooted at event type E.
// A Bus is immutable after construction and safe for concurrent use.
type Bus[E any] struct {
	core        *busCore
	root        reflect.Type
	dispatcher  Dispatcher
	selfClean   bool
	deadHandler Handler[E]
	marker      string
	mapper      MethodMapper

	reg *registry
	res *resolver
}

// busCore is the non-generic part of a Bus shared with its subscriptions
// and dispatchers.
type busCore struct {
	exec       Executor
	errHandler DispatchErrorHandler
	observer   Observer
	logger     *slog.Logger
}

// New creates a Bus from the given configuration.
func New[E any](cfg Config[E]) (*Bus[E], error) {
	marker := cfg.MarkerPrefix
	if marker == "" {
		marker = DefaultMarkerPrefix
	}
	if !unicode.IsUpper(rune(marker[0])) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMarker, marker)
	}

	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = NewQueuedDispatcher()
	}

	exec := cfg.Executor
	if exec == nil {
		exec = executor.Direct()
	}

	mapper := cfg.Mapper
	if mapper == nil {
		mapper = DeclaredMethods
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cacheSize := cfg.ResolverCacheSize
	if cacheSize <= 0 {
		cacheSize = defaultResolverCacheSize
	}
	res, err := newResolver(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("evbus: resolver cache: %w", err)
	}

	return &Bus[E]{
		core: &busCore{
			exec:       exec,
			errHandler: cfg.ErrorHandler,
			observer:   cfg.Observer,
			logger:     logger,
		},
		root:        reflect.TypeOf((*E)(nil)).Elem(),
		dispatcher:  dispatcher,
		selfClean:   !cfg.ManualCleanup,
		deadHandler: cfg.DeadHandler,
		marker:      marker,
		mapper:      mapper,
		reg:         newRegistry(),
		res:         res,
	}, nil
}

// Post delivers the event to every live subscription whose declared type
// the event's dynamic type is assignable to. Only subscriptions present
// when Post resolves its snapshot receive the event; later subscribers do
// not. When no live subscription matches, the configured dead-event
// handler (if any) receives the event instead.
//
// Post never fails because of a subscriber; the only error is ErrNilEvent.
// It returns without waiting for asynchronous executor completion.
func (b *Bus[E]) Post(event E) error {
	if isNilEvent(any(event)) {
		return ErrNilEvent
	}

	concrete := reflect.TypeOf(any(event))
	types := b.res.listeningTypes(concrete, b.reg)
	subs := b.reg.snapshot(types, b.selfClean)

	b.core.notifyPosted(any(event), len(subs))

	if len(subs) == 0 {
		b.core.notifyDead(any(event))
		if b.deadHandler != nil {
			b.deadHandler(event)
		}
		return nil
	}

	b.dispatcher.Dispatch(any(event), subs)
	return nil
}

// UnsubscribeOrigin detaches every subscription whose origin equals the
// given value and reports how many were removed. Removal by origin is the
// bulk counterpart of Handle.Unsubscribe, used with Attach.
func (b *Bus[E]) UnsubscribeOrigin(origin any) int {
	if origin == nil {
		return 0
	}
	removed := b.reg.removeWhere(func(s *Subscription) bool {
		return s.origin == origin
	}, b.selfClean)
	for _, s := range removed {
		b.core.notifyRemoved(s.eventType)
	}
	return len(removed)
}

// Cleanup purges dangling subscriptions and empty type buckets from the
// registry. On a self-cleaning bus this is a no-op, since purging happens
// eagerly on every mutating operation.
func (b *Bus[E]) Cleanup() {
	if b.selfClean {
		return
	}
	b.reg.prune()
}

// Reset detaches all subscriptions and clears the registry and the
// listening-type cache. The bus remains usable with zero subscribers.
func (b *Bus[E]) Reset() {
	b.reg.reset()
	b.res.purge()
}

// Root returns the bus root event type.
func (b *Bus[E]) Root() reflect.Type { return b.root }

// isNilEvent reports whether the event is nil, including a typed nil
// inside a non-nil interface.
func isNilEvent(event any) bool {
	if event == nil {
		return true
	}
	v := reflect.ValueOf(event)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

func (c *busCore) notifyAdded(t reflect.Type) {
	if c.observer != nil {
		c.observer.SubscriptionAdded(t)
	}
}

func (c *busCore) notifyRemoved(t reflect.Type) {
	if c.observer != nil {
		c.observer.SubscriptionRemoved(t)
	}
}

func (c *busCore) notifyPosted(event any, matched int) {
	if c.observer != nil {
		c.observer.EventPosted(event, matched)
	}
}

func (c *busCore) notifyDelivered(event any, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.EventDelivered(event, elapsed)
	}
}

func (c *busCore) notifyDead(event any) {
	if c.observer != nil {
		c.observer.EventDead(event)
	}
}

func (c *busCore) notifyError(event any, err error) {
	if c.observer != nil {
		c.observer.DispatchError(event, err)
	}
}
