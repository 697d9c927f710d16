package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/fieldline/evbus"
)

// Recorder writes bus traffic to a Store. It implements evbus.Observer:
// wire it through Config.Observer (or evbus.MultiObserver alongside
// metrics). Append failures are logged, never surfaced to the poster.
type Recorder struct {
	store  Store
	logger *slog.Logger
	seq    atomic.Uint64
}

// NewRecorder creates a new Recorder.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		logger: logger,
	}
}

func (r *Recorder) SubscriptionAdded(reflect.Type)   {}
func (r *Recorder) SubscriptionRemoved(reflect.Type) {}

// EventPosted records events that matched at least one subscription.
// Events with an empty snapshot are recorded by EventDead instead.
func (r *Recorder) EventPosted(event any, matched int) {
	if matched == 0 {
		return
	}
	r.append(Record{
		EventType: fmt.Sprintf("%T", event),
		Outcome:   OutcomePosted,
		Matched:   matched,
		Payload:   marshalPayload(event),
	})
}

func (r *Recorder) EventDelivered(any, time.Duration) {}

func (r *Recorder) EventDead(event any) {
	r.append(Record{
		EventType: fmt.Sprintf("%T", event),
		Outcome:   OutcomeDead,
		Payload:   marshalPayload(event),
	})
}

func (r *Recorder) DispatchError(event any, err error) {
	r.append(Record{
		EventType: fmt.Sprintf("%T", event),
		Outcome:   OutcomeError,
		Error:     err.Error(),
	})
}

func (r *Recorder) append(rec Record) {
	rec.Seq = r.seq.Add(1)
	rec.Time = time.Now()
	if err := r.store.Append(context.Background(), rec); err != nil {
		r.logger.Error("journal: failed to append record",
			"event_type", rec.EventType,
			"outcome", string(rec.Outcome),
			"seq", rec.Seq,
			"error", err,
		)
	}
}

// marshalPayload serializes the event best effort; channels, funcs, and
// cyclic values yield an empty payload.
func marshalPayload(event any) string {
	data, err := json.Marshal(event)
	if err != nil {
		return ""
	}
	return string(data)
}

// Compile-time interface check.
var _ evbus.Observer = (*Recorder)(nil)
