// Package journal records event bus traffic for observability: what was
// posted, what went dead, and which deliveries failed. It is a record of
// the past, not a redelivery mechanism; the bus never replays journal
// entries.
package journal

import (
	"context"
	"time"
)

// Outcome classifies a journal record.
type Outcome string

const (
	// OutcomePosted marks an event that matched at least one subscription.
	OutcomePosted Outcome = "posted"

	// OutcomeDead marks an event that matched zero live subscriptions.
	OutcomeDead Outcome = "dead"

	// OutcomeError marks a recovered dispatch error.
	OutcomeError Outcome = "error"
)

// Record is one journal entry.
type Record struct {
	// Seq is a monotonic sequence number per recorder (1-indexed).
	Seq uint64

	// Time is when the record was made.
	Time time.Time

	// EventType is the Go type of the event, e.g. "main.UserCreated".
	EventType string

	// Outcome classifies the record.
	Outcome Outcome

	// Matched is the snapshot size at post time (posted records only).
	Matched int

	// Payload is the event serialized to JSON, best effort; empty when
	// the event is not serializable.
	Payload string

	// Error is the dispatch error text (error records only).
	Error string
}

// Store persists journal records.
type Store interface {
	// Append stores a record.
	Append(ctx context.Context, rec Record) error

	// List returns records with Seq > afterSeq (0 means all), oldest
	// first, at most limit (0 means no limit).
	List(ctx context.Context, afterSeq uint64, limit int) ([]Record, error)

	// LatestSeq returns the highest stored Seq (0 if empty).
	LatestSeq(ctx context.Context) (uint64, error)
}
