package journal

import (
	"context"
	"testing"
	"time"
)

func makeRecord(seq uint64, outcome Outcome) Record {
	return Record{
		Seq:       seq,
		Time:      time.Now(),
		EventType: "journal.testEvent",
		Outcome:   outcome,
		Matched:   1,
	}
}

func TestMemStore_AppendAndList(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for i := uint64(1); i <= 5; i++ {
		if err := s.Append(ctx, makeRecord(i, OutcomePosted)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := s.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d records, want 5", len(all))
	}

	after, err := s.List(ctx, 3, 0)
	if err != nil {
		t.Fatalf("List afterSeq: %v", err)
	}
	if len(after) != 2 || after[0].Seq != 4 {
		t.Fatalf("List(afterSeq=3) = %v, want seqs 4,5", after)
	}

	limited, err := s.List(ctx, 0, 2)
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(limited) != 2 || limited[1].Seq != 2 {
		t.Fatalf("List(limit=2) = %v, want seqs 1,2", limited)
	}
}

func TestMemStore_LatestSeq(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	seq, err := s.LatestSeq(ctx)
	if err != nil {
		t.Fatalf("LatestSeq: %v", err)
	}
	if seq != 0 {
		t.Fatalf("LatestSeq on empty store = %d, want 0", seq)
	}

	if err := s.Append(ctx, makeRecord(7, OutcomeDead)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	seq, err = s.LatestSeq(ctx)
	if err != nil {
		t.Fatalf("LatestSeq: %v", err)
	}
	if seq != 7 {
		t.Fatalf("LatestSeq = %d, want 7", seq)
	}
}
