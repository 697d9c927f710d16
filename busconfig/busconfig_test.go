package busconfig_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldline/evbus"
	"github.com/fieldline/evbus/busconfig"
	"github.com/fieldline/evbus/journal"
)

func TestParse_Defaults(t *testing.T) {
	s, err := busconfig.Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Dispatcher != "" || s.Executor.Kind != "" || s.Journal.Kind != "" {
		t.Errorf("empty settings should parse to zero values, got %+v", s)
	}
}

func TestParse_FullDocument(t *testing.T) {
	doc := `
dispatcher: direct
executor:
  kind: pool
  workers: 8
  queue_size: 128
manual_cleanup: true
cleanup_schedule: "@every 1m"
marker_prefix: Handle
journal:
  kind: sqlite
  dsn: /tmp/bus.db
  retention_age: 72h
  retention_count: 10000
`
	s, err := busconfig.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Dispatcher != "direct" {
		t.Errorf("Dispatcher = %q", s.Dispatcher)
	}
	if s.Executor.Kind != "pool" || s.Executor.Workers != 8 || s.Executor.QueueSize != 128 {
		t.Errorf("Executor = %+v", s.Executor)
	}
	if !s.ManualCleanup || s.CleanupSchedule != "@every 1m" || s.MarkerPrefix != "Handle" {
		t.Errorf("cleanup settings = %+v", s)
	}
	if s.Journal.Kind != "sqlite" || s.Journal.DSN != "/tmp/bus.db" ||
		s.Journal.RetentionAge != "72h" || s.Journal.RetentionCount != 10000 {
		t.Errorf("Journal = %+v", s.Journal)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown dispatcher", "dispatcher: fanout", "unknown dispatcher"},
		{"unknown executor", "executor:\n  kind: forkjoin", "unknown executor"},
		{"unknown journal", "journal:\n  kind: kafka", "unknown journal"},
		{"sqlite without dsn", "journal:\n  kind: sqlite", "requires a dsn"},
		{"bad retention age", "journal:\n  kind: memory\n  retention_age: soon", "retention_age"},
		{"malformed yaml", "dispatcher: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := busconfig.Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := busconfig.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.yaml")
	if err := os.WriteFile(path, []byte("dispatcher: queued\n"), 0o600); err != nil {
		t.Fatalf("writing settings: %v", err)
	}
	s, err := busconfig.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Dispatcher != "queued" {
		t.Errorf("Dispatcher = %q, want queued", s.Dispatcher)
	}
}

func TestBuild_MemoryJournalRecordsTraffic(t *testing.T) {
	s, err := busconfig.Parse([]byte("journal:\n  kind: memory\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rt, err := s.Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if rt.Bus == nil {
		t.Fatal("Build returned a nil bus")
	}
	if rt.Journal == nil {
		t.Fatal("memory journal settings should produce a store")
	}

	h, err := evbus.Subscribe(rt.Bus, func(string) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer h.Unsubscribe()

	if err := rt.Bus.Post("hello"); err != nil {
		t.Fatalf("Post: %v", err)
	}

	records, err := rt.Journal.List(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 journal record, got %d", len(records))
	}
	if records[0].Outcome != journal.OutcomePosted {
		t.Errorf("Outcome = %q, want %q", records[0].Outcome, journal.OutcomePosted)
	}
}

func TestBuild_SQLiteJournal(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "journal.db")
	s, err := busconfig.Parse([]byte("journal:\n  kind: sqlite\n  dsn: " + dsn + "\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rt, err := s.Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if err := rt.Bus.Post(42); err != nil {
		t.Fatalf("Post: %v", err)
	}

	records, err := rt.Journal.List(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != journal.OutcomeDead {
		t.Errorf("records = %+v, want one dead record", records)
	}
}

func TestBuild_ScheduledCleanup(t *testing.T) {
	s, err := busconfig.Parse([]byte("manual_cleanup: true\ncleanup_schedule: \"@every 1h\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rt, err := s.Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rt.Janitor == nil {
		t.Fatal("expected a janitor when cleanup_schedule is set")
	}
	if err := rt.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestBuild_BadSchedule(t *testing.T) {
	s := busconfig.Settings{CleanupSchedule: "not a cron line"}
	if _, err := s.Build(nil); err == nil {
		t.Fatal("expected an error for a malformed schedule")
	}
}
