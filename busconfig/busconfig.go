// Package busconfig builds event buses from declarative YAML settings:
// dispatcher and executor choice, cleanup policy, journaling, and an
// optional scheduled cleanup. It covers the common assembly cases; code
// that needs a custom dispatcher, observer, or typed root goes through
// evbus.New directly.
package busconfig

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fieldline/evbus"
	"github.com/fieldline/evbus/executor"
	"github.com/fieldline/evbus/janitor"
	"github.com/fieldline/evbus/journal"
)

// Settings is the YAML shape of a bus definition.
type Settings struct {
	// Dispatcher is "queued" (default) or "direct".
	Dispatcher string `yaml:"dispatcher"`

	// Executor selects how callbacks run.
	Executor ExecutorSettings `yaml:"executor"`

	// ManualCleanup disables eager registry purging.
	ManualCleanup bool `yaml:"manual_cleanup"`

	// CleanupSchedule is a cron expression for scheduled Cleanup passes
	// (empty = none). Only meaningful with manual_cleanup: true.
	CleanupSchedule string `yaml:"cleanup_schedule"`

	// MarkerPrefix overrides the subscriber method marker for Attach.
	MarkerPrefix string `yaml:"marker_prefix"`

	// Journal configures traffic recording.
	Journal JournalSettings `yaml:"journal"`
}

// ExecutorSettings selects and sizes the executor.
type ExecutorSettings struct {
	// Kind is "direct" (default), "serial", or "pool".
	Kind string `yaml:"kind"`

	// Workers applies to the pool executor.
	Workers int `yaml:"workers"`

	// QueueSize applies to serial and pool executors.
	QueueSize int `yaml:"queue_size"`
}

// JournalSettings configures the journal store.
type JournalSettings struct {
	// Kind is "none" (default), "memory", or "sqlite".
	Kind string `yaml:"kind"`

	// DSN is the SQLite connection string (sqlite only).
	DSN string `yaml:"dsn"`

	// RetentionAge prunes records older than this duration, e.g. "72h"
	// (sqlite only).
	RetentionAge string `yaml:"retention_age"`

	// RetentionCount keeps at most this many records (sqlite only).
	RetentionCount int `yaml:"retention_count"`
}

// Load reads and validates a settings file.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return Settings{}, fmt.Errorf("busconfig: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates settings from YAML bytes.
func Parse(data []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("busconfig: parsing: %w", err)
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	switch s.Dispatcher {
	case "", "queued", "direct":
	default:
		return fmt.Errorf("busconfig: unknown dispatcher %q", s.Dispatcher)
	}
	switch s.Executor.Kind {
	case "", "direct", "serial", "pool":
	default:
		return fmt.Errorf("busconfig: unknown executor %q", s.Executor.Kind)
	}
	switch s.Journal.Kind {
	case "", "none", "memory", "sqlite":
	default:
		return fmt.Errorf("busconfig: unknown journal %q", s.Journal.Kind)
	}
	if s.Journal.Kind == "sqlite" && s.Journal.DSN == "" {
		return fmt.Errorf("busconfig: sqlite journal requires a dsn")
	}
	if s.Journal.RetentionAge != "" {
		if _, err := time.ParseDuration(s.Journal.RetentionAge); err != nil {
			return fmt.Errorf("busconfig: bad retention_age: %w", err)
		}
	}
	return nil
}

// Runtime is an assembled bus plus the resources behind it.
type Runtime struct {
	Bus     *evbus.Bus[any]
	Journal journal.Store
	Janitor *janitor.Janitor

	closers []func() error
}

// Close stops the janitor and releases executors and stores.
func (r *Runtime) Close() error {
	if r.Janitor != nil {
		r.Janitor.Stop()
	}
	var firstErr error
	for _, c := range r.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Build assembles a Bus[any] and its supporting pieces from the settings.
// The returned Runtime owns the executor, journal store, and janitor;
// callers must Close it.
func (s Settings) Build(logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	var dispatcher evbus.Dispatcher
	if s.Dispatcher == "direct" {
		dispatcher = evbus.NewDirectDispatcher()
	}

	var exec evbus.Executor
	switch s.Executor.Kind {
	case "serial":
		se := executor.NewSerial(executor.SerialConfig{QueueSize: s.Executor.QueueSize})
		rt.closers = append(rt.closers, func() error { se.Close(); return nil })
		exec = se
	case "pool":
		pe := executor.NewPool(executor.PoolConfig{
			Workers:   s.Executor.Workers,
			QueueSize: s.Executor.QueueSize,
		})
		rt.closers = append(rt.closers, func() error { pe.Close(); return nil })
		exec = pe
	}

	var observer evbus.Observer
	switch s.Journal.Kind {
	case "memory":
		rt.Journal = journal.NewMemStore()
		observer = journal.NewRecorder(rt.Journal, logger)
	case "sqlite":
		var age time.Duration
		if s.Journal.RetentionAge != "" {
			age, _ = time.ParseDuration(s.Journal.RetentionAge)
		}
		store, err := journal.NewSQLiteStore(journal.SQLiteStoreConfig{
			DSN:            s.Journal.DSN,
			RetentionAge:   age,
			RetentionCount: s.Journal.RetentionCount,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, store.Close)
		rt.Journal = store
		observer = journal.NewRecorder(store, logger)
	}

	bus, err := evbus.New(evbus.Config[any]{
		Dispatcher:    dispatcher,
		Executor:      exec,
		ManualCleanup: s.ManualCleanup,
		MarkerPrefix:  s.MarkerPrefix,
		Observer:      observer,
		Logger:        logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Bus = bus

	if s.CleanupSchedule != "" {
		j, err := janitor.New(bus, s.CleanupSchedule, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		j.Start()
		rt.Janitor = j
	}

	return rt, nil
}
