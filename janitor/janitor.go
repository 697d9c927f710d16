// Package janitor runs scheduled cleanup passes against an event bus
// that was configured for manual cleanup. On a self-cleaning bus a pass
// is a no-op, so attaching a janitor there is harmless but pointless.
package janitor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Target is the cleanup surface the janitor drives. *evbus.Bus[E]
// satisfies it.
type Target interface {
	Cleanup()
}

// Janitor schedules Cleanup calls on a cron schedule.
type Janitor struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a janitor that runs target.Cleanup on the given cron
// schedule (standard five-field cron syntax, or descriptors like
// "@every 5m"). Call Start to begin.
func New(target Target, schedule string, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		start := time.Now()
		target.Cleanup()
		logger.Debug("janitor: cleanup pass", "elapsed", time.Since(start))
	})
	if err != nil {
		return nil, fmt.Errorf("janitor: bad schedule %q: %w", schedule, err)
	}

	return &Janitor{cron: c, logger: logger}, nil
}

// Start begins scheduling. Safe to call once.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for an in-flight pass to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}
