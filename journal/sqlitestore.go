package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStoreConfig configures the SQLite journal store.
type SQLiteStoreConfig struct {
	// DSN is the database connection string.
	DSN string

	// RetentionAge deletes records older than this duration (0 = no age
	// pruning).
	RetentionAge time.Duration

	// RetentionCount keeps at most this many records (0 = no count
	// pruning).
	RetentionCount int

	// PruneInterval is how often to run pruning (default 1 hour).
	PruneInterval time.Duration
}

// SQLiteStore persists journal records to a SQLite database. It satisfies
// the Store interface and runs in WAL mode for concurrent read access,
// with an optional background pruner goroutine.
type SQLiteStore struct {
	db   *sql.DB
	cfg  SQLiteStoreConfig
	stop chan struct{}
	done chan struct{}
}

// NewSQLiteStore opens (or creates) a SQLite journal store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = time.Hour
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	if cfg.RetentionAge > 0 || cfg.RetentionCount > 0 {
		go s.pruneLoop()
	} else {
		close(s.done)
	}

	return s, nil
}

// Append stores a record in the database.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (seq, time, event_type, outcome, matched, payload, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq,
		rec.Time.Format(time.RFC3339Nano),
		rec.EventType,
		string(rec.Outcome),
		rec.Matched,
		rec.Payload,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}

// List returns records with Seq > afterSeq, oldest first.
func (s *SQLiteStore) List(ctx context.Context, afterSeq uint64, limit int) ([]Record, error) {
	query := `SELECT seq, time, event_type, outcome, matched, payload, error
	           FROM records WHERE seq > ? ORDER BY seq ASC, id ASC`
	args := []any{afterSeq}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// LatestSeq returns the highest stored Seq (0 if empty).
func (s *SQLiteStore) LatestSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM records`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("journal: latest seq: %w", err)
	}
	if !seq.Valid || seq.Int64 < 0 {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// EventTypes returns distinct event types seen in the journal.
func (s *SQLiteStore) EventTypes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT event_type FROM records ORDER BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("journal: event types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("journal: scan event type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// Close stops the background pruner and closes the database connection.
func (s *SQLiteStore) Close() error {
	select {
	case <-s.stop:
		// Already closed.
	default:
		close(s.stop)
	}
	<-s.done
	return s.db.Close()
}

// Prune runs a single pruning pass. Exported for testing.
func (s *SQLiteStore) Prune(ctx context.Context) error {
	if s.cfg.RetentionAge > 0 {
		cutoff := time.Now().Add(-s.cfg.RetentionAge).Format(time.RFC3339Nano)
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM records WHERE time < ?`, cutoff,
		); err != nil {
			return fmt.Errorf("journal: prune by age: %w", err)
		}
	}

	if s.cfg.RetentionCount > 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM records WHERE id NOT IN (
				SELECT id FROM records ORDER BY seq DESC, id DESC LIMIT ?
			)`, s.cfg.RetentionCount,
		); err != nil {
			return fmt.Errorf("journal: prune by count: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) pruneLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = s.Prune(context.Background())
		}
	}
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec     Record
			outcome string
			timeStr string
		)
		err := rows.Scan(
			&rec.Seq,
			&timeStr,
			&rec.EventType,
			&outcome,
			&rec.Matched,
			&rec.Payload,
			&rec.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("journal: scan record: %w", err)
		}

		rec.Outcome = Outcome(outcome)

		t, err := time.Parse(time.RFC3339Nano, timeStr)
		if err != nil {
			return nil, fmt.Errorf("journal: parse time %q: %w", timeStr, err)
		}
		rec.Time = t

		records = append(records, rec)
	}
	return records, rows.Err()
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)
