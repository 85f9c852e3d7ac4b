package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store defines the durable frontier operations.
type Store interface {
	RecordObservation(ctx context.Context, phrase string, count int64, processed bool) (bool, error)
	MarkProcessed(ctx context.Context, phrase string) error
	CommitSeed(ctx context.Context, seed string, count int64, neighbors []Observation) ([]string, error)
	CommitLookup(ctx context.Context, phrase string, neighbors []Observation) ([]string, error)
	PhraseStatus(ctx context.Context, phrase string) (Status, error)
	ListPending(ctx context.Context) ([]string, error)
	AllRecords(ctx context.Context) ([]Record, error)
	Count(ctx context.Context) (int64, error)
	BeginRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, id string, completedCalls int, reason string) error
	GetStats(ctx context.Context) (*Stats, error)
	PurgeAll(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	insertResult  *sql.Stmt
	insertQueue   *sql.Stmt
	markProcessed *sql.Stmt
	getStatus     *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertResult, err = s.db.Prepare(`
		INSERT OR IGNORE INTO results (phrase, count) VALUES (?, ?)
	`)
	if err != nil {
		return err
	}

	s.insertQueue, err = s.db.Prepare(`
		INSERT OR IGNORE INTO queue (phrase, status, processed_at) VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.markProcessed, err = s.db.Prepare(`
		UPDATE queue SET status = 'PROCESSED', processed_at = COALESCE(processed_at, ?)
		WHERE phrase = ?
	`)
	if err != nil {
		return err
	}

	s.getStatus, err = s.db.Prepare(`SELECT status FROM queue WHERE phrase = ?`)
	if err != nil {
		return err
	}

	return nil
}

// withTx runs fn inside a transaction and commits it. Any error rolls the
// whole unit back.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// record inserts the phrase into results and queue unless it is already
// known. It reports whether a new frontier entry was created. Existing
// counts and statuses are never touched.
func (s *SQLiteStore) record(ctx context.Context, tx *sql.Tx, phrase string, count int64, processed bool) (bool, error) {
	phrase = NormalizePhrase(phrase)
	if phrase == "" {
		return false, ErrEmptyPhrase
	}

	if _, err := tx.StmtContext(ctx, s.insertResult).ExecContext(ctx, phrase, count); err != nil {
		return false, fmt.Errorf("insert result %q: %w", phrase, err)
	}

	status := StatusPending
	var processedAt any
	if processed {
		status = StatusProcessed
		processedAt = time.Now().UTC().Format(time.RFC3339)
	}

	res, err := tx.StmtContext(ctx, s.insertQueue).ExecContext(ctx, phrase, string(status), processedAt)
	if err != nil {
		return false, fmt.Errorf("insert queue entry %q: %w", phrase, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// mark transitions a frontier entry to PROCESSED. Marking an already
// processed entry is a no-op.
func (s *SQLiteStore) mark(ctx context.Context, tx *sql.Tx, phrase string) error {
	phrase = NormalizePhrase(phrase)
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := tx.StmtContext(ctx, s.markProcessed).ExecContext(ctx, now, phrase)
	if err != nil {
		return fmt.Errorf("mark processed %q: %w", phrase, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("mark processed %q: %w", phrase, ErrPhraseNotFound)
	}
	return nil
}

// recordAll records every neighbor as pending and returns the phrases that
// were new, in input order.
func (s *SQLiteStore) recordAll(ctx context.Context, tx *sql.Tx, neighbors []Observation) ([]string, error) {
	var added []string
	for _, o := range neighbors {
		created, err := s.record(ctx, tx, o.Phrase, o.Count, false)
		if errors.Is(err, ErrEmptyPhrase) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if created {
			added = append(added, NormalizePhrase(o.Phrase))
		}
	}
	return added, nil
}

// RecordObservation creates the phrase record and its frontier entry if the
// phrase is unknown. It is safe to call repeatedly: the first count wins and
// a PROCESSED entry is never reverted. Reports whether the phrase was new.
func (s *SQLiteStore) RecordObservation(ctx context.Context, phrase string, count int64, processed bool) (bool, error) {
	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = s.record(ctx, tx, phrase, count, processed)
		return err
	})
	return created, err
}

// MarkProcessed transitions a frontier entry from PENDING to PROCESSED.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, phrase string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.mark(ctx, tx, phrase)
	})
}

// CommitSeed stores the seed as PROCESSED with its own count and records its
// neighbors as PENDING, all in one transaction. Returns the newly discovered
// neighbors in response order.
func (s *SQLiteStore) CommitSeed(ctx context.Context, seed string, count int64, neighbors []Observation) ([]string, error) {
	var added []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.record(ctx, tx, seed, count, true); err != nil {
			return err
		}
		// The seed may already exist from an earlier exhausted run.
		if err := s.mark(ctx, tx, seed); err != nil {
			return err
		}

		var err error
		added, err = s.recordAll(ctx, tx, neighbors)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("commit seed %q: %w", seed, err)
	}
	return added, nil
}

// CommitLookup merges the neighbors of phrase and marks phrase PROCESSED in
// one transaction, so a crash leaves either both or neither. Returns the
// newly discovered neighbors in response order.
func (s *SQLiteStore) CommitLookup(ctx context.Context, phrase string, neighbors []Observation) ([]string, error) {
	var added []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		added, err = s.recordAll(ctx, tx, neighbors)
		if err != nil {
			return err
		}
		return s.mark(ctx, tx, phrase)
	})
	if err != nil {
		return nil, fmt.Errorf("commit lookup %q: %w", phrase, err)
	}
	return added, nil
}

// PhraseStatus returns the frontier status of a phrase.
func (s *SQLiteStore) PhraseStatus(ctx context.Context, phrase string) (Status, error) {
	var status string
	err := s.getStatus.QueryRowContext(ctx, NormalizePhrase(phrase)).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("phrase %q: %w", phrase, ErrPhraseNotFound)
		}
		return "", fmt.Errorf("get status: %w", err)
	}
	return Status(status), nil
}

// ListPending returns every PENDING phrase in discovery order.
func (s *SQLiteStore) ListPending(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT phrase FROM queue WHERE status = 'PENDING' ORDER BY rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	pending := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		pending = append(pending, p)
	}

	return pending, rows.Err()
}

// AllRecords returns every phrase ordered by count descending. Equal counts
// are ordered by phrase.
func (s *SQLiteStore) AllRecords(ctx context.Context) ([]Record, error) {
	return s.scanRecords(ctx, "SELECT phrase, count FROM results ORDER BY count DESC, phrase ASC")
}

// scanRecords executes a query and scans (phrase, count) rows.
func (s *SQLiteStore) scanRecords(ctx context.Context, query string, args ...interface{}) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Phrase, &r.Count); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// Count returns the number of distinct phrases recorded.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM results").Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

// BeginRun journals the start of a run. The run's ID and StartedAt are
// populated automatically.
func (s *SQLiteStore) BeginRun(ctx context.Context, run *Run) error {
	run.ID = uuid.NewString()
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	var region any
	if run.Region != nil {
		region = *run.Region
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, seed, region, budget, started_at) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.Seed, region, run.Budget, run.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, completedCalls int, reason string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, completed_calls = ?, reason = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), completedCalls, reason, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// recentRuns returns the last limit runs, newest first.
func (s *SQLiteStore) recentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed, region, budget, started_at, finished_at, completed_calls, reason
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var region sql.NullInt64
		var startedStr string
		var finishedStr sql.NullString
		if err := rows.Scan(&r.ID, &r.Seed, &region, &r.Budget, &startedStr, &finishedStr, &r.CompletedCalls, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if region.Valid {
			v := int(region.Int64)
			r.Region = &v
		}
		r.StartedAt, _ = parseTimestamp(startedStr)
		if finishedStr.Valid {
			r.FinishedAt, _ = parseTimestamp(finishedStr.String)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// GetStats returns aggregate statistics about the store.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'PENDING' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'PROCESSED' THEN 1 ELSE 0 END), 0)
		FROM queue
	`).Scan(&stats.TotalPhrases, &stats.PendingPhrases, &stats.ProcessedPhrases)
	if err != nil {
		return nil, fmt.Errorf("count queue: %w", err)
	}

	stats.TopPhrases, err = s.scanRecords(ctx,
		"SELECT phrase, count FROM results ORDER BY count DESC, phrase ASC LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top phrases: %w", err)
	}

	stats.RecentRuns, err = s.recentRuns(ctx, 5)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}

	return stats, nil
}

// PurgeAll deletes every phrase, frontier entry and run.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM queue",
		"DELETE FROM results",
		"DELETE FROM runs",
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("purge (%s): %w", stmt, err)
			}
		}
		return nil
	})
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.insertResult, s.insertQueue, s.markProcessed, s.getStatus,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
