package storage

import "database/sql"

// migrateV001 creates the frontier schema: discovered phrases, their queue
// status and the run journal. Every statement uses IF NOT EXISTS for
// idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS results (
			phrase     TEXT PRIMARY KEY,
			count      INTEGER NOT NULL DEFAULT 0,
			first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// rowid order is discovery order; ListPending relies on it.
		`CREATE TABLE IF NOT EXISTS queue (
			phrase       TEXT PRIMARY KEY REFERENCES results(phrase) ON DELETE CASCADE,
			status       TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'PROCESSED')),
			processed_at DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			seed            TEXT NOT NULL,
			region          INTEGER,
			budget          INTEGER NOT NULL,
			started_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at     DATETIME,
			completed_calls INTEGER NOT NULL DEFAULT 0,
			reason          TEXT NOT NULL DEFAULT ''
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_queue_status  ON queue(status)`,
		`CREATE INDEX IF NOT EXISTS idx_results_count ON results(count DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started  ON runs(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
