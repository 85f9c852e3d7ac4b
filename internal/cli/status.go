package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/wordharvest/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string       `json:"version"`
	Seed              string       `json:"seed"`
	DatabasePath      string       `json:"database_path"`
	DatabaseSizeBytes int64        `json:"database_size_bytes"`
	TotalPhrases      int64        `json:"total_phrases"`
	PendingPhrases    int64        `json:"pending_phrases"`
	ProcessedPhrases  int64        `json:"processed_phrases"`
	TopPhrases        []phraseJSON `json:"top_phrases"`
	RecentRuns        []runRowJSON `json:"recent_runs"`
}

type runRowJSON struct {
	ID             string `json:"id"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at,omitempty"`
	Region         *int   `json:"region,omitempty"`
	Budget         int    `json:"budget"`
	CompletedCalls int    `json:"completed_calls"`
	Reason         string `json:"reason,omitempty"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cfg, err := c.globals.loadConfig()
	if err != nil {
		return err
	}

	seed, err := c.Args.seedPhrase()
	if err != nil {
		return err
	}

	path, err := storePath(cfg, seed)
	if err != nil {
		return err
	}
	if !storeExists(path) {
		return fmt.Errorf("no store for %q (expected %s)", seed, path)
	}

	store, db, err := openStore(path, cfg.Storage.JournalMode)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(store, db, seed, path)
}

// executeWithStore runs status against a provided store and db (for testing).
func (c *StatusCommand) executeWithStore(store *storage.SQLiteStore, db *sql.DB, seed, dbPath string) error {
	ctx := context.Background()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbSize := getDatabaseSize(db, dbPath)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, seed, dbPath, dbSize)
	}
	return c.printStatusHuman(stats, seed, dbPath, dbSize)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, seed, dbPath string, dbSize int64) error {
	fmt.Println("Wordharvest Status")
	fmt.Println("==================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Seed:          %s\n", seed)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Phrases:       %s\n", formatNumber(stats.TotalPhrases))

	if stats.TotalPhrases > 0 {
		pct := float64(stats.ProcessedPhrases) / float64(stats.TotalPhrases) * 100
		fmt.Printf("Processed:     %s (%.1f%%)\n", formatNumber(stats.ProcessedPhrases), pct)
	} else {
		fmt.Printf("Processed:     %s\n", formatNumber(stats.ProcessedPhrases))
	}
	fmt.Printf("Pending:       %s\n", formatNumber(stats.PendingPhrases))

	if len(stats.TopPhrases) > 0 {
		fmt.Println()
		fmt.Println("Top Phrases:")
		for _, r := range stats.TopPhrases {
			fmt.Printf("  %-40s %s\n", r.Phrase, formatNumber(r.Count))
		}
	}

	if len(stats.RecentRuns) > 0 {
		fmt.Println()
		fmt.Println("Recent Runs:")
		for _, r := range stats.RecentRuns {
			reason := r.Reason
			if reason == "" {
				reason = "running"
			}
			fmt.Printf("  %s  %d/%d calls  %s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04"), r.CompletedCalls, r.Budget, reason)
		}
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, seed, dbPath string, dbSize int64) error {
	out := statusJSON{
		Version:           c.version,
		Seed:              seed,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: dbSize,
		TotalPhrases:      stats.TotalPhrases,
		PendingPhrases:    stats.PendingPhrases,
		ProcessedPhrases:  stats.ProcessedPhrases,
		TopPhrases:        make([]phraseJSON, len(stats.TopPhrases)),
		RecentRuns:        make([]runRowJSON, len(stats.RecentRuns)),
	}

	for i, r := range stats.TopPhrases {
		out.TopPhrases[i] = phraseJSON{Phrase: r.Phrase, Count: r.Count}
	}

	for i, r := range stats.RecentRuns {
		row := runRowJSON{
			ID:             r.ID,
			StartedAt:      r.StartedAt.UTC().Format(time.RFC3339),
			Region:         r.Region,
			Budget:         r.Budget,
			CompletedCalls: r.CompletedCalls,
			Reason:         r.Reason,
		}
		if !r.FinishedAt.IsZero() {
			row.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
		}
		out.RecentRuns[i] = row
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}
