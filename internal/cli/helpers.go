package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/wordharvest/internal/config"
	"github.com/runnerr0/wordharvest/internal/storage"
)

// loadConfig reads --config (or the default file, creating it on first use)
// and applies global overrides.
func (g *GlobalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g != nil && g.Config != "" {
		cfg, err = config.Load(g.Config)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, err
	}

	if g != nil && g.StoreDir != "" {
		cfg.Storage.Dir = g.StoreDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger. --verbose forces debug level.
func (g *GlobalFlags) newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	if g != nil && g.Verbose {
		cfg.Level = "debug"
	}
	return cfg.NewLogger(os.Stderr)
}

// seedPhrase joins the positional words into one normalized phrase.
func (a seedArgs) seedPhrase() (string, error) {
	seed := storage.NormalizePhrase(strings.Join(a.Phrase, " "))
	if seed == "" {
		return "", fmt.Errorf("a seed phrase is required")
	}
	return seed, nil
}

// storePath returns the database file that belongs to a seed phrase.
func storePath(cfg *config.Config, seed string) (string, error) {
	dir, err := config.ExpandPath(cfg.Storage.Dir)
	if err != nil {
		return "", err
	}
	name, err := storage.StoreName(seed)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// openStore opens the database at dbPath, runs migrations, and returns a
// ready-to-use store and the underlying *sql.DB.
func openStore(dbPath, journalMode string) (*storage.SQLiteStore, *sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create store directory: %w", err)
	}

	// Every lookup commit must survive a crash.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_synchronous=FULL&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	runner := storage.NewMigrationRunner(db).WithJournalMode(journalMode)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	return store, db, nil
}

// openSeedStore opens (creating if needed) the store of a seed phrase.
func openSeedStore(cfg *config.Config, seed string) (*storage.SQLiteStore, *sql.DB, string, error) {
	path, err := storePath(cfg, seed)
	if err != nil {
		return nil, nil, "", err
	}
	store, db, err := openStore(path, cfg.Storage.JournalMode)
	if err != nil {
		return nil, nil, "", err
	}
	return store, db, path, nil
}

// storeExists reports whether a seed already has a database file.
func storeExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var result strings.Builder
	if neg {
		result.WriteString("-")
	}
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
