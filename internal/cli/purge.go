package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/wordharvest/internal/storage"
)

// setDB allows tests to inject a database connection.
func (c *PurgeCommand) setDB(db *sql.DB) {
	c.db = db
}

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	seed, err := c.Args.seedPhrase()
	if err != nil {
		return err
	}

	var (
		path  string
		store *storage.SQLiteStore
	)
	db := c.db
	if db == nil {
		cfg, err := c.globals.loadConfig()
		if err != nil {
			return err
		}
		path, err = storePath(cfg, seed)
		if err != nil {
			return err
		}
		if !storeExists(path) {
			return fmt.Errorf("no store for %q (expected %s)", seed, path)
		}
		store, db, err = openStore(path, cfg.Storage.JournalMode)
		if err != nil {
			return err
		}
		defer db.Close()
	} else {
		store, err = storage.NewSQLiteStore(db)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
	}

	if !c.Force {
		if err := confirmPurge(os.Stdin, seed); err != nil {
			store.Close()
			return err
		}
	}

	err = store.PurgeAll(context.Background())
	store.Close()
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	removed := false
	if path != "" && !c.KeepFile {
		if err := db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
		if err := removeStoreFiles(path); err != nil {
			return err
		}
		removed = true
	}

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"purged":       true,
			"seed":         seed,
			"file_removed": removed,
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out)
	}

	fmt.Printf("Purged all data for %q.\n", seed)
	if removed {
		fmt.Printf("Removed %s\n", path)
	}
	return nil
}

func confirmPurge(in io.Reader, seed string) error {
	fmt.Printf("⚠ WARNING: This will permanently delete every phrase collected for %q.\n", seed)
	fmt.Println("  - All phrases and counts")
	fmt.Println("  - All pending work")
	fmt.Println("  - The run history")
	fmt.Println()
	fmt.Println("This action cannot be undone.")
	fmt.Println()
	fmt.Print(`Type "PURGE" to confirm: `)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return fmt.Errorf("aborted: no input received")
	}
	if strings.TrimSpace(scanner.Text()) != "PURGE" {
		return fmt.Errorf("aborted: confirmation text did not match")
	}
	return nil
}

// removeStoreFiles deletes the database file and its WAL companions.
func removeStoreFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}
