package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/runnerr0/wordharvest/internal/storage"
)

// recordLister is the store subset export needs.
type recordLister interface {
	AllRecords(ctx context.Context) ([]storage.Record, error)
}

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
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

	return c.executeWithStore(context.Background(), store)
}

// executeWithStore writes the export from a provided store (for testing).
func (c *ExportCommand) executeWithStore(ctx context.Context, store recordLister) error {
	records, err := store.AllRecords(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	var w io.Writer = os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch c.Format {
	case "json":
		err = writeJSON(w, records)
	default:
		err = writeCSV(w, records)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if c.Output != "" {
		fmt.Fprintf(os.Stderr, "Exported %s phrases to %s\n", formatNumber(int64(len(records))), c.Output)
	}
	return nil
}

func writeCSV(w io.Writer, records []storage.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"phrase", "count"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Phrase, strconv.FormatInt(r.Count, 10)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, records []storage.Record) error {
	out := make([]phraseJSON, len(records))
	for i, r := range records {
		out[i] = phraseJSON{Phrase: r.Phrase, Count: r.Count}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
