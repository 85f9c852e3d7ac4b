package cli

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/wordharvest/internal/config"
	"github.com/runnerr0/wordharvest/internal/storage"
	"github.com/runnerr0/wordharvest/internal/wordstat"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	// Drain concurrently so large outputs cannot fill the pipe.
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(&buf, r)
		close(done)
	}()

	defer func() {
		os.Stdout = old
	}()
	fn()

	w.Close()
	<-done
	return buf.String()
}

// openTestStore creates a migrated in-memory store for testing.
func openTestStore(t *testing.T) (*storage.SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).Run())

	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, db
}

// writeTestConfig writes a config whose stores live in a temp dir and whose
// delays are zero. It returns the config path and the store directory.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	t.Setenv(config.TokenEnv, "")

	dir := t.TempDir()
	storeDir := filepath.Join(dir, "stores")
	path := filepath.Join(dir, "config.yaml")

	data := fmt.Sprintf(`api:
  token: ""
expansion:
  error_backoff_ms: 0
  pacing_ms: 0
  default_budget: 5
storage:
  dir: %q
logging:
  level: error
`, storeDir)
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	return path, storeDir
}

// fakeLookuper answers from a fixed table. Unknown phrases get an empty
// response; phrases in failing always fail.
type fakeLookuper struct {
	mu        sync.Mutex
	responses map[string][]wordstat.Phrase
	failing   map[string]bool
	calls     []string
}

func (f *fakeLookuper) Lookup(ctx context.Context, phrase string, region *int) ([]wordstat.Phrase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, phrase)
	if f.failing[phrase] {
		return nil, &wordstat.LookupError{Phrase: phrase, StatusCode: 503}
	}
	return f.responses[phrase], nil
}

// quotaLookuper also reports a remaining quota.
type quotaLookuper struct {
	fakeLookuper
	remaining int
	err       error
}

func (q *quotaLookuper) UserInfo(ctx context.Context) (int, error) {
	return q.remaining, q.err
}

func shoesLookuper() *fakeLookuper {
	return &fakeLookuper{
		responses: map[string][]wordstat.Phrase{
			"shoes": {
				{Phrase: "shoes", Count: 500},
				{Phrase: "running shoes", Count: 300},
				{Phrase: "shoe laces", Count: 50},
			},
		},
	}
}
