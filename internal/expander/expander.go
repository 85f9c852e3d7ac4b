// Package expander runs the breadth-first keyword expansion: it pulls
// phrases off a FIFO frontier, looks each one up, merges the related
// phrases into the durable store and queues the new ones, within a budget
// of lookups per run.
package expander

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/runnerr0/wordharvest/internal/config"
	"github.com/runnerr0/wordharvest/internal/metrics"
	"github.com/runnerr0/wordharvest/internal/storage"
	"github.com/runnerr0/wordharvest/internal/wordstat"
)

var (
	// ErrSeedLookup is returned when the first lookup of a cold start fails.
	// Nothing is committed in that case.
	ErrSeedLookup = errors.New("seed lookup failed")

	ErrInvalidRequest = errors.New("invalid expansion request")
)

// State is a step of the expansion state machine. The halted states double
// as the terminal reason of a run.
type State string

const (
	StateInit            State = "init"
	StateSeeding         State = "seeding"
	StateExpanding       State = "expanding"
	StateHaltedBudget    State = "halted_budget"
	StateHaltedErrors    State = "halted_errors"
	StateHaltedExhausted State = "halted_exhausted"
)

// Journal reasons for runs that end without a terminal state.
const (
	reasonSeedFailed  = "seed_lookup_failed"
	reasonInterrupted = "interrupted"
	reasonFailed      = "failed"
)

// Lookuper performs one remote lookup.
type Lookuper interface {
	Lookup(ctx context.Context, phrase string, region *int) ([]wordstat.Phrase, error)
}

// Store is the subset of the durable frontier the engine drives.
type Store interface {
	CommitSeed(ctx context.Context, seed string, count int64, neighbors []storage.Observation) ([]string, error)
	CommitLookup(ctx context.Context, phrase string, neighbors []storage.Observation) ([]string, error)
	PhraseStatus(ctx context.Context, phrase string) (storage.Status, error)
	ListPending(ctx context.Context) ([]string, error)
	AllRecords(ctx context.Context) ([]storage.Record, error)
	Count(ctx context.Context) (int64, error)
	BeginRun(ctx context.Context, run *storage.Run) error
	FinishRun(ctx context.Context, id string, completedCalls int, reason string) error
}

// Config holds the fixed parameters of the engine.
type Config struct {
	// MaxErrors is the consecutive-failure count that halts a run.
	MaxErrors int
	// ErrorBackoff is the pause after a failed lookup.
	ErrorBackoff time.Duration
	// Pacing is the minimum spacing between two lookups.
	Pacing time.Duration
}

// ConfigFrom converts the file configuration.
func ConfigFrom(c config.ExpansionConfig) Config {
	return Config{
		MaxErrors:    c.MaxErrors,
		ErrorBackoff: c.ErrorBackoff(),
		Pacing:       c.Pacing(),
	}
}

// Request describes one run.
type Request struct {
	Seed   string
	Region *int
	Budget int
}

// Result is what a run hands back to its caller.
type Result struct {
	RunID          string
	Reason         State
	Resumed        bool
	CompletedCalls int
	Discovered     int
	Records        []storage.Record
}

// Attempt is reported after every finished lookup attempt.
type Attempt struct {
	Phrase            string
	Call              int
	Budget            int
	Err               error
	Discovered        int
	Queued            int
	TotalPhrases      int64
	ConsecutiveErrors int
}

// Progress receives a notification after every lookup attempt.
type Progress interface {
	Attempted(a Attempt)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(a Attempt)

func (f ProgressFunc) Attempted(a Attempt) { f(a) }

// Engine runs expansions. Lookups are strictly sequential.
type Engine struct {
	store    Store
	client   Lookuper
	cfg      Config
	logger   *slog.Logger
	progress Progress
	metrics  *metrics.Recorder
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes an Engine.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithProgress(p Progress) Option {
	return func(e *Engine) { e.progress = p }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine.
func New(store Store, client Lookuper, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		client: client,
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.MaxErrors <= 0 {
		e.cfg.MaxErrors = 1
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Engine) newLimiter() *rate.Limiter {
	if e.cfg.Pacing <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(e.cfg.Pacing), 1)
}

// Validate checks a request before any lookup is made.
func (r Request) Validate() error {
	if storage.NormalizePhrase(r.Seed) == "" {
		return fmt.Errorf("%w: seed phrase is empty", ErrInvalidRequest)
	}
	if r.Budget < 1 {
		return fmt.Errorf("%w: budget must be at least 1, got %d", ErrInvalidRequest, r.Budget)
	}
	if r.Region != nil && *r.Region <= 0 {
		return fmt.Errorf("%w: region must be positive, got %d", ErrInvalidRequest, *r.Region)
	}
	return nil
}
