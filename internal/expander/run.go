package expander

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/runnerr0/wordharvest/internal/storage"
	"github.com/runnerr0/wordharvest/internal/wordstat"
)

// frontier is the in-memory FIFO of pending phrases for one run. It is
// always rebuilt from the store's PENDING set.
type frontier struct {
	items  []string
	queued map[string]struct{}
}

func newFrontier(phrases []string) *frontier {
	f := &frontier{queued: make(map[string]struct{}, len(phrases))}
	for _, p := range phrases {
		f.push(p)
	}
	return f
}

func (f *frontier) push(phrase string) {
	if _, ok := f.queued[phrase]; ok {
		return
	}
	f.queued[phrase] = struct{}{}
	f.items = append(f.items, phrase)
}

func (f *frontier) pop() string {
	p := f.items[0]
	f.items[0] = ""
	f.items = f.items[1:]
	delete(f.queued, p)
	return p
}

func (f *frontier) len() int { return len(f.items) }

// run carries the mutable state of one expansion.
type run struct {
	req               Request
	seed              string
	id                string
	limiter           *rate.Limiter
	queue             *frontier
	calls             int
	consecutiveErrors int
	discovered        int
	logger            *slog.Logger
}

// Run executes one expansion and returns the sorted records with the
// terminal reason. A cold start whose seed lookup fails returns
// ErrSeedLookup. Context cancellation stops the run between steps; every
// committed step stays resumable.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		req:     req,
		seed:    storage.NormalizePhrase(req.Seed),
		limiter: e.newLimiter(),
	}

	journal := &storage.Run{Seed: r.seed, Region: req.Region, Budget: req.Budget}
	if err := e.store.BeginRun(ctx, journal); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	r.id = journal.ID
	r.logger = e.logger.With("run", r.id, "seed", r.seed)

	reason, resumed, err := e.execute(ctx, r)
	if err != nil {
		e.finish(ctx, r, failureReason(err))
		return nil, err
	}

	records, err := e.store.AllRecords(ctx)
	if err != nil {
		e.finish(ctx, r, reasonFailed)
		return nil, fmt.Errorf("load records: %w", err)
	}

	e.finish(ctx, r, string(reason))
	r.logger.Info("run finished",
		"reason", reason, "calls", r.calls, "budget", req.Budget,
		"discovered", r.discovered, "phrases", len(records), "queued", r.queue.len())

	return &Result{
		RunID:          r.id,
		Reason:         reason,
		Resumed:        resumed,
		CompletedCalls: r.calls,
		Discovered:     r.discovered,
		Records:        records,
	}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSeedLookup):
		return reasonSeedFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return reasonInterrupted
	default:
		return reasonFailed
	}
}

// finish journals the outcome. The journal is informational, so a failure
// here is logged rather than returned.
func (e *Engine) finish(ctx context.Context, r *run, reason string) {
	e.metrics.ObserveRun(reason)
	if err := e.store.FinishRun(context.WithoutCancel(ctx), r.id, r.calls, reason); err != nil {
		r.logger.Warn("journal run outcome", "error", err)
	}
}

// execute walks INIT → (SEEDING) → EXPANDING → halted.
func (e *Engine) execute(ctx context.Context, r *run) (State, bool, error) {
	r.logger.Debug("state", "state", StateInit)

	pending, err := e.store.ListPending(ctx)
	if err != nil {
		return "", false, fmt.Errorf("load pending: %w", err)
	}
	r.queue = newFrontier(pending)

	resumed := r.queue.len() > 0
	if resumed {
		r.logger.Info("resuming", "pending", r.queue.len())
	} else {
		r.logger.Debug("state", "state", StateSeeding)
		if err := e.seed(ctx, r); err != nil {
			return "", false, err
		}
	}

	r.logger.Debug("state", "state", StateExpanding)
	reason, err := e.expand(ctx, r)
	return reason, resumed, err
}

// seed performs the cold-start lookup of the seed phrase.
func (e *Engine) seed(ctx context.Context, r *run) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	phrases, err := e.client.Lookup(ctx, r.seed, r.req.Region)
	r.calls++
	e.metrics.ObserveLookup(err == nil)
	if err != nil {
		e.notify(r, r.seed, err, 0)
		r.logger.Error("seed lookup failed", "error", err)
		return fmt.Errorf("%w: %w", ErrSeedLookup, err)
	}

	added, err := e.store.CommitSeed(ctx, r.seed, seedCount(r.seed, phrases), observations(phrases))
	if err != nil {
		return err
	}
	e.enqueue(r, added)
	e.notify(r, r.seed, nil, len(added))
	return nil
}

// expand runs the EXPANDING loop until the budget, the frontier or the
// error threshold is exhausted.
func (e *Engine) expand(ctx context.Context, r *run) (State, error) {
	for r.calls < r.req.Budget && r.queue.len() > 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		phrase := r.queue.pop()
		e.metrics.SetFrontier(r.queue.len())

		status, err := e.store.PhraseStatus(ctx, phrase)
		if err != nil {
			return "", fmt.Errorf("check %q: %w", phrase, err)
		}
		if status == storage.StatusProcessed {
			r.logger.Debug("skip processed", "phrase", phrase)
			e.metrics.IncSkipped()
			continue
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}

		phrases, err := e.client.Lookup(ctx, phrase, r.req.Region)
		r.calls++
		e.metrics.ObserveLookup(err == nil)

		if err != nil {
			r.consecutiveErrors++
			r.queue.push(phrase)
			e.notify(r, phrase, err, 0)
			r.logger.Warn("lookup failed, phrase stays pending",
				"phrase", phrase, "consecutive_errors", r.consecutiveErrors,
				"max_errors", e.cfg.MaxErrors, "error", err)

			if r.consecutiveErrors >= e.cfg.MaxErrors {
				return StateHaltedErrors, nil
			}
			if err := e.sleep(ctx, e.cfg.ErrorBackoff); err != nil {
				return "", err
			}
			continue
		}

		r.consecutiveErrors = 0
		added, err := e.store.CommitLookup(ctx, phrase, observations(phrases))
		if err != nil {
			return "", err
		}
		e.enqueue(r, added)
		e.notify(r, phrase, nil, len(added))
	}

	if r.calls >= r.req.Budget {
		return StateHaltedBudget, nil
	}
	return StateHaltedExhausted, nil
}

func (e *Engine) enqueue(r *run, phrases []string) {
	for _, p := range phrases {
		r.queue.push(p)
	}
	r.discovered += len(phrases)
	e.metrics.AddDiscovered(len(phrases))
	e.metrics.SetFrontier(r.queue.len())
}

func (e *Engine) notify(r *run, phrase string, lookupErr error, added int) {
	if e.progress == nil {
		return
	}

	// The count is only for display; a failure here must not stop the run.
	total, err := e.store.Count(context.Background())
	if err != nil {
		r.logger.Debug("count phrases", "error", err)
	}

	e.progress.Attempted(Attempt{
		Phrase:            phrase,
		Call:              r.calls,
		Budget:            r.req.Budget,
		Err:               lookupErr,
		Discovered:        added,
		Queued:            r.queue.len(),
		TotalPhrases:      total,
		ConsecutiveErrors: r.consecutiveErrors,
	})
}

// seedCount returns the count the lookup reported for the seed itself, or 0.
func seedCount(seed string, phrases []wordstat.Phrase) int64 {
	for _, p := range phrases {
		if storage.NormalizePhrase(p.Phrase) == seed {
			return p.Count
		}
	}
	return 0
}

func observations(phrases []wordstat.Phrase) []storage.Observation {
	obs := make([]storage.Observation, len(phrases))
	for i, p := range phrases {
		obs[i] = storage.Observation{Phrase: p.Phrase, Count: p.Count}
	}
	return obs
}
