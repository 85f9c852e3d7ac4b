package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runnerr0/wordharvest/internal/config"
	"github.com/runnerr0/wordharvest/internal/expander"
	"github.com/runnerr0/wordharvest/internal/metrics"
	"github.com/runnerr0/wordharvest/internal/storage"
	"github.com/runnerr0/wordharvest/internal/wordstat"
)

// runJSON is the JSON output structure for the run command.
type runJSON struct {
	Version        string       `json:"version"`
	RunID          string       `json:"run_id"`
	Seed           string       `json:"seed"`
	StorePath      string       `json:"store_path"`
	Reason         string       `json:"reason"`
	Resumed        bool         `json:"resumed"`
	CompletedCalls int          `json:"completed_calls"`
	Budget         int          `json:"budget"`
	Discovered     int          `json:"discovered"`
	TotalPhrases   int          `json:"total_phrases"`
	TopPhrases     []phraseJSON `json:"top_phrases"`
}

type phraseJSON struct {
	Phrase string `json:"phrase"`
	Count  int64  `json:"count"`
}

// quotaChecker is implemented by lookupers that can report the remaining quota.
type quotaChecker interface {
	UserInfo(ctx context.Context) (int, error)
}

// Execute implements the go-flags Commander interface for RunCommand.
func (c *RunCommand) Execute(args []string) error {
	cfg, err := c.globals.loadConfig()
	if err != nil {
		return err
	}

	logger, err := c.globals.newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	seed, err := c.Args.seedPhrase()
	if err != nil {
		return err
	}

	lookuper := c.lookuper
	if lookuper == nil {
		if cfg.API.Token == "" {
			return fmt.Errorf("no API token: set api.token in the config or %s", config.TokenEnv)
		}
		client, err := wordstat.NewClient(cfg.API, wordstat.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("create api client: %w", err)
		}
		lookuper = client
	}

	store, db, path, err := openSeedStore(cfg, seed)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.executeWith(ctx, cfg, store, path, seed, lookuper, logger)
}

// executeWith runs one expansion against a provided store (for testing).
func (c *RunCommand) executeWith(ctx context.Context, cfg *config.Config, store expander.Store, path, seed string, lookuper expander.Lookuper, logger *slog.Logger) error {
	req := expander.Request{
		Seed:   seed,
		Region: c.region(cfg.Expansion),
		Budget: c.budget(cfg.Expansion),
	}

	jsonOut := c.globals != nil && c.globals.JSON

	if q, ok := lookuper.(quotaChecker); ok {
		if remaining, err := q.UserInfo(ctx); err != nil {
			logger.Warn("quota check failed", "error", err)
		} else if !jsonOut {
			fmt.Fprintf(os.Stderr, "Remaining daily quota: %s\n", formatNumber(int64(remaining)))
		}
	}

	recorder := metrics.New()
	opts := []expander.Option{
		expander.WithLogger(logger),
		expander.WithMetrics(recorder),
	}
	if !c.Quiet {
		opts = append(opts, expander.WithProgress(newProgressPrinter(os.Stderr)))
	}

	engine := expander.New(store, lookuper, expander.ConfigFrom(cfg.Expansion), opts...)
	result, runErr := engine.Run(ctx, req)

	if err := c.writeMetrics(cfg, recorder); err != nil {
		logger.Warn("write metrics", "error", err)
	}

	if runErr != nil {
		switch {
		case errors.Is(runErr, expander.ErrSeedLookup):
			return fmt.Errorf("%w; nothing was saved", runErr)
		case errors.Is(runErr, context.Canceled):
			return fmt.Errorf("interrupted; run again with the same phrase to resume")
		}
		return runErr
	}

	if jsonOut {
		return c.printRunJSON(seed, path, req.Budget, result)
	}
	c.printRunHuman(path, req.Budget, result)
	return nil
}

// region resolves --region / --no-region against the configured default.
func (c *RunCommand) region(cfg config.ExpansionConfig) *int {
	if c.NoRegion {
		return nil
	}
	region := c.Region
	if region == 0 {
		region = cfg.DefaultRegion
	}
	if region == 0 {
		return nil
	}
	return &region
}

func (c *RunCommand) budget(cfg config.ExpansionConfig) int {
	if c.Budget != 0 {
		return c.Budget
	}
	return cfg.DefaultBudget
}

func (c *RunCommand) writeMetrics(cfg *config.Config, recorder *metrics.Recorder) error {
	path := c.MetricsFile
	if path == "" {
		path = cfg.Metrics.Textfile
	}
	if path == "" {
		return nil
	}
	path, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	return recorder.WriteTextfile(path)
}

func reasonMessage(reason expander.State) string {
	switch reason {
	case expander.StateHaltedBudget:
		return "call budget used up; run again to continue"
	case expander.StateHaltedErrors:
		return "stopped after repeated lookup failures; pending phrases are kept"
	case expander.StateHaltedExhausted:
		return "no pending phrases left"
	default:
		return string(reason)
	}
}

func (c *RunCommand) printRunHuman(path string, budget int, result *expander.Result) {
	if result.Resumed {
		fmt.Println("Resumed pending work.")
	}
	fmt.Printf("Finished: %s\n", reasonMessage(result.Reason))
	fmt.Printf("Lookups:       %d/%d\n", result.CompletedCalls, budget)
	fmt.Printf("New phrases:   %s\n", formatNumber(int64(result.Discovered)))
	fmt.Printf("Total phrases: %s\n", formatNumber(int64(len(result.Records))))
	fmt.Printf("Store:         %s\n", path)

	top := topRecords(result.Records, c.Top)
	if len(top) == 0 {
		return
	}
	fmt.Println()
	fmt.Printf("Top %d phrases:\n", len(top))
	for _, r := range top {
		fmt.Printf("  %12s  %s\n", formatNumber(r.Count), r.Phrase)
	}
}

func (c *RunCommand) printRunJSON(seed, path string, budget int, result *expander.Result) error {
	top := topRecords(result.Records, c.Top)
	out := runJSON{
		Version:        c.version,
		RunID:          result.RunID,
		Seed:           seed,
		StorePath:      path,
		Reason:         string(result.Reason),
		Resumed:        result.Resumed,
		CompletedCalls: result.CompletedCalls,
		Budget:         budget,
		Discovered:     result.Discovered,
		TotalPhrases:   len(result.Records),
		TopPhrases:     make([]phraseJSON, len(top)),
	}
	for i, r := range top {
		out.TopPhrases[i] = phraseJSON{Phrase: r.Phrase, Count: r.Count}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func topRecords(records []storage.Record, n int) []storage.Record {
	if n < 0 || n >= len(records) {
		return records
	}
	return records[:n]
}

// progressPrinter writes one status line per lookup attempt.
type progressPrinter struct {
	w     io.Writer
	start time.Time
	now   func() time.Time
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, start: time.Now(), now: time.Now}
}

func (p *progressPrinter) Attempted(a expander.Attempt) {
	if a.Err != nil {
		fmt.Fprintf(p.w, "Call %d/%d | failed %q (%d in a row): %v\n",
			a.Call, a.Budget, a.Phrase, a.ConsecutiveErrors, a.Err)
		return
	}
	fmt.Fprintf(p.w, "Call %d/%d | phrases: %s | ETA ~ %s\n",
		a.Call, a.Budget, formatNumber(a.TotalPhrases), p.eta(a.Call, a.Budget))
}

// eta extrapolates the average time per call over the remaining budget.
func (p *progressPrinter) eta(call, budget int) string {
	if call <= 0 || call >= budget {
		return "0s"
	}
	perCall := p.now().Sub(p.start) / time.Duration(call)
	remaining := perCall * time.Duration(budget-call)
	return remaining.Round(time.Second).String()
}
