package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/wordharvest/internal/config"
	"github.com/runnerr0/wordharvest/internal/wordstat"
)

// Execute implements the go-flags Commander interface for QuotaCommand.
func (c *QuotaCommand) Execute(args []string) error {
	cfg, err := c.globals.loadConfig()
	if err != nil {
		return err
	}
	if cfg.API.Token == "" {
		return fmt.Errorf("no API token: set api.token in the config or %s", config.TokenEnv)
	}

	logger, err := c.globals.newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	client, err := wordstat.NewClient(cfg.API, wordstat.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	return c.executeWith(context.Background(), client)
}

// executeWith queries a provided checker (for testing).
func (c *QuotaCommand) executeWith(ctx context.Context, q quotaChecker) error {
	remaining, err := q.UserInfo(ctx)
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]int{"daily_limit_remaining": remaining})
	}

	fmt.Printf("Remaining daily quota: %s lookups\n", formatNumber(int64(remaining)))
	return nil
}
