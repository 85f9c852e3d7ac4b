package cli

import (
	"database/sql"

	"github.com/runnerr0/wordharvest/internal/expander"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config   string `long:"config" description:"Path to config file" default:""`
	StoreDir string `long:"store-dir" description:"Override storage.dir from the config"`
	JSON     bool   `long:"json" description:"Output in JSON format"`
	Verbose  bool   `long:"verbose" description:"Enable verbose output"`
	Version  bool   `long:"version" description:"Show version and exit"`
}

// seedArgs is the positional seed phrase shared by store-scoped commands.
// Several words are joined with single spaces.
type seedArgs struct {
	Phrase []string `positional-arg-name:"phrase" required:"1"`
}

// RunCommand expands a seed phrase within a lookup budget.
type RunCommand struct {
	Region      int    `long:"region" description:"Region ID (default: expansion.default_region)"`
	NoRegion    bool   `long:"no-region" description:"Look phrases up without a region"`
	Budget      int    `short:"n" long:"budget" description:"Maximum lookups in this run (default: expansion.default_budget)"`
	Top         int    `long:"top" description:"Phrases to print after the run" default:"20"`
	MetricsFile string `long:"metrics-file" description:"Write Prometheus metrics to this file (default: metrics.textfile)"`
	Quiet       bool   `short:"q" long:"quiet" description:"Do not print per-lookup progress"`

	Args seedArgs `positional-args:"yes" required:"yes"`

	globals  *GlobalFlags
	version  string
	lookuper expander.Lookuper // injectable for testing; nil means the API client
}

// StatusCommand shows frontier statistics and recent runs for a seed.
type StatusCommand struct {
	Args seedArgs `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// ExportCommand writes every collected phrase, most popular first.
type ExportCommand struct {
	Format string `long:"format" description:"Output format" choice:"csv" choice:"json" default:"csv"`
	Output string `short:"o" long:"output" description:"Write to this file instead of stdout"`

	Args seedArgs `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// QuotaCommand shows the remaining daily lookup quota.
type QuotaCommand struct {
	globals *GlobalFlags
	version string
}

// PurgeCommand deletes the store of a seed with safety confirmation.
type PurgeCommand struct {
	Force    bool `long:"force" description:"Skip safety confirmation prompt"`
	KeepFile bool `long:"keep-file" description:"Empty the store but keep the database file"`

	Args seedArgs `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
	db      *sql.DB // injectable for testing; nil means open the seed's store
}
