package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Run    *RunCommand
	Status *StatusCommand
	Export *ExportCommand
	Quota  *QuotaCommand
	Purge  *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "wordharvest"
	parser.LongDescription = "Recursive keyword discovery against the Wordstat API with resumable, budgeted runs."

	cmds := &commands{
		Run:    &RunCommand{globals: &globals, version: version},
		Status: &StatusCommand{globals: &globals, version: version},
		Export: &ExportCommand{globals: &globals, version: version},
		Quota:  &QuotaCommand{globals: &globals, version: version},
		Purge:  &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("run", "Expand a seed phrase", "Expand a seed phrase breadth-first, resuming any pending work, within a lookup budget.", cmds.Run)
	parser.AddCommand("status", "Show store statistics", "Show frontier statistics, top phrases and recent runs for a seed phrase.", cmds.Status)
	parser.AddCommand("export", "Export collected phrases", "Export every collected phrase with its count, most popular first.", cmds.Export)
	parser.AddCommand("quota", "Show remaining API quota", "Show how many lookups are left in today's API quota.", cmds.Quota)
	parser.AddCommand("purge", "Delete a seed's store", "Delete all data collected for a seed phrase. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the wordharvest CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("wordharvest %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
