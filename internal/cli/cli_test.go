package cli

import (
	"strings"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseOnly parses args without executing the matched command and returns
// the active command name.
func parseOnly(p *goflags.Parser, args []string) (string, error) {
	p.CommandHandler = func(goflags.Commander, []string) error { return nil }
	p.Options &^= goflags.PrintErrors
	if _, err := p.ParseArgs(args); err != nil {
		return "", err
	}
	if p.Active == nil {
		return "", nil
	}
	return p.Active.Name, nil
}

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("0.1.0-test", []string{"--version"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "wordharvest 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})

	assert.Equal(t, "wordharvest 1.2.3", strings.TrimSpace(output))
}

func TestRunSubcommandRecognized(t *testing.T) {
	p, _, c := buildParser("test")
	cmd, err := parseOnly(p, []string{"run", "shoes"})
	require.NoError(t, err)
	assert.Equal(t, "run", cmd)
	assert.Equal(t, []string{"shoes"}, c.Run.Args.Phrase)
}

func TestRunMultiWordSeed(t *testing.T) {
	p, _, c := buildParser("test")
	_, err := parseOnly(p, []string{"run", "running", "shoes"})
	require.NoError(t, err)

	seed, err := c.Run.Args.seedPhrase()
	require.NoError(t, err)
	assert.Equal(t, "running shoes", seed)
}

func TestRunRequiresPhrase(t *testing.T) {
	p, _, _ := buildParser("test")
	_, err := parseOnly(p, []string{"run"})
	require.Error(t, err)
}

func TestRunFlagsDefaults(t *testing.T) {
	p, _, c := buildParser("test")
	_, err := parseOnly(p, []string{"run", "shoes"})
	require.NoError(t, err)

	assert.Equal(t, 0, c.Run.Budget)
	assert.Equal(t, 0, c.Run.Region)
	assert.False(t, c.Run.NoRegion)
	assert.Equal(t, 20, c.Run.Top)
	assert.False(t, c.Run.Quiet)
}

func TestRunFlags(t *testing.T) {
	p, _, c := buildParser("test")
	_, err := parseOnly(p, []string{"run", "-n", "50", "--region", "213", "--top", "5", "-q", "--metrics-file", "/tmp/m.prom", "shoes"})
	require.NoError(t, err)

	assert.Equal(t, 50, c.Run.Budget)
	assert.Equal(t, 213, c.Run.Region)
	assert.Equal(t, 5, c.Run.Top)
	assert.True(t, c.Run.Quiet)
	assert.Equal(t, "/tmp/m.prom", c.Run.MetricsFile)
}

func TestStatusSubcommandRecognized(t *testing.T) {
	p, _, _ := buildParser("test")
	cmd, err := parseOnly(p, []string{"status", "shoes"})
	require.NoError(t, err)
	assert.Equal(t, "status", cmd)
}

func TestExportFormatDefault(t *testing.T) {
	p, _, c := buildParser("test")
	_, err := parseOnly(p, []string{"export", "shoes"})
	require.NoError(t, err)
	assert.Equal(t, "csv", c.Export.Format)
	assert.Empty(t, c.Export.Output)
}

func TestExportFormatJSON(t *testing.T) {
	p, _, c := buildParser("test")
	_, err := parseOnly(p, []string{"export", "--format", "json", "-o", "out.json", "shoes"})
	require.NoError(t, err)
	assert.Equal(t, "json", c.Export.Format)
	assert.Equal(t, "out.json", c.Export.Output)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	p, _, _ := buildParser("test")
	_, err := parseOnly(p, []string{"export", "--format", "xml", "shoes"})
	require.Error(t, err)
}

func TestQuotaSubcommandRecognized(t *testing.T) {
	p, _, _ := buildParser("test")
	cmd, err := parseOnly(p, []string{"quota"})
	require.NoError(t, err)
	assert.Equal(t, "quota", cmd)
}

func TestPurgeFlags(t *testing.T) {
	p, _, c := buildParser("test")
	_, err := parseOnly(p, []string{"purge", "--force", "--keep-file", "shoes"})
	require.NoError(t, err)
	assert.True(t, c.Purge.Force)
	assert.True(t, c.Purge.KeepFile)
}

func TestPurgeRequiresPhrase(t *testing.T) {
	p, _, _ := buildParser("test")
	_, err := parseOnly(p, []string{"purge", "--force"})
	require.Error(t, err)
}

func TestGlobalFlagsJSON(t *testing.T) {
	p, globals, _ := buildParser("test")
	_, err := parseOnly(p, []string{"--json", "status", "shoes"})
	require.NoError(t, err)
	assert.True(t, globals.JSON)
}

func TestGlobalFlagsVerbose(t *testing.T) {
	p, globals, _ := buildParser("test")
	_, err := parseOnly(p, []string{"--verbose", "status", "shoes"})
	require.NoError(t, err)
	assert.True(t, globals.Verbose)
}

func TestGlobalFlagsConfigAndStoreDir(t *testing.T) {
	p, globals, _ := buildParser("test")
	_, err := parseOnly(p, []string{"--config", "/tmp/test.yaml", "--store-dir", "/tmp/stores", "status", "shoes"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
	assert.Equal(t, "/tmp/stores", globals.StoreDir)
}

func TestUnknownSubcommandFails(t *testing.T) {
	p, _, _ := buildParser("test")
	_, err := parseOnly(p, []string{"nonexistent"})
	require.Error(t, err)
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{"run", "status", "export", "quota", "purge"}
	p, _, _ := buildParser("test")

	for _, name := range expected {
		cmd := p.Find(name)
		assert.NotNil(t, cmd, "subcommand %q should exist", name)
	}
}

func TestHelpFlagDoesNotError(t *testing.T) {
	captureOutput(t, func() {
		err := RunWithArgs("test", []string{"--help"})
		assert.NoError(t, err)
	})
}

func TestRunWithoutTokenFails(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	err := RunWithArgs("test", []string{"--config", cfgPath, "run", "shoes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API token")
}

func TestStatusMissingStoreFails(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	err := RunWithArgs("test", []string{"--config", cfgPath, "status", "never run"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no store for")
}
