package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/config"
	"github.com/roach88/plexsched/internal/recurrence"
	"github.com/roach88/plexsched/internal/store"
)

// execute runs the root command with args and returns stdout and the error.
// Logs (stderr) are discarded unless the test fails.
func execute(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	if opts == nil {
		opts = &RootOptions{}
	}

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("stderr:\n%s", stderr.String())
		}
	})
	return stdout.String(), err
}

// openHomeStore opens the database of a home directory that uses the default
// config.
func openHomeStore(t *testing.T, home string) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(home, config.DefaultDatabase))
	require.NoError(t, err)
	return st
}

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

// seedActions creates the standard three actions in home:
//
//	1 Independence Day  Movies    annual from 2016-06-30
//	2 Plebs             TV Shows  every 7 days from 2016-07-04 (next episode)
//	3 V for Vendetta    Movies    every 2 years from 2016-11-01
func seedActions(t *testing.T, home string) {
	t.Helper()
	ctx := context.Background()

	st := openHomeStore(t, home)
	defer st.Close()

	annual := func(anchor string, years int) recurrence.Rule {
		r, err := recurrence.NewAnnual(mustDate(t, anchor), years)
		require.NoError(t, err)
		return r
	}
	weekly, err := recurrence.NewPeriodicDays(mustDate(t, "2016-07-04"), 7)
	require.NoError(t, err)

	defs := []action.Definition{
		{
			Name:     "Independence Day",
			Section:  "Movies",
			Selector: action.MustParseSelector("Independence Day (1996)"),
			Effect:   action.EffectMarkUnwatched,
			Rule:     annual("2016-06-30", 1),
		},
		{
			Name:     "Plebs",
			Section:  "TV Shows",
			Selector: action.MustParseSelector("Plebs"),
			Effect:   action.EffectUnwatchNextEpisode,
			Rule:     weekly,
		},
		{
			Name:     "V for Vendetta",
			Section:  "Movies",
			Selector: action.MustParseSelector("V for Vendetta (2005)"),
			Effect:   action.EffectMarkUnwatched,
			Rule:     annual("2016-11-01", 2),
		},
	}
	for _, def := range defs {
		_, err := st.CreateAction(ctx, def)
		require.NoError(t, err)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

// markApplied records occurrence as applied for action id.
func markApplied(t *testing.T, home string, id int64, occurrence string) {
	t.Helper()
	ctx := context.Background()

	st := openHomeStore(t, home)
	defer st.Close()

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CommitAction(ctx, id, action.Applied(mustDate(t, occurrence))))
	require.NoError(t, tx.Commit())
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "plex-schedule", cmd.Use)
	assert.Contains(t, cmd.Long, "unwatched")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"bootstrap", "cron", "list", "add", "import", "history"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	homeFlag := cmd.PersistentFlags().Lookup("home")
	require.NotNil(t, homeFlag)
	assert.Equal(t, "", homeFlag.DefValue)
}

func TestCronCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	cronCmd, _, err := cmd.Find([]string{"cron"})
	require.NoError(t, err)

	assert.NotNil(t, cronCmd.Flags().Lookup("server"))
	assert.NotNil(t, cronCmd.Flags().Lookup("today"))
}

func TestAddCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	addCmd, _, err := cmd.Find([]string{"add"})
	require.NoError(t, err)

	kind := addCmd.Flags().Lookup("kind")
	require.NotNil(t, kind)
	assert.Equal(t, "annual", kind.DefValue)

	every := addCmd.Flags().Lookup("every")
	require.NotNil(t, every)
	assert.Equal(t, "1", every.DefValue)

	effect := addCmd.Flags().Lookup("effect")
	require.NotNil(t, effect)
	assert.Equal(t, "mark_unwatched", effect.DefValue)
}

func TestHistoryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	historyCmd, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)

	limit := historyCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "n", limit.Shorthand)
	assert.Equal(t, "20", limit.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, nil, "--home", t.TempDir(), "--format", "xml", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidToday(t *testing.T) {
	_, err := execute(t, nil, "--home", t.TempDir(), "list", "--today", "July 4th")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --today")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidConfig(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeFile(config.Path(home), "cron:\n  lookahead_limit: -3\n"))

	_, err := execute(t, nil, "--home", home, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
