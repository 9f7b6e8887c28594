package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/plexsched/internal/catalog"
	"github.com/roach88/plexsched/internal/config"
	"github.com/roach88/plexsched/internal/engine"
	"github.com/roach88/plexsched/internal/recurrence"
	"github.com/roach88/plexsched/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Home    string
	Verbose bool
	Format  string // "json" | "text"

	// Client overrides the Plex client built from config (for testing).
	Client catalog.Client

	// AccountURL overrides plex.tv for sign in (for testing).
	AccountURL string

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	// Prompt overrides the interactive prompt (for testing).
	// If nil, prompts with huh.
	Prompt PromptFunc
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the plex-schedule CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plex-schedule",
		Short: "Mark Plex items unwatched on a schedule",
		Long: `plex-schedule keeps recurring viewing traditions alive by marking Plex
movies and episodes unwatched when their occurrence comes around.

Run "plex-schedule bootstrap" once, then run "plex-schedule cron" daily.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Home, "home", "", "home directory (default $PLEX_SCHEDULE_HOME or ~/.plex_schedule)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewBootstrapCommand(opts))
	cmd.AddCommand(NewCronCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger builds the process logger: text on w, debug level with --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newFormatter returns the output formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig resolves the home directory and loads its configuration.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	home, err := config.ResolveHome(opts.Home)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to resolve home directory", err)
	}
	cfg, err := config.Load(home)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// openStore opens (creating if needed) the database named by cfg.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := config.EnsureHome(cfg.Home); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create home directory", err)
	}
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// closeStore closes st, logging failures.
func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}

// clockFor returns the clock commands run as: a fixed date when today is
// set (YYYY-MM-DD), otherwise the local system date.
func clockFor(today string) (engine.Clock, error) {
	if today == "" {
		return engine.SystemClock{}, nil
	}
	d, err := recurrence.ParseDate(today)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --today", err)
	}
	return engine.FixedClock(d), nil
}
