package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/plexsched/internal/config"
	"github.com/roach88/plexsched/internal/manifest"
	"github.com/roach88/plexsched/internal/plex"
)

// PromptFunc asks the user for a value. secret hides the input.
type PromptFunc func(title string, secret bool) (string, error)

// BootstrapOptions holds flags for the bootstrap command.
type BootstrapOptions struct {
	*RootOptions
	Username string
	Password string
	Server   string
	URL      string
	Examples bool
	Today    string
}

// BootstrapResult is the output of the bootstrap command.
type BootstrapResult struct {
	Home     string  `json:"home"`
	Config   string  `json:"config"`
	Database string  `json:"database"`
	Username string  `json:"username,omitempty"`
	SignedIn bool    `json:"signed_in"`
	Examples []int64 `json:"examples,omitempty"`
}

// WriteText implements TextWriter.
func (r BootstrapResult) WriteText(w io.Writer) error {
	if r.SignedIn {
		fmt.Fprintf(w, "✓ Signed in as %s\n", r.Username)
	} else {
		fmt.Fprintln(w, "✓ Using existing Plex token")
	}
	fmt.Fprintf(w, "✓ Wrote config %s\n", r.Config)
	fmt.Fprintf(w, "✓ Database ready at %s\n", r.Database)
	if len(r.Examples) > 0 {
		fmt.Fprintf(w, "✓ Created %d example action(s)\n", len(r.Examples))
	}
	_, err := fmt.Fprintln(w, `Schedule "plex-schedule cron" to run daily.`)
	return err
}

// NewBootstrapCommand creates the bootstrap command.
func NewBootstrapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BootstrapOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Sign in to Plex and create the database",
		Long: `Set up plex-schedule in its home directory.

Bootstrap signs in to plex.tv (prompting for anything not given as a flag),
stores the account token in config.yml and creates the SQLite database.
Running it again keeps existing actions and replaces the stored token.

Example:
  plex-schedule bootstrap --username me --server "Living Room"
  plex-schedule bootstrap --url http://192.168.1.10:32400 --examples`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "plex.tv username or email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "plex.tv password (prompted when omitted)")
	cmd.Flags().StringVar(&opts.Server, "server", "", "name of the Plex server to use")
	cmd.Flags().StringVar(&opts.URL, "url", "", "server address, bypassing discovery")
	cmd.Flags().BoolVar(&opts.Examples, "examples", false, "create example actions")
	cmd.Flags().StringVar(&opts.Today, "today", "", "date examples are anchored to (YYYY-MM-DD)")

	return cmd
}

func runBootstrap(opts *BootstrapOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	clock, err := clockFor(opts.Today)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if err := config.EnsureHome(cfg.Home); err != nil {
		return WrapExitError(ExitCommandError, "failed to create home directory", err)
	}

	if opts.Server != "" {
		cfg.Plex.Server = opts.Server
	}
	if opts.URL != "" {
		cfg.Plex.URL = opts.URL
	}
	if cfg.Plex.ClientIdentifier == "" {
		cfg.Plex.ClientIdentifier = uuid.NewString()
	}

	result := BootstrapResult{
		Home:     cfg.Home,
		Config:   config.Path(cfg.Home),
		Database: cfg.DatabasePath(),
	}

	// An existing token is reused unless credentials are given.
	if cfg.Plex.Token == "" || opts.Username != "" || opts.Password != "" {
		if err := signIn(ctx, opts, cfg, logger); err != nil {
			return err
		}
		result.SignedIn = true
	}
	result.Username = cfg.Plex.Username

	if err := config.Save(cfg); err != nil {
		return WrapExitError(ExitCommandError, "failed to write config", err)
	}
	formatter.VerboseLog("wrote %s", result.Config)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	if opts.Examples {
		defs := manifest.Examples(clock.Today(), cfg.Sections.Movies, cfg.Sections.Shows)
		for _, def := range defs {
			a, err := st.CreateAction(ctx, def)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create example action", err)
			}
			logger.Debug("created example action", "id", a.ID, "name", a.Name)
			result.Examples = append(result.Examples, a.ID)
		}
	}

	return formatter.Success(result)
}

func signIn(ctx context.Context, opts *BootstrapOptions, cfg *config.Config, logger *slog.Logger) error {
	prompt := opts.Prompt
	if prompt == nil {
		prompt = huhPrompt
	}

	username := opts.Username
	if username == "" {
		username = cfg.Plex.Username
	}
	if username == "" {
		var err error
		if username, err = prompt("Plex username or email", false); err != nil {
			return WrapExitError(ExitCommandError, "failed to read username", err)
		}
	}

	password := opts.Password
	if password == "" {
		var err error
		if password, err = prompt(fmt.Sprintf("Plex password for %s", username), true); err != nil {
			return WrapExitError(ExitCommandError, "failed to read password", err)
		}
	}

	client := plex.NewClient(plex.Config{
		AccountURL:       opts.AccountURL,
		ClientIdentifier: cfg.Plex.ClientIdentifier,
		Timeout:          cfg.Plex.Timeout(),
		Logger:           logger,
	})
	account, err := client.SignIn(ctx, username, password)
	if err != nil {
		return WrapExitError(ExitFailure, "sign in failed", err)
	}

	cfg.Plex.Username = username
	if account.Username != "" {
		cfg.Plex.Username = account.Username
	}
	cfg.Plex.Token = account.AuthToken
	return nil
}

// huhPrompt reads a single value from the terminal.
func huhPrompt(title string, secret bool) (string, error) {
	var value string
	input := huh.NewInput().
		Title(title).
		Value(&value).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("required")
			}
			return nil
		})
	if secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	if err := input.Run(); err != nil {
		return "", err
	}
	if secret {
		return value, nil
	}
	return strings.TrimSpace(value), nil
}
