package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/plexsched/internal/catalog"
	"github.com/roach88/plexsched/internal/config"
	"github.com/roach88/plexsched/internal/engine"
	"github.com/roach88/plexsched/internal/plex"
)

// Error codes reported by the cron command in JSON output.
const (
	CodeCycleAborted     = "E101"
	CodeConnectionFailed = "E102"
	CodeCycleFailed      = "E103"
)

// CronOptions holds flags for the cron command.
type CronOptions struct {
	*RootOptions
	Server string
	Today  string
}

// CronResult is the output of the cron command.
type CronResult struct {
	RunID     string          `json:"run_id"`
	Today     string          `json:"today"`
	Applied   int             `json:"applied"`
	Total     int             `json:"total"`
	Skipped   int             `json:"skipped"`
	Lookahead bool            `json:"lookahead"`
	Outcomes  []OutcomeResult `json:"outcomes"`
}

// OutcomeResult is one executed action in a CronResult.
type OutcomeResult struct {
	ActionID   int64  `json:"action_id"`
	Name       string `json:"name"`
	Outcome    string `json:"outcome"`
	Occurrence string `json:"occurrence,omitempty"`
	Key        string `json:"key,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newCronResult(r engine.Result) CronResult {
	out := CronResult{
		RunID:     r.RunID,
		Today:     r.Today.String(),
		Applied:   r.Applied,
		Total:     r.Total,
		Skipped:   r.Skipped,
		Lookahead: r.Lookahead,
		Outcomes:  make([]OutcomeResult, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		or := OutcomeResult{
			ActionID: o.ActionID,
			Name:     o.ActionName,
			Outcome:  o.Kind.String(),
			Key:      o.Key,
			Reason:   o.Reason,
		}
		if o.Kind == engine.OutcomeApplied {
			or.Occurrence = o.Occurrence.String()
		}
		if o.Err != nil {
			or.Error = o.Err.Error()
		}
		out.Outcomes = append(out.Outcomes, or)
	}
	return out
}

// WriteText implements TextWriter.
func (r CronResult) WriteText(w io.Writer) error {
	for _, o := range r.Outcomes {
		switch o.Outcome {
		case "applied":
			fmt.Fprintf(w, "✓ %s: unwatched %s for %s\n", o.Name, o.Key, o.Occurrence)
		case "skipped":
			fmt.Fprintf(w, "- %s: skipped (%s)\n", o.Name, o.Reason)
		default:
			fmt.Fprintf(w, "✗ %s: %s\n", o.Name, o.Error)
		}
	}

	var err error
	switch {
	case r.Total == 0:
		_, err = fmt.Fprintf(w, "Nothing due on %s\n", r.Today)
	case r.Lookahead:
		_, err = fmt.Fprintf(w, "Applied %d/%d upcoming action(s) on %s\n", r.Applied, r.Total, r.Today)
	default:
		_, err = fmt.Fprintf(w, "Applied %d/%d action(s) on %s\n", r.Applied, r.Total, r.Today)
	}
	return err
}

// NewCronCommand creates the cron command.
func NewCronCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CronOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Run one scheduling cycle",
		Long: `Run one scheduling cycle.

Every action with an occurrence due on or before today is applied, earliest
first. When nothing is due and the shows section is running low on unwatched
content, upcoming episode actions are applied early instead.

A failed action aborts the cycle; actions applied before it stay applied and
the failed action is retried on the next run. Schedule this command daily.

Example:
  plex-schedule cron
  plex-schedule cron --server "Living Room" --today 2016-07-04`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCron(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", "", "name of the Plex server (overrides config)")
	cmd.Flags().StringVar(&opts.Today, "today", "", "run as of this date (YYYY-MM-DD)")

	return cmd
}

func runCron(opts *CronOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	clock, err := clockFor(opts.Today)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Server != "" {
		cfg.Plex.Server = opts.Server
		cfg.Plex.URL = ""
	}

	client := opts.Client
	if client == nil {
		if cfg.Plex.Token == "" {
			return NewExitError(ExitCommandError, "not signed in: run plex-schedule bootstrap")
		}
		client = newPlexClient(cfg, logger)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if timeout := cfg.Cron.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithRecorder(st),
		engine.WithLookaheadLimit(cfg.Cron.LookaheadLimit),
		engine.WithLookaheadHorizon(cfg.Cron.LookaheadHorizonDays),
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	sufficient := engine.UnwatchedHoursAbove(cfg.Sections.Shows, cfg.Cron.SufficiencyHours, logger)

	result, runErr := engine.RunCycle(ctx, clock.Today(), client, st, sufficient, engineOpts...)
	out := newCronResult(result)

	if runErr == nil {
		return formatter.Success(out)
	}

	code, message := CodeCycleFailed, "cycle failed"
	switch {
	case engine.IsCycleAborted(runErr):
		code, message = CodeCycleAborted, "cycle aborted"
	case catalog.IsConnection(runErr):
		code, message = CodeConnectionFailed, "cannot reach Plex"
	}

	if opts.Format == "json" {
		_ = formatter.Error(code, runErr.Error(), out)
	} else {
		_ = out.WriteText(formatter.Writer)
	}
	return WrapExitError(ExitFailure, message, runErr)
}

// newPlexClient builds the Plex client described by cfg.
func newPlexClient(cfg *config.Config, logger *slog.Logger) *plex.Client {
	return plex.NewClient(plex.Config{
		Token:             cfg.Plex.Token,
		Server:            cfg.Plex.Server,
		URL:               cfg.Plex.URL,
		ClientIdentifier:  cfg.Plex.ClientIdentifier,
		RequestsPerSecond: cfg.Plex.RequestsPerSec,
		Burst:             cfg.Plex.Burst,
		Timeout:           cfg.Plex.Timeout(),
		Logger:            logger,
	})
}
