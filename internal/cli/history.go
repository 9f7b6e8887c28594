package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/plexsched/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// RunRow is one recorded cycle in the history output.
type RunRow struct {
	ID             string `json:"id"`
	StartedAt      string `json:"started_at"`
	Duration       string `json:"duration"`
	Today          string `json:"today"`
	Applied        int    `json:"applied"`
	Total          int    `json:"total"`
	Lookahead      bool   `json:"lookahead"`
	Status         string `json:"status"`
	FailedActionID int64  `json:"failed_action_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	Runs []RunRow `json:"runs"`
}

func newRunRow(r store.Run) RunRow {
	return RunRow{
		ID:             r.ID,
		StartedAt:      r.StartedAt.UTC().Format(time.RFC3339),
		Duration:       r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		Today:          r.Today.String(),
		Applied:        r.Applied,
		Total:          r.Total,
		Lookahead:      r.Lookahead,
		Status:         string(r.Status),
		FailedActionID: r.FailedActionID,
		Error:          r.Error,
	}
}

// WriteText implements TextWriter.
func (h HistoryResult) WriteText(w io.Writer) error {
	if len(h.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No cycles recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTODAY\tAPPLIED\tSTATUS\tRUN")
	for _, r := range h.Runs {
		applied := fmt.Sprintf("%d/%d", r.Applied, r.Total)
		if r.Lookahead {
			applied += " ahead"
		}
		status := r.Status
		if r.FailedActionID != 0 {
			status = fmt.Sprintf("%s at #%d", status, r.FailedActionID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.StartedAt, r.Today, applied, status, r.ID)
	}
	return tw.Flush()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent cycles",
		Long: `Show the most recent scheduling cycles, newest first.

Example:
  plex-schedule history
  plex-schedule history --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of cycles to show")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--limit must be positive, got %d", opts.Limit))
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	result := HistoryResult{Runs: make([]RunRow, 0, len(runs))}
	for _, r := range runs {
		result.Runs = append(result.Runs, newRunRow(r))
	}
	return formatter.Success(result)
}
