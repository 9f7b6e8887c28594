package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/roach88/plexsched/internal/action"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Today string
}

// ActionRow is one action in the list output.
type ActionRow struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Section  string `json:"section"`
	Target   string `json:"target"`
	Effect   string `json:"effect"`
	Rule     string `json:"rule"`
	Last     string `json:"last_occurrence,omitempty"`
	Next     string `json:"next_occurrence,omitempty"`
	Due      bool   `json:"due"`
	Complete bool   `json:"completed"`
}

// ListResult is the output of the list command.
type ListResult struct {
	Today   string      `json:"today"`
	Actions []ActionRow `json:"actions"`
}

func newActionRow(a action.Action, today civil.Date) ActionRow {
	row := ActionRow{
		ID:       a.ID,
		Name:     a.Name,
		Section:  a.Section,
		Target:   a.Selector.String(),
		Effect:   string(a.Effect),
		Rule:     a.Rule.String(),
		Due:      a.IsDue(today),
		Complete: a.Completed,
	}
	if a.LastOccurrence != nil {
		row.Last = a.LastOccurrence.String()
	}

	// A due action's next occurrence is the one it is waiting on.
	var next civil.Date
	var ok bool
	if row.Due {
		next, ok = a.Rule.OccurrenceOnOrBefore(today, a.LastOccurrence)
	} else {
		next, ok = a.NextAfter(today)
	}
	if ok {
		row.Next = next.String()
	}
	return row
}

// WriteText implements TextWriter.
func (r ListResult) WriteText(w io.Writer) error {
	if len(r.Actions) == 0 {
		_, err := fmt.Fprintln(w, `No actions. Add one with "plex-schedule add" or "plex-schedule import".`)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTARGET\tRULE\tLAST\tNEXT\tDUE")
	for _, a := range r.Actions {
		due := "no"
		if a.Due {
			due = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s/%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Name, a.Section, a.Target, a.Rule, dash(a.Last), dash(a.Next), due)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled actions",
		Long: `List every scheduled action with its rule, the last occurrence applied,
the next occurrence and whether it is due.

Example:
  plex-schedule list
  plex-schedule list --today 2016-07-04 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Today, "today", "", "evaluate as of this date (YYYY-MM-DD)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	clock, err := clockFor(opts.Today)
	if err != nil {
		return err
	}
	today := clock.Today()

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

	actions, err := st.ListActions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list actions", err)
	}

	result := ListResult{Today: today.String(), Actions: make([]ActionRow, 0, len(actions))}
	for _, a := range actions {
		result.Actions = append(result.Actions, newActionRow(a, today))
	}
	return formatter.Success(result)
}
