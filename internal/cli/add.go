package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/manifest"
	"github.com/roach88/plexsched/internal/recurrence"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Entry manifest.Entry
}

// AddResult is the output of the add and import commands.
type AddResult struct {
	Created []ActionRow `json:"created"`
}

// WriteText implements TextWriter.
func (r AddResult) WriteText(w io.Writer) error {
	for _, a := range r.Created {
		fmt.Fprintf(w, "✓ #%d %s: %s/%s %s\n", a.ID, a.Name, a.Section, a.Target, a.Rule)
	}
	_, err := fmt.Fprintf(w, "Created %d action(s)\n", len(r.Created))
	return err
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled action",
		Long: `Add one scheduled action.

The target is a title, a title with its year in parentheses, or "key:<id>"
for a Plex rating key. The section defaults to the configured movies
section, or the shows section for episode effects.

Rule kinds:
  annual         every --every years on the anchor's month and day
  periodic_days  every --every days from the anchor
  calendar       on dates matching a five-field cron --expression

Example:
  plex-schedule add --target "Independence Day (1996)" --anchor 2016-06-30
  plex-schedule add --target Plebs --effect unwatch_next_episode \
    --kind periodic_days --every 7 --anchor 2016-07-04`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entry.Name, "name", "", "action name (defaults to the target)")
	cmd.Flags().StringVar(&opts.Entry.Section, "section", "", "library section")
	cmd.Flags().StringVar(&opts.Entry.Target, "target", "", "item to act on (required)")
	cmd.Flags().StringVar(&opts.Entry.Effect, "effect", string(action.EffectMarkUnwatched), "effect (mark_unwatched|unwatch_next_episode)")
	cmd.Flags().StringVar(&opts.Entry.Rule.Kind, "kind", string(recurrence.KindAnnual), "rule kind (annual|periodic_days|calendar)")
	cmd.Flags().StringVar(&opts.Entry.Rule.Anchor, "anchor", "", "first occurrence (YYYY-MM-DD, required)")
	cmd.Flags().IntVar(&opts.Entry.Rule.Every, "every", 1, "period in years or days")
	cmd.Flags().StringVar(&opts.Entry.Rule.Expression, "expression", "", "cron expression for calendar rules")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("anchor")

	return cmd
}

func runAdd(opts *AddOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	entry := opts.Entry
	if entry.Name == "" {
		entry.Name = entry.Target
	}
	if entry.Section == "" {
		entry.Section = cfg.Sections.Movies
		if entry.Effect == string(action.EffectUnwatchNextEpisode) {
			entry.Section = cfg.Sections.Shows
		}
	}

	def, err := entry.Definition()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid action", err)
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

	clock, err := clockFor("")
	if err != nil {
		return err
	}

	a, err := st.CreateAction(ctx, def)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create action", err)
	}
	logger.Debug("created action", "id", a.ID, "name", a.Name)

	return formatter.Success(AddResult{Created: []ActionRow{newActionRow(a, clock.Today())}})
}
