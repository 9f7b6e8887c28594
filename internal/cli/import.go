package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/plexsched/internal/manifest"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	DryRun bool
}

// ImportPlan is the output of import --dry-run.
type ImportPlan struct {
	File    string           `json:"file"`
	Actions []manifest.Entry `json:"actions"`
}

// WriteText implements TextWriter.
func (p ImportPlan) WriteText(w io.Writer) error {
	for _, e := range p.Actions {
		fmt.Fprintf(w, "✓ %s: %s/%s\n", e.Name, e.Section, e.Target)
	}
	_, err := fmt.Fprintf(w, "%s: %d valid action(s), nothing created\n", p.File, len(p.Actions))
	return err
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create actions from a manifest",
		Long: `Create scheduled actions from a YAML (.yml, .yaml) or CUE (.cue) manifest.

Every entry is validated before any action is created. Importing the same
manifest twice creates the actions twice.

Example manifest:
  actions:
    - name: Independence Day
      section: Movies
      target: Independence Day (1996)
      rule: {kind: annual, anchor: 2016-06-30, every: 1}

Example:
  plex-schedule import actions.yml
  plex-schedule import --dry-run actions.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate only")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	m, err := manifest.Load(path)
	if err != nil {
		return manifestError(formatter, err)
	}
	defs, err := m.Definitions()
	if err != nil {
		return manifestError(formatter, err)
	}

	if opts.DryRun {
		return formatter.Success(ImportPlan{File: path, Actions: m.Actions})
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
	clock, err := clockFor("")
	if err != nil {
		return err
	}

	result := AddResult{Created: make([]ActionRow, 0, len(defs))}
	for _, def := range defs {
		a, err := st.CreateAction(ctx, def)
		if err != nil {
			return WrapExitError(ExitCommandError,
				fmt.Sprintf("failed to create %q after %d action(s)", def.Name, len(result.Created)), err)
		}
		logger.Debug("created action", "id", a.ID, "name", a.Name)
		result.Created = append(result.Created, newActionRow(a, clock.Today()))
	}

	return formatter.Success(result)
}

// manifestError reports an invalid manifest, with the schema position or
// entry index in JSON details.
func manifestError(formatter *OutputFormatter, err error) error {
	if formatter.Format == "json" {
		details := map[string]any{}
		var se *manifest.SchemaError
		var ee *manifest.EntryError
		switch {
		case errors.As(err, &se):
			details["position"] = se.Pos.String()
		case errors.As(err, &ee):
			details["index"] = ee.Index
			details["name"] = ee.Name
		}
		_ = formatter.Error("E201", err.Error(), details)
	}
	return WrapExitError(ExitCommandError, "invalid manifest", err)
}
