package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
	"github.com/jonesrussell/north-cloud/regwatch/internal/monitor"
	"github.com/jonesrussell/north-cloud/regwatch/internal/report"
)

type runOptions struct {
	dryRun  bool
	sources []string
	output  string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check every source once",
		Long: `Fetch each configured source, record new versions and classify changes.
Per-source failures are reported in the summary and do not change the exit status.`,
		Example: `  regwatch run
  regwatch run --dry-run --source "MSB Obligations"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "fetch, diff and classify without writing")
	cmd.Flags().StringArrayVar(&opts.sources, "source", nil, "only check the source with this label (repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "summary format: table or json")
	return cmd
}

func runOnce(cmd *cobra.Command, opts *runOptions) error {
	if opts.output != "table" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}

	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	targets, err := app.Targets(opts.sources)
	if err != nil {
		return err
	}

	if !opts.dryRun {
		if _, err = app.Migrate(); err != nil {
			return err
		}
	}

	m, err := app.NewMonitor(ctx, opts.dryRun)
	if err != nil {
		return err
	}

	summary, runErr := m.Run(ctx, targets)
	if summary == nil {
		return runErr
	}
	if monitor.IsInterrupted(runErr) {
		app.Log.Warn("Run interrupted",
			logger.Int("processed", len(summary.Results)),
			logger.Int("sources", len(targets)),
		)
	}

	out := cmd.OutOrStdout()
	if opts.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err = enc.Encode(summary); err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
	} else {
		report.RenderRun(out, summary)
	}
	return runErr
}
