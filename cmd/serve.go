package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/regwatch/internal/api"
	"github.com/jonesrussell/north-cloud/regwatch/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
	"github.com/jonesrussell/north-cloud/regwatch/internal/monitor"
	"github.com/jonesrussell/north-cloud/regwatch/internal/schedule"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the history API and run on a schedule",
		Long: `Serve the read-only history API and Prometheus metrics. When schedule.enabled
is set, runs are triggered by schedule.cron.`,
		RunE: serve,
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	if _, err = app.Migrate(); err != nil {
		return err
	}

	if app.Config.Schedule.Enabled {
		sched, schedErr := newScheduler(ctx, app)
		if schedErr != nil {
			return schedErr
		}
		if err = sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	router := api.NewRouter(app.Store, app.Metrics.Handler(), app.Config.Server.APIKey, app.Log)
	server := api.NewServer(app.Config.Server, router, app.Log)
	errCh := server.StartAsync()

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
		app.Log.Info("Shutdown signal received")
	}
	return server.Shutdown(context.WithoutCancel(ctx))
}

// newScheduler triggers a full run on every tick. Targets are reloaded each
// time so the sources spreadsheet can change between runs.
func newScheduler(ctx context.Context, app *bootstrap.App) (*schedule.Scheduler, error) {
	m, err := app.NewMonitor(ctx, false)
	if err != nil {
		return nil, err
	}

	run := func(runCtx context.Context) error {
		targets, targetErr := app.Targets(nil)
		if targetErr != nil {
			return targetErr
		}
		summary, runErr := m.Run(runCtx, targets)
		if summary != nil {
			app.Log.Info("Scheduled run summary",
				logger.String("run_id", summary.RunID),
				logger.Int("changed", summary.Count(monitor.OutcomeChanged)),
				logger.Int("errors", summary.Count(monitor.OutcomeError)),
			)
		}
		return runErr
	}

	sched, err := schedule.New(app.Config.Schedule.Cron, run, app.Log)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return sched, nil
}
