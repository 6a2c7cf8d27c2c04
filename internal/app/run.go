package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/engine"
	"github.com/specialistvlad/stagecheck/internal/registry"
)

// Run executes one validation pass, or keeps re-validating on file changes
// in watch mode until ctx ends. It returns the last report.
func (a *App) Run(ctx context.Context) (*engine.Report, error) {
	ctx = a.context(ctx)
	a.logger.Debug("App.Run method started.", "route_path", a.config.RoutePath, "watch", a.config.Watch)

	if a.config.MetricsAddr != "" && a.httpServer == nil {
		if _, err := a.startMetricsServer(ctx); err != nil {
			return nil, err
		}
	}

	if a.config.Watch {
		return a.watch(ctx)
	}
	report, err := a.RunOnce(ctx)
	a.logger.Debug("App.Run method finished.")
	return report, err
}

// RunOnce loads the route description, validates it and publishes the
// report to every configured sink.
func (a *App) RunOnce(ctx context.Context) (*engine.Report, error) {
	ctx = a.context(ctx)
	report, err := a.engine.Validate(ctx, a.config.RoutePath)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	logger := ctxlog.FromContext(ctx).With("run_id", report.RunID)
	if report.Passed() {
		logger.Info("🏁 Validation finished.", "tasks", len(report.Tasks))
	} else {
		logger.Warn("🏁 Validation finished with problems.", "tasks", len(report.Tasks), "violations", report.ViolationCount())
	}

	if err := registry.Publish(ctx, a.sinks, report); err != nil {
		return report, fmt.Errorf("failed to publish report: %w", err)
	}
	return report, nil
}
