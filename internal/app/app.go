package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/stagecheck/internal/config"
	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/engine"
	"github.com/specialistvlad/stagecheck/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	sinks    []registry.Sink
	engine   *engine.Engine

	telemetry  *telemetry
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Reports are written to outW by the terminal sinks; logs go to logW.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	if err != nil {
		return nil, err
	}
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All sink modules registered.", "count", len(modules), "sinks", reg.Names())

	sinks, err := reg.Build(cfg.Reporters, registry.SinkOptions{
		Out:              outW,
		OverlayURL:       cfg.OverlayURL,
		OverlayNamespace: cfg.OverlayNamespace,
		OverlayEvent:     cfg.OverlayEvent,
		OverlayTimeout:   cfg.OverlayTimeout,
		OverlayInsecure:  cfg.OverlayInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure reporters: %w", err)
	}

	tel, err := newTelemetry(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.TraceFile != "" {
		logger.Debug("Tracing enabled.", "trace_file", cfg.TraceFile)
	}

	eng := engine.New(loader, engine.Options{
		Workers:        cfg.Workers,
		DebugChannel:   cfg.DebugChannel,
		Metrics:        tel.metrics,
		TracerProvider: tel.tracerProvider,
	})

	return &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		sinks:     sinks,
		engine:    eng,
		telemetry: tel,
	}, nil
}

// Close stops the metrics server and flushes pending spans.
func (a *App) Close(ctx context.Context) error {
	ctx = a.context(ctx)
	return errors.Join(a.closeMetricsServer(ctx), a.telemetry.shutdown(ctx))
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
