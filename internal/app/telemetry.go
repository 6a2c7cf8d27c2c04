package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/specialistvlad/stagecheck/internal/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// telemetry owns the metrics registry and tracer provider of one App.
type telemetry struct {
	registry       *prometheus.Registry
	metrics        *validation.Metrics
	tracerProvider trace.TracerProvider
	shutdown       func(ctx context.Context) error
}

func newTelemetry(cfg *Config) (*telemetry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	t := &telemetry{
		registry:       reg,
		metrics:        validation.NewMetrics(reg),
		tracerProvider: otel.GetTracerProvider(),
		shutdown:       func(context.Context) error { return nil },
	}
	if cfg.TraceFile == "" {
		return t, nil
	}

	f, err := os.Create(cfg.TraceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.tracerProvider = tp
	var once sync.Once
	t.shutdown = func(ctx context.Context) error {
		var err error
		once.Do(func() { err = errors.Join(tp.Shutdown(ctx), f.Close()) })
		return err
	}
	return t, nil
}
