package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/stagecheck/internal/config"
	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/flight"
	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/routetree"
	"github.com/specialistvlad/stagecheck/internal/segmentcache"
	"github.com/specialistvlad/stagecheck/internal/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/specialistvlad/stagecheck/internal/engine"

// Options configures an Engine.
type Options struct {
	// Workers is the number of navigations validated concurrently.
	Workers int
	// Renderer defaults to the flight renderer.
	Renderer render.Renderer
	// DebugChannel records the debug side channel so violations carry their
	// source location and owner stack.
	DebugChannel bool
	// OnError maps render failures to digests. Defaults to render.Digest.
	OnError func(err error) string
	// Metrics receives the validation counters of every pass.
	Metrics *validation.Metrics
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Engine runs validation passes.
type Engine struct {
	loader config.Loader
	opts   Options
}

// New creates an Engine reading route descriptions through loader.
func New(loader config.Loader, opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Renderer == nil {
		opts.Renderer = flight.NewRenderer()
	}
	if opts.Metrics == nil {
		opts.Metrics = validation.NewMetrics(nil)
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &Engine{loader: loader, opts: opts}
}

// Validate loads the route description at paths and validates it.
func (e *Engine) Validate(ctx context.Context, paths ...string) (*Report, error) {
	model, err := e.loader.Load(ctx, paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load route description: %w", err)
	}
	return e.ValidateModel(ctx, model)
}

// ValidateModel runs one validation pass. Configuration errors abort the
// pass before anything is rendered. Failures of single navigations are
// recorded in the report and do not stop the others.
func (e *Engine) ValidateModel(ctx context.Context, model *config.Model) (*Report, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	report := &Report{
		RunID:     uuid.NewString(),
		Files:     model.Files,
		StartedAt: time.Now(),
	}
	ctx = ctxlog.With(ctx, "run_id", report.RunID)
	logger := ctxlog.FromContext(ctx)
	ctx, span := e.opts.TracerProvider.Tracer(tracerName).Start(ctx, "engine.ValidateModel",
		trace.WithAttributes(attribute.String("run_id", report.RunID)))
	defer span.End()

	tree := routetree.Build(model.Root)
	report.Route = tree.Path.String()
	for _, p := range routetree.FindSegmentsWithInstantConfig(tree) {
		report.SegmentsWithInstantConfigs = append(report.SegmentsWithInstantConfigs, p.String())
	}
	report.PageAllowedToBlock = routetree.IsPageAllowedToBlock(tree)

	tasks, err := routetree.FindNavigationsToValidate(ctx, tree)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		report.Skipped = skipReason(tree)
		report.Duration = time.Since(report.StartedAt)
		logger.Info("Nothing to validate.", "reason", report.Skipped)
		return report, nil
	}
	logger.Info("▶️ Validating navigations.", "tasks", len(tasks), "route", report.Route)

	modules := model.ClientModules()
	hasRuntime := routetree.AnySegmentHasRuntimePrefetch(tree)
	full, err := e.renderFull(ctx, renderInput{
		payload:            BuildPayload(model),
		modules:            modules,
		hasRuntimePrefetch: hasRuntime,
	})
	if err != nil {
		return nil, fmt.Errorf("full render failed: %w", err)
	}
	report.Attempts = full.Attempts
	report.Interrupts = full.Interrupts

	opts := segmentcache.Options{
		Modules:     modules,
		OnError:     e.opts.OnError,
		Environment: render.EnvironmentFor(hasRuntime),
	}
	cache, err := segmentcache.Collect(ctx, full.Chunks, full.Debug, e.opts.Renderer, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to collect segment cache: %w", err)
	}

	outcome := validation.New(tree, cache, validation.Config{
		Renderer:       e.opts.Renderer,
		Options:        opts,
		EndTimes:       full.EndTimes,
		Workers:        e.opts.Workers,
		Metrics:        e.opts.Metrics,
		TracerProvider: e.opts.TracerProvider,
	}).Validate(ctx, tasks)

	report.setOutcome(outcome)
	report.Duration = time.Since(report.StartedAt)
	span.SetAttributes(attribute.Int("tasks", len(tasks)), attribute.Int("violations", report.ViolationCount()))
	logger.Info("✅ Validation pass finished.", "tasks", len(tasks), "violations", report.ViolationCount(), "passed", report.Passed())
	return report, nil
}

func skipReason(tree *routetree.Tree) string {
	disabled := false
	tree.Walk(func(n *routetree.Tree) {
		if n.Instant().DisableValidation {
			disabled = true
		}
	})
	switch {
	case disabled:
		return "validation disabled by instant config"
	case !routetree.AnySegmentNeedsValidation(tree):
		return "no segment declares a prefetch config"
	default:
		return "no navigation has a shared parent to validate from"
	}
}
