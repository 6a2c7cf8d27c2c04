package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/flight"
	"github.com/specialistvlad/stagecheck/internal/invariant"
	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/routetree"
	"github.com/specialistvlad/stagecheck/internal/segmentcache"
	"github.com/specialistvlad/stagecheck/internal/stage"
	"github.com/specialistvlad/stagecheck/internal/view"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Config configures a Validator.
type Config struct {
	Renderer render.Renderer
	Options  segmentcache.Options
	EndTimes segmentcache.StageEndTimes
	// Workers is the number of tasks validated concurrently.
	Workers int
	// Metrics defaults to an unregistered set.
	Metrics *Metrics
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Validator validates navigations against one collected segment cache.
type Validator struct {
	tree   *routetree.Tree
	cache  *segmentcache.Cache
	cfg    Config
	tracer trace.Tracer
}

// TaskOutcome is the result of one task. Errors are the violations found;
// Err is set if the task could not be validated at all.
type TaskOutcome struct {
	Task      routetree.Task
	Errors    []*Error
	Err       error
	Cancelled bool
	Duration  time.Duration
}

// Passed reports whether the task was validated and found no violations.
func (o *TaskOutcome) Passed() bool {
	return o.Err == nil && !o.Cancelled && len(o.Errors) == 0
}

// Outcome holds the per-task results in task order.
type Outcome struct {
	Tasks []TaskOutcome
}

// Passed reports whether every task passed.
func (o *Outcome) Passed() bool {
	for i := range o.Tasks {
		if !o.Tasks[i].Passed() {
			return false
		}
	}
	return true
}

// Errors returns every violation across tasks.
func (o *Outcome) Errors() []*Error {
	var out []*Error
	for i := range o.Tasks {
		out = append(out, o.Tasks[i].Errors...)
	}
	return out
}

// Failed returns the tasks that could not be validated.
func (o *Outcome) Failed() []TaskOutcome {
	var out []TaskOutcome
	for _, t := range o.Tasks {
		if t.Err != nil && !t.Cancelled {
			out = append(out, t)
		}
	}
	return out
}

// New creates a Validator.
func New(tree *routetree.Tree, cache *segmentcache.Cache, cfg Config) *Validator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Renderer == nil {
		cfg.Renderer = flight.NewRenderer()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	return &Validator{tree: tree, cache: cache, cfg: cfg, tracer: cfg.TracerProvider.Tracer(tracerName)}
}

// Validate runs every task on the worker pool. A failing task does not stop
// the others. Tasks not started before ctx ends are reported as cancelled.
func (v *Validator) Validate(ctx context.Context, tasks []routetree.Task) *Outcome {
	logger := ctxlog.FromContext(ctx)
	outcome := &Outcome{Tasks: make([]TaskOutcome, len(tasks))}
	readyChan := make(chan int)

	var g errgroup.Group
	for w := 0; w < v.cfg.Workers; w++ {
		workerID := w
		g.Go(func() error {
			v.worker(ctx, readyChan, outcome, workerID)
			return nil
		})
	}

	logger.Debug("Dispatching validation tasks.", "tasks", len(tasks), "workers", v.cfg.Workers)
	for i := range tasks {
		outcome.Tasks[i].Task = tasks[i]
	}
	for i := range tasks {
		readyChan <- i
	}
	close(readyChan)
	_ = g.Wait()
	return outcome
}

func (v *Validator) worker(ctx context.Context, readyChan <-chan int, outcome *Outcome, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Validation worker started.", "workerID", workerID)

	for i := range readyChan {
		res := &outcome.Tasks[i]
		if err := ctx.Err(); err != nil {
			res.Err = fmt.Errorf("%w: %w", stage.ErrCancelled, err)
			res.Cancelled = true
			v.cfg.Metrics.Tasks.WithLabelValues(ResultCancelled).Inc()
			continue
		}
		taskCtx := ctxlog.With(ctx, "workerID", workerID, "target", res.Task.Target.String(), "parent", res.Task.NavigationParent().String())
		v.run(taskCtx, res)
	}
	logger.Debug("Validation worker finished.", "workerID", workerID)
}

func (v *Validator) run(ctx context.Context, res *TaskOutcome) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	ctx, span := v.tracer.Start(ctx, "validation.Task",
		trace.WithAttributes(
			attribute.String("target", res.Task.Target.String()),
			attribute.String("parent", res.Task.NavigationParent().String()),
		))
	defer span.End()

	errs, err := v.validateTask(ctx, res.Task)
	res.Duration = time.Since(start)
	v.cfg.Metrics.Duration.Observe(res.Duration.Seconds())

	switch {
	case errors.Is(err, stage.ErrCancelled) || errors.Is(err, context.Canceled):
		res.Err, res.Cancelled = err, true
		span.SetStatus(codes.Error, "cancelled")
		v.cfg.Metrics.Tasks.WithLabelValues(ResultCancelled).Inc()
		logger.Debug("Validation task cancelled.")
	case err != nil:
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "task failed")
		v.cfg.Metrics.Tasks.WithLabelValues(ResultFailed).Inc()
		if invariant.Is(err) {
			logger.Error("Validation task hit an invariant violation.", "error", err)
		} else {
			logger.Error("Validation task failed.", "error", err)
		}
	case len(errs) > 0:
		res.Errors = errs
		span.SetAttributes(attribute.Int("violations", len(errs)))
		span.SetStatus(codes.Error, "blocking navigation")
		v.cfg.Metrics.Tasks.WithLabelValues(ResultViolations).Inc()
		for _, e := range errs {
			v.cfg.Metrics.Violations.WithLabelValues(e.HoleKind.String()).Inc()
		}
		logger.Info("❌ Navigation blocks outside of a fallback.", "violations", len(errs))
	default:
		v.cfg.Metrics.Tasks.WithLabelValues(ResultPassed).Inc()
		logger.Info("✅ Navigation validated.")
	}
}

// validateTask checks one navigation. If it fails while partial segments
// used static data, it is checked again with runtime data: violations that
// disappear could be fixed by runtime prefetching, the rest need a fallback.
func (v *Validator) validateTask(ctx context.Context, task routetree.Task) ([]*Error, error) {
	errs, used, err := v.check(ctx, task, false)
	if err != nil || len(errs) == 0 {
		return nil, err
	}
	for _, e := range errs {
		e.HoleKind = HoleDynamic
	}
	if !used.Has(stage.Static) {
		return errs, nil
	}

	ctxlog.FromContext(ctx).Debug("Retrying navigation with runtime data.", "violations", len(errs))
	retry, _, err := v.check(ctx, task, true)
	if err != nil {
		return nil, fmt.Errorf("runtime retry: %w", err)
	}
	remaining := make(map[string]bool, len(retry))
	for _, e := range retry {
		remaining[e.key()] = true
	}
	for _, e := range errs {
		if !remaining[e.key()] {
			e.HoleKind = HoleRuntime
		}
	}
	return errs, nil
}

// check renders the combined payload for task and inspects what is
// renderable before the partial segments are released.
func (v *Validator) check(ctx context.Context, task routetree.Task, useRuntime bool) ([]*Error, segmentcache.StageSet, error) {
	release, renderSignal := phase.NewGate(), phase.NewGate()
	defer func() {
		release.Fail(stage.ErrCancelled)
		renderSignal.Fail(stage.ErrCancelled)
	}()

	payload, used, err := segmentcache.CombinedPayload(ctx, v.tree, v.cache, task, segmentcache.CombineOptions{
		Options:                           v.cfg.Options,
		EndTimes:                          v.cfg.EndTimes,
		UseRuntimeStageForPartialSegments: useRuntime,
		Release:                           release,
	})
	if err != nil {
		return nil, 0, err
	}
	combined, err := segmentcache.CombinedPayloadStream(ctx, payload, v.cfg.Renderer, release, renderSignal, v.cfg.Options)
	if err != nil {
		return nil, 0, err
	}

	dec, err := flight.NewDecoder(v.cfg.Options.Modules, flight.DecodeOptions{Debug: combined.Debug})
	if err != nil {
		return nil, 0, err
	}
	combined.Pipe(dec)
	m, ok := dec.Root()
	if !ok {
		return nil, 0, invariant.Errorf("combined payload for %s has no root row", task.Target)
	}
	rendered, ok := m.(*view.Payload)
	if !ok {
		return nil, 0, invariant.Errorf("combined payload for %s decoded to %T", task.Target, m)
	}

	errs := Inspect(view.Compose(rendered.Seed))
	for _, e := range errs {
		e.Target = task.Target
		e.NavigationParent = task.NavigationParent()
		e.describe()
	}
	renderSignal.Open()
	return errs, used, nil
}
