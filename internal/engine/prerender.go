package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/segmentcache"
	"github.com/specialistvlad/stagecheck/internal/stage"
	"github.com/specialistvlad/stagecheck/internal/view"
)

// Interrupt is a synchronous access that forced the final render to Dynamic.
type Interrupt struct {
	Stage  string `json:"stage" yaml:"stage"`
	Reason string `json:"reason" yaml:"reason"`
}

// FullRender is the stage-tagged output of a full route render.
type FullRender struct {
	Chunks     *stage.Chunks
	Debug      [][]byte
	EndTimes   segmentcache.StageEndTimes
	Interrupts []Interrupt
	// Attempts is 2 when the prospective render had to be abandoned.
	Attempts int
}

type renderInput struct {
	payload            *view.Payload
	modules            render.Modules
	hasRuntimePrefetch bool
}

// renderFull renders the route in stages. The first attempt is abandonable:
// a synchronous access reached too early abandons it and the final attempt
// runs with that access forcing the render to Dynamic instead.
func (e *Engine) renderFull(ctx context.Context, in renderInput) (*FullRender, error) {
	logger := ctxlog.FromContext(ctx)

	abortCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	logger.Debug("Starting prospective render.")
	res, err := e.attempt(ctx, abortCtx, in)
	if err == nil {
		res.Attempts = 1
		return res, nil
	}
	if !errors.Is(err, stage.ErrAbandoned) {
		return nil, err
	}
	abort(stage.ErrAbandoned)

	logger.Info("Prospective render abandoned by a synchronous access, running final render.")
	res, err = e.attempt(ctx, nil, in)
	if err != nil {
		return nil, fmt.Errorf("final render: %w", err)
	}
	res.Attempts = 2
	return res, nil
}

func (e *Engine) attempt(ctx context.Context, abortCtx context.Context, in renderInput) (*FullRender, error) {
	ctrl := stage.NewController(abortCtx, in.hasRuntimePrefetch)
	defer ctrl.Close()

	chunks := &stage.Chunks{}
	var debugMu sync.Mutex
	var debug [][]byte
	w := render.ChunkWriterFunc(func(chunk []byte) error {
		return chunks.Append(ctrl.CurrentStage(), chunk)
	})
	opts := render.Options{
		Environment: render.EnvironmentFor(in.hasRuntimePrefetch),
		Stages:      ctrl,
		Interrupter: ctrl,
		StartTime:   time.Now(),
	}
	if e.opts.DebugChannel {
		opts.Debug = render.ChunkWriterFunc(func(chunk []byte) error {
			debugMu.Lock()
			defer debugMu.Unlock()
			debug = append(debug, chunk)
			return nil
		})
	}

	abandoned := func() error {
		if ctrl.CurrentStage() == stage.Abandoned {
			return stage.ErrAbandoned
		}
		return nil
	}

	var finished *phase.Gate
	ctrl.AdvanceStage(stage.Static)
	err := phase.Run(ctx,
		func(p *phase.Phase) error {
			var err error
			finished, err = e.opts.Renderer.Render(ctx, in.payload, in.modules, w, opts)
			return err
		},
		func(p *phase.Phase) error {
			ctrl.AdvanceStage(stage.Runtime)
			return abandoned()
		},
		func(p *phase.Phase) error {
			ctrl.AdvanceStage(stage.Dynamic)
			return abandoned()
		},
	)
	if err != nil {
		return nil, err
	}
	if err := finished.Wait(ctx); err != nil {
		return nil, err
	}

	res := &FullRender{Chunks: chunks, EndTimes: segmentcache.EndTimesOf(ctrl)}
	debugMu.Lock()
	res.Debug = debug
	debugMu.Unlock()
	if reason := ctrl.StaticInterruptReason(); reason != nil {
		res.Interrupts = append(res.Interrupts, Interrupt{Stage: stage.Static.String(), Reason: reason.Error()})
	}
	if reason := ctrl.RuntimeInterruptReason(); reason != nil {
		res.Interrupts = append(res.Interrupts, Interrupt{Stage: stage.Runtime.String(), Reason: reason.Error()})
	}
	s, r, d := chunks.Counts()
	ctxlog.FromContext(ctx).Debug("Full render finished.", "static", s, "runtime", r, "dynamic", d, "interrupts", len(res.Interrupts))
	return res, nil
}
