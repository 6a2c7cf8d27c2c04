package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/engine"
)

// Publish hands report to every sink in order. A failing sink does not
// stop the others; their errors are joined.
func Publish(ctx context.Context, sinks []Sink, report *engine.Report) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for _, sink := range sinks {
		logger.Debug("Publishing report.", "sink", sink.Name())
		if err := sink.Publish(ctx, report); err != nil {
			logger.Error("Report sink failed.", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("sink '%s': %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
