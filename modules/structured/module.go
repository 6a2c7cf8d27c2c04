// Package structured provides machine readable report sinks: "json" writes
// one JSON document per line, "yaml" writes one YAML document per pass.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/specialistvlad/stagecheck/internal/engine"
	"github.com/specialistvlad/stagecheck/internal/registry"
	"gopkg.in/yaml.v3"
)

// Sink names.
const (
	JSON = "json"
	YAML = "yaml"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers both sinks with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSink(JSON, func(opts registry.SinkOptions) (registry.Sink, error) {
		return New(JSON, opts.Out)
	})
	r.RegisterSink(YAML, func(opts registry.SinkOptions) (registry.Sink, error) {
		return New(YAML, opts.Out)
	})
}

// Sink encodes reports to a writer.
type Sink struct {
	format string
	out    io.Writer
	mu     sync.Mutex
}

// New creates a sink for format ("json" or "yaml") writing to out, or
// stdout if out is nil.
func New(format string, out io.Writer) (*Sink, error) {
	if format != JSON && format != YAML {
		return nil, fmt.Errorf("unsupported report format '%s'", format)
	}
	if out == nil {
		out = os.Stdout
	}
	return &Sink{format: format, out: out}, nil
}

// Name implements registry.Sink.
func (s *Sink) Name() string { return s.format }

// Publish implements registry.Sink.
func (s *Sink) Publish(_ context.Context, report *engine.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == JSON {
		if err := json.NewEncoder(s.out).Encode(report); err != nil {
			return fmt.Errorf("failed to encode report as json: %w", err)
		}
		return nil
	}

	enc := yaml.NewEncoder(s.out)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report as yaml: %w", err)
	}
	return enc.Close()
}
