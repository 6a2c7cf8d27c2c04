package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/specialistvlad/stagecheck/internal/engine"
)

// Module is the interface that all sink modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Sink receives the report of every validation pass.
type Sink interface {
	Name() string
	Publish(ctx context.Context, report *engine.Report) error
}

// SinkOptions carries the settings a factory may need to build its sink.
type SinkOptions struct {
	Out io.Writer

	OverlayURL       string
	OverlayNamespace string
	OverlayEvent     string
	OverlayTimeout   time.Duration
	OverlayInsecure  bool
}

// SinkFactory builds a sink from the App settings.
type SinkFactory func(opts SinkOptions) (Sink, error)

// Registry holds the sink factories for a single application instance.
type Registry struct {
	factories map[string]SinkFactory
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{factories: make(map[string]SinkFactory)}
}

// RegisterSink registers a sink factory under name.
func (r *Registry) RegisterSink(name string, factory SinkFactory) {
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("sink with name '%s' already registered", name))
	}
	slog.Debug("Registering report sink.", "name", name)
	r.factories[name] = factory
}

// Names returns the registered sink names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every requested sink name is registered.
func (r *Registry) Validate(requested []string) error {
	var unknown []string
	for _, name := range requested {
		if _, ok := r.factories[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown report sink(s) %s: available are %s",
			strings.Join(unknown, ", "), strings.Join(r.Names(), ", "))
	}
	return nil
}

// Build resolves the requested names into sinks, in request order.
// Duplicate names are built once.
func (r *Registry) Build(requested []string, opts SinkOptions) ([]Sink, error) {
	if err := r.Validate(requested); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(requested))
	sinks := make([]Sink, 0, len(requested))
	for _, name := range requested {
		if seen[name] {
			continue
		}
		seen[name] = true
		sink, err := r.factories[name](opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create report sink '%s': %w", name, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}
