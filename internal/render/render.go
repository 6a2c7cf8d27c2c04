// Package render defines the contract between the staging engine and the
// component renderer that turns a view model into a byte stream.
package render

import (
	"context"
	"time"

	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/stage"
	"github.com/specialistvlad/stagecheck/internal/view"
)

// ChunkWriter receives rendered chunks in production order.
type ChunkWriter interface {
	WriteChunk(chunk []byte) error
}

// ChunkWriterFunc adapts a function to ChunkWriter.
type ChunkWriterFunc func(chunk []byte) error

func (f ChunkWriterFunc) WriteChunk(chunk []byte) error {
	return f(chunk)
}

// Modules is the client module table: component name to module id.
type Modules map[string]string

// StageSource is the view a renderer has of the render attempt's stage.
type StageSource interface {
	CurrentStage() stage.Stage
	OnStage(s stage.Stage, cb func()) error
}

// SyncInterrupter handles synchronous accesses reached before their stage.
type SyncInterrupter interface {
	CanSyncInterrupt() bool
	SyncInterrupt(reason error)
}

// Options configures one render.
type Options struct {
	// OnError maps a failure to the digest sent in its place. An empty
	// digest means the failure has none.
	OnError func(err error) string
	// Environment labels the stage a piece of output belongs to.
	Environment func(s stage.Stage) string
	// Stages gates deferred data accesses. Without it everything resolves
	// immediately.
	Stages      StageSource
	Interrupter SyncInterrupter
	// Debug, when set, receives the debug side channel.
	Debug     ChunkWriter
	StartTime time.Time
}

// Renderer turns a view model into chunks. Render returns once every chunk
// it can produce immediately has been written; the returned gate fires when
// the deferred remainder has been written too.
type Renderer interface {
	Render(ctx context.Context, m view.Model, modules Modules, w ChunkWriter, opts Options) (*phase.Gate, error)
}
