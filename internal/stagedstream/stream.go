// Package stagedstream exposes stage-tagged output as a stream that releases
// chunks only as far as its current stage allows.
package stagedstream

import (
	"context"
	"io"
	"sync"

	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/stage"
)

// Sink receives chunks pushed by Pipe.
type Sink interface {
	WriteChunk(chunk []byte) error
	CloseWithError(err error)
}

// Stream releases a fixed, ordered chunk list in steps. Released chunks are
// delivered exactly once, in order, without gaps; the stream ends once every
// chunk has been released.
type Stream struct {
	mu       sync.Mutex
	chunks   [][]byte
	bounds   map[stage.Stage]int
	stage    stage.Stage
	released int
	read     int
	changed  chan struct{}

	deliverMu sync.Mutex
	sink      Sink
	piped     int
	sinkErr   error
}

func newStream(chunks [][]byte, released int) *Stream {
	return &Stream{
		chunks:   chunks,
		released: released,
		changed:  make(chan struct{}),
	}
}

// New wraps cumulative stage chunks. The stream starts in the Static stage
// with only the Static chunks released.
func New(c *stage.Chunks) *Stream {
	static, runtime, dynamic := c.Counts()
	s := newStream(c.All(), static)
	s.stage = stage.Static
	s.bounds = map[stage.Stage]int{
		stage.Static:  static,
		stage.Runtime: runtime,
		stage.Dynamic: dynamic,
	}
	return s
}

// FromChunks returns an already-ended stream over chunks.
func FromChunks(chunks [][]byte) *Stream {
	s := newStream(chunks, len(chunks))
	s.stage = stage.Dynamic
	return s
}

// NewLateRelease releases renderable immediately and the remainder of all
// once release fires. renderable must be a prefix of all. If release fails,
// the stream ends with the chunks it already released.
func NewLateRelease(renderable, all [][]byte, release *phase.Gate) *Stream {
	s := newStream(all, len(renderable))
	s.stage = stage.Static
	release.OnFire(func(err error) {
		if err != nil {
			s.truncate()
			return
		}
		s.publish(stage.Dynamic, len(all))
	})
	return s
}

// CurrentStage returns the stage the stream has been advanced to.
func (s *Stream) CurrentStage() stage.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// AdvanceStage releases every chunk up to target's boundary. Moving to a
// stage at or behind the current one releases nothing.
func (s *Stream) AdvanceStage(target stage.Stage) {
	s.mu.Lock()
	bound, ok := s.bounds[target]
	if !ok || target <= s.stage {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.publish(target, bound)
}

func (s *Stream) publish(target stage.Stage, bound int) {
	s.mu.Lock()
	if target > s.stage {
		s.stage = target
	}
	if bound > s.released {
		s.released = bound
	}
	s.signal()
	s.mu.Unlock()

	s.deliver()
}

func (s *Stream) truncate() {
	s.mu.Lock()
	s.chunks = s.chunks[:s.released]
	s.signal()
	s.mu.Unlock()
	s.deliver()
}

// signal wakes blocked readers. Callers hold s.mu.
func (s *Stream) signal() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Ended reports whether every chunk has been released.
func (s *Stream) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released >= len(s.chunks)
}

// Next returns the next released chunk, blocking until one is released or
// ctx ends. It returns io.EOF after the last chunk.
func (s *Stream) Next(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if s.read < s.released {
			chunk := s.chunks[s.read]
			s.read++
			s.mu.Unlock()
			return chunk, nil
		}
		if s.released >= len(s.chunks) {
			s.mu.Unlock()
			return nil, io.EOF
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Pipe pushes released chunks into sink: those already released right away,
// later ones synchronously as they are released. The sink is closed when the
// stream ends or a write fails. Pipe and Next must not be mixed.
func (s *Stream) Pipe(sink Sink) {
	s.deliverMu.Lock()
	s.sink = sink
	s.deliverMu.Unlock()
	s.deliver()
}

func (s *Stream) deliver() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.sink == nil || s.sinkErr != nil {
		return
	}

	s.mu.Lock()
	pending := s.chunks[s.piped:s.released]
	ended := s.released >= len(s.chunks)
	s.piped = s.released
	s.read = s.released
	s.mu.Unlock()

	for _, chunk := range pending {
		if err := s.sink.WriteChunk(chunk); err != nil {
			s.sinkErr = err
			s.sink.CloseWithError(err)
			return
		}
	}
	if ended {
		s.sink.CloseWithError(nil)
		s.sink = nil
	}
}
