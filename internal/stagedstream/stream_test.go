package stagedstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	chunks []string
	closed bool
	err    error
	failOn string
}

func (r *recordingSink) WriteChunk(chunk []byte) error {
	if r.failOn != "" && string(chunk) == r.failOn {
		return errors.New("sink rejected chunk")
	}
	r.chunks = append(r.chunks, string(chunk))
	return nil
}

func (r *recordingSink) CloseWithError(err error) {
	r.closed = true
	r.err = err
}

func buildChunks(t *testing.T) *stage.Chunks {
	t.Helper()
	var c stage.Chunks
	require.NoError(t, c.Append(stage.Static, []byte("s1")))
	require.NoError(t, c.Append(stage.Static, []byte("s2")))
	require.NoError(t, c.Append(stage.Runtime, []byte("r1")))
	require.NoError(t, c.Append(stage.Dynamic, []byte("d1")))
	return &c
}

func drain(t *testing.T, s *Stream) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	var out []string
	for {
		chunk, err := s.Next(ctx)
		if err != nil {
			return out
		}
		out = append(out, string(chunk))
	}
}

func TestStream_ReleasesPerStage(t *testing.T) {
	s := New(buildChunks(t))
	assert.Equal(t, stage.Static, s.CurrentStage())
	assert.Equal(t, []string{"s1", "s2"}, drain(t, s))
	assert.False(t, s.Ended())

	s.AdvanceStage(stage.Runtime)
	assert.Equal(t, []string{"r1"}, drain(t, s))

	s.AdvanceStage(stage.Static)
	assert.Empty(t, drain(t, s))

	s.AdvanceStage(stage.Dynamic)
	chunk, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "d1", string(chunk))
	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, s.Ended())
}

func TestStream_EndsImmediatelyWhenAllStatic(t *testing.T) {
	var c stage.Chunks
	require.NoError(t, c.Append(stage.Static, []byte("only")))
	s := New(&c)
	assert.True(t, s.Ended())

	sink := &recordingSink{}
	s.Pipe(sink)
	assert.Equal(t, []string{"only"}, sink.chunks)
	assert.True(t, sink.closed)
	assert.NoError(t, sink.err)
}

func TestStream_NextBlocksUntilAdvance(t *testing.T) {
	s := New(buildChunks(t))
	drain(t, s)

	got := make(chan string, 1)
	go func() {
		chunk, err := s.Next(context.Background())
		if err == nil {
			got <- string(chunk)
		}
		close(got)
	}()

	time.Sleep(5 * time.Millisecond)
	s.AdvanceStage(stage.Runtime)
	assert.Equal(t, "r1", <-got)
}

func TestStream_PipeNeverDuplicatesOrSkips(t *testing.T) {
	c := buildChunks(t)
	s := New(c)
	sink := &recordingSink{}
	s.Pipe(sink)
	s.AdvanceStage(stage.Runtime)
	s.AdvanceStage(stage.Runtime)
	s.AdvanceStage(stage.Dynamic)

	assert.Equal(t, []string{"s1", "s2", "r1", "d1"}, sink.chunks)
	assert.True(t, sink.closed)

	var joined bytes.Buffer
	for _, chunk := range sink.chunks {
		joined.WriteString(chunk)
	}
	assert.Equal(t, bytes.Join(c.All(), nil), joined.Bytes())
}

func TestStream_PipeStopsOnSinkError(t *testing.T) {
	s := New(buildChunks(t))
	sink := &recordingSink{failOn: "r1"}
	s.Pipe(sink)
	s.AdvanceStage(stage.Dynamic)

	assert.Equal(t, []string{"s1", "s2"}, sink.chunks)
	assert.True(t, sink.closed)
	assert.Error(t, sink.err)
}

func TestLateRelease(t *testing.T) {
	all := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	release := phase.NewGate()
	s := NewLateRelease(all[:1], all, release)

	sink := &recordingSink{}
	s.Pipe(sink)
	assert.Equal(t, []string{"a"}, sink.chunks)
	assert.False(t, sink.closed)

	release.Open()
	assert.Equal(t, []string{"a", "b", "c"}, sink.chunks)
	assert.True(t, sink.closed)
}

func TestLateRelease_FailedReleaseEndsEarly(t *testing.T) {
	all := [][]byte{[]byte("a"), []byte("b")}
	release := phase.NewGate()
	s := NewLateRelease(all[:1], all, release)
	sink := &recordingSink{}
	s.Pipe(sink)

	release.Fail(errors.New("cancelled"))
	assert.Equal(t, []string{"a"}, sink.chunks)
	assert.True(t, sink.closed)
}

func TestFromChunks(t *testing.T) {
	s := FromChunks([][]byte{[]byte("x")})
	assert.Equal(t, []string{"x"}, drain(t, s))
	assert.True(t, s.Ended())
}
