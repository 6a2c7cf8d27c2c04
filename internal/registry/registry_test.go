package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/stagecheck/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name string
	err  error
	got  []*engine.Report
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, r *engine.Report) error {
	s.got = append(s.got, r)
	return s.err
}

func factoryFor(s Sink) SinkFactory {
	return func(SinkOptions) (Sink, error) { return s, nil }
}

func TestRegisterSink_PanicsOnDuplicate(t *testing.T) {
	r := New()
	r.RegisterSink("text", factoryFor(&recordingSink{name: "text"}))
	assert.Panics(t, func() {
		r.RegisterSink("text", factoryFor(&recordingSink{name: "text"}))
	})
}

func TestBuild(t *testing.T) {
	r := New()
	text := &recordingSink{name: "text"}
	js := &recordingSink{name: "json"}
	r.RegisterSink("text", factoryFor(text))
	r.RegisterSink("json", factoryFor(js))

	assert.Equal(t, []string{"json", "text"}, r.Names())

	sinks, err := r.Build([]string{"json", "text", "json"}, SinkOptions{})
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Same(t, js, sinks[0])
	assert.Same(t, text, sinks[1])

	_, err = r.Build([]string{"xml", "text"}, SinkOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown report sink(s) xml")
	assert.Contains(t, err.Error(), "available are json, text")
}

func TestBuild_FactoryError(t *testing.T) {
	r := New()
	r.RegisterSink("overlay", func(SinkOptions) (Sink, error) {
		return nil, errors.New("overlay url is required")
	})
	_, err := r.Build([]string{"overlay"}, SinkOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create report sink 'overlay'")
}

func TestPublish_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordingSink{name: "overlay", err: boom}
	ok := &recordingSink{name: "text"}
	report := &engine.Report{RunID: "r1"}

	err := Publish(context.Background(), []Sink{failing, ok}, report)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, failing.got, 1)
	assert.Len(t, ok.got, 1)
	assert.Same(t, report, ok.got[0])

	assert.NoError(t, Publish(context.Background(), []Sink{ok}, report))
}
