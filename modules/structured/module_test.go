package structured

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/specialistvlad/stagecheck/internal/engine"
	"github.com/specialistvlad/stagecheck/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleReport() *engine.Report {
	return &engine.Report{
		RunID: "r1",
		Route: "/blog",
		Tasks: []engine.TaskReport{{
			Target:  "/blog/__PAGE__",
			Parents: []string{"/blog"},
			Status:  engine.StatusViolations,
			Violations: []engine.Violation{{
				Label:    "Blocking Route",
				Message:  "blocked",
				Stack:    []string{"html", "Post"},
				HoleKind: "runtime",
			}},
		}},
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	sink, err := New(JSON, &buf)
	require.NoError(t, err)
	require.NoError(t, sink.Publish(context.Background(), sampleReport()))
	require.NoError(t, sink.Publish(context.Background(), sampleReport()))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var got map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &got))
	assert.Equal(t, "r1", got["run_id"])
	tasks := got["tasks"].([]any)
	v := tasks[0].(map[string]any)["violations"].([]any)[0].(map[string]any)
	assert.Equal(t, "runtime", v["hole_kind"])
	assert.NotContains(t, got, "Outcome")
}

func TestYAML(t *testing.T) {
	var buf bytes.Buffer
	sink, err := New(YAML, &buf)
	require.NoError(t, err)
	require.NoError(t, sink.Publish(context.Background(), sampleReport()))

	var got struct {
		RunID string `yaml:"run_id"`
		Tasks []struct {
			Target string `yaml:"target"`
			Status string `yaml:"status"`
		} `yaml:"tasks"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "r1", got.RunID)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "/blog/__PAGE__", got.Tasks[0].Target)
	assert.Equal(t, engine.StatusViolations, got.Tasks[0].Status)
}

func TestNew_UnsupportedFormat(t *testing.T) {
	_, err := New("xml", nil)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	assert.Equal(t, []string{JSON, YAML}, r.Names())
}
