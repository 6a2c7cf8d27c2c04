package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/stagecheck/internal/engine"
	"github.com/specialistvlad/stagecheck/internal/hcl_adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routeTemplate = `
segment "" {
  layout {
    source = "app/layout.tsx"
    view {
      element "html" {
        slot "children" {}
      }
    }
  }

  segment "blog" {
    layout {
      source  = "app/blog/layout.tsx"
      instant = { prefetch = "static" }
      view {
        element "BlogLayout" {
          slot "children" {}
        }
      }
    }

    page {
      source = "app/blog/page.tsx"
      view {
        %s
      }
    }
  }
}
`

const guardedData = `
        suspense {
          fallback = "Loading posts..."
          data "fetchPosts" {
            stage = "dynamic"
            site  = "app/blog/page.tsx:12:5"
            value = "posts"
          }
        }`

const unguardedData = `
        data "fetchPosts" {
          stage = "dynamic"
          site  = "app/blog/page.tsx:12:5"
          value = "posts"
        }`

func writeRoute(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "route.hcl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(routeTemplate, "%s", body, 1)), 0o644))
	return path
}

func testConfig(routePath string, reporters ...string) *Config {
	cfg := DefaultConfig()
	cfg.RoutePath = routePath
	cfg.Reporters = reporters
	return &cfg
}

func decodeReports(t *testing.T, out string) []engine.Report {
	t.Helper()
	var reports []engine.Report
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var r engine.Report
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		reports = append(reports, r)
	}
	return reports
}

func TestRun_Passes(t *testing.T) {
	dir := t.TempDir()
	writeRoute(t, dir, guardedData)
	out := &SafeBuffer{}

	a, logs := SetupAppTest(t, testConfig(dir, "json"), out)
	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.NotEmpty(t, report.Tasks)

	reports := decodeReports(t, out.String())
	require.Len(t, reports, 1)
	assert.Equal(t, report.RunID, reports[0].RunID)
	assert.Contains(t, logs.String(), "run_id="+report.RunID)
}

func TestRun_ReportsViolations(t *testing.T) {
	dir := t.TempDir()
	path := writeRoute(t, dir, unguardedData)
	out := &SafeBuffer{}

	a, _ := SetupAppTest(t, testConfig(path, "text"), out)
	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Passed())
	assert.Positive(t, report.ViolationCount())
	assert.Contains(t, out.String(), "FAIL")
	assert.Contains(t, out.String(), "Blocking Route")
}

func TestRun_LoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "route.hcl"), []byte(`segment "" {`), 0o644))

	a, _ := SetupAppTest(t, testConfig(dir, "text"), &SafeBuffer{})
	_, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestNewApp_UnknownReporter(t *testing.T) {
	cfg := testConfig(t.TempDir(), "xml")
	_, err := NewApp(&SafeBuffer{}, &SafeBuffer{}, cfg, hcl_adapter.NewLoader())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown report sink(s) xml")
	assert.Contains(t, err.Error(), "json, overlay, text, yaml")
}

func TestRun_Watch(t *testing.T) {
	dir := t.TempDir()
	writeRoute(t, dir, unguardedData)
	out := &SafeBuffer{}

	cfg := testConfig(dir, "json")
	cfg.Watch = true
	cfg.WatchDelay = 50 * time.Millisecond
	a, _ := SetupAppTest(t, cfg, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type result struct {
		report *engine.Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := a.Run(ctx)
		done <- result{r, err}
	}()

	require.Eventually(t, func() bool {
		return len(decodeReports(t, out.String())) == 1
	}, 5*time.Second, 20*time.Millisecond)

	writeRoute(t, dir, guardedData)
	require.Eventually(t, func() bool {
		return len(decodeReports(t, out.String())) >= 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	res := <-done
	require.NoError(t, res.err)
	require.NotNil(t, res.report)
	assert.True(t, res.report.Passed())

	reports := decodeReports(t, out.String())
	assert.False(t, reports[0].Passed())
	assert.True(t, reports[len(reports)-1].Passed())
}
