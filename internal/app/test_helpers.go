package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/specialistvlad/stagecheck/internal/hcl_adapter"
	"github.com/specialistvlad/stagecheck/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates a new app instance backed by the HCL loader for
// system testing. Reports go to out; the returned buffer captures logs.
func SetupAppTest(t *testing.T, cfg *Config, out io.Writer, modules ...registry.Module) (*App, *SafeBuffer) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp, err := NewApp(out, logBuffer, cfg, hcl_adapter.NewLoader(), modules...)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	t.Cleanup(func() {
		if err := testApp.Close(context.Background()); err != nil {
			t.Errorf("failed to close app: %v", err)
		}
		if os.Getenv("STAGECHECK_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
