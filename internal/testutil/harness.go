// Package testutil provides the integration-test harness: it materializes
// manifest and environment files into a temp tree, runs the app end to end,
// and captures its summary and log output.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/envgate/internal/app"
	"github.com/vk/envgate/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Stdout    string
	LogOutput string
	Err       error
	Dir       string
}

// RunApp writes the given files into a temp directory and runs the app
// against the "manifest" subdirectory. Relative search paths therefore
// anchor at <tmp>/manifest, so environment files belong under
// "manifest/env-vars/..." in the files map. A nil mutate leaves the default
// config untouched; modules other than the core set are injected when given.
func RunApp(t *testing.T, files map[string]string, mutate func(*app.Config), modules ...registry.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	manifestDir := filepath.Join(tmpDir, "manifest")
	require.NoError(t, os.MkdirAll(manifestDir, 0o755))

	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	config, err := app.NewConfig(app.Config{
		ManifestPath: manifestDir,
		LogLevel:     "debug",
		LogFormat:    "text",
	})
	require.NoError(t, err)
	if mutate != nil {
		mutate(config)
	}

	outBuffer := &SafeBuffer{}
	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("application startup panicked | %v", r)
			}
		}()
		testApp = app.NewApp(outBuffer, logBuffer, config, modules...)
	}()

	if runErr == nil {
		runErr = testApp.Run(context.Background())
	}

	if os.Getenv("ENVGATE_TEST_LOGS") == "true" {
		t.Logf("--- Full log output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		Stdout:    outBuffer.String(),
		LogOutput: logBuffer.String(),
		Err:       runErr,
		Dir:       tmpDir,
	}
}
