package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestRun_HelpExitsZero(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	code := run(out, errOut, []string{"-h"})

	require.Equal(t, exitOK, code)
	require.Contains(t, errOut.String(), "Usage:", "help text goes to the error stream")
}

func TestRun_UsageErrorExitsTwo(t *testing.T) {
	t.Parallel()

	code := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"-log-format", "xml", "deploy"})

	require.Equal(t, exitUsage, code)
}

func TestRun_ManifestParseErrorExitsThree(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, map[string]string{
		"main.hcl": `component "broken" {`,
	})
	errOut := &bytes.Buffer{}

	code := run(&bytes.Buffer{}, errOut, []string{dir})

	require.Equal(t, exitConfigFail, code)
	require.Contains(t, errOut.String(), "failed to parse")
}

func TestRun_EnvironmentParseErrorExitsThree(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, map[string]string{
		"main.hcl":         `component "noop" {}`,
		"env-vars/uat.yml": "toggle: [unclosed\n",
	})

	code := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"-e", "uat", dir})

	require.Equal(t, exitConfigFail, code)
}

func TestRun_ComponentFailureExitsOne(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, map[string]string{
		"main.hcl": `
			component "breaks" {
				step "explode" {
					uses = "shell"
					arguments { command = "exit 7" }
				}
			}
		`,
	})
	out := &bytes.Buffer{}

	code := run(out, &bytes.Buffer{}, []string{dir})

	require.Equal(t, exitRunFailed, code)
	require.Contains(t, out.String(), "0 executed, 0 skipped, 1 failed")
}

func TestRun_SuccessExitsZero(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, map[string]string{
		"main.hcl": `
			component "greets" {
				step "say" {
					uses = "print"
					arguments { message = "hello" }
				}
			}
		`,
	})
	out := &bytes.Buffer{}

	code := run(out, &bytes.Buffer{}, []string{dir})

	require.Equal(t, exitOK, code)
	require.Contains(t, out.String(), "1 executed, 0 skipped, 0 failed")
}
