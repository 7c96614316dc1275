package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_PositionalManifestPath(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, shouldExit, err := Parse([]string{"-e", "uat", "deploy"}, out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	require.Equal(t, "deploy", config.ManifestPath)
	require.Equal(t, "uat", config.Environment)
	require.Equal(t, []string{"env-vars"}, config.SearchPaths)
	require.Equal(t, "text", config.LogFormat)
	require.Equal(t, "info", config.LogLevel)
}

func TestParse_ManifestFlagTakesPrecedence(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, _, err := Parse([]string{"-manifest", "flagged", "positional"}, out)

	require.NoError(t, err)
	require.Equal(t, "flagged", config.ManifestPath)
}

func TestParse_ListFlags(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, _, err := Parse([]string{
		"-env-file", "special.yml, extra.json",
		"-search-path", "overrides,env-vars",
		"-limit", "nginx , apache",
		"deploy",
	}, out)

	require.NoError(t, err)
	require.Equal(t, []string{"special.yml", "extra.json"}, config.CandidateFiles)
	require.Equal(t, []string{"overrides", "env-vars"}, config.SearchPaths)
	require.Equal(t, []string{"nginx", "apache"}, config.Limit)
}

func TestParse_BooleanFlags(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, _, err := Parse([]string{"-dry-run", "-fail-fast", "deploy"}, out)

	require.NoError(t, err)
	require.True(t, config.DryRun)
	require.True(t, config.FailFast)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, shouldExit, err := Parse([]string{}, out)

	require.NoError(t, err)
	require.True(t, shouldExit)
	require.Nil(t, config)
	require.Contains(t, out.String(), "Usage:")
}

func TestParse_InvalidLogFormat(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	_, _, err := Parse([]string{"-log-format", "xml", "deploy"}, out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
}

func TestParse_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	_, _, err := Parse([]string{"-log-level", "chatty", "deploy"}, out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, exitErr.Message, "invalid log-level")
}

func TestParse_UnknownFlag(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	_, _, err := Parse([]string{"-nope", "deploy"}, out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
}
