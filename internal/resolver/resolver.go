// Package resolver locates and parses the environment variable file for a
// run. Given an ordered list of candidate filenames and an ordered list of
// search directories, it probes every (directory, filename) pair in
// directory-major order and loads the first file that exists.
//
// Probing order is part of the contract: all candidates are tried in the
// first directory before the second directory is considered. Absence of any
// match is not an error; the run simply proceeds with an empty variable
// table. A match that fails to parse is fatal, with no fallback to later
// candidates.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/envgate/internal/ctxlog"
	"github.com/vk/envgate/internal/vars"
)

// Source identifies the winning environment file of a resolution pass.
type Source struct {
	// Path is the absolute path of the file that was loaded.
	Path string
	// Raw holds the decoded top-level mapping before cty conversion.
	Raw map[string]any
}

// ParseError reports that the winning candidate exists but could not be
// decoded. Resolution does not fall back on parse failures, only on absence.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing environment file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Resolver probes search directories for environment variable files.
type Resolver struct {
	// baseDir anchors relative search directories. It is the directory of
	// the manifest, not the process working directory, so an invocation
	// behaves identically regardless of where the process is launched from.
	baseDir string
}

// New creates a Resolver whose relative search paths are anchored at baseDir.
func New(baseDir string) *Resolver {
	return &Resolver{baseDir: baseDir}
}

// Resolve probes every (directory, filename) pair in directory-major,
// filename-minor order and parses the first existing, readable file into a
// variable table. When no pair matches, it returns a nil Source and an empty
// table; callers must tolerate fully-unconfigured runs.
func (r *Resolver) Resolve(ctx context.Context, candidates []string, searchDirs []string) (*Source, *vars.Table, error) {
	logger := ctxlog.FromContext(ctx)
	table := vars.New()

	for _, dir := range searchDirs {
		absDir := dir
		if !filepath.IsAbs(absDir) {
			absDir = filepath.Join(r.baseDir, dir)
		}

		info, err := os.Stat(absDir)
		if err != nil || !info.IsDir() {
			logger.Debug("Search directory absent, skipping.", "dir", absDir)
			continue
		}

		for _, name := range candidates {
			path := filepath.Join(absDir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				if !os.IsNotExist(err) {
					logger.Debug("Candidate unreadable, skipping.", "path", path, "error", err)
				}
				continue
			}

			if abs, absErr := filepath.Abs(path); absErr == nil {
				path = abs
			}

			logger.Debug("Environment file resolved.", "path", path)
			raw, err := decode(path, data)
			if err != nil {
				return nil, nil, &ParseError{Path: path, Err: err}
			}

			for k, v := range raw {
				if err := table.SetNative(k, v); err != nil {
					return nil, nil, &ParseError{Path: path, Err: err}
				}
			}

			logger.Info("Environment configuration loaded.", "path", path, "variables", table.Len())
			return &Source{Path: path, Raw: raw}, table, nil
		}
	}

	logger.Info("No environment file found in any search directory, continuing unconfigured.",
		"candidates", candidates, "search_dirs", searchDirs)
	return nil, table, nil
}
