package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vk/envgate/internal/ctxlog"
	"github.com/vk/envgate/internal/dispatch"
	"github.com/vk/envgate/internal/manifest"
	"github.com/vk/envgate/internal/resolver"
	"github.com/vk/envgate/internal/summary"
	"github.com/vk/envgate/internal/vars"
)

// ConfigError wraps any failure that happens before dispatch begins:
// manifest load errors, environment file parse errors, and variant
// conflicts. The binary maps it to its own exit code, distinct from
// component execution failures.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// ComponentsFailedError reports that one or more dispatched components
// failed. Every component was still attempted (unless fail-fast was set);
// the summary carries the details.
type ComponentsFailedError struct {
	Failed []dispatch.Result
}

func (e *ComponentsFailedError) Error() string {
	return fmt.Sprintf("%d component(s) failed", len(e.Failed))
}

// candidateExtensions orders how an environment selector expands into
// candidate filenames.
var candidateExtensions = []string{".yml", ".yaml", ".json", ".toml"}

// Run executes one full resolve-then-dispatch pass.
func (a *App) Run(ctx context.Context) error {
	logger := a.logger.With("run_id", uuid.NewString())
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("App.Run started.", "manifest", a.config.ManifestPath)

	m, err := manifest.Load(ctx, a.config.ManifestPath)
	if err != nil {
		return &ConfigError{Err: fmt.Errorf("loading manifest: %w", err)}
	}
	if err := a.validateManifest(m); err != nil {
		return &ConfigError{Err: err}
	}
	logger.Debug("Manifest ready.", "components", len(m.Components), "variants", len(m.Variants))

	source, table, err := a.resolve(ctx)
	if err != nil {
		return &ConfigError{Err: err}
	}

	// Variant derivation is the tail end of resolution: it runs against the
	// mutable table and the table freezes right after.
	if err := m.Derive(ctx, table); err != nil {
		return &ConfigError{Err: err}
	}
	table.Freeze()

	dispatcher := dispatch.New(a.registry, dispatch.Options{
		DryRun:   a.config.DryRun,
		FailFast: a.config.FailFast,
		Limit:    a.config.Limit,
	})
	results := dispatcher.Run(ctx, m.Components, table)

	sourcePath := ""
	if source != nil {
		sourcePath = source.Path
	}
	summary.Render(a.outW, sourcePath, results)

	if failed := dispatch.Failed(results); len(failed) > 0 {
		return &ComponentsFailedError{Failed: failed}
	}
	logger.Debug("App.Run finished.")
	return nil
}

// resolve probes the search paths for the run's environment file. With
// neither a selector nor explicit candidates, resolution is skipped and the
// run proceeds with an empty table.
func (a *App) resolve(ctx context.Context) (*resolver.Source, *vars.Table, error) {
	logger := ctxlog.FromContext(ctx)

	candidates := a.config.CandidateFiles
	if len(candidates) == 0 && a.config.Environment != "" {
		for _, ext := range candidateExtensions {
			candidates = append(candidates, a.config.Environment+ext)
		}
	}
	if len(candidates) == 0 {
		logger.Info("No environment selector or candidate files given, running unconfigured.")
		return nil, vars.New(), nil
	}

	baseDir, err := manifestBaseDir(a.config.ManifestPath)
	if err != nil {
		return nil, nil, fmt.Errorf("determining base directory: %w", err)
	}

	return resolver.New(baseDir).Resolve(ctx, candidates, a.config.SearchPaths)
}

// validateManifest checks every step's `uses` against the registry so a
// typo'd step kind fails the run before any component executes.
func (a *App) validateManifest(m *manifest.Manifest) error {
	for _, component := range m.Components {
		for _, step := range component.Steps {
			if _, ok := a.registry.Lookup(step.Uses); !ok {
				return fmt.Errorf("component %q step %q: unknown step kind %q (registered: %v)",
					component.Name, step.Name, step.Uses, a.registry.Kinds())
			}
		}
	}
	return nil
}

// manifestBaseDir returns the absolute directory of the top-level execution
// unit. Relative search paths anchor here, not at the process CWD, so a run
// behaves identically regardless of where it is launched from.
func manifestBaseDir(manifestPath string) (string, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return abs, nil
	}
	return filepath.Dir(abs), nil
}
