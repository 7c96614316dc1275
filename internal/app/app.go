package app

import (
	"io"
	"log/slog"

	"github.com/vk/envgate/internal/registry"
	"github.com/vk/envgate/modules/httpcheck"
	"github.com/vk/envgate/modules/print"
	"github.com/vk/envgate/modules/shell"
)

// coreModules are the step kinds every app instance registers by default.
var coreModules = []registry.Module{
	&shell.Module{},
	&print.Module{},
	&httpcheck.Module{},
}

// App encapsulates one run's dependencies: an isolated logger, a validated
// step registry, and the run configuration.
type App struct {
	outW     io.Writer
	logW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	config   *Config
}

// NewApp constructs a fully initialized App. When no modules are passed the
// core step kinds are registered. A registry that fails validation is a
// programmer error and panics, mirroring a mismatch between code and config.
func NewApp(outW, logW io.Writer, config *Config, modules ...registry.Module) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("Step modules registered.", "count", len(modules), "kinds", reg.Kinds())

	if err := reg.Validate(); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logW:     logW,
		logger:   logger,
		registry: reg,
		config:   config,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
