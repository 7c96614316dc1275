// Package shell provides the 'shell' step kind: run a command through the
// system shell and fail the step when it exits non-zero.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/vk/envgate/internal/ctxlog"
	"github.com/vk/envgate/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Command string            `hcl:"command"`
	Dir     string            `hcl:"dir,optional"`
	Env     map[string]string `hcl:"env,optional"`
	Timeout string            `hcl:"timeout,optional"`
}

// OnRunShell is the handler for the 'shell' step kind. The dispatcher
// imposes no deadline of its own; the optional timeout argument is this
// step's only guard against a runaway command.
func OnRunShell(ctx context.Context, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	if in.Timeout != "" {
		timeout, err := time.ParseDuration(in.Timeout)
		if err != nil {
			return cty.NilVal, fmt.Errorf("invalid timeout %q: %w", in.Timeout, err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", in.Command)
	cmd.Dir = in.Dir
	if len(in.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range in.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running shell command.", "command", in.Command, "dir", in.Dir)
	err := cmd.Run()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cty.NilVal, fmt.Errorf("command timed out: %w", ctxErr)
		}
		return cty.NilVal, fmt.Errorf("command exited with code %d: %s", exitCode, stderr.String())
	}

	return cty.ObjectVal(map[string]cty.Value{
		"exit_code": cty.NumberIntVal(int64(exitCode)),
		"stdout":    cty.StringVal(stdout.String()),
		"stderr":    cty.StringVal(stderr.String()),
	}), nil
}

// Register registers the handler with the dispatcher's registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("shell", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunShell,
	})
}
