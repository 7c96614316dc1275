// Package print provides the 'print' step kind: log a message at info level.
// Useful as a placeholder step and in tests.
package print

import (
	"context"

	"github.com/vk/envgate/internal/ctxlog"
	"github.com/vk/envgate/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Message string `hcl:"message"`
}

// OnRunPrint is the handler for the 'print' step kind.
func OnRunPrint(ctx context.Context, input any) (cty.Value, error) {
	in := input.(*Input)
	ctxlog.FromContext(ctx).Info(in.Message)
	return cty.ObjectVal(map[string]cty.Value{
		"message": cty.StringVal(in.Message),
	}), nil
}

// Register registers the handler with the dispatcher's registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("print", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunPrint,
	})
}
