// Package registry holds the step kinds a dispatcher can execute.
//
// A step kind pairs a constructor for its typed input struct with the
// handler function that does the work. Manifests refer to kinds by name via
// the `uses` attribute; the registry is validated against the manifest
// before any component runs so that a typo fails the run at startup rather
// than halfway through dispatch.
package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Module is the interface all step modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// HandlerFunc executes one step. The input is the struct produced by the
// kind's NewInput constructor, populated from the step's arguments block.
type HandlerFunc func(ctx context.Context, input any) (cty.Value, error)

// RegisteredStep describes one executable step kind.
type RegisteredStep struct {
	// NewInput returns a pointer to a fresh input struct with hcl-tagged
	// fields, or nil when the kind takes no arguments.
	NewInput func() any

	// Fn is invoked synchronously by the dispatcher.
	Fn HandlerFunc
}

// Registry maps step kind names to their registered implementations.
type Registry struct {
	steps map[string]*RegisteredStep
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{steps: make(map[string]*RegisteredStep)}
}

// RegisterStep adds a step kind under the given name. Registering the same
// name twice is a programmer error and panics.
func (r *Registry) RegisterStep(name string, step *RegisteredStep) {
	if _, exists := r.steps[name]; exists {
		panic(fmt.Sprintf("registry: step kind %q registered twice", name))
	}
	r.steps[name] = step
}

// Lookup returns the step kind registered under name.
func (r *Registry) Lookup(name string) (*RegisteredStep, bool) {
	step, ok := r.steps[name]
	return step, ok
}

// Kinds returns all registered kind names in lexical order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.steps))
	for name := range r.steps {
		kinds = append(kinds, name)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate performs a parity check over all registered step kinds: every
// handler must be non-nil and every input constructor must produce a pointer
// to a struct, since step arguments decode into it via hcl tags.
func (r *Registry) Validate() error {
	for name, step := range r.steps {
		if step.Fn == nil {
			return fmt.Errorf("step kind %q: handler function is nil", name)
		}
		if step.NewInput == nil {
			continue
		}
		input := step.NewInput()
		if input == nil {
			continue
		}
		t := reflect.TypeOf(input)
		if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("step kind %q: NewInput must return a struct pointer, got %T", name, input)
		}
	}
	return nil
}
