// Package dispatch evaluates activation predicates and runs active
// components strictly in declaration order.
//
// The dispatcher never infers relationships between components: each
// predicate is evaluated independently against the frozen variable table,
// and two predicates that both evaluate true both activate. One result is
// recorded per declared component, in declaration order, regardless of what
// any earlier component did.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/envgate/internal/ctxlog"
	"github.com/vk/envgate/internal/manifest"
	"github.com/vk/envgate/internal/registry"
	"github.com/vk/envgate/internal/vars"
)

// Options control dispatch behavior for one run.
type Options struct {
	// DryRun reports which components would execute without invoking any
	// step handler.
	DryRun bool

	// FailFast stops dispatching after the first failed component. The
	// remaining components are still recorded, as skipped.
	FailFast bool

	// Limit restricts execution to the named components. Components outside
	// the set are skipped before their predicate is evaluated. An empty
	// limit selects everything.
	Limit []string
}

// Dispatcher runs manifest components against a resolved variable table.
type Dispatcher struct {
	registry *registry.Registry
	opts     Options
}

// New creates a dispatcher backed by the given step registry.
func New(reg *registry.Registry, opts Options) *Dispatcher {
	return &Dispatcher{registry: reg, opts: opts}
}

// Run dispatches every component in declaration order and returns exactly
// one result per component, in that same order. Component failures are
// recorded, not propagated: the returned slice is the full picture of the
// run and the caller derives the exit status from it.
func (d *Dispatcher) Run(ctx context.Context, components []*manifest.Component, table *vars.Table) []Result {
	logger := ctxlog.FromContext(ctx)

	limit := make(map[string]struct{}, len(d.opts.Limit))
	for _, name := range d.opts.Limit {
		limit[name] = struct{}{}
	}

	results := make([]Result, 0, len(components))
	aborted := false

	for _, component := range components {
		result := Result{Component: component.Name}

		switch {
		case aborted:
			result.Status = StatusSkipped
			result.Reason = "fail-fast: earlier component failed"

		case len(limit) > 0 && !contains(limit, component.Name):
			result.Status = StatusSkipped
			result.Reason = "not selected"

		default:
			result = d.runComponent(ctx, component, table)
		}

		logger.Info("Component dispatched.",
			"component", result.Component, "status", result.Status, "reason", result.Reason)
		results = append(results, result)

		if d.opts.FailFast && result.Status == StatusFailed {
			aborted = true
		}
	}

	return results
}

// runComponent evaluates one component's predicate and, when active, runs
// its steps in order.
func (d *Dispatcher) runComponent(ctx context.Context, component *manifest.Component, table *vars.Table) Result {
	logger := ctxlog.FromContext(ctx).With("component", component.Name)
	result := Result{Component: component.Name}

	active, err := d.evalPredicate(component.When, table)
	if err != nil {
		// A predicate that cannot be evaluated must not crash the run; the
		// component is treated as inactive, matching the policy that an
		// undefined toggle is an inactive toggle.
		logger.Warn("Activation predicate could not be evaluated, skipping component.", "error", err)
		result.Status = StatusSkipped
		result.Reason = fmt.Sprintf("predicate evaluation failed: %v", err)
		return result
	}
	if !active {
		result.Status = StatusSkipped
		result.Reason = "predicate false"
		return result
	}

	if d.opts.DryRun {
		result.Status = StatusWouldRun
		for _, step := range component.Steps {
			result.Steps = append(result.Steps, StepResult{Name: step.Name, Uses: step.Uses})
		}
		return result
	}

	start := time.Now()
	for _, step := range component.Steps {
		stepResult := d.runStep(ctx, step, table)
		result.Steps = append(result.Steps, stepResult)
		if stepResult.Err != nil {
			// Remaining steps of this component never run; the next
			// component is unaffected.
			result.Status = StatusFailed
			result.Err = fmt.Errorf("step %q: %w", step.Name, stepResult.Err)
			result.Duration = time.Since(start)
			return result
		}
	}

	result.Status = StatusExecuted
	result.Duration = time.Since(start)
	return result
}

// runStep decodes the step's arguments against the variable table and calls
// its registered handler synchronously. The dispatcher imposes no timeout;
// step kinds that need one implement it themselves.
func (d *Dispatcher) runStep(ctx context.Context, step *manifest.Step, table *vars.Table) StepResult {
	logger := ctxlog.FromContext(ctx).With("step", step.Name, "uses", step.Uses)
	stepResult := StepResult{Name: step.Name, Uses: step.Uses}
	start := time.Now()

	registered, ok := d.registry.Lookup(step.Uses)
	if !ok {
		stepResult.Err = fmt.Errorf("unknown step kind %q", step.Uses)
		return stepResult
	}

	var input any
	if registered.NewInput != nil {
		input = registered.NewInput()
	}
	if input != nil {
		body := step.Arguments
		if body == nil {
			body = hcl.EmptyBody()
		}
		if diags := gohcl.DecodeBody(body, table.EvalContext(), input); diags.HasErrors() {
			stepResult.Err = fmt.Errorf("decoding arguments: %w", diags)
			return stepResult
		}
	}

	logger.Debug("Step starting.")
	output, err := registered.Fn(ctx, input)
	stepResult.Duration = time.Since(start)
	if err != nil {
		logger.Warn("Step failed.", "error", err, "duration", stepResult.Duration)
		stepResult.Err = err
		return stepResult
	}

	stepResult.Output = output
	logger.Debug("Step finished.", "duration", stepResult.Duration)
	return stepResult
}

// evalPredicate decides whether a component is active. A nil predicate is
// unconditionally active.
func (d *Dispatcher) evalPredicate(when hcl.Expression, table *vars.Table) (bool, error) {
	if when == nil {
		return true, nil
	}
	return table.EvalBool(when)
}

func contains(set map[string]struct{}, name string) bool {
	_, ok := set[name]
	return ok
}
