package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// Component is a named, independently activatable unit of declared work.
type Component struct {
	Name        string
	Description string

	// When is the activation predicate. A nil expression means the
	// component is unconditionally active.
	When hcl.Expression

	// Steps run in declaration order while the component is active.
	Steps []*Step

	// File is the manifest file the component was declared in.
	File string
}

// Step is a single configured invocation of a registered step kind. The
// arguments body is kept as raw HCL and decoded against the variable table's
// eval context only when the step actually runs.
type Step struct {
	Name      string
	Uses      string
	Arguments hcl.Body
}

func newComponent(parsed *hclComponent, file string) (*Component, error) {
	component := &Component{
		Name:        parsed.Name,
		Description: parsed.Description,
		When:        normalizeExpr(parsed.When),
		File:        file,
	}

	seen := make(map[string]struct{}, len(parsed.Steps))
	for _, s := range parsed.Steps {
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("component %q: duplicate step %q", parsed.Name, s.Name)
		}
		seen[s.Name] = struct{}{}

		step := &Step{Name: s.Name, Uses: s.Uses}
		if s.Arguments != nil {
			step.Arguments = s.Arguments.Body
		}
		component.Steps = append(component.Steps, step)
	}

	return component, nil
}

// normalizeExpr maps the decoder's stand-in for an absent optional
// expression (a static null with no variable references) to nil, so a
// missing `when` reads as unconditionally active.
func normalizeExpr(expr hcl.Expression) hcl.Expression {
	if expr == nil {
		return nil
	}
	if len(expr.Variables()) != 0 {
		return expr
	}
	if v, diags := expr.Value(nil); !diags.HasErrors() && v.IsNull() {
		return nil
	}
	return expr
}
