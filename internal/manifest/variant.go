package manifest

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/envgate/internal/ctxlog"
	"github.com/vk/envgate/internal/vars"
	"github.com/zclconf/go-cty/cty"
)

// defaultOption is the value a variant takes when no option's toggle is true
// and the variant declares no explicit default.
const defaultOption = "none"

// Variant derives a single tagged selection from boolean toggles. At most
// one option may evaluate true for a given table; conflicting toggles abort
// the run before dispatch instead of activating both alternatives.
type Variant struct {
	Name    string
	Default string
	Options []*Option
	File    string
}

// Option is one selectable value of a variant, guarded by a toggle
// expression over the variable table.
type Option struct {
	Name string
	When hcl.Expression
}

// VariantConflictError reports that more than one option of a variant
// evaluated true for the resolved configuration.
type VariantConflictError struct {
	Variant string
	Options []string
}

func (e *VariantConflictError) Error() string {
	return fmt.Sprintf("variant %q: conflicting toggles, options %v are all enabled", e.Variant, e.Options)
}

func newVariant(parsed *hclVariant, file string) (*Variant, error) {
	variant := &Variant{
		Name:    parsed.Name,
		Default: parsed.Default,
		File:    file,
	}
	if variant.Default == "" {
		variant.Default = defaultOption
	}
	if len(parsed.Options) == 0 {
		return nil, fmt.Errorf("variant %q: at least one option block is required", parsed.Name)
	}

	seen := make(map[string]struct{}, len(parsed.Options))
	for _, o := range parsed.Options {
		if _, dup := seen[o.Name]; dup {
			return nil, fmt.Errorf("variant %q: duplicate option %q", parsed.Name, o.Name)
		}
		seen[o.Name] = struct{}{}
		variant.Options = append(variant.Options, &Option{Name: o.Name, When: o.When})
	}

	return variant, nil
}

// Derive evaluates every variant of the manifest against the table and
// writes each winning option name back into it. It must run after
// resolution and before the table freezes. When multiple options of one
// variant are true the derivation fails with a *VariantConflictError.
func (m *Manifest) Derive(ctx context.Context, table *vars.Table) error {
	logger := ctxlog.FromContext(ctx)

	for _, variant := range m.Variants {
		var enabled []string
		for _, option := range variant.Options {
			active, err := table.EvalBool(option.When)
			if err != nil {
				logger.Warn("Variant option toggle could not be evaluated, treating as disabled.",
					"variant", variant.Name, "option", option.Name, "error", err)
				continue
			}
			if active {
				enabled = append(enabled, option.Name)
			}
		}

		if len(enabled) > 1 {
			return &VariantConflictError{Variant: variant.Name, Options: enabled}
		}

		winner := variant.Default
		if len(enabled) == 1 {
			winner = enabled[0]
		}
		table.Set(variant.Name, cty.StringVal(winner))
		logger.Debug("Variant derived.", "variant", variant.Name, "value", winner)
	}

	return nil
}
