// Package vars implements the variable table that carries resolved
// environment configuration through a run.
//
// The table is populated exactly once, by the configuration resolver plus
// variant derivation, and is then frozen. Everything downstream (predicate
// evaluation, step argument decoding) only reads it. Values are stored as
// cty values so they can participate directly in HCL expression evaluation.
package vars

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Table maps variable names to cty values. Keys are unique; on duplicate
// writes the last value wins. After Freeze, Set panics.
type Table struct {
	values map[string]cty.Value
	frozen bool
}

// New creates an empty, mutable table.
func New() *Table {
	return &Table{values: make(map[string]cty.Value)}
}

// Set stores a value under key, replacing any previous value.
func (t *Table) Set(key string, val cty.Value) {
	if t.frozen {
		panic(fmt.Sprintf("vars: Set(%q) on frozen table", key))
	}
	t.values[key] = val
}

// SetNative converts a decoded Go value (from YAML/JSON/TOML) to cty and
// stores it under key.
func (t *Table) SetNative(key string, val any) error {
	ctyVal, err := toCty(val)
	if err != nil {
		return fmt.Errorf("variable %q: %w", key, err)
	}
	t.Set(key, ctyVal)
	return nil
}

// Freeze makes the table read-only. Resolution calls this once, before the
// table is handed to the dispatcher.
func (t *Table) Freeze() {
	t.frozen = true
}

// Get returns the value for key and whether it exists.
func (t *Table) Get(key string) (cty.Value, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Bool reports whether key holds a true boolean. Missing keys, null values,
// and non-boolean values all report false: an undefined toggle is inactive,
// never an error.
func (t *Table) Bool(key string) bool {
	v, ok := t.values[key]
	if !ok || v.IsNull() || v.Type() != cty.Bool {
		return false
	}
	return v.True()
}

// Len returns the number of variables in the table.
func (t *Table) Len() int {
	return len(t.values)
}

// Keys returns all variable names in lexical order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// evalFunctions is the function table exposed to manifest expressions.
var evalFunctions = map[string]function.Function{
	"format": stdlib.FormatFunc,
	"length": stdlib.LengthFunc,
	"lower":  stdlib.LowerFunc,
	"max":    stdlib.MaxFunc,
	"min":    stdlib.MinFunc,
	"upper":  stdlib.UpperFunc,
}

// EvalContext builds an hcl.EvalContext exposing the table as the `var`
// object. Any `var.<name>` traversal referenced by the given expressions but
// absent from the table is filled with cty.False, so predicates over
// undefined toggles evaluate to inactive instead of erroring.
func (t *Table) EvalContext(exprs ...hcl.Expression) *hcl.EvalContext {
	values := make(map[string]cty.Value, len(t.values))
	for k, v := range t.values {
		values[k] = v
	}

	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, traversal := range expr.Variables() {
			if traversal.RootName() != "var" || len(traversal) < 2 {
				continue
			}
			attr, ok := traversal[1].(hcl.TraverseAttr)
			if !ok {
				continue
			}
			if _, exists := values[attr.Name]; !exists {
				values[attr.Name] = cty.False
			}
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": cty.ObjectVal(values),
		},
		Functions: evalFunctions,
	}
}

// EvalBool evaluates a toggle or predicate expression against the table and
// coerces the result to a boolean. Null results are false. Diagnostics and
// unconvertible results are returned as errors; callers decide whether that
// is fatal (variant derivation conflicts) or a logged skip (predicates).
func (t *Table) EvalBool(expr hcl.Expression) (bool, error) {
	val, diags := expr.Value(t.EvalContext(expr))
	if diags.HasErrors() {
		return false, diags
	}
	if val.IsNull() {
		return false, nil
	}
	boolVal, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, err
	}
	return boolVal.True(), nil
}
