package dispatch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/envgate/internal/dispatch"
	"github.com/vk/envgate/internal/manifest"
	"github.com/vk/envgate/internal/registry"
	"github.com/vk/envgate/internal/vars"
	"github.com/zclconf/go-cty/cty"
)

// loadComponents parses an HCL snippet into manifest components.
func loadComponents(t *testing.T, hclSrc string) []*manifest.Component {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(hclSrc), 0o644))
	m, err := manifest.Load(context.Background(), dir)
	require.NoError(t, err)
	return m.Components
}

// recorder tracks which steps ran, by token, in invocation order.
type recorder struct {
	mu     sync.Mutex
	tokens []string
}

func (rec *recorder) record(token string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.tokens = append(rec.tokens, token)
}

func (rec *recorder) Tokens() []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string(nil), rec.tokens...)
}

type recordInput struct {
	Token string `hcl:"token"`
}

// newTestRegistry registers 'record' and 'fail' step kinds backed by rec.
func newTestRegistry(t *testing.T, rec *recorder) *registry.Registry {
	t.Helper()
	reg := registry.New()
	reg.RegisterStep("record", &registry.RegisteredStep{
		NewInput: func() any { return new(recordInput) },
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			rec.record(input.(*recordInput).Token)
			return cty.NilVal, nil
		},
	})
	reg.RegisterStep("fail", &registry.RegisteredStep{
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return cty.NilVal, errors.New("boom")
		},
	})
	require.NoError(t, reg.Validate())
	return reg
}

func newTable(pairs map[string]cty.Value) *vars.Table {
	table := vars.New()
	for k, v := range pairs {
		table.Set(k, v)
	}
	table.Freeze()
	return table
}

func TestRun_TogglesGateComponents(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	components := loadComponents(t, `
		component "nginx" {
			when = var.enable_nginx_lb
			step "mark" {
				uses = "record"
				arguments { token = "nginx" }
			}
		}
		component "apache" {
			when = var.enable_apache_lb
			step "mark" {
				uses = "record"
				arguments { token = "apache" }
			}
		}
	`)
	table := newTable(map[string]cty.Value{
		"enable_nginx_lb":  cty.True,
		"enable_apache_lb": cty.False,
	})
	rec := &recorder{}
	d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{})

	// --- Act ---
	results := d.Run(context.Background(), components, table)

	// --- Assert ---
	require.Len(t, results, 2)
	require.Equal(t, dispatch.StatusExecuted, results[0].Status)
	require.Equal(t, dispatch.StatusSkipped, results[1].Status)
	require.Equal(t, []string{"nginx"}, rec.Tokens())
}

func TestRun_ResultsPreserveDeclarationOrder(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "a" {
			when = var.off
			step "mark" {
				uses = "record"
				arguments { token = "a" }
			}
		}
		component "b" {
			step "mark" {
				uses = "record"
				arguments { token = "b" }
			}
		}
		component "c" {
			when = var.off
			step "mark" {
				uses = "record"
				arguments { token = "c" }
			}
		}
		component "d" {
			step "mark" {
				uses = "record"
				arguments { token = "d" }
			}
		}
	`)
	rec := &recorder{}
	d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{})

	results := d.Run(context.Background(), components, newTable(nil))

	var names []string
	for _, r := range results {
		names = append(names, r.Component)
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, names,
		"results must appear in declaration order regardless of predicate outcomes")
	require.Equal(t, []string{"b", "d"}, rec.Tokens())
}

func TestRun_ComplementaryPredicates(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "on" {
			when = var.p
			step "mark" {
				uses = "record"
				arguments { token = "on" }
			}
		}
		component "off" {
			when = !var.p
			step "mark" {
				uses = "record"
				arguments { token = "off" }
			}
		}
	`)

	for _, p := range []bool{true, false} {
		rec := &recorder{}
		d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{})
		table := newTable(map[string]cty.Value{"p": cty.BoolVal(p)})

		d.Run(context.Background(), components, table)

		require.Len(t, rec.Tokens(), 1, "exactly one of two complementary components activates")
	}
}

func TestRun_NoImplicitExclusivity(t *testing.T) {
	t.Parallel()

	// Two independently-authored predicates that are both true both
	// activate; exclusivity is the predicate author's job (or a variant's).
	components := loadComponents(t, `
		component "nginx" {
			when = var.enable_nginx_lb
			step "mark" {
				uses = "record"
				arguments { token = "nginx" }
			}
		}
		component "apache" {
			when = var.enable_apache_lb
			step "mark" {
				uses = "record"
				arguments { token = "apache" }
			}
		}
	`)
	table := newTable(map[string]cty.Value{
		"enable_nginx_lb":  cty.True,
		"enable_apache_lb": cty.True,
	})
	rec := &recorder{}
	d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{})

	d.Run(context.Background(), components, table)

	require.Equal(t, []string{"nginx", "apache"}, rec.Tokens())
}

func TestRun_MissingToggleSkipsWithoutError(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "nginx" {
			when = var.enable_nginx_lb
			step "mark" {
				uses = "record"
				arguments { token = "nginx" }
			}
		}
	`)
	rec := &recorder{}
	d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{})

	results := d.Run(context.Background(), components, newTable(nil))

	require.Equal(t, dispatch.StatusSkipped, results[0].Status)
	require.Nil(t, results[0].Err, "an undefined toggle skips, it never fails")
	require.Empty(t, rec.Tokens())
}

func TestRun_PredicateTypeMismatchSkipsWithWarning(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "odd" {
			when = var.replicas
			step "mark" {
				uses = "record"
				arguments { token = "odd" }
			}
		}
	`)
	table := newTable(map[string]cty.Value{
		"replicas": cty.ListVal([]cty.Value{cty.NumberIntVal(1)}),
	})
	rec := &recorder{}
	d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{})

	results := d.Run(context.Background(), components, table)

	require.Equal(t, dispatch.StatusSkipped, results[0].Status)
	require.Contains(t, results[0].Reason, "predicate evaluation failed")
	require.Empty(t, rec.Tokens())
}

func TestRun_ComponentFailureIsIsolated(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "first" {
			step "mark" {
				uses = "record"
				arguments { token = "first" }
			}
		}
		component "breaks" {
			step "explode" { uses = "fail" }
			step "never" {
				uses = "record"
				arguments { token = "never" }
			}
		}
		component "last" {
			step "mark" {
				uses = "record"
				arguments { token = "last" }
			}
		}
	`)
	rec := &recorder{}
	d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{})

	results := d.Run(context.Background(), components, newTable(nil))

	require.Equal(t, dispatch.StatusExecuted, results[0].Status)
	require.Equal(t, dispatch.StatusFailed, results[1].Status)
	require.ErrorContains(t, results[1].Err, "boom")
	require.Equal(t, dispatch.StatusExecuted, results[2].Status,
		"a failed component must not stop later components by default")
	require.Equal(t, []string{"first", "last"}, rec.Tokens(),
		"steps after a failed step in the same component never run")

	failed := dispatch.Failed(results)
	require.Len(t, failed, 1)
	require.Equal(t, "breaks", failed[0].Component)
}

func TestRun_FailFastMarksRemainingSkipped(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "breaks" {
			step "explode" { uses = "fail" }
		}
		component "after" {
			step "mark" {
				uses = "record"
				arguments { token = "after" }
			}
		}
	`)
	rec := &recorder{}
	d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{FailFast: true})

	results := d.Run(context.Background(), components, newTable(nil))

	require.Len(t, results, 2, "even a fail-fast run reports every declared component")
	require.Equal(t, dispatch.StatusFailed, results[0].Status)
	require.Equal(t, dispatch.StatusSkipped, results[1].Status)
	require.Contains(t, results[1].Reason, "fail-fast")
	require.Empty(t, rec.Tokens())
}

func TestRun_DryRunInvokesNothing(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "nginx" {
			when = var.enable_nginx_lb
			step "mark" {
				uses = "record"
				arguments { token = "nginx" }
			}
		}
		component "apache" {
			when = var.enable_apache_lb
			step "mark" {
				uses = "record"
				arguments { token = "apache" }
			}
		}
	`)
	table := newTable(map[string]cty.Value{
		"enable_nginx_lb":  cty.True,
		"enable_apache_lb": cty.False,
	})
	rec := &recorder{}
	d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{DryRun: true})

	results := d.Run(context.Background(), components, table)

	require.Equal(t, dispatch.StatusWouldRun, results[0].Status)
	require.Len(t, results[0].Steps, 1, "dry run reports the steps that would execute")
	require.Equal(t, dispatch.StatusSkipped, results[1].Status)
	require.Empty(t, rec.Tokens(), "dry run must not invoke any handler")
}

func TestRun_LimitSkipsUnselectedComponents(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "nginx" {
			step "mark" {
				uses = "record"
				arguments { token = "nginx" }
			}
		}
		component "apache" {
			step "mark" {
				uses = "record"
				arguments { token = "apache" }
			}
		}
	`)
	rec := &recorder{}
	d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{Limit: []string{"apache"}})

	results := d.Run(context.Background(), components, newTable(nil))

	require.Equal(t, dispatch.StatusSkipped, results[0].Status)
	require.Equal(t, "not selected", results[0].Reason)
	require.Equal(t, dispatch.StatusExecuted, results[1].Status)
	require.Equal(t, []string{"apache"}, rec.Tokens())
}

func TestRun_UnknownStepKindFailsComponent(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "nginx" {
			step "mark" { uses = "no_such_kind" }
		}
	`)
	d := dispatch.New(newTestRegistry(t, &recorder{}), dispatch.Options{})

	results := d.Run(context.Background(), components, newTable(nil))

	require.Equal(t, dispatch.StatusFailed, results[0].Status)
	require.ErrorContains(t, results[0].Err, `unknown step kind "no_such_kind"`)
}

func TestRun_MissingRequiredArgumentFailsStep(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "nginx" {
			step "mark" {
				uses = "record"
				arguments {}
			}
		}
	`)
	d := dispatch.New(newTestRegistry(t, &recorder{}), dispatch.Options{})

	results := d.Run(context.Background(), components, newTable(nil))

	require.Equal(t, dispatch.StatusFailed, results[0].Status)
	require.ErrorContains(t, results[0].Err, "decoding arguments")
}

func TestRun_ArgumentsEvaluateAgainstTable(t *testing.T) {
	t.Parallel()

	components := loadComponents(t, `
		component "nginx" {
			step "mark" {
				uses = "record"
				arguments { token = "lb is ${var.lb_kind}" }
			}
		}
	`)
	table := newTable(map[string]cty.Value{"lb_kind": cty.StringVal("nginx")})
	rec := &recorder{}
	d := dispatch.New(newTestRegistry(t, rec), dispatch.Options{})

	d.Run(context.Background(), components, table)

	require.Equal(t, []string{"lb is nginx"}, rec.Tokens())
}
