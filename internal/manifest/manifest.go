// Package manifest loads the declared components of a run from HCL.
//
// A manifest is a single .hcl file or a directory of them. It declares an
// ordered list of components, each gated by a `when` predicate over the
// resolved variable table, plus optional `variant` blocks that derive a
// single tagged selection from boolean toggles before dispatch begins.
//
// Predicates are evaluated independently: the dispatcher never enforces
// exclusivity between components, so two predicates that are both true both
// activate. When two components are meant to be alternatives, declare a
// variant and gate each component on its value instead of authoring
// complementary toggles by hand.
package manifest

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/envgate/internal/ctxlog"
	"github.com/vk/envgate/internal/fsutil"
)

// Manifest is the ordered set of declared components and variants.
type Manifest struct {
	Components []*Component
	Variants   []*Variant
}

// fileRoot mirrors the set of top-level blocks allowed in a manifest file.
type fileRoot struct {
	Components []*hclComponent `hcl:"component,block"`
	Variants   []*hclVariant   `hcl:"variant,block"`
}

type hclComponent struct {
	Name        string         `hcl:"name,label"`
	When        hcl.Expression `hcl:"when,optional"`
	Description string         `hcl:"description,optional"`
	Steps       []*hclStep     `hcl:"step,block"`
}

type hclStep struct {
	Name      string          `hcl:"name,label"`
	Uses      string          `hcl:"uses"`
	Arguments *hclArgumentSet `hcl:"arguments,block"`
}

type hclArgumentSet struct {
	Body hcl.Body `hcl:",remain"`
}

type hclVariant struct {
	Name    string       `hcl:"name,label"`
	Default string       `hcl:"default,optional"`
	Options []*hclOption `hcl:"option,block"`
}

type hclOption struct {
	Name string         `hcl:"name,label"`
	When hcl.Expression `hcl:"when"`
}

// Load parses the manifest at path, which may be a single .hcl file or a
// directory searched recursively. Files are loaded in lexical path order and
// component declaration order follows file order. Component names must be
// unique across the whole manifest.
func Load(ctx context.Context, path string) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find manifest files in %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl manifest files found at %s", path)
	}
	sort.Strings(files)
	logger.Debug("Discovered manifest files.", "count", len(files))

	m := &Manifest{}
	parser := hclparse.NewParser()
	seenComponents := make(map[string]string)
	seenVariants := make(map[string]string)

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse manifest file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode manifest file %s: %w", file, diags)
		}

		for _, parsed := range root.Components {
			if prev, dup := seenComponents[parsed.Name]; dup {
				return nil, fmt.Errorf("component %q declared in both %s and %s", parsed.Name, prev, file)
			}
			seenComponents[parsed.Name] = file

			component, err := newComponent(parsed, file)
			if err != nil {
				return nil, fmt.Errorf("manifest file %s: %w", file, err)
			}
			m.Components = append(m.Components, component)
		}

		for _, parsed := range root.Variants {
			if prev, dup := seenVariants[parsed.Name]; dup {
				return nil, fmt.Errorf("variant %q declared in both %s and %s", parsed.Name, prev, file)
			}
			seenVariants[parsed.Name] = file

			variant, err := newVariant(parsed, file)
			if err != nil {
				return nil, fmt.Errorf("manifest file %s: %w", file, err)
			}
			m.Variants = append(m.Variants, variant)
		}
	}

	logger.Debug("Manifest loaded.", "components", len(m.Components), "variants", len(m.Variants))
	return m, nil
}
