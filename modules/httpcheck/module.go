// Package httpcheck provides the 'http_check' step kind: probe a URL and
// fail the step unless the response status matches the expectation.
package httpcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/envgate/internal/ctxlog"
	"github.com/vk/envgate/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	URL          string `hcl:"url"`
	Method       string `hcl:"method,optional"`
	ExpectStatus int    `hcl:"expect_status,optional"`
	Timeout      string `hcl:"timeout,optional"`
}

// OnRunHTTPCheck is the handler for the 'http_check' step kind.
func OnRunHTTPCheck(ctx context.Context, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	method := in.Method
	if method == "" {
		method = http.MethodGet
	}
	expect := in.ExpectStatus
	if expect == 0 {
		expect = http.StatusOK
	}

	client := &http.Client{}
	if in.Timeout != "" {
		timeout, err := time.ParseDuration(in.Timeout)
		if err != nil {
			return cty.NilVal, fmt.Errorf("invalid timeout %q: %w", in.Timeout, err)
		}
		client.Timeout = timeout
	}

	req, err := http.NewRequestWithContext(ctx, method, in.URL, nil)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to create request: %w", err)
	}

	logger.Debug("Probing URL.", "method", method, "url", in.URL)
	resp, err := client.Do(req)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expect {
		return cty.NilVal, fmt.Errorf("unexpected status %d for %s (expected %d)", resp.StatusCode, in.URL, expect)
	}

	logger.Debug("Probe succeeded.", "status", resp.Status)
	return cty.ObjectVal(map[string]cty.Value{
		"status_code": cty.NumberIntVal(int64(resp.StatusCode)),
	}), nil
}

// Register registers the handler with the dispatcher's registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("http_check", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunHTTPCheck,
	})
}
