package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/envgate/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Recorder registers two step kinds for tests: 'test_record', which appends
// its token to an in-memory log, and 'test_fail', which always errors.
type Recorder struct {
	mu     sync.Mutex
	tokens []string
}

// RecordInput is the arguments struct for the 'test_record' step kind.
type RecordInput struct {
	Token string `hcl:"token"`
}

// Tokens returns the tokens recorded so far, in invocation order.
func (rec *Recorder) Tokens() []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string(nil), rec.tokens...)
}

// Register registers the test step kinds with the given registry.
func (rec *Recorder) Register(r *registry.Registry) {
	r.RegisterStep("test_record", &registry.RegisteredStep{
		NewInput: func() any { return new(RecordInput) },
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			in := input.(*RecordInput)
			rec.mu.Lock()
			rec.tokens = append(rec.tokens, in.Token)
			rec.mu.Unlock()
			return cty.StringVal(in.Token), nil
		},
	})

	r.RegisterStep("test_fail", &registry.RegisteredStep{
		NewInput: nil,
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return cty.NilVal, errors.New("step was built to fail")
		},
	})
}
