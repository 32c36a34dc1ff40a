package policy

import (
	"context"

	"github.com/simulacra-ai/conversa/cancel"
)

// Noop runs fn directly, racing only against cancellation. It is useful as
// a Composite's innermost layer placeholder, or standalone when no
// cross-cutting behavior is wanted but the Policy interface is required.
type Noop struct{}

func (Noop) Name() string { return "NoopPolicy" }

func (Noop) Execute(ctx context.Context, token cancel.Token, fn Fn) (Result, error) {
	v, err, cancelled := race(ctx, token, fn)
	if cancelled || isCancellation(err) {
		if err == nil {
			err = cancel.OperationCanceled
		}
		return Result{}, err
	}
	if err != nil {
		return Result{OK: false, Err: err, Metadata: map[string]any{"policy": "noop"}}, nil
	}
	return Result{OK: true, Value: v, Metadata: map[string]any{"policy": "noop"}}, nil
}
