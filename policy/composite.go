package policy

import (
	"context"
	"fmt"

	"github.com/simulacra-ai/conversa/cancel"
)

// Composite layers policies outer-to-inner: Layers[0].Execute wraps a
// callable that itself invokes Layers[1].Execute, and so on down to fn.
// Each layer can observe and react to (e.g. retry) a failure from the
// layers nested inside it. A cancellation raised at any depth propagates
// straight out without being captured by an outer layer's retry logic.
type Composite struct {
	layers []Policy
}

// NewComposite builds a Composite from layers, outermost first.
func NewComposite(layers ...Policy) *Composite {
	return &Composite{layers: layers}
}

func (c *Composite) Name() string { return "CompositePolicy" }

func (c *Composite) Execute(ctx context.Context, token cancel.Token, fn Fn) (Result, error) {
	return c.executeAt(ctx, token, fn, 0)
}

func (c *Composite) executeAt(ctx context.Context, token cancel.Token, fn Fn, i int) (Result, error) {
	if i >= len(c.layers) {
		v, err, cancelled := race(ctx, token, fn)
		if cancelled || isCancellation(err) {
			if err == nil {
				err = cancel.OperationCanceled
			}
			return Result{}, err
		}
		if err != nil {
			return Result{OK: false, Err: err}, nil
		}
		return Result{OK: true, Value: v}, nil
	}

	layer := c.layers[i]
	next := func(ctx context.Context) (any, error) {
		res, err := c.executeAt(ctx, token, fn, i+1)
		if err != nil {
			return nil, err
		}
		if !res.OK {
			return nil, &layeredError{inner: res.Err, metadata: res.Metadata}
		}
		return res.Value, nil
	}

	res, err := layer.Execute(ctx, token, next)
	if err != nil {
		return Result{}, err
	}

	name := fmt.Sprintf("%s[%d]", policyName(layer), i)
	meta := res.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	res.Metadata = map[string]any{
		name:              meta,
		"execution_order": i,
	}
	return res, nil
}
