// Package policy wraps a request-execution callable with retry, rate, and
// token budgeting, any combination of which can be layered with Composite.
// Every built-in races its callable against cancellation so a cancelled
// token interrupts a backoff sleep or an in-flight call immediately,
// rather than being caught and reported as an ordinary failure.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/simulacra-ai/conversa/cancel"
)

type (
	// Fn is the callable a Policy wraps. It receives the context Execute
	// was called with (already tied to the racing cancellation) and
	// returns a value or an error.
	Fn func(ctx context.Context) (any, error)

	// Result is a policy's non-cancelled outcome: either OK with a Value,
	// or not OK with Err, plus free-form Metadata naming the policy and
	// any counters it tracked (attempt counts, nesting depth, ...).
	Result struct {
		OK       bool
		Value    any
		Err      error
		Metadata map[string]any
	}

	// Policy executes fn under some cross-cutting concern (retry, rate
	// limiting, token budgeting, or a composition of these). Execute
	// returns a non-nil error only when the cancellation token fired —
	// that error must propagate to the caller, never be captured inside
	// Result. A nil error with Result.OK == false means fn ran and failed
	// on its own terms.
	Policy interface {
		Execute(ctx context.Context, token cancel.Token, fn Fn) (Result, error)
	}

	// Named policies surface a short label Composite uses when nesting
	// metadata ("RetryPolicy[1]", "RateLimitPolicy[0]", ...). Built-ins
	// all implement it; Composite falls back to a reflect-based name for
	// policies that don't.
	Named interface {
		Name() string
	}
)

// Execute adapts a Policy call to a typed return value, sparing every
// caller from asserting Result.Value back to T.
func Execute[T any](ctx context.Context, p Policy, token cancel.Token, fn func(context.Context) (T, error)) (T, map[string]any, error) {
	wrapped := func(ctx context.Context) (any, error) { return fn(ctx) }
	res, err := p.Execute(ctx, token, wrapped)
	var zero T
	if err != nil {
		return zero, nil, err
	}
	if !res.OK {
		return zero, res.Metadata, res.Err
	}
	v, _ := res.Value.(T)
	return v, res.Metadata, nil
}

// isCancellation reports whether err represents the token firing, as
// opposed to an ordinary failure fn (or a nested policy) returned.
func isCancellation(err error) bool {
	return errors.Is(err, cancel.OperationCanceled)
}

// race runs fn on its own goroutine and returns as soon as one of three
// things happens: fn completes, token is cancelled, or ctx is done.
// cancelled is true only when the race itself observed cancellation —
// not when fn's own error happens to be a cancellation sentinel bubbling
// up from a nested policy (callers check isCancellation(err) for that).
func race(ctx context.Context, token cancel.Token, fn Fn) (value any, err error, cancelled bool) {
	if cerr := token.ThrowIfCancellationRequested(); cerr != nil {
		return nil, cerr, true
	}
	type out struct {
		v   any
		err error
	}
	ch := make(chan out, 1)
	go func() {
		v, err := fn(ctx)
		ch <- out{v, err}
	}()
	select {
	case o := <-ch:
		return o.v, o.err, false
	case <-token.AwaitCancellation():
		return nil, cancel.OperationCanceled, true
	case <-ctx.Done():
		return nil, ctx.Err(), true
	}
}

// layeredError lets Composite propagate an inner layer's failure (and its
// metadata) through an outer layer's retry/backoff logic without losing
// the original error's identity for errors.Is/errors.As.
type layeredError struct {
	inner    error
	metadata map[string]any
}

func (e *layeredError) Error() string { return e.inner.Error() }
func (e *layeredError) Unwrap() error { return e.inner }

func policyName(p Policy) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}
