package policy

import (
	"context"
	"time"

	"github.com/simulacra-ai/conversa/cancel"
)

// RetryOptions configures Retry. Retryable defaults to DefaultRetryable
// when nil.
type RetryOptions struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	BackoffFactor  float64
	Retryable      func(err error) bool
}

// DefaultRetryOptions is what a Conversation falls back to when no policy
// is configured: three attempts, one second initial backoff, doubling.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		BackoffFactor:  2,
	}
}

// Retry re-invokes fn with exponential backoff while the failure is
// classified as retryable and attempts remain. A cancellation observed
// either mid-call or mid-backoff-sleep propagates immediately instead of
// being treated as an exhausted retry.
type Retry struct {
	opts RetryOptions
}

// NewRetry builds a Retry policy, filling in DefaultRetryOptions for any
// zero-valued field and DefaultRetryable for a nil Retryable.
func NewRetry(opts RetryOptions) *Retry {
	defaults := DefaultRetryOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaults.InitialBackoff
	}
	if opts.BackoffFactor <= 0 {
		opts.BackoffFactor = defaults.BackoffFactor
	}
	if opts.Retryable == nil {
		opts.Retryable = DefaultRetryable
	}
	return &Retry{opts: opts}
}

func (r *Retry) Name() string { return "RetryPolicy" }

func (r *Retry) Execute(ctx context.Context, token cancel.Token, fn Fn) (Result, error) {
	backoff := r.opts.InitialBackoff
	var lastErr error
	attempts := 0

	for attempts < r.opts.MaxAttempts {
		attempts++

		v, err, cancelled := race(ctx, token, fn)
		if cancelled || isCancellation(err) {
			if err == nil {
				err = cancel.OperationCanceled
			}
			return Result{}, err
		}
		if err == nil {
			return Result{
				OK:    true,
				Value: v,
				Metadata: map[string]any{
					"policy":   "retry",
					"attempts": attempts,
				},
			}, nil
		}

		lastErr = err
		if attempts >= r.opts.MaxAttempts || !r.opts.Retryable(err) {
			break
		}

		if serr := cancel.Sleep(ctx, backoff, token); serr != nil {
			return Result{}, serr
		}
		backoff = time.Duration(float64(backoff) * r.opts.BackoffFactor)
	}

	return Result{
		OK:  false,
		Err: lastErr,
		Metadata: map[string]any{
			"policy":   "retry",
			"attempts": attempts,
		},
	}, nil
}
