package distributed

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/policy"
)

// RateLimitOptions bounds the number of calls allowed within a sliding
// window of Period, shared across every process that points Key at the
// same Redis keyspace — the cluster-wide analogue of
// policy.RateLimitOptions.
type RateLimitOptions struct {
	Limit  int
	Period time.Duration
	// Key namespaces the sorted set backing this limiter's window. Every
	// process enforcing the same budget (e.g. one model provider's
	// requests-per-minute cap) must share the same Key.
	Key string
	// Local, when set, smooths this process's own pacing with an
	// x/time/rate token bucket before a call ever reaches Redis — the
	// same split the teacher's AdaptiveRateLimiter draws between its
	// local rate.Limiter and the cluster-coordinated budget behind it
	// (features/model/middleware/ratelimit.go). The distributed window
	// remains the hard cap regardless of Local's setting.
	Local *rate.Limiter
}

// RateLimit is policy.RateLimit's cluster-coordinated counterpart: the
// sliding window it enforces lives in a Redis sorted set (score = entry
// time) rather than an in-process slice, so every process sharing Key
// draws against the same budget. Attach wires it to a conversation's
// eventbus.Bus exactly the way policy.RateLimit does.
type RateLimit struct {
	client limiterClient
	opts   RateLimitOptions
}

// NewRateLimit builds a RateLimit policy backed by client.
func NewRateLimit(client *RedisClient, opts RateLimitOptions) *RateLimit {
	return &RateLimit{client: client, opts: opts}
}

func (r *RateLimit) Name() string { return "DistributedRateLimitPolicy" }

// Attach subscribes the limiter to bus so it starts recording
// completions against the shared Redis window.
func (r *RateLimit) Attach(bus *eventbus.Bus) eventbus.Subscription {
	return bus.On(r.handleEvent)
}

func (r *RateLimit) handleEvent(evt eventbus.Event) {
	switch evt.Name {
	case "request_success":
		r.record(context.Background(), time.Now())
	case "child_event":
		if child, ok := evt.Payload.(eventbus.ChildEvent); ok {
			r.handleEvent(eventbus.Event{Name: child.Name, Payload: child.Payload})
		}
	}
}

func (r *RateLimit) record(ctx context.Context, at time.Time) {
	score := float64(at.UnixNano())
	_ = r.client.zAdd(ctx, r.opts.Key, score, uuid.NewString())
	_ = r.client.expire(ctx, r.opts.Key, r.opts.Period)
}

// waitDuration reports how long Execute must sleep before calling fn,
// given the shared window's current contents.
func (r *RateLimit) waitDuration(ctx context.Context) (time.Duration, error) {
	now := time.Now()
	cutoff := now.Add(-r.opts.Period)
	if err := r.client.zRemRangeByScore(ctx, r.opts.Key, float64(cutoff.UnixNano())); err != nil {
		return 0, err
	}

	count, err := r.client.zCard(ctx, r.opts.Key)
	if err != nil {
		return 0, err
	}
	if count < int64(r.opts.Limit) {
		return 0, nil
	}

	oldest, ok, err := r.client.oldestScore(ctx, r.opts.Key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	freesAt := time.Unix(0, int64(oldest)).Add(r.opts.Period)
	if wait := freesAt.Sub(now); wait > 0 {
		return wait, nil
	}
	return 0, nil
}

func (r *RateLimit) Execute(ctx context.Context, token cancel.Token, fn policy.Fn) (policy.Result, error) {
	if r.opts.Local != nil {
		if wait := r.opts.Local.Reserve().Delay(); wait > 0 {
			if err := cancel.Sleep(ctx, wait, token); err != nil {
				return policy.Result{}, err
			}
		}
	}

	wait, err := r.waitDuration(ctx)
	if err != nil {
		return policy.Result{}, err
	}
	if wait > 0 {
		if err := cancel.Sleep(ctx, wait, token); err != nil {
			return policy.Result{}, err
		}
	}

	v, fnErr, cancelled := race(ctx, token, fn)
	if cancelled || isCancellation(fnErr) {
		if fnErr == nil {
			fnErr = cancel.OperationCanceled
		}
		return policy.Result{}, fnErr
	}
	if fnErr != nil {
		return policy.Result{OK: false, Err: fnErr, Metadata: map[string]any{"policy": "distributed_rate_limit"}}, nil
	}
	return policy.Result{OK: true, Value: v, Metadata: map[string]any{"policy": "distributed_rate_limit"}}, nil
}

// race runs fn on its own goroutine and returns as soon as fn completes,
// token is cancelled, or ctx is done — the same three-way race
// policy.race implements, kept here since that helper is unexported.
func race(ctx context.Context, token cancel.Token, fn policy.Fn) (value any, err error, cancelled bool) {
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

func isCancellation(err error) bool {
	return errors.Is(err, cancel.OperationCanceled)
}
