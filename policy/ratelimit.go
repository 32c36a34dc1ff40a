package policy

import (
	"context"
	"sync"
	"time"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/eventbus"
)

// RateLimitOptions bounds the number of calls allowed within a sliding
// window of Period.
type RateLimitOptions struct {
	Limit  int
	Period time.Duration
}

// RateLimit enforces a sliding-window cap on how often Execute may invoke
// fn. It tracks completions it is told about via Attach, which subscribes
// to "request_success" on a conversation's bus and recurses into
// eventbus.ChildEvent so descendants count against the same budget.
type RateLimit struct {
	opts RateLimitOptions

	mu         sync.Mutex
	timestamps []time.Time
}

// NewRateLimit builds a RateLimit policy from opts.
func NewRateLimit(opts RateLimitOptions) *RateLimit {
	return &RateLimit{opts: opts}
}

func (r *RateLimit) Name() string { return "RateLimitPolicy" }

// Attach subscribes the limiter to bus so it starts counting completions.
// The returned Subscription controls the lifetime of that subscription;
// callers normally let it live for as long as the conversation does.
func (r *RateLimit) Attach(bus *eventbus.Bus) eventbus.Subscription {
	return bus.On(r.handleEvent)
}

func (r *RateLimit) handleEvent(evt eventbus.Event) {
	switch evt.Name {
	case "request_success":
		r.record(time.Now())
	case "child_event":
		if child, ok := evt.Payload.(eventbus.ChildEvent); ok {
			r.handleEvent(eventbus.Event{Name: child.Name, Payload: child.Payload})
		}
	}
}

func (r *RateLimit) record(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timestamps = append(r.timestamps, at)
}

func (r *RateLimit) prune(now time.Time) {
	cutoff := now.Add(-r.opts.Period)
	i := 0
	for ; i < len(r.timestamps); i++ {
		if r.timestamps[i].After(cutoff) {
			break
		}
	}
	r.timestamps = r.timestamps[i:]
}

// waitDuration reports how long Execute must sleep before calling fn,
// given the current window contents.
func (r *RateLimit) waitDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(time.Now())
	if len(r.timestamps) < r.opts.Limit {
		return 0
	}
	over := len(r.timestamps) - r.opts.Limit
	return time.Duration(over+1) * r.opts.Period / time.Duration(r.opts.Limit)
}

func (r *RateLimit) Execute(ctx context.Context, token cancel.Token, fn Fn) (Result, error) {
	if wait := r.waitDuration(); wait > 0 {
		if err := cancel.Sleep(ctx, wait, token); err != nil {
			return Result{}, err
		}
	}

	v, err, cancelled := race(ctx, token, fn)
	if cancelled || isCancellation(err) {
		if err == nil {
			err = cancel.OperationCanceled
		}
		return Result{}, err
	}
	if err != nil {
		return Result{OK: false, Err: err, Metadata: map[string]any{"policy": "rate_limit"}}, nil
	}
	return Result{OK: true, Value: v, Metadata: map[string]any{"policy": "rate_limit"}}, nil
}
