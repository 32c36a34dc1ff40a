package policy

import (
	"context"
	"sync"
	"time"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/model"
)

// TokenLimitOptions bounds token consumption within a sliding window of
// Period. Either set TotalTokensPerPeriod alone, or set
// InputTokensPerPeriod/OutputTokensPerPeriod independently — when both
// split caps are set the wait is the max of whichever is binding.
type TokenLimitOptions struct {
	InputTokensPerPeriod  int
	OutputTokensPerPeriod int
	TotalTokensPerPeriod  int
	Period                time.Duration
}

type tokenSample struct {
	at     time.Time
	input  int
	output int
}

// TokenLimit enforces a sliding-window cap on token usage. It tracks usage
// it is told about via Attach, which subscribes to "message_complete" on a
// conversation's bus and recurses into eventbus.ChildEvent so descendant
// usage counts against the same budget.
type TokenLimit struct {
	opts TokenLimitOptions

	mu      sync.Mutex
	samples []tokenSample
}

// NewTokenLimit builds a TokenLimit policy from opts.
func NewTokenLimit(opts TokenLimitOptions) *TokenLimit {
	return &TokenLimit{opts: opts}
}

func (t *TokenLimit) Name() string { return "TokenLimitPolicy" }

// Attach subscribes the limiter to bus so it starts counting usage.
func (t *TokenLimit) Attach(bus *eventbus.Bus) eventbus.Subscription {
	return bus.On(t.handleEvent)
}

func (t *TokenLimit) handleEvent(evt eventbus.Event) {
	switch evt.Name {
	case "message_complete":
		if payload, ok := evt.Payload.(model.MessageCompletePayload); ok {
			u := payload.Usage.Normalize()
			t.record(time.Now(), u.InputTokens, u.OutputTokens)
		}
	case "child_event":
		if child, ok := evt.Payload.(eventbus.ChildEvent); ok {
			t.handleEvent(eventbus.Event{Name: child.Name, Payload: child.Payload})
		}
	}
}

func (t *TokenLimit) record(at time.Time, input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, tokenSample{at: at, input: input, output: output})
}

func (t *TokenLimit) prune(now time.Time) {
	cutoff := now.Add(-t.opts.Period)
	i := 0
	for ; i < len(t.samples); i++ {
		if t.samples[i].at.After(cutoff) {
			break
		}
	}
	t.samples = t.samples[i:]
}

// capWait returns how long to wait for the oldest sample to fall out of
// the window, given sum(t.samples via project) has reached cap — 0 if it
// hasn't.
func (t *TokenLimit) capWait(now time.Time, cap int, project func(tokenSample) int) time.Duration {
	if cap <= 0 || len(t.samples) == 0 {
		return 0
	}
	total := 0
	for _, s := range t.samples {
		total += project(s)
	}
	if total < cap {
		return 0
	}
	wait := t.samples[0].at.Add(t.opts.Period).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

func (t *TokenLimit) waitDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.prune(now)

	var waits []time.Duration
	if t.opts.TotalTokensPerPeriod > 0 {
		waits = append(waits, t.capWait(now, t.opts.TotalTokensPerPeriod, func(s tokenSample) int {
			return s.input + s.output
		}))
	} else {
		if t.opts.InputTokensPerPeriod > 0 {
			waits = append(waits, t.capWait(now, t.opts.InputTokensPerPeriod, func(s tokenSample) int { return s.input }))
		}
		if t.opts.OutputTokensPerPeriod > 0 {
			waits = append(waits, t.capWait(now, t.opts.OutputTokensPerPeriod, func(s tokenSample) int { return s.output }))
		}
	}

	var max time.Duration
	for _, w := range waits {
		if w > max {
			max = w
		}
	}
	return max
}

func (t *TokenLimit) Execute(ctx context.Context, token cancel.Token, fn Fn) (Result, error) {
	if wait := t.waitDuration(); wait > 0 {
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
		return Result{OK: false, Err: err, Metadata: map[string]any{"policy": "token_limit"}}, nil
	}
	return Result{OK: true, Value: v, Metadata: map[string]any{"policy": "token_limit"}}, nil
}
