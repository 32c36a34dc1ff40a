package distributed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/cancel"
	"github.com/simulacra-ai/conversa/eventbus"
	"github.com/simulacra-ai/conversa/policy"
)

type fakeLimiterClient struct {
	mu      sync.Mutex
	members map[string]float64
}

func newFakeLimiterClient() *fakeLimiterClient {
	return &fakeLimiterClient{members: make(map[string]float64)}
}

func (c *fakeLimiterClient) zRemRangeByScore(_ context.Context, _ string, maxScore float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for m, score := range c.members {
		if score <= maxScore {
			delete(c.members, m)
		}
	}
	return nil
}

func (c *fakeLimiterClient) zCard(context.Context, string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.members)), nil
}

func (c *fakeLimiterClient) zAdd(_ context.Context, _ string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[member] = score
	return nil
}

func (c *fakeLimiterClient) oldestScore(_ context.Context, _ string) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.members) == 0 {
		return 0, false, nil
	}
	min := 0.0
	first := true
	for _, score := range c.members {
		if first || score < min {
			min = score
			first = false
		}
	}
	return min, true, nil
}

func (c *fakeLimiterClient) expire(context.Context, string, time.Duration) error { return nil }

func newTestRateLimit(client limiterClient, opts RateLimitOptions) *RateLimit {
	return &RateLimit{client: client, opts: opts}
}

func TestExecuteUnderLimitRunsImmediately(t *testing.T) {
	client := newFakeLimiterClient()
	rl := newTestRateLimit(client, RateLimitOptions{Limit: 2, Period: time.Minute, Key: "k"})

	src := cancel.NewSource()
	res, err := rl.Execute(context.Background(), src.Token(), func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "ok", res.Value)
}

func TestExecutePropagatesFnError(t *testing.T) {
	client := newFakeLimiterClient()
	rl := newTestRateLimit(client, RateLimitOptions{Limit: 2, Period: time.Minute, Key: "k"})
	boom := assertError("boom")

	src := cancel.NewSource()
	res, err := rl.Execute(context.Background(), src.Token(), func(context.Context) (any, error) {
		return nil, boom
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, boom)
}

func TestWaitDurationZeroUnderLimit(t *testing.T) {
	client := newFakeLimiterClient()
	rl := newTestRateLimit(client, RateLimitOptions{Limit: 3, Period: time.Minute, Key: "k"})

	wait, err := rl.waitDuration(context.Background())
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestWaitDurationPositiveAtLimit(t *testing.T) {
	client := newFakeLimiterClient()
	rl := newTestRateLimit(client, RateLimitOptions{Limit: 1, Period: time.Minute, Key: "k"})
	rl.record(context.Background(), time.Now())

	wait, err := rl.waitDuration(context.Background())
	require.NoError(t, err)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Minute)
}

func TestAttachRecordsOnRequestSuccess(t *testing.T) {
	client := newFakeLimiterClient()
	rl := newTestRateLimit(client, RateLimitOptions{Limit: 5, Period: time.Minute, Key: "k"})

	bus := eventbus.New()
	sub := rl.Attach(bus)
	defer sub.Close()

	bus.Emit("request_success", nil)

	count, err := client.zCard(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAttachRecursesIntoChildEvent(t *testing.T) {
	client := newFakeLimiterClient()
	rl := newTestRateLimit(client, RateLimitOptions{Limit: 5, Period: time.Minute, Key: "k"})

	bus := eventbus.New()
	sub := rl.Attach(bus)
	defer sub.Close()

	bus.Emit("child_event", eventbus.ChildEvent{Name: "request_success"})

	count, err := client.zCard(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestExecuteHonorsCancellation(t *testing.T) {
	client := newFakeLimiterClient()
	rl := newTestRateLimit(client, RateLimitOptions{Limit: 1, Period: time.Minute, Key: "k"})
	rl.record(context.Background(), time.Now())

	src := cancel.NewSource()
	require.NoError(t, src.Cancel())

	_, err := rl.Execute(context.Background(), src.Token(), func(context.Context) (any, error) {
		return "unreachable", nil
	})
	assert.ErrorIs(t, err, cancel.OperationCanceled)
}

func TestName(t *testing.T) {
	rl := newTestRateLimit(newFakeLimiterClient(), RateLimitOptions{})
	assert.Equal(t, "DistributedRateLimitPolicy", rl.Name())
	var _ policy.Named = rl
	var _ policy.Policy = rl
}

type assertError string

func (e assertError) Error() string { return string(e) }
