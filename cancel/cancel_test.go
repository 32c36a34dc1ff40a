package cancel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/cancel"
)

func TestSourceCancelTwiceReturnsError(t *testing.T) {
	src := cancel.NewSource()
	require.NoError(t, src.Cancel())
	require.ErrorIs(t, src.Cancel(), cancel.ErrAlreadyCancelled)
}

func TestTokenThrowIfCancellationRequested(t *testing.T) {
	src := cancel.NewSource()
	tok := src.Token()
	require.NoError(t, tok.ThrowIfCancellationRequested())
	require.NoError(t, src.Cancel())
	require.ErrorIs(t, tok.ThrowIfCancellationRequested(), cancel.OperationCanceled)
}

func TestTokenOnceFiresExactlyOnce(t *testing.T) {
	src := cancel.NewSource()
	tok := src.Token()
	calls := 0
	require.NoError(t, tok.Once(func() { calls++ }))
	require.NoError(t, src.Cancel())
	assert.Equal(t, 1, calls)
}

func TestTokenOnceAfterCancelErrors(t *testing.T) {
	src := cancel.NewSource()
	require.NoError(t, src.Cancel())
	err := src.Token().Once(func() {})
	require.ErrorIs(t, err, cancel.ErrAlreadyListening)
}

func TestAwaitCancellation(t *testing.T) {
	src := cancel.NewSource()
	tok := src.Token()
	done := make(chan struct{})
	go func() {
		<-tok.AwaitCancellation()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, src.Cancel())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AwaitCancellation did not unblock")
	}
}

func TestSleepCancelledMidSleep(t *testing.T) {
	src := cancel.NewSource()
	tok := src.Token()
	errCh := make(chan error, 1)
	go func() {
		errCh <- cancel.Sleep(context.Background(), time.Second, tok)
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, src.Cancel())
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, cancel.OperationCanceled)
	case <-time.After(time.Second):
		t.Fatal("Sleep did not return promptly after cancel")
	}
}

func TestSleepPreCancelled(t *testing.T) {
	src := cancel.NewSource()
	require.NoError(t, src.Cancel())
	err := cancel.Sleep(context.Background(), time.Second, src.Token())
	require.ErrorIs(t, err, cancel.OperationCanceled)
}

func TestSleepZeroDuration(t *testing.T) {
	src := cancel.NewSource()
	require.NoError(t, cancel.Sleep(context.Background(), 0, src.Token()))
}
