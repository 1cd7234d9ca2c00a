package intents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/n0-computer/go-willow/interest"
	"github.com/n0-computer/go-willow/session"
)

func newTestHandle(t *testing.T) (*Intent, *IntentHandle) {
	t.Helper()
	return New(session.NewInit(session.ReconcileOnce, interest.InterestsAll()))
}

func TestCompleteLatchesConsumedEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	intent, handle := newTestHandle(t)
	sink := intent.channels.sink
	require.NoError(t, sink.send(ctx, EventReconciled{Namespace: nsAlfa, Area: fullAOI}))
	require.NoError(t, sink.send(ctx, EventReconciledAll{}))
	sink.close()

	// Consume only the first event, then ask for the verdict. The
	// already-consumed event still counts.
	ev, ok := handle.Next(ctx)
	require.True(t, ok)
	require.IsType(t, EventReconciled{}, ev)

	got, err := handle.Complete(ctx)
	require.NoError(t, err)
	require.Equal(t, CompletionComplete, got)
}

func TestCompletePartial(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	intent, handle := newTestHandle(t)
	sink := intent.channels.sink
	require.NoError(t, sink.send(ctx, EventReconciled{Namespace: nsAlfa, Area: fullAOI}))
	sink.close()

	got, err := handle.Complete(ctx)
	require.NoError(t, err)
	require.Equal(t, CompletionPartial, got)
}

func TestCompleteNothing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	intent, handle := newTestHandle(t)
	intent.channels.sink.close()

	got, err := handle.Complete(ctx)
	require.NoError(t, err)
	require.Equal(t, CompletionNothing, got)
}

func TestCompleteAbortShortCircuits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	intent, handle := newTestHandle(t)
	sink := intent.channels.sink
	boom := errors.New("remote hung up")
	require.NoError(t, sink.send(ctx, EventReconciled{Namespace: nsAlfa, Area: fullAOI}))
	require.NoError(t, sink.send(ctx, EventAbort{Err: boom}))

	// The sink is never closed, yet Complete must not block past the
	// abort: the error takes precedence over partial progress.
	_, err := handle.Complete(ctx)
	require.ErrorIs(t, err, boom)

	// And the verdict sticks.
	_, err = handle.Complete(ctx)
	require.ErrorIs(t, err, boom)
}

func TestCompleteEndedStreamWithDeadContext(t *testing.T) {
	intent, handle := newTestHandle(t)
	sink := intent.channels.sink
	require.NoError(t, sink.send(context.Background(), EventReconciledAll{}))
	sink.close()

	// The stream already ended; its verdict wins over the dead context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := handle.Complete(ctx)
	require.NoError(t, err)
	require.Equal(t, CompletionComplete, got)
}

func TestCompleteContextExpiry(t *testing.T) {
	_, handle := newTestHandle(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := handle.Complete(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendAbort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	intent, handle := newTestHandle(t)
	boom := errors.New("never reached a session")
	intent.SendAbort(ctx, boom)

	_, err := handle.Complete(ctx)
	require.ErrorIs(t, err, boom)

	// The update half fails fast instead of blocking.
	require.ErrorIs(t, handle.AddInterests(ctx, interest.InterestsAll()), ErrIntentDropped)
}

func TestSendAbortDetached(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	intent := NewDetached(session.NewInit(session.ReconcileOnce, interest.InterestsAll()))
	intent.SendAbort(ctx, errors.New("ignored"))
}

func TestAddInterestsAfterStop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	intent, handle := newTestHandle(t)
	intent.channels.stopUpdates()
	require.ErrorIs(t, handle.AddInterests(ctx, interest.InterestsAll()), ErrIntentDropped)
}

func TestUpdateSinkCloseWithoutReader(t *testing.T) {
	_, handle := newTestHandle(t)
	updates, _ := handle.Split()

	// No dispatcher ever consumed the update channel. Close must not
	// block, and must be safe to repeat.
	updates.Close()
	updates.Close()
}

func TestHandleCloseIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	intent, handle := newTestHandle(t)
	handle.Close()
	handle.Close()

	// The dispatcher side now observes a dropped receiver.
	err := intent.channels.sink.send(ctx, EventReconciledAll{})
	require.ErrorIs(t, err, errReceiverDropped)
}
