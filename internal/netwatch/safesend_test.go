package netwatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLooksLikeSessionClosed(t *testing.T) {
	require.True(t, looksLikeSessionClosed(errors.New("context canceled")))
	require.True(t, looksLikeSessionClosed(errors.New("websocket: close sent")))
	require.False(t, looksLikeSessionClosed(errors.New("Invalid InterceptionId.")))
	require.False(t, looksLikeSessionClosed(nil))
}

func TestLooksLikeInvalidInterception(t *testing.T) {
	require.True(t, looksLikeInvalidInterception(errors.New(abortedSentinel)))
	require.True(t, looksLikeInvalidInterception(errors.New("Invalid InterceptionId.")))
	require.False(t, looksLikeInvalidInterception(errors.New("context canceled")))
	require.False(t, looksLikeInvalidInterception(nil))
}

func TestSafeSendShortCircuitsAlreadyAborted(t *testing.T) {
	w := &Watcher{registry: newRegistry()}
	w.registry.markAborted("req-1")

	called := false
	err := w.safeSend(context.Background(), "req-1", func() error {
		called = true
		return nil
	}, nil)

	require.Error(t, err)
	require.False(t, called, "safeSend must not invoke send for an already-aborted requestId")
}

func TestSafeSendSucceeds(t *testing.T) {
	w := &Watcher{registry: newRegistry()}
	err := w.safeSend(context.Background(), "req-1", func() error { return nil }, nil)
	require.NoError(t, err)
}

func TestSafeSendSwallowsSessionClosed(t *testing.T) {
	w := &Watcher{registry: newRegistry()}
	err := w.safeSend(context.Background(), "req-1", func() error {
		return errors.New("target closed")
	}, func() { t.Fatal("onAbortRace must not run for a session-closed error") })
	require.NoError(t, err)
}

func TestSafeSendAbortRaceDropsWhenNowAborted(t *testing.T) {
	w := &Watcher{registry: newRegistry()}
	send := func() error {
		w.registry.markAborted("req-1")
		return errors.New(abortedSentinel)
	}
	err := w.safeSend(context.Background(), "req-1", send, func() {
		t.Fatal("onAbortRace must not run once the request is confirmed aborted")
	})
	require.NoError(t, err)
}

func TestSafeSendAbortRaceCallsOnAbortRaceWhenNotAborted(t *testing.T) {
	w := &Watcher{registry: newRegistry()}
	raceHandlerCalled := false
	err := w.safeSend(context.Background(), "req-1", func() error {
		return errors.New("Invalid InterceptionId.")
	}, func() { raceHandlerCalled = true })

	require.NoError(t, err)
	require.True(t, raceHandlerCalled)
}

func TestSafeSendReturnsCodedErrorOnOtherFailures(t *testing.T) {
	w := &Watcher{registry: newRegistry()}
	err := w.safeSend(context.Background(), "req-1", func() error {
		return errors.New("boom")
	}, nil)

	require.Error(t, err)
	var coded *CodedError
	require.ErrorAs(t, err, &coded)
	require.Equal(t, CodeCaptureFailed, coded.Code)
}
