package netwatch

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// TestDispatchRunsNonSuspendingHandlersSynchronously exercises the
// ordering guarantee dispatch exists to provide: a handler that never
// awaits a latch must have fully run by the time dispatch returns, so two
// events for the same id delivered back to back are processed in order.
func TestDispatchRunsNonSuspendingHandlersSynchronously(t *testing.T) {
	w := &Watcher{cfg: &Config{}, registry: newRegistry(), tabCtx: context.Background()}

	ev := &network.EventRequestWillBeSent{
		RequestID: network.RequestID("req-1"),
		Request:   &network.Request{URL: "https://example.com/", Method: "GET"},
	}

	w.dispatch(ev)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.registry.latches.get("req-1").requestWillBeSent.wait(ctx),
		"requestWillBeSent must already be resolved once dispatch returns")
}

// TestDispatchRunsAuthRequiredSynchronously exercises the same guarantee
// for onAuthRequired: by the time dispatch returns, the outbound
// continueWithAuth call must already have been issued.
func TestDispatchRunsAuthRequiredSynchronously(t *testing.T) {
	w := &Watcher{cfg: &Config{}, registry: newRegistry(), tabCtx: context.Background()}

	exec := &fakeExecutor{}
	w.tabCtx = cdp.WithExecutor(context.Background(), exec)

	w.dispatch(&fetch.EventAuthRequired{RequestID: fetch.RequestID("int-1")})

	require.Equal(t, []string{"Fetch.continueWithAuth"}, exec.methods())
}

// TestDispatchHandsOffLatchAwaitingHandlers proves the other half of the
// contract: a handler that suspends on a latch must not block dispatch's
// caller, even when that latch will never resolve.
func TestDispatchHandsOffLatchAwaitingHandlers(t *testing.T) {
	w := &Watcher{
		cfg:      &Config{Intercept: types.InterceptPolicy{Cache: &fakeCache{}}},
		registry: newRegistry(),
		tabCtx:   context.Background(),
	}

	ev := &fetch.EventRequestPaused{
		RequestID: fetch.RequestID("int-1"),
		NetworkID: network.RequestID("req-1"),
		Request:   &network.Request{URL: "https://example.com/", Method: "GET"},
	}

	done := make(chan struct{})
	go func() {
		w.dispatch(ev)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("dispatch blocked instead of handing the latch-awaiting handler off to its own goroutine")
	}
}

// TestDispatchIgnoresRequestPausedWhenNotIntercepting confirms the routing
// table's intercepting() gate: with no cache configured, a
// Fetch.requestPaused event is dropped rather than spawning a handler that
// would immediately fail to look anything up.
func TestDispatchIgnoresRequestPausedWhenNotIntercepting(t *testing.T) {
	w := &Watcher{cfg: &Config{}, registry: newRegistry(), tabCtx: context.Background()}

	done := make(chan struct{})
	go func() {
		w.dispatch(&fetch.EventRequestPaused{RequestID: fetch.RequestID("int-1"), NetworkID: network.RequestID("req-1")})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("dispatch must return immediately when not intercepting")
	}
}
