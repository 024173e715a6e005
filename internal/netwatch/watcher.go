package netwatch

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// Watcher is the Event Demultiplexer together with the Registry, Idle
// Waiter, and Safe Send it owns. Grounded on internal/cdp/client.go's
// Client: one allocator-attached tab context, one ListenTarget
// subscription, one type-switch dispatcher.
type Watcher struct {
	cfg      *Config
	registry *registry

	fetcher       types.Fetcher
	urlNormalizer types.URLNormalizer
	mimeSniffer   types.MimeSniffer

	tabCtx    context.Context
	tabCancel context.CancelFunc

	capturedCount atomic.Int64
}

// NewWatcher constructs a Watcher. fetcher, urlNormalizer, and mimeSniffer
// are the stdlib-grounded default implementations of the engine's
// external collaborators; callers can substitute their own.
func NewWatcher(cfg *Config, fetcher types.Fetcher, urlNormalizer types.URLNormalizer, mimeSniffer types.MimeSniffer) *Watcher {
	cfg.ApplyDefaults()
	return &Watcher{
		cfg:           cfg,
		registry:      newRegistry(),
		fetcher:       fetcher,
		urlNormalizer: urlNormalizer,
		mimeSniffer:   mimeSniffer,
	}
}

func (w *Watcher) intercepting() bool {
	return w.cfg.Intercept.Cache != nil
}

// Watch attaches to the page target identified within allocCtx (the target
// must already be selected via chromedp.WithTargetID on allocCtx's
// context, matching internal/cdp/client.go's attachToTab shape) and begins
// dispatching protocol events. It returns once the initial domain-enable
// commands have been sent; event processing continues on tabCtx's
// lifetime. This is one of the two call paths (together with Idle) that
// is allowed to propagate an error to the caller.
func (w *Watcher) Watch(allocCtx context.Context) error {
	tabCtx, cancel := chromedp.NewContext(allocCtx)
	w.tabCtx = tabCtx
	w.tabCancel = cancel

	actions := []chromedp.Action{
		network.Enable(),
		network.SetCacheDisabled(true),
		network.SetBypassServiceWorker(!w.cfg.CaptureMockedServiceWorker),
	}

	if w.cfg.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(w.cfg.UserAgent))
	} else {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			ua, err := defaultUserAgent(ctx)
			if err != nil {
				return nil
			}
			return emulation.SetUserAgentOverride(ua).Do(ctx)
		}))
	}

	if len(w.cfg.RequestHeaders) > 0 {
		headers := make(network.Headers, len(w.cfg.RequestHeaders))
		for k, v := range w.cfg.RequestHeaders {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}

	if w.intercepting() {
		actions = append(actions, fetch.Enable().
			WithHandleAuthRequests(true).
			WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}))
	}

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancel()
		return newError(CodeSessionClosed, "failed to enable network/fetch domains", err)
	}

	chromedp.ListenTarget(tabCtx, w.dispatch)
	slog.Info("watcher attached", "intercepting", w.intercepting())
	return nil
}

// Close tears down the tab context.
func (w *Watcher) Close() {
	if w.tabCancel != nil {
		w.tabCancel()
	}
}

// InFlightCount reports the size of the in-flight set, for the status API.
func (w *Watcher) InFlightCount() int {
	return w.registry.count()
}

// AbortedCount reports the size of the Aborted set, for the status API.
func (w *Watcher) AbortedCount() int {
	return w.registry.abortedCount()
}

// CapturedCount reports how many resources this Watcher has saved to the
// cache, for the status API.
func (w *Watcher) CapturedCount() int64 {
	return w.capturedCount.Load()
}

// WaitIdle blocks until the whole in-flight set (no filter) reaches a
// quiet window, satisfying the api.Service interface for the status API's
// POST /idle operation.
func (w *Watcher) WaitIdle(ctx context.Context) error {
	return w.Idle(ctx, nil)
}

// defaultUserAgent returns the browser's reported user agent with the
// literal substring "Headless" removed.
func defaultUserAgent(ctx context.Context) (string, error) {
	_, _, _, userAgent, _, err := browser.GetVersion().Do(ctx)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(userAgent, "Headless", ""), nil
}

// dispatch implements the Event Demultiplexer's routing table. Handlers
// that suspend on a lifecycle latch are handed off, whole, to their own
// goroutine, so a wait for a later event never blocks the dispatch of the
// event that would resolve it; those goroutines mutate the Registry too,
// each Registry operation under the Registry's own lock, with no lock held
// across a whole handler. Handlers that
// never await anything run synchronously here, which also keeps two
// requestWillBeSent events for the same requestId (a redirect hop) or two
// authRequired events for the same interceptId (an auth retry) strictly
// ordered.
func (w *Watcher) dispatch(ev interface{}) {
	ctx := w.tabCtx
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		w.onRequestWillBeSent(ctx, e)
	case *fetch.EventRequestPaused:
		if w.intercepting() {
			go w.onRequestPaused(ctx, e)
		}
	case *fetch.EventAuthRequired:
		w.onAuthRequired(ctx, e)
	case *network.EventResponseReceived:
		go w.onResponseReceived(ctx, e)
	case *network.EventEventSourceMessageReceived:
		go w.onEventSourceMessageReceived(ctx, e)
	case *network.EventLoadingFinished:
		go w.onLoadingFinished(ctx, e)
	case *network.EventLoadingFailed:
		go w.onLoadingFailed(ctx, e)
	}
}
