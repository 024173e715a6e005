package netwatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// onRequestWillBeSent implements the Network.requestWillBeSent handler.
// Grounded on
// capture.HTTPCapture.OnRequestWillBeSent's pending-map insertion, extended
// with the data: URL skip and the lifecycle-latch resolve.
func (w *Watcher) onRequestWillBeSent(ctx context.Context, ev *network.EventRequestWillBeSent) {
	requestID := string(ev.RequestID)

	if strings.HasPrefix(ev.Request.URL, "data:") {
		w.registry.latches.get(requestID).requestWillBeSent.resolve()
		return
	}

	if w.intercepting() {
		w.registry.insertPending(requestID, ev.Request.URL, ev.Request.Method)

		if w.cfg.CaptureMockedServiceWorker {
			rec := &types.RequestRecord{
				RequestID:    requestID,
				URL:          ev.Request.URL,
				Method:       ev.Request.Method,
				Headers:      headerMapToStringMap(ev.Request.Headers),
				ResourceType: types.ResourceType(ev.Type),
			}
			w.decide(ctx, decideInput{record: rec, serviceWorker: true})
		}
	}

	w.registry.latches.get(requestID).requestWillBeSent.resolve()
}

// onRequestPaused implements the Fetch.requestPaused handler. Only
// called when intercepting, only for the document session.
func (w *Watcher) onRequestPaused(ctx context.Context, ev *fetch.EventRequestPaused) {
	requestID := string(ev.NetworkID)
	interceptID := string(ev.RequestID)

	if requestID == "" {
		return
	}

	if err := w.registry.latches.get(requestID).requestWillBeSent.wait(ctx); err != nil {
		return
	}

	pending, ok := w.registry.popPending(requestID)
	if !ok {
		return
	}
	if pending.url != ev.Request.URL || pending.method != ev.Request.Method {
		// Redirect guard (open question #1 in DESIGN.md): this paused event
		// describes a different hop than the pending
		// requestWillBeSent we popped; drop it, the browser will deliver a
		// fresh requestPaused for the post-redirect URL.
		return
	}

	rec := &types.RequestRecord{
		RequestID:    requestID,
		InterceptID:  interceptID,
		URL:          ev.Request.URL,
		Method:       ev.Request.Method,
		Headers:      headerMapToStringMap(ev.Request.Headers),
		ResourceType: types.ResourceType(ev.ResourceType),
	}
	w.decide(ctx, decideInput{record: rec, serviceWorker: false})
}

// onAuthRequired implements the Fetch.authRequired handler. Credentials are
// only ever offered once per interceptId; a retry for an interceptId that
// has already been offered credentials is cancelled outright. An
// interceptId that was never offered credentials (because none are
// configured) falls through to Default on every call, including retries.
func (w *Watcher) onAuthRequired(ctx context.Context, ev *fetch.EventAuthRequired) {
	interceptID := string(ev.RequestID)

	if w.registry.authOffered(interceptID) {
		w.continueWithAuth(ctx, interceptID, fetch.AuthChallengeResponseResponseCancelAuth, "", "")
		return
	}

	if w.cfg.Authorization != nil {
		w.registry.markAuthOffered(interceptID)
		w.continueWithAuth(ctx, interceptID, fetch.AuthChallengeResponseResponseProvideCredentials,
			w.cfg.Authorization.Username, w.cfg.Authorization.Password)
		return
	}

	w.continueWithAuth(ctx, interceptID, fetch.AuthChallengeResponseResponseDefault, "", "")
}

func (w *Watcher) continueWithAuth(ctx context.Context, interceptID string, response fetch.AuthChallengeResponseResponse, username, password string) {
	resp := &fetch.AuthChallengeResponse{Response: response}
	if response == fetch.AuthChallengeResponseResponseProvideCredentials {
		resp.Username = username
		resp.Password = password
	}
	if err := fetch.ContinueWithAuth(fetch.RequestID(interceptID), resp).Do(ctx); err != nil {
		if !looksLikeSessionClosed(err) {
			slog.Debug("continueWithAuth failed", "intercept_id", interceptID, "error", err)
		}
	}
}

// onResponseReceived implements the Network.responseReceived handler,
// including the deferred buffer() closure.
func (w *Watcher) onResponseReceived(ctx context.Context, ev *network.EventResponseReceived) {
	requestID := string(ev.RequestID)

	if err := w.registry.latches.get(requestID).requestWillBeSent.wait(ctx); err != nil {
		return
	}

	if _, ok := w.registry.get(requestID); !ok {
		return
	}

	resp := &types.ResponseInfo{
		Status:   ev.Response.Status,
		MimeType: ev.Response.MimeType,
		Headers:  headerMapToStringMap(ev.Response.Headers),
		Buffer:   w.bufferFunc(requestID),
	}
	w.registry.setResponse(requestID, resp)
	w.registry.latches.get(requestID).responseReceived.resolve()
}

// bufferFunc returns the deferred body-fetch closure attached to a
// response, grounded on internal/cdp/client.go's getBody closure built
// around network.GetResponseBody.
func (w *Watcher) bufferFunc(requestID string) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		bodyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		body, err := network.GetResponseBody(network.RequestID(requestID)).Do(bodyCtx)
		if err != nil {
			return nil, err
		}
		return body, nil
	}
}

// onEventSourceMessageReceived handles never-finishing
// server-sent-event streams.
func (w *Watcher) onEventSourceMessageReceived(ctx context.Context, ev *network.EventEventSourceMessageReceived) {
	requestID := string(ev.RequestID)
	if err := w.registry.latches.get(requestID).requestWillBeSent.wait(ctx); err != nil {
		return
	}
	if _, ok := w.registry.get(requestID); ok {
		w.registry.forget(requestID, false)
	}
}

// onLoadingFinished implements the Network.loadingFinished handler.
func (w *Watcher) onLoadingFinished(ctx context.Context, ev *network.EventLoadingFinished) {
	requestID := string(ev.RequestID)
	if err := w.registry.latches.get(requestID).responseReceived.wait(ctx); err != nil {
		return
	}

	rec, ok := w.registry.get(requestID)
	if !ok {
		return
	}

	w.capture(ctx, *rec)
	w.registry.forget(requestID, false)
}

// onLoadingFailed implements the Network.loadingFailed handler.
func (w *Watcher) onLoadingFailed(ctx context.Context, ev *network.EventLoadingFailed) {
	requestID := string(ev.RequestID)
	if err := w.registry.latches.get(requestID).requestWillBeSent.wait(ctx); err != nil {
		return
	}

	switch ev.ErrorText {
	case "net::ERR_ABORTED":
		w.registry.markAborted(requestID)
		slog.Debug("request aborted", "request_id", requestID)
	case "net::ERR_FAILED":
		// A more specific log likely already preceded this; suppressed.
	default:
		slog.Debug("loading failed", "request_id", requestID, "error_text", ev.ErrorText)
	}
	w.registry.forget(requestID, false)
}

// headerMapToStringMap mirrors capture.headerMapToStringMap, reused
// verbatim: CDP header maps are map[string]any with string-typed values.
func headerMapToStringMap(headers map[string]any) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
