package netwatch

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/url"
	"strings"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// decideInput bundles the inputs to the Interception Decider.
type decideInput struct {
	record        *types.RequestRecord
	serviceWorker bool
}

// decide implements the Interception Decider. Exactly one of
// Fetch.fulfillRequest, Fetch.continueRequest, or Fetch.failRequest is sent
// per call, unless the error path swallows a genuine abort. In
// service-worker mode none of them is sent.
func (w *Watcher) decide(ctx context.Context, in decideInput) {
	rec := in.record

	w.registry.redirectInto(rec.RequestID, rec)

	originURL := rec.URL
	if len(rec.RedirectChain) > 0 {
		originURL = rec.RedirectChain[0].URL
	}

	if in.serviceWorker {
		// Service-worker flow: the record participates in the Registry and
		// idle tracking, but no outbound Fetch command is ever issued
		// (DESIGN.md open question #2).
		return
	}

	normalized := w.urlNormalizer.Normalize(originURL)
	cached, hasCached, err := w.cfg.Intercept.Cache.Get(ctx, normalized)
	if err != nil {
		slog.Debug("resource cache lookup failed", "url", normalized, "error", err)
		hasCached = false
	}

	switch {
	case !hasCached && w.hostnameDisallowed(rec.URL) && !(hasCached && cached.Root):
		w.failRequest(ctx, rec, network.ErrorReasonAborted)
	case hasCached && cached.Root:
		w.fulfillFromCache(ctx, rec, cached.Resource)
	case hasCached && (cached.Provided || !w.cfg.Intercept.DisableCache):
		w.fulfillFromCache(ctx, rec, cached.Resource)
	default:
		w.continueRequest(ctx, rec)
	}
}

func (w *Watcher) hostnameDisallowed(rawURL string) bool {
	if w.cfg.Intercept.DisallowedHostnames == nil {
		return false
	}
	return w.cfg.Intercept.DisallowedHostnames.Match(hostOf(rawURL))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}

func (w *Watcher) continueRequest(ctx context.Context, rec *types.RequestRecord) {
	_ = w.safeSend(ctx, rec.RequestID, func() error {
		return fetch.ContinueRequest(fetch.RequestID(rec.InterceptID)).Do(ctx)
	}, func() {
		w.failRequestQuiet(ctx, rec.InterceptID, network.ErrorReasonFailed)
	})
}

func (w *Watcher) failRequest(ctx context.Context, rec *types.RequestRecord, reason network.ErrorReason) {
	_ = w.safeSend(ctx, rec.RequestID, func() error {
		return fetch.FailRequest(fetch.RequestID(rec.InterceptID), reason).Do(ctx)
	}, func() {
		w.failRequestQuiet(ctx, rec.InterceptID, network.ErrorReasonFailed)
	})
}

func (w *Watcher) failRequestQuiet(ctx context.Context, interceptID string, reason network.ErrorReason) {
	if err := fetch.FailRequest(fetch.RequestID(interceptID), reason).Do(ctx); err != nil {
		slog.Debug("failRequest during abort race also failed", "intercept_id", interceptID, "error", err)
	}
}

func (w *Watcher) fulfillFromCache(ctx context.Context, rec *types.RequestRecord, res types.Resource) {
	status := res.Status
	if status == 0 {
		status = 200
	}

	entries := make([]*fetch.HeaderEntry, 0, len(res.Headers))
	for name, values := range res.Headers {
		entries = append(entries, &fetch.HeaderEntry{
			Name:  strings.ToLower(name),
			Value: strings.Join(values, "\n"),
		})
	}

	body := base64.StdEncoding.EncodeToString(res.Content)

	_ = w.safeSend(ctx, rec.RequestID, func() error {
		return fetch.FulfillRequest(fetch.RequestID(rec.InterceptID), int64(status)).
			WithResponseHeaders(entries).
			WithBody(body).
			Do(ctx)
	}, func() {
		w.failRequestQuiet(ctx, rec.InterceptID, network.ErrorReasonFailed)
	})
}
