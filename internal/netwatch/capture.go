package netwatch

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// maxCapturedBodyBytes is the capture size cap: responses larger than this
// are never written to the resource cache.
const maxCapturedBodyBytes = 25 * 1024 * 1024

// allowedCaptureStatuses is the status allow-list a response must land in
// before its body is considered for capture.
var allowedCaptureStatuses = map[int64]bool{
	200: true, 201: true, 301: true, 302: true, 304: true, 307: true, 308: true,
}

// capture implements the Response Capturer, grounded on
// capture.HTTPCapture.OnLoadingFinished's filter-then-write shape and
// capture.truncateBytes for the size limit.
func (w *Watcher) capture(ctx context.Context, rec types.RequestRecord) {
	originURL := rec.URL
	if len(rec.RedirectChain) > 0 {
		originURL = rec.RedirectChain[0].URL
	}
	normalized := w.urlNormalizer.Normalize(originURL)

	if cached, ok, err := w.cfg.Intercept.Cache.Get(ctx, normalized); err == nil && ok {
		if cached.Root || cached.Provided || w.cfg.Intercept.DisableCache {
			return
		}
	}

	if !w.passesCaptureFilters(rec) {
		return
	}

	body, err := rec.Response.Buffer(ctx)
	if err != nil {
		slog.Debug("response body buffering failed", "request_id", rec.RequestID, "error", err)
		return
	}
	if len(body) == 0 {
		return
	}
	oversized, originalSize, sha := truncateBytes(body, maxCapturedBodyBytes)
	if oversized {
		slog.Debug("response body exceeds capture size limit", "request_id", rec.RequestID, "size", originalSize, "limit", maxCapturedBodyBytes)
		return
	}

	mimeType := w.effectiveMimeType(rec.URL, rec.Response.MimeType)

	if strings.Contains(mimeType, "font") {
		refetched, err := w.fetcher.Fetch(ctx, rec.URL, w.cfg.Authorization)
		if err != nil {
			slog.Debug("direct font re-fetch failed", "request_id", rec.RequestID, "url", rec.URL, "error", err)
			return
		}
		body = refetched
		_, _, sha = truncateBytes(body, 0)
	}

	headers := make(map[string][]string, len(rec.Response.Headers))
	for name, value := range rec.Response.Headers {
		headers[name] = strings.Split(value, "\n")
	}

	res := types.Resource{
		URL:      normalized,
		Content:  body,
		MimeType: mimeType,
		SHA:      sha,
		Status:   int(rec.Response.Status),
		Headers:  headers,
	}

	if err := w.cfg.Intercept.Cache.Save(ctx, res); err != nil {
		slog.Debug("saveResource failed", "request_id", rec.RequestID, "url", rec.URL, "error", err)
		return
	}
	w.capturedCount.Add(1)
}

// passesCaptureFilters runs the filters that do not need the buffered body
// (response present, allowed hostname, status, resource type); the
// empty-body and size checks run in capture after buffering.
func (w *Watcher) passesCaptureFilters(rec types.RequestRecord) bool {
	if rec.Response == nil {
		return false
	}
	if w.cfg.Intercept.AllowedHostnames != nil && !w.cfg.Intercept.AllowedHostnames.Match(hostOf(rec.URL)) {
		return false
	}
	if !allowedCaptureStatuses[rec.Response.Status] {
		return false
	}
	if !w.cfg.Intercept.EnableJavaScriptCapture && !types.CapturableResourceTypes[rec.ResourceType] {
		return false
	}
	return true
}

// effectiveMimeType refines the reported MIME type: for text/plain
// responses, try inferring a MIME from the path extension instead.
func (w *Watcher) effectiveMimeType(rawURL, reported string) string {
	if reported != "text/plain" {
		return reported
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return reported
	}
	if inferred, ok := w.mimeSniffer.Sniff(u.Path); ok {
		return inferred
	}
	return reported
}
