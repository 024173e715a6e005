package netwatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/assetwatch/internal/hostmatch"
	"github.com/dgnsrekt/assetwatch/internal/mimesniff"
	"github.com/dgnsrekt/assetwatch/internal/types"
)

func TestPassesCaptureFilters(t *testing.T) {
	t.Run("nil_response_never_passes", func(t *testing.T) {
		w := &Watcher{cfg: &Config{}}
		require.False(t, w.passesCaptureFilters(types.RequestRecord{}))
	})

	t.Run("status_not_in_allow_list_is_rejected", func(t *testing.T) {
		w := &Watcher{cfg: &Config{}}
		rec := types.RequestRecord{
			URL:          "https://example.com/a",
			ResourceType: types.ResourceTypeStylesheet,
			Response:     &types.ResponseInfo{Status: 403},
		}
		require.False(t, w.passesCaptureFilters(rec))
	})

	t.Run("non_capturable_type_rejected_unless_javascript_capture_enabled", func(t *testing.T) {
		w := &Watcher{cfg: &Config{}}
		rec := types.RequestRecord{
			URL:          "https://example.com/a.js",
			ResourceType: types.ResourceTypeFetch,
			Response:     &types.ResponseInfo{Status: 200},
		}
		require.False(t, w.passesCaptureFilters(rec))

		w.cfg.Intercept.EnableJavaScriptCapture = true
		require.True(t, w.passesCaptureFilters(rec))
	})

	t.Run("allowed_hostnames_restricts_capture_independently_of_intercept_decision", func(t *testing.T) {
		w := &Watcher{cfg: &Config{Intercept: types.InterceptPolicy{
			AllowedHostnames: hostmatch.New([]string{"cdn.example.com"}),
		}}}
		rec := types.RequestRecord{
			URL:          "https://other.example.com/a.css",
			ResourceType: types.ResourceTypeStylesheet,
			Response:     &types.ResponseInfo{Status: 200},
		}
		require.False(t, w.passesCaptureFilters(rec))

		rec.URL = "https://cdn.example.com/a.css"
		require.True(t, w.passesCaptureFilters(rec))
	})
}

func TestEffectiveMimeType(t *testing.T) {
	w := &Watcher{mimeSniffer: mimesniff.New()}

	t.Run("non_text_plain_mime_passes_through_unchanged", func(t *testing.T) {
		require.Equal(t, "text/css", w.effectiveMimeType("https://example.com/a.css", "text/css"))
	})

	t.Run("text_plain_is_refined_via_extension_when_inference_succeeds", func(t *testing.T) {
		require.Equal(t, "text/css", w.effectiveMimeType("https://example.com/a.css", "text/plain"))
	})

	t.Run("text_plain_falls_back_when_inference_fails", func(t *testing.T) {
		require.Equal(t, "text/plain", w.effectiveMimeType("https://example.com/a.unknownext", "text/plain"))
	})
}

// TestCaptureSavesQualifyingStylesheetResponse drives capture() end to end
// for a response that should pass every filter and land in the cache.
func TestCaptureSavesQualifyingStylesheetResponse(t *testing.T) {
	cache := &fakeCache{}
	w := &Watcher{
		cfg:           &Config{Intercept: types.InterceptPolicy{Cache: cache}},
		urlNormalizer: fakeNormalizer{},
		mimeSniffer:   mimesniff.New(),
	}

	body := []byte("body { color: red; }")
	rec := types.RequestRecord{
		RequestID:    "req-1",
		URL:          "https://cdn.example.com/app.css",
		ResourceType: types.ResourceTypeStylesheet,
		Response: &types.ResponseInfo{
			Status:   200,
			MimeType: "text/css",
			Headers:  map[string]string{"Content-Type": "text/css"},
			Buffer:   func(ctx context.Context) ([]byte, error) { return body, nil },
		},
	}

	w.capture(context.Background(), rec)

	saved, ok, err := cache.Get(context.Background(), "https://cdn.example.com/app.css")
	require.NoError(t, err)
	require.True(t, ok, "a qualifying response must be saved to the cache")
	require.Equal(t, body, saved.Content)
	require.Equal(t, "text/css", saved.MimeType)
	require.NotEmpty(t, saved.SHA)
	require.EqualValues(t, 1, w.CapturedCount())
}

// TestCaptureRefetchesFontResponsesDirectly covers the font special case:
// the browser-provided body is discarded and a direct HTTP fetch supplies
// the bytes that are actually saved.
func TestCaptureRefetchesFontResponsesDirectly(t *testing.T) {
	cache := &fakeCache{}
	refetched := []byte("refetched-font-bytes")
	fetcher := &fakeFetcher{body: refetched}
	w := &Watcher{
		cfg:           &Config{Intercept: types.InterceptPolicy{Cache: cache}},
		urlNormalizer: fakeNormalizer{},
		mimeSniffer:   mimesniff.New(),
		fetcher:       fetcher,
	}

	rec := types.RequestRecord{
		RequestID:    "req-1",
		URL:          "https://cdn.example.com/a.woff2",
		ResourceType: types.ResourceTypeFont,
		Response: &types.ResponseInfo{
			Status:   200,
			MimeType: "font/woff2",
			Buffer:   func(ctx context.Context) ([]byte, error) { return []byte("cdp-provided-bytes-are-discarded"), nil },
		},
	}

	w.capture(context.Background(), rec)

	require.Equal(t, "https://cdn.example.com/a.woff2", fetcher.calledURL)
	saved, ok, err := cache.Get(context.Background(), "https://cdn.example.com/a.woff2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, refetched, saved.Content, "the directly re-fetched bytes must be saved, not the browser-provided body")
	require.NotEmpty(t, saved.SHA, "the saved SHA must describe the re-fetched bytes")
}

// TestCaptureSkipsAlreadyRootCachedResource covers the early-exit path: a
// resource already cached as root (or provided, with caching disabled)
// must not be re-captured.
func TestCaptureSkipsAlreadyRootCachedResource(t *testing.T) {
	cache := &fakeCache{entries: map[string]types.CachedResource{
		"https://example.com/": {Resource: types.Resource{URL: "https://example.com/", Root: true}},
	}}
	w := &Watcher{
		cfg:           &Config{Intercept: types.InterceptPolicy{Cache: cache}},
		urlNormalizer: fakeNormalizer{},
		mimeSniffer:   mimesniff.New(),
	}

	rec := types.RequestRecord{
		RequestID:    "req-1",
		URL:          "https://example.com/",
		ResourceType: types.ResourceTypeDocument,
		Response: &types.ResponseInfo{
			Status: 200,
			Buffer: func(ctx context.Context) ([]byte, error) {
				t.Fatal("an already-root-cached resource must not have its body buffered")
				return nil, nil
			},
		},
	}

	w.capture(context.Background(), rec)
	require.EqualValues(t, 0, w.CapturedCount())
}
