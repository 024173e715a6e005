package resourcecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// HTTPFetcher is the default implementation of the direct-fetch
// collaborator used for font re-fetches. Grounded on notify.Send's
// http.NewRequestWithContext/http.Client usage and internal/browser's
// health-check client.
type HTTPFetcher struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPFetcher constructs an HTTPFetcher. A nil client uses
// http.DefaultClient.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	st := gobreaker.Settings{
		Name:        "direct-fetch",
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &HTTPFetcher{client: client, breaker: gobreaker.NewCircuitBreaker(st)}
}

// Fetch implements types.Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, basicAuth *types.Authorization) ([]byte, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if basicAuth != nil {
			req.SetBasicAuth(basicAuth.Username, basicAuth.Password)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("direct fetch failed: status=%d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
