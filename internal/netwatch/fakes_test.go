package netwatch

import (
	"context"
	"sync"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// fakeExecutor records the CDP methods invoked against it, standing in for
// a real browser connection the way fakeSession does in network manager
// tests elsewhere in the example corpus: it implements cdp.Executor so
// fetch.*.Do(cdp.WithExecutor(ctx, exec)) succeeds without ever talking to
// a socket.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeExecutor) Execute(ctx context.Context, method string, params any, res any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	return nil
}

func (f *fakeExecutor) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

// fakeCache is an in-memory types.ResourceCache keyed by URL exactly as
// given, with no normalization of its own.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]types.CachedResource
}

func (c *fakeCache) Get(ctx context.Context, normalizedURL string) (types.CachedResource, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[normalizedURL]
	return res, ok, nil
}

func (c *fakeCache) Save(ctx context.Context, res types.Resource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]types.CachedResource)
	}
	c.entries[res.URL] = types.CachedResource{Resource: res}
	return nil
}

// fakeNormalizer returns its input unchanged, so tests can assert on the
// URLs they pass in directly.
type fakeNormalizer struct{}

func (fakeNormalizer) Normalize(rawURL string) string { return rawURL }

// fakeFetcher is a types.Fetcher that returns a fixed body and records the
// last URL it was asked to fetch.
type fakeFetcher struct {
	body      []byte
	err       error
	calledURL string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, basicAuth *types.Authorization) ([]byte, error) {
	f.calledURL = url
	return f.body, f.err
}
