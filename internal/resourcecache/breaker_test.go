package resourcecache

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

type failingCache struct {
	err error
}

func (f *failingCache) Get(context.Context, string) (types.CachedResource, bool, error) {
	return types.CachedResource{}, false, f.err
}

func (f *failingCache) Save(context.Context, types.Resource) error {
	return f.err
}

func TestBreakerCache(t *testing.T) {
	t.Run("passes_through_successful_lookups", func(t *testing.T) {
		inner := NewDiskCache(afero.NewMemMapFs(), "/cache")
		bc := NewBreakerCache(inner, "test-passthrough")
		ctx := context.Background()

		require.NoError(t, bc.Save(ctx, types.Resource{URL: "https://example.com/a", Content: []byte("x")}))

		got, ok, err := bc.Get(ctx, "https://example.com/a")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("x"), got.Content)
	})

	t.Run("reports_backend_failure_as_cache_miss_not_error", func(t *testing.T) {
		inner := &failingCache{err: errors.New("backend unavailable")}
		bc := NewBreakerCache(inner, "test-failure")

		_, ok, err := bc.Get(context.Background(), "https://example.com/a")
		require.NoError(t, err)
		require.False(t, ok)
	})
}
