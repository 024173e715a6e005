package resourcecache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// RedisCache is a shared-cache ResourceCache backend. A resource cache
// written to concurrently from multiple Response Capturers is exactly the
// job a keyed remote store is built for.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache wraps client, namespacing keys under keyPrefix.
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

type redisEntry struct {
	URL      string              `json:"url"`
	Content  []byte              `json:"content"`
	MimeType string              `json:"mimetype"`
	SHA      string              `json:"sha"`
	Status   int                 `json:"status"`
	Headers  map[string][]string `json:"headers"`
	Root     bool                `json:"root,omitempty"`
	Provided bool                `json:"provided,omitempty"`
}

func (c *RedisCache) key(normalizedURL string) string {
	return fmt.Sprintf("%s:%s", c.keyPrefix, normalizedURL)
}

// Get implements types.ResourceCache.
func (c *RedisCache) Get(ctx context.Context, normalizedURL string) (types.CachedResource, bool, error) {
	raw, err := c.client.Get(ctx, c.key(normalizedURL)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return types.CachedResource{}, false, nil
		}
		return types.CachedResource{}, false, err
	}

	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return types.CachedResource{}, false, err
	}

	return types.CachedResource{Resource: types.Resource{
		URL:      entry.URL,
		Content:  entry.Content,
		MimeType: entry.MimeType,
		SHA:      entry.SHA,
		Status:   entry.Status,
		Headers:  entry.Headers,
		Root:     entry.Root,
		Provided: entry.Provided,
	}}, true, nil
}

// Save implements types.ResourceCache.
func (c *RedisCache) Save(ctx context.Context, res types.Resource) error {
	entry := redisEntry{
		URL:      res.URL,
		Content:  res.Content,
		MimeType: res.MimeType,
		SHA:      res.SHA,
		Status:   res.Status,
		Headers:  res.Headers,
		Root:     res.Root,
		Provided: res.Provided,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(res.URL), raw, 0).Err()
}
