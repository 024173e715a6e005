// Package resourcecache provides the default implementations of the
// resource-cache and direct-fetch collaborators the engine's Interception
// Decider and Response Capturer depend on.
package resourcecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// diskMetadata is the JSON sidecar written next to each cached resource's
// content file, grounded on internal/snapshot/store.go's image+JSON
// sidecar persistence pattern.
type diskMetadata struct {
	ID       string              `json:"id"`
	URL      string              `json:"url"`
	MimeType string              `json:"mimetype"`
	SHA      string              `json:"sha"`
	Status   int                 `json:"status"`
	Headers  map[string][]string `json:"headers"`
	Root     bool                `json:"root,omitempty"`
	Provided bool                `json:"provided,omitempty"`
}

// DiskCache is a filesystem-backed ResourceCache, grounded on
// storage.ResourceWriter.WriteRaw's directory layout. The filesystem is an
// afero.Fs so tests can substitute afero.NewMemMapFs() for the real disk.
type DiskCache struct {
	fs      afero.Afero
	baseDir string
}

// NewDiskCache constructs a DiskCache rooted at baseDir on fs.
func NewDiskCache(fs afero.Fs, baseDir string) *DiskCache {
	return &DiskCache{fs: afero.Afero{Fs: fs}, baseDir: baseDir}
}

func (c *DiskCache) keyFor(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])
}

func (c *DiskCache) metaPath(key string) string { return path.Join(c.baseDir, key+".json") }
func (c *DiskCache) bodyPath(key string) string { return path.Join(c.baseDir, key+".bin") }

// Get implements types.ResourceCache.
func (c *DiskCache) Get(_ context.Context, normalizedURL string) (types.CachedResource, bool, error) {
	key := c.keyFor(normalizedURL)

	metaBytes, err := c.fs.ReadFile(c.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return types.CachedResource{}, false, nil
		}
		return types.CachedResource{}, false, err
	}

	var meta diskMetadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return types.CachedResource{}, false, fmt.Errorf("decode resource metadata: %w", err)
	}

	content, err := c.fs.ReadFile(c.bodyPath(key))
	if err != nil {
		return types.CachedResource{}, false, err
	}

	return types.CachedResource{Resource: types.Resource{
		URL:      meta.URL,
		Content:  content,
		MimeType: meta.MimeType,
		SHA:      meta.SHA,
		Status:   meta.Status,
		Headers:  meta.Headers,
		Root:     meta.Root,
		Provided: meta.Provided,
	}}, true, nil
}

// Save implements types.ResourceCache.
func (c *DiskCache) Save(_ context.Context, res types.Resource) error {
	if err := c.fs.MkdirAll(c.baseDir, 0o755); err != nil {
		return err
	}

	key := c.keyFor(res.URL)
	sum := sha256.Sum256(res.Content)
	sha := hex.EncodeToString(sum[:])

	meta := diskMetadata{
		ID:       uuid.NewString(),
		URL:      res.URL,
		MimeType: res.MimeType,
		SHA:      sha,
		Status:   res.Status,
		Headers:  res.Headers,
		Root:     res.Root,
		Provided: res.Provided,
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	if err := c.fs.WriteFile(c.bodyPath(key), res.Content, 0o644); err != nil {
		return err
	}
	return c.fs.WriteFile(c.metaPath(key), metaBytes, 0o644)
}
