package types

import "context"

// ResourceType mirrors the CDP resourceType string reported on
// Network.requestWillBeSent and Network.responseReceived events.
type ResourceType string

const (
	ResourceTypeDocument    ResourceType = "Document"
	ResourceTypeStylesheet  ResourceType = "Stylesheet"
	ResourceTypeImage       ResourceType = "Image"
	ResourceTypeMedia       ResourceType = "Media"
	ResourceTypeFont        ResourceType = "Font"
	ResourceTypeOther       ResourceType = "Other"
	ResourceTypeXHR         ResourceType = "XHR"
	ResourceTypeFetch       ResourceType = "Fetch"
	ResourceTypeEventSource ResourceType = "EventSource"
)

// CapturableResourceTypes is the allow-list applied when JavaScript capture
// is disabled.
var CapturableResourceTypes = map[ResourceType]bool{
	ResourceTypeDocument:   true,
	ResourceTypeStylesheet: true,
	ResourceTypeImage:      true,
	ResourceTypeMedia:      true,
	ResourceTypeFont:       true,
	ResourceTypeOther:      true,
}

// ResponseInfo is the response half of a RequestRecord. Buffer is a
// deferred body-fetch closure rather than an eagerly fetched byte slice,
// so the body is only pulled over the wire when something actually asks
// for it.
type ResponseInfo struct {
	Status   int64
	MimeType string
	Headers  map[string]string
	Buffer   func(ctx context.Context) ([]byte, error)
}

// RequestRecord is the per-request bookkeeping entry the Request Registry
// owns for the lifetime of a network request.
type RequestRecord struct {
	RequestID     string
	InterceptID   string
	URL           string
	Method        string
	Headers       map[string]string
	ResourceType  ResourceType
	RedirectChain []RequestRecord
	Response      *ResponseInfo
}

// Resource is the shape produced by the Response Capturer and handed to
// ResourceCache.Save.
type Resource struct {
	URL      string
	Content  []byte
	MimeType string
	SHA      string
	Status   int
	Headers  map[string][]string
	Root     bool
	Provided bool
}

// CachedResource is what ResourceCache.Get returns: a resource the cache
// already knows about, together with the two flags the Interception
// Decider's decision table switches on.
type CachedResource struct {
	Resource
}

// ResourceCache is the external resource cache collaborator the
// Interception Decider and Response Capturer depend on.
type ResourceCache interface {
	// Get returns the cached resource for a normalized URL, or ok=false if
	// there is no cached entry.
	Get(ctx context.Context, normalizedURL string) (res CachedResource, ok bool, err error)
	// Save stores a resource produced by the Response Capturer. Save must be
	// safe to call concurrently for different (or the same) URL.
	Save(ctx context.Context, res Resource) error
}

// HostnameMatcher is the external hostname-glob-matching collaborator.
type HostnameMatcher interface {
	// Match reports whether hostname matches any pattern in the set the
	// matcher was built from.
	Match(hostname string) bool
}

// Fetcher is the external HTTP client collaborator used for direct
// fetches on the font re-fetch path.
type Fetcher interface {
	Fetch(ctx context.Context, url string, basicAuth *Authorization) ([]byte, error)
}

// URLNormalizer is the external URL-normalization collaborator.
type URLNormalizer interface {
	Normalize(rawURL string) string
}

// MimeSniffer is the external MIME-inference collaborator.
type MimeSniffer interface {
	// Sniff returns the inferred MIME type for a URL path (query already
	// stripped) and whether inference succeeded.
	Sniff(urlPath string) (mimeType string, ok bool)
}

// Authorization is HTTP Basic auth credentials.
type Authorization struct {
	Username string
	Password string
}

// InterceptPolicy is the interception configuration a Watcher is built
// with: the resource cache, hostname policy, and capture toggles.
type InterceptPolicy struct {
	Cache                   ResourceCache
	DisallowedHostnames     HostnameMatcher
	AllowedHostnames        HostnameMatcher
	DisableCache            bool
	EnableJavaScriptCapture bool
}
