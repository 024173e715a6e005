// Package urlnorm provides the default implementation of the
// URL-normalization collaborator the Interception Decider and Response
// Capturer use to key the resource cache.
//
// No URL-normalization library appears anywhere in this codebase's
// dependency graph; storage.TransformURLToPathSegment and every other
// URL-handling helper in the example pack works directly against stdlib
// net/url and strings, so normalization follows the same local
// convention. See DESIGN.md for the full justification.
package urlnorm

import (
	"net/url"
	"strings"
)

// Normalizer lower-cases scheme and host, and strips default ports and
// the fragment.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer { return &Normalizer{} }

// Normalize implements types.URLNormalizer.
func (Normalizer) Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(stripDefaultPort(u.Scheme, u.Host))
	u.Fragment = ""

	return u.String()
}

func stripDefaultPort(scheme, host string) string {
	switch {
	case strings.HasSuffix(host, ":80") && scheme == "http":
		return strings.TrimSuffix(host, ":80")
	case strings.HasSuffix(host, ":443") && scheme == "https":
		return strings.TrimSuffix(host, ":443")
	default:
		return host
	}
}
