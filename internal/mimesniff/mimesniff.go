// Package mimesniff provides the default implementation of the
// MIME-inference collaborator the Response Capturer uses to refine a
// text/plain response down to a more specific content type.
//
// No content-type-sniffing library appears anywhere in this codebase's
// dependency graph. mime.TypeByExtension is the same mechanism Go's own
// net/http file server uses, and covers the "parse the URL, strip query"
// case without pulling in a dependency no example repo demonstrates. See
// DESIGN.md for the full justification.
package mimesniff

import (
	"mime"
	"path"
	"strings"
)

// Sniffer infers a MIME type from a URL path's extension.
type Sniffer struct{}

// New returns a Sniffer.
func New() *Sniffer { return &Sniffer{} }

// Sniff implements types.MimeSniffer.
func (Sniffer) Sniff(urlPath string) (string, bool) {
	ext := path.Ext(urlPath)
	if ext == "" {
		return "", false
	}
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "", false
	}
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.TrimSpace(mimeType), true
}
