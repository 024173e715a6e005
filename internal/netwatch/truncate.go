package netwatch

import (
	"crypto/sha256"
	"encoding/hex"
)

// truncateBytes reports whether in exceeds maxBytes and always returns its
// sha256 hex digest, used by the Response Capturer to both enforce the
// capture size limit and populate Resource.SHA. Adapted from this
// codebase's existing capture.truncateBytes, which only hashed the
// truncated case; this engine rejects oversized bodies outright instead of
// truncating them, so the hash is needed on every call, not just that one.
func truncateBytes(in []byte, maxBytes int) (truncated bool, originalSize int, sha string) {
	sum := sha256.Sum256(in)
	if maxBytes <= 0 || len(in) <= maxBytes {
		return false, len(in), hex.EncodeToString(sum[:])
	}
	return true, len(in), hex.EncodeToString(sum[:])
}
