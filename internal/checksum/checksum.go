// Package checksum computes the content digests used for change detection
// and optimistic concurrency (ETag / If-Match) on note files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes a digest for use in an ETag header.
func ETag(sum string) string {
	if sum == "" {
		return ""
	}
	return `"` + sum + `"`
}

// FromETag strips the quotes and weak prefix of an ETag or If-Match value.
func FromETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}
