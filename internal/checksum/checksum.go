// Package checksum fingerprints document bytes for optimistic concurrency.
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

// ETag formats the digest of data as a strong HTTP entity tag.
func ETag(data []byte) string {
	return `"` + Sum(data) + `"`
}

// Matches reports whether tag, bare or quoted, names the digest of data.
// A "*" tag matches any content.
func Matches(tag string, data []byte) bool {
	tag = strings.TrimSpace(tag)
	if tag == "*" {
		return true
	}
	tag = strings.TrimPrefix(tag, "W/")
	return strings.Trim(tag, `"`) == Sum(data)
}
