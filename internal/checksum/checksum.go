// Package checksum derives stable cache keys.
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

// Key joins parts with a NUL separator and digests them. Parts must already
// be in canonical order; the separator keeps ("ab","c") and ("a","bc")
// distinct.
func Key(parts ...string) string {
	return Sum([]byte(strings.Join(parts, "\x00")))
}
