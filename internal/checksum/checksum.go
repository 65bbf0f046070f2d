// Package checksum fingerprints document contents so that callers can tell
// whether a file changed between two reads.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Changed reports whether data no longer matches sum.
func Changed(sum string, data []byte) bool {
	return Sum(data) != sum
}
