package filevalidator

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintLength is the length of a hex-encoded fingerprint
const FingerprintLength = sha256.Size * 2

// Fingerprint returns the lowercase hex SHA-256 digest of data
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
