package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// CalculateFileHash generates the SHA-256 fingerprint for raw image bytes.
func CalculateFileHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// URLKey creates the SHA-256 key for an image URL.
// Blob file names and database primary keys are always this 64-character hex string.
func URLKey(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}
