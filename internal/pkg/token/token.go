package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const tokenBytes = 32

// Generate returns a URL-safe opaque token for invitation links and repo
// access credentials. The raw value is shown to the caller once; only the
// hash is ever stored.
func Generate() string {
	b := make([]byte, tokenBytes)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Hash returns the hex-encoded SHA-256 digest used to look tokens up in
// storage. Deterministic so the same raw token always maps to the same row.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
