package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const sessionTokenBytes = 32

// ErrMalformedToken is returned for values that cannot be a session token.
var ErrMalformedToken = errors.New("malformed session token")

// GenerateSessionToken returns a new unguessable session token, base64url without padding.
func GenerateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateSessionToken checks that token has the shape produced by GenerateSessionToken.
func ValidateSessionToken(token string) error {
	if len(token) != base64.RawURLEncoding.EncodedLen(sessionTokenBytes) {
		return ErrMalformedToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != sessionTokenBytes {
		return ErrMalformedToken
	}
	return nil
}

// HashSessionToken returns the key under which a token's session is stored.
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
