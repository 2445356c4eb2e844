// Package internal holds helpers shared by the authkit packages but not
// part of the public API.
package internal

import (
	"crypto/rand"
	"encoding/base64"
)

// opaqueTokenBytes gives refresh tokens 256 bits of entropy.
const opaqueTokenBytes = 32

// NewOpaqueToken returns a fresh unguessable refresh-token value, base64url
// encoded without padding.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
