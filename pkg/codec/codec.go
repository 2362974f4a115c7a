// Package codec implements the URL-safe, unpadded base-64 encoding used
// throughout the service for credential identifiers, challenge nonces, and
// token segments.
package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Encode returns the URL-safe base-64 encoding of b with no padding
// characters. Round-trips exactly for every byte sequence, including the
// empty slice.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode parses s as URL-safe base-64, tolerating both padded and unpadded
// input. Any character outside the URL-safe alphabet (or its padding) is
// rejected.
func Decode(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.URLEncoding.DecodeString(withPadding(s))
	if err != nil {
		return nil, fmt.Errorf("codec: invalid base64url input: %w", err)
	}
	return b, nil
}

// withPadding restores the '=' padding base64.URLEncoding requires.
func withPadding(s string) string {
	if rem := len(s) % 4; rem != 0 {
		return s + strings.Repeat("=", 4-rem)
	}
	return s
}
