package domain

import (
	"encoding/base32"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// EncodedUsernamePrefix marks a username that has been transport-encoded.
const EncodedUsernamePrefix = "enc."

var usernameEncoding = base32.StdEncoding

// NormalizeUsername prepares a plain username for encoding and comparison:
//   - trims leading/trailing whitespace
//   - composes Unicode to NFC so that visually equal names encode equally
//
// Case is preserved; the identity provider compares case-insensitively.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

// EncodeUsername returns the transport-encoded form of a plain username:
// the "enc." prefix followed by lower-case base32 with '=' padding replaced
// by '.'. Already encoded names are returned unchanged.
func EncodeUsername(username string) string {
	if IsEncodedUsername(username) {
		return username
	}
	encoded := usernameEncoding.EncodeToString([]byte(username))
	encoded = strings.ReplaceAll(encoded, "=", ".")
	return EncodedUsernamePrefix + strings.ToLower(encoded)
}

// DecodeUsername reverses EncodeUsername. Plain names are returned unchanged;
// a malformed encoded name is returned unchanged too.
func DecodeUsername(username string) string {
	if !IsEncodedUsername(username) {
		return username
	}
	raw := strings.TrimPrefix(username, EncodedUsernamePrefix)
	raw = strings.ReplaceAll(strings.ToUpper(raw), ".", "=")
	decoded, err := usernameEncoding.DecodeString(raw)
	if err != nil {
		return username
	}
	return string(decoded)
}

// IsEncodedUsername reports whether username carries the encoding prefix.
func IsEncodedUsername(username string) bool {
	return strings.HasPrefix(username, EncodedUsernamePrefix)
}
