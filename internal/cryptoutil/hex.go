// Package cryptoutil holds small helpers shared by the config validation and
// the audit-trail crypto (key format checks, hex/raw key decoding).
package cryptoutil

import (
	"encoding/hex"
	"fmt"
)

// IsHexString reports whether s consists entirely of hexadecimal characters
// (0-9, a-f, A-F). It returns true for an empty string — callers should check
// length separately when a minimum size is required.
func IsHexString(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// KeyBytes normalizes an operator-supplied key to raw bytes. Keys may be
// given either as raw bytes or hex-encoded (even length, hex charset);
// hex is tried first since the two forms are disjoint for valid key sizes.
func KeyBytes(key string) ([]byte, error) {
	if n := len(key); n > 0 && n%2 == 0 && IsHexString(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("decoding hex key: %w", err)
		}
		return decoded, nil
	}
	if key == "" {
		return nil, fmt.Errorf("empty key")
	}
	return []byte(key), nil
}
