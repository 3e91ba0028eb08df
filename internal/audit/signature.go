package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/albertopd/secureprompt/internal/cryptoutil"
)

// Signer creates and verifies HMAC-SHA256 signatures for audit record
// integrity.
type Signer struct {
	key []byte
}

// NewSigner creates an HMAC-SHA256 signer. The key must resolve to at least
// 32 bytes (raw, or hex-encoded per cryptoutil.KeyBytes).
func NewSigner(key string) (*Signer, error) {
	keyBytes, err := cryptoutil.KeyBytes(key)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	if len(keyBytes) < 32 {
		return nil, fmt.Errorf("signing key must resolve to at least 32 bytes (got %d)", len(keyBytes))
	}
	return &Signer{key: keyBytes}, nil
}

// Sign creates an HMAC-SHA256 signature for the given data.
func (s *Signer) Sign(data []byte) string {
	h := hmac.New(sha256.New, s.key)
	h.Write(data)
	return "hmac-sha256:" + hex.EncodeToString(h.Sum(nil))
}

// Verify checks if a signature is valid for the given data.
func (s *Signer) Verify(data []byte, signature string) bool {
	return hmac.Equal([]byte(s.Sign(data)), []byte(signature))
}
