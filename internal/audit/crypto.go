package audit

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/albertopd/secureprompt/internal/cryptoutil"
)

// ErrInvalidCryptoKey is returned when the original-text encryption key does
// not resolve to exactly 32 bytes (required for AES-256).
var ErrInvalidCryptoKey = errors.New("invalid crypto key")

// cipherBox encrypts original text at rest with AES-256-GCM. Ciphertext and
// nonce are stored base64-encoded in separate columns.
type cipherBox struct {
	gcm cipher.AEAD
}

func newCipherBox(key string) (*cipherBox, error) {
	keyBytes, err := cryptoutil.KeyBytes(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCryptoKey, err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("%w: key must resolve to 32 bytes (got %d)", ErrInvalidCryptoKey, len(keyBytes))
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &cipherBox{gcm: gcm}, nil
}

func (c *cipherBox) encrypt(plaintext string) (ciphertextB64, nonceB64 string, err error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("generating nonce: %w", err)
	}
	ciphertext := c.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), base64.StdEncoding.EncodeToString(nonce), nil
}

func (c *cipherBox) decrypt(ciphertextB64, nonceB64 string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return "", fmt.Errorf("decoding nonce: %w", err)
	}
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting original text: %w", err)
	}
	return string(plaintext), nil
}
