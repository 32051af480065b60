// Package vault encrypts external service credentials at rest.
//
// Tokens are sealed with AES-256-GCM and stored as base64 blobs laid out as
// nonce || tag || ciphertext. Decryption of a tampered or foreign blob fails
// with ErrAuthentication rather than returning corrupt plaintext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrAuthentication indicates a blob could not be authenticated: wrong secret,
// tampered bytes, or data that was never a vault blob.
var ErrAuthentication = errors.New("vault: message authentication failed")

const (
	nonceSize = 12
	tagSize   = 16
	keySize   = 32
)

// deriveKey turns an operator-supplied secret into a 32-byte AES key.
// Accepted forms: 64-char hex, base64 of exactly 32 bytes, or any other
// string which is hashed with SHA-256.
func deriveKey(secret string) []byte {
	if len(secret) == 64 {
		if key, err := hex.DecodeString(secret); err == nil {
			return key
		}
	}
	if key, err := base64.StdEncoding.DecodeString(secret); err == nil && len(key) == keySize {
		return key
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

func newGCM(secret string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return nil, fmt.Errorf("new cipher failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm failed: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext under the given secret and returns the base64 blob.
// A fresh random nonce is drawn per call, so encrypting the same plaintext
// twice yields different blobs.
func Encrypt(plaintext, secret string) (string, error) {
	gcm, err := newGCM(secret)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce generation failed: %w", err)
	}

	// Seal appends the tag after the ciphertext; the blob layout wants it
	// between the nonce and the ciphertext.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, nonceSize+tagSize+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure to authenticate the
// blob, including malformed base64 or a truncated payload, reports
// ErrAuthentication.
func Decrypt(blob, secret string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("decode blob: %w", ErrAuthentication)
	}
	if len(raw) < nonceSize+tagSize {
		return "", fmt.Errorf("blob too short: %w", ErrAuthentication)
	}

	gcm, err := newGCM(secret)
	if err != nil {
		return "", err
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ciphertext := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plaintext), nil
}
