package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		secret    string
	}{
		{"access token", "ya29.a0AfH6SMBx7...", "team-shared-passphrase"},
		{"refresh token", "1//0gExampleRefreshToken", "team-shared-passphrase"},
		{"empty plaintext", "", "team-shared-passphrase"},
		{"unicode plaintext", "tökën-ありがとう", "team-shared-passphrase"},
		{"long plaintext", strings.Repeat("abc123", 500), "team-shared-passphrase"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Encrypt(tt.plaintext, tt.secret)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}

			got, err := Decrypt(blob, tt.secret)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if got != tt.plaintext {
				t.Errorf("round trip = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestEncryptFreshNonce(t *testing.T) {
	a, err := Encrypt("same plaintext", "secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	b, err := Encrypt("same plaintext", "secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestDecryptWrongSecret(t *testing.T) {
	blob, err := Encrypt("top secret token", "correct-secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	_, err = Decrypt(blob, "wrong-secret")
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("Decrypt with wrong secret = %v, want ErrAuthentication", err)
	}
}

func TestDecryptTamperedBlob(t *testing.T) {
	blob, err := Encrypt("top secret token", "secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// Flip one bit in every byte position: nonce, tag, and ciphertext
	// regions must all trip authentication.
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01

		_, err := Decrypt(base64.StdEncoding.EncodeToString(mutated), "secret")
		if !errors.Is(err, ErrAuthentication) {
			t.Fatalf("byte %d: Decrypt of mutated blob = %v, want ErrAuthentication", i, err)
		}
	}
}

func TestDecryptGarbage(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"not base64", "!!not-base64!!"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.blob, "secret")
			if !errors.Is(err, ErrAuthentication) {
				t.Errorf("Decrypt(%q) = %v, want ErrAuthentication", tt.blob, err)
			}
		})
	}
}

func TestKeyDerivationForms(t *testing.T) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		t.Fatalf("rand failed: %v", err)
	}
	hexSecret := hex.EncodeToString(keyBytes)
	b64Secret := base64.StdEncoding.EncodeToString(keyBytes)

	// Hex and base64 encodings of the same 32 bytes derive the same key,
	// so blobs sealed under one open under the other.
	blob, err := Encrypt("interchangeable", hexSecret)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	got, err := Decrypt(blob, b64Secret)
	if err != nil {
		t.Fatalf("Decrypt with base64 form failed: %v", err)
	}
	if got != "interchangeable" {
		t.Errorf("cross-form round trip = %q, want %q", got, "interchangeable")
	}

	// A plain passphrase is hashed; it must round trip and must not open
	// blobs sealed under a different passphrase.
	blob, err = Encrypt("hello", "plain passphrase")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if got, err := Decrypt(blob, "plain passphrase"); err != nil || got != "hello" {
		t.Errorf("passphrase round trip = %q, %v", got, err)
	}
	if _, err := Decrypt(blob, "other passphrase"); !errors.Is(err, ErrAuthentication) {
		t.Errorf("cross-passphrase decrypt = %v, want ErrAuthentication", err)
	}
}

func TestBlobLayout(t *testing.T) {
	blob, err := Encrypt("layout check", "secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("blob is not standard base64: %v", err)
	}
	want := nonceSize + tagSize + len("layout check")
	if len(raw) != want {
		t.Errorf("blob length = %d, want %d (nonce+tag+ciphertext)", len(raw), want)
	}
}
