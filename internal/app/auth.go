package app

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters (OWASP recommended)
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	saltLen       = 16
)

const sealedPrefix = "$argon2id$"

// SealToken encrypts plaintext under a key derived from passphrase.
// Output: $argon2id$v=19$m=65536,t=1,p=4$salt$nonce$ciphertext
func SealToken(plaintext []byte, passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("empty passphrase")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	header := fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s", sealedPrefix, argon2.Version,
		argon2Memory, argon2Time, argon2Threads, base64.RawStdEncoding.EncodeToString(salt))

	key := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// The header is authenticated so the KDF parameters cannot be swapped
	ciphertext := aead.Seal(nil, nonce, plaintext, []byte(header))

	return fmt.Sprintf("%s$%s$%s", header,
		base64.RawStdEncoding.EncodeToString(nonce),
		base64.RawStdEncoding.EncodeToString(ciphertext)), nil
}

// OpenToken reverses SealToken
func OpenToken(sealed, passphrase string) ([]byte, error) {
	parts := strings.Split(strings.TrimSpace(sealed), "$")
	if len(parts) != 7 {
		return nil, fmt.Errorf("invalid sealed token format")
	}
	if parts[1] != "argon2id" {
		return nil, fmt.Errorf("not an argon2id sealed token")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, fmt.Errorf("failed to parse key parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(parts[6])
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, time, memory, uint8(threads), chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}

	header := strings.Join(parts[:5], "$")
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(header))
	if err != nil {
		return nil, fmt.Errorf("wrong passphrase or corrupted token file")
	}
	return plaintext, nil
}

// IsSealed reports whether data was produced by SealToken
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte(sealedPrefix))
}
