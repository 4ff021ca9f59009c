package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters (RFC 9106 second recommended option).
	defaultArgon2Time    = 1
	defaultArgon2Memory  = 64 * 1024 // 64 MB
	defaultArgon2Threads = 4
	argon2KeyLen         = 32 // AES-256

	saltLength = 16
	nonceSize  = 12
	tagSize    = 16
)

// ErrNoSecret is returned when a token must be sealed but no secret is set.
var ErrNoSecret = errors.New("session secret is not configured")

// EncryptionConfig holds the key-derivation settings for token encryption.
type EncryptionConfig struct {
	// Secret is the passphrase the AES key is derived from.
	Secret string

	Argon2Time    uint32
	Argon2Memory  uint32 // in KB
	Argon2Threads uint8
}

// DefaultEncryptionConfig returns encryption config with secure defaults.
func DefaultEncryptionConfig(secret string) *EncryptionConfig {
	return &EncryptionConfig{
		Secret:        secret,
		Argon2Time:    defaultArgon2Time,
		Argon2Memory:  defaultArgon2Memory,
		Argon2Threads: defaultArgon2Threads,
	}
}

// TokenCipher seals auth tokens with AES-256-GCM under an Argon2id key.
// Each sealed value carries its own salt, so sealing the same token twice
// yields different ciphertexts.
type TokenCipher struct {
	config *EncryptionConfig
}

// NewTokenCipher creates a cipher. A nil config or empty secret yields a
// cipher that only accepts empty tokens.
func NewTokenCipher(config *EncryptionConfig) *TokenCipher {
	if config == nil {
		config = DefaultEncryptionConfig("")
	}
	return &TokenCipher{config: config}
}

func (c *TokenCipher) deriveKey(salt []byte) []byte {
	return argon2.IDKey([]byte(c.config.Secret), salt,
		c.config.Argon2Time, c.config.Argon2Memory, c.config.Argon2Threads, argon2KeyLen)
}

func (c *TokenCipher) gcm(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts token and returns base64(salt || nonce || ciphertext).
// An empty token seals to the empty string.
func (c *TokenCipher) Seal(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	if c.config.Secret == "" {
		return "", ErrNoSecret
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := c.gcm(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(salt)+len(nonce)+len(token)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(token), nil)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (c *TokenCipher) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if c.config.Secret == "" {
		return "", ErrNoSecret
	}

	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}
	if len(data) < saltLength+nonceSize+tagSize {
		return "", fmt.Errorf("encrypted token too short")
	}

	salt, rest := data[:saltLength], data[saltLength:]
	gcm, err := c.gcm(salt)
	if err != nil {
		return "", err
	}

	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed (wrong secret or corrupted data): %w", err)
	}
	return string(plaintext), nil
}
