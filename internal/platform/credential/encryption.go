// Package credential encrypts cloud-LLM API keys and remote-worker auth
// tokens at rest using AES-256-GCM with a PBKDF2-derived key.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Encryptor encrypts and decrypts secret material with AES-256-GCM.
type Encryptor struct {
	key []byte
}

// Config configures key derivation for the Encryptor.
type Config struct {
	Key        string // base64-encoded raw key, or a passphrase
	KeyType    string // "raw" or "passphrase"
	Salt       string // used only when KeyType is "passphrase"
	Iterations int    // PBKDF2 iterations, only used for "passphrase"
}

// DefaultConfig returns a passphrase-derived key config with a conservative
// iteration count.
func DefaultConfig() *Config {
	return &Config{
		KeyType:    "passphrase",
		Iterations: 100000,
	}
}

// NewEncryptor builds an Encryptor from cfg.
func NewEncryptor(cfg *Config) (*Encryptor, error) {
	var key []byte

	switch cfg.KeyType {
	case "raw":
		var err error
		key, err = base64.StdEncoding.DecodeString(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid key: %w", err)
		}
	case "passphrase":
		salt := []byte(cfg.Salt)
		if len(salt) == 0 {
			salt = []byte("orchestrator-default-salt")
		}
		key = pbkdf2.Key([]byte(cfg.Key), salt, cfg.Iterations, 32, sha256.New)
	default:
		return nil, fmt.Errorf("unknown key type: %s", cfg.KeyType)
	}

	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes for AES-256")
	}

	return &Encryptor{key: key}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM, prefixing the nonce.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

func (e *Encryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptString encrypts a string and returns a base64-encoded ciphertext.
func (e *Encryptor) EncryptString(plaintext string) (string, error) {
	ciphertext, err := e.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString reverses EncryptString.
func (e *Encryptor) DecryptString(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	plaintext, err := e.Decrypt(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// GenerateKey generates a fresh random 32-byte key, base64-encoded, for use
// with Config{KeyType: "raw"}.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Mask redacts a secret value for logging, keeping only the last 4 characters.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
