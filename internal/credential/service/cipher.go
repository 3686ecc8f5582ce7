package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smallbiznis/vehicleguard/internal/credential/domain"
	"golang.org/x/crypto/hkdf"
	"gorm.io/datatypes"
)

const (
	payloadVersion = 1
	keyInfo        = "vehicleguard/integration-credentials/v1"
)

type encryptedPayload struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// deriveKey expands the configured secret into an AES-256 key.
func deriveKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, nil
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

func encrypt(key []byte, config map[string]any) (datatypes.JSON, error) {
	if len(key) == 0 {
		return nil, domain.ErrEncryptionKeyMissing
	}

	plaintext, err := json.Marshal(config)
	if err != nil {
		return nil, domain.ErrInvalidConfig
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out, err := json.Marshal(encryptedPayload{
		Version:    payloadVersion,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func decrypt(key []byte, raw []byte) (domain.Secrets, error) {
	if len(key) == 0 {
		return nil, domain.ErrEncryptionKeyMissing
	}

	var payload encryptedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecrypt, err)
	}
	if payload.Version != payloadVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", domain.ErrDecrypt, payload.Version)
	}
	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", domain.ErrDecrypt, err)
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", domain.ErrDecrypt, err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce size", domain.ErrDecrypt)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Join(domain.ErrDecrypt, err)
	}

	var secrets domain.Secrets
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecrypt, err)
	}
	return secrets, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
