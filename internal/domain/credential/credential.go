package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// MerchantCredential holds a merchant's gateway API key pair and webhook
// signing secret. Secret material is stored encrypted; only KeyID is
// kept in the clear.
type MerchantCredential struct {
	ID                 int64
	MerchantID         string
	KeyID              string
	KeySecretEnc       string
	WebhookSecretEnc   string
	WebhookDestination string
	IsActive           bool
}

// Resolved is a credential with its secret fields decrypted, ready to be
// handed to the gateway client. Never persisted.
type Resolved struct {
	MerchantID         string
	KeyID              string
	KeySecret          string
	WebhookSecret      string
	WebhookDestination string
}

// New creates a merchant credential, encrypting the secret fields with
// the given 32-byte AES key.
func New(merchantID, keyID, keySecret, webhookSecret, webhookDestination string, encKey []byte) (*MerchantCredential, error) {
	if strings.TrimSpace(merchantID) == "" {
		return nil, fmt.Errorf("merchant ID is required")
	}
	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(keySecret) == "" {
		return nil, fmt.Errorf("gateway key ID and secret are required")
	}

	ksEnc, err := Encrypt(keySecret, encKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt key secret: %w", err)
	}
	wsEnc := ""
	if webhookSecret != "" {
		wsEnc, err = Encrypt(webhookSecret, encKey)
		if err != nil {
			return nil, fmt.Errorf("encrypt webhook secret: %w", err)
		}
	}

	return &MerchantCredential{
		MerchantID:         merchantID,
		KeyID:              keyID,
		KeySecretEnc:       ksEnc,
		WebhookSecretEnc:   wsEnc,
		WebhookDestination: webhookDestination,
		IsActive:           true,
	}, nil
}

// Resolve decrypts the secret fields.
func (c *MerchantCredential) Resolve(encKey []byte) (*Resolved, error) {
	ks, err := Decrypt(c.KeySecretEnc, encKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt key secret for merchant %s: %w", c.MerchantID, err)
	}
	ws := ""
	if c.WebhookSecretEnc != "" {
		ws, err = Decrypt(c.WebhookSecretEnc, encKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt webhook secret for merchant %s: %w", c.MerchantID, err)
		}
	}
	return &Resolved{
		MerchantID:         c.MerchantID,
		KeyID:              c.KeyID,
		KeySecret:          ks,
		WebhookSecret:      ws,
		WebhookDestination: c.WebhookDestination,
	}, nil
}

// Deactivate marks the credential as inactive.
func (c *MerchantCredential) Deactivate() {
	c.IsActive = false
}

// Encrypt encrypts plaintext with AES-GCM and returns base64.
func Encrypt(plaintext string, key []byte) (string, error) {
	if len(key) != 32 {
		return "", fmt.Errorf("encryption key must be 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a base64 AES-GCM ciphertext produced by Encrypt.
func Decrypt(ciphertext string, key []byte) (string, error) {
	if len(key) != 32 {
		return "", fmt.Errorf("decryption key must be 32 bytes")
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
