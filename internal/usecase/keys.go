package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"AlphaDesk/internal/domain/models"
	domrepo "AlphaDesk/internal/domain/repository"
	applogger "AlphaDesk/pkg/logger"
)

const nonceSize = 24

var errKeyDecrypt = errors.New("stored key could not be decrypted")

// KeyResolver picks the API key for a provider: the user's stored key when it
// decrypts, else the platform default. Empty means no key.
type KeyResolver struct {
	store    domrepo.KeyStore
	secret   *[32]byte
	defaults map[models.ProviderID]string
	l        *applogger.Logger
}

// ParseKeySecret decodes a 64-char hex secret. Empty input yields nil.
func ParseKeySecret(hexSecret string) (*[32]byte, error) {
	if hexSecret == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, fmt.Errorf("key secret: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("key secret: want 32 bytes, got %d", len(raw))
	}
	var k [32]byte
	copy(k[:], raw)
	return &k, nil
}

func NewKeyResolver(store domrepo.KeyStore, secret *[32]byte, defaults map[models.ProviderID]string, l *applogger.Logger) *KeyResolver {
	return &KeyResolver{store: store, secret: secret, defaults: defaults, l: l}
}

func (k *KeyResolver) Resolve(ctx context.Context, userID string, provider models.ProviderID) string {
	if userID != "" && k.store != nil && k.secret != nil {
		enc, err := k.store.EncryptedKey(ctx, userID, provider)
		switch {
		case err != nil:
			k.l.Warn("user key lookup failed", applogger.String("provider", string(provider)), applogger.Error(err))
		case enc != "":
			key, err := OpenKey(k.secret, enc)
			if err == nil {
				return key
			}
			k.l.Warn("user key unusable, using platform key",
				applogger.String("provider", string(provider)),
				applogger.String("user_id", userID),
				applogger.Error(err),
			)
		}
	}
	return k.defaults[provider]
}

// SealKey encrypts an API key as base64(nonce || secretbox).
func SealKey(secret *[32]byte, plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, secret)
	return base64.StdEncoding.EncodeToString(out), nil
}

func OpenKey(secret *[32]byte, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) <= nonceSize {
		return "", errKeyDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, secret)
	if !ok {
		return "", errKeyDecrypt
	}
	return string(plain), nil
}
