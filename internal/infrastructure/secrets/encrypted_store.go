// Package secrets stores connection credentials encrypted at rest. The rest
// of the system only ever holds opaque references; plaintext exists in memory
// just long enough to seal or to hand to a connector call.
package secrets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"gorm.io/gorm"

	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/infrastructure/persistence/models"
)

// Store errors
var (
	// ErrInvalidKey means the configured encryption key is not a hex-encoded
	// 32-byte value
	ErrInvalidKey = errors.New("secrets: encryption key must be 64 hex characters")
	// ErrSecretNotFound means no credential exists under the reference
	ErrSecretNotFound = errors.New("secrets: not found")
	// ErrDecryptFailed means the ciphertext could not be opened, usually a
	// key rotation without re-encryption
	ErrDecryptFailed = errors.New("secrets: decryption failed")
)

// EncryptedStore implements connection.SecretStore with XChaCha20-Poly1305
// sealed blobs in the connection_secrets table
type EncryptedStore struct {
	db  *gorm.DB
	key []byte
}

// NewEncryptedStore creates a store with the given hex-encoded 32-byte key
func NewEncryptedStore(db *gorm.DB, hexKey string) (*EncryptedStore, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return &EncryptedStore{db: db, key: key}, nil
}

// Put stores a credential payload under a new reference
func (s *EncryptedStore) Put(ctx context.Context, tenantID uuid.UUID, secret map[string]string) (uuid.UUID, error) {
	plaintext, err := json.Marshal(secret)
	if err != nil {
		return uuid.Nil, fmt.Errorf("secrets: marshal payload: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return uuid.Nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return uuid.Nil, err
	}

	ref := uuid.New()
	// The reference and tenant bind the ciphertext as additional data so a
	// blob copied between rows fails to open.
	ciphertext := aead.Seal(nil, nonce, plaintext, additionalData(tenantID, ref))

	now := time.Now()
	model := &models.ConnectionSecretModel{
		ID:         ref,
		TenantID:   tenantID,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return uuid.Nil, err
	}
	return ref, nil
}

// Get resolves a credential payload by reference
func (s *EncryptedStore) Get(ctx context.Context, tenantID, ref uuid.UUID) (map[string]string, error) {
	var model models.ConnectionSecretModel
	if err := s.db.WithContext(ctx).First(&model, "tenant_id = ? AND id = ?", tenantID, ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSecretNotFound
		}
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, model.Nonce, model.Ciphertext, additionalData(tenantID, ref))
	if err != nil {
		return nil, ErrDecryptFailed
	}

	var secret map[string]string
	if err := json.Unmarshal(plaintext, &secret); err != nil {
		return nil, fmt.Errorf("secrets: unmarshal payload: %w", err)
	}
	return secret, nil
}

// Delete removes a credential payload
func (s *EncryptedStore) Delete(ctx context.Context, tenantID, ref uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Delete(&models.ConnectionSecretModel{}, "tenant_id = ? AND id = ?", tenantID, ref)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSecretNotFound
	}
	return nil
}

func additionalData(tenantID, ref uuid.UUID) []byte {
	ad := make([]byte, 0, 32)
	ad = append(ad, tenantID[:]...)
	ad = append(ad, ref[:]...)
	return ad
}

// Ensure EncryptedStore implements the domain port
var _ connection.SecretStore = (*EncryptedStore)(nil)
