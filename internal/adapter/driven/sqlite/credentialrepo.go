package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Values are sealed with AES-256-GCM before write and opened after read.
type CredentialRepo struct {
	db   *DB
	aead cipher.AEAD // nil when no key was configured.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes, or nil
// to disable credential storage (Set and Get return ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	repo := &CredentialRepo{db: db}
	if key == nil {
		return repo, nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	repo.aead, err = cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return repo, nil
}

// Set stores or replaces the credential for the service.
func (r *CredentialRepo) Set(ctx context.Context, service, plaintext string) error {
	sealed, err := r.seal(plaintext)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO credentials (service, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (service) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.Writer.ExecContext(ctx, query, service, sealed); err != nil {
		return fmt.Errorf("set credential %q: %w", service, err)
	}
	return nil
}

// Get returns the plaintext credential for the service, or ("", nil) when
// none is stored.
func (r *CredentialRepo) Get(ctx context.Context, service string) (string, error) {
	if r.aead == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	var sealed string
	err := r.db.Reader.QueryRowContext(ctx, `SELECT value FROM credentials WHERE service = ?`, service).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", service, err)
	}

	plaintext, err := r.open(sealed)
	if err != nil {
		return "", fmt.Errorf("decrypt credential %q: %w", service, err)
	}
	return plaintext, nil
}

// Delete removes the credential for the service.
func (r *CredentialRepo) Delete(ctx context.Context, service string) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM credentials WHERE service = ?`, service); err != nil {
		return fmt.Errorf("delete credential %q: %w", service, err)
	}
	return nil
}

// seal returns base64(nonce || ciphertext || tag).
func (r *CredentialRepo) seal(plaintext string) (string, error) {
	if r.aead == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	nonce := make([]byte, r.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	return base64.StdEncoding.EncodeToString(r.aead.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

func (r *CredentialRepo) open(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	nonceSize := r.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := r.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}
