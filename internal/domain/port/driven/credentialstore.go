package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// FWCHECKS_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set FWCHECKS_SECRET_KEY")

// Credential service names.
const (
	CredentialServiceCI = "ci"
)

// CredentialStore defines the driven port for encrypted credential persistence.
// The adapter encrypts and decrypts; this interface works on plaintext.
type CredentialStore interface {
	// Set stores or replaces the credential for the service.
	// Returns ErrEncryptionKeyNotSet when no key was configured.
	Set(ctx context.Context, service, plaintext string) error

	// Get returns the plaintext credential, or ("", nil) when none is stored.
	// Returns ErrEncryptionKeyNotSet when no key was configured.
	Get(ctx context.Context, service string) (string, error)

	// Delete removes the credential for the service.
	Delete(ctx context.Context, service string) error
}
