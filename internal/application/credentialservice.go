package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// ClientFactory builds a CI client authenticated with token.
type ClientFactory func(token string) driven.CIClient

// CredentialService stores the CI service token and swaps it into the
// running client.
type CredentialService struct {
	store     driven.CredentialStore
	clients   *CIClientProvider
	auth      driven.Authenticator
	newClient ClientFactory
}

// NewCredentialService creates a CredentialService. store may be nil, in
// which case tokens are applied to the running client but not persisted.
func NewCredentialService(
	store driven.CredentialStore,
	clients *CIClientProvider,
	auth driven.Authenticator,
	newClient ClientFactory,
) *CredentialService {
	return &CredentialService{
		store:     store,
		clients:   clients,
		auth:      auth,
		newClient: newClient,
	}
}

// UpdateCI applies new CI credentials. A token is used as-is; an email and
// password pair is exchanged for a token first. The token is persisted
// before the running client is replaced.
func (s *CredentialService) UpdateCI(ctx context.Context, auth Auth) error {
	token := auth.Token
	if token == "" {
		if auth.Email == "" || auth.Password == "" {
			return ErrNoCredentials
		}
		var err error
		token, err = s.auth.Login(ctx, auth.Email, auth.Password)
		if err != nil {
			return fmt.Errorf("login to CI service: %w", err)
		}
	}

	if s.store != nil {
		if err := s.store.Set(ctx, driven.CredentialServiceCI, token); err != nil {
			return fmt.Errorf("store CI token: %w", err)
		}
	}

	s.clients.Replace(s.newClient(token))
	slog.Info("CI service credentials updated", "persisted", s.store != nil)

	return nil
}

// ClearCI removes the stored token and disconnects the running client.
func (s *CredentialService) ClearCI(ctx context.Context) error {
	if s.store != nil {
		if err := s.store.Delete(ctx, driven.CredentialServiceCI); err != nil {
			return fmt.Errorf("delete CI token: %w", err)
		}
	}
	s.clients.Replace(nil)
	return nil
}

// StartupToken returns the token to start with: a stored token wins over
// envToken. Storage errors are logged and fall back to envToken.
func StartupToken(ctx context.Context, store driven.CredentialStore, envToken string) string {
	if store == nil {
		return envToken
	}

	stored, err := store.Get(ctx, driven.CredentialServiceCI)
	switch {
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		return envToken
	case err != nil:
		slog.Warn("read stored CI token failed, using environment", "error", err)
		return envToken
	case stored != "":
		slog.Info("using stored CI token")
		return stored
	}
	return envToken
}
