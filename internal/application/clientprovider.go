package application

import (
	"sync"

	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// CIClientProvider enables runtime hot-swap of the CI service client.
// Storing a new token through the credentials endpoint replaces the client
// without restarting the bridge.
type CIClientProvider struct {
	mu       sync.RWMutex
	client   driven.CIClient
	fallback driven.CIClient
}

// NewCIClientProvider creates a provider holding client, which may be nil
// when no token is available at startup.
func NewCIClientProvider(client driven.CIClient) *CIClientProvider {
	return &CIClientProvider{client: client}
}

// SetFallback sets a tokenless client served by Get while no authenticated
// client is held. Public job requests stay readable through it.
func (p *CIClientProvider) SetFallback(client driven.CIClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = client
}

// Get returns the current client, the fallback when none was configured,
// or nil when neither exists.
func (p *CIClientProvider) Get() driven.CIClient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client != nil {
		return p.client
	}
	return p.fallback
}

// Replace swaps the current client.
func (p *CIClientProvider) Replace(client driven.CIClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
}

// HasClient reports whether an authenticated client is held. The fallback
// does not count.
func (p *CIClientProvider) HasClient() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}
