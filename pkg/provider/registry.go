package provider

import (
	"fmt"
	"sync"

	"github.com/nexuscore/agentkit/pkg/errs"
)

// Registry holds one named Client per configured provider, grounded on
// internal/agent/routing.Router's providers map but trimmed of its rule-based
// selection (selection among configured providers belongs to the Agent Engine,
// not to the Provider Abstraction layer itself).
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds or replaces the Client known by name (typically Client.Name()).
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
}

// Get returns the named Client, or a Configuration error if it was never registered.
func (r *Registry) Get(name string) (Client, *errs.Error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	if !ok {
		return nil, errs.New(errs.KindConfiguration, "provider.Registry.Get", fmt.Sprintf("no provider registered under %q", name))
	}
	return c, nil
}

// Names returns every registered provider name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
