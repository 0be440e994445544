package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry owns the set of active per-tenant channels. Channels are created
// lazily and never destroyed during the process lifetime.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel

	store    Store
	verifier TokenVerifier
}

func NewRegistry(st Store, verifier TokenVerifier) *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
		store:    st,
		verifier: verifier,
	}
}

// Ensure returns the channel for a tenant key, creating it if needed.
// Idempotent: repeated calls for the same key return the same channel.
func (r *Registry) Ensure(namespace string) *Channel {
	r.mu.RLock()
	ch, ok := r.channels[namespace]
	r.mu.RUnlock()
	if ok {
		return ch
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[namespace]; ok {
		return ch
	}

	ch = newChannel(namespace, r.store, r.verifier)
	r.channels[namespace] = ch
	slog.Info("Namespace active", "namespace", namespace)
	return ch
}

// Get returns the channel for a tenant key if one has been created.
func (r *Registry) Get(namespace string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[namespace]
	return ch, ok
}

// InitAll creates a channel for every tenant known to the store. Called once
// at process start; newly provisioned tenants go live through Ensure.
func (r *Registry) InitAll(ctx context.Context) error {
	tenants, err := r.store.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	for _, tenant := range tenants {
		r.Ensure(tenant.Namespace)
	}

	slog.Info("Namespaces initialized", "count", len(tenants))
	return nil
}

// Namespaces lists the active tenant keys.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	namespaces := make([]string, 0, len(r.channels))
	for namespace := range r.channels {
		namespaces = append(namespaces, namespace)
	}
	return namespaces
}
