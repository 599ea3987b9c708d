// Package store provides namespaced key/value persistence for governance
// state. Records are JSON documents addressed by (namespace, key); there are
// no cross-key transactions. Expiry is modeled by timestamps stored inside
// records and checked at read time, never by the store itself.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Store is a single-namespace view over durable storage.
//
// Get returns nil (and no error) when the key is absent, mirroring the
// "missing record" case rather than treating it as a failure.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]json.RawMessage, error)
}

// Provider hands out namespace-scoped stores backed by one database.
type Provider interface {
	Namespace(ns string) Store
}

// GetJSON loads key and unmarshals it into out. The boolean reports whether
// the key existed.
func GetJSON(ctx context.Context, s Store, key string, out interface{}) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode record %q: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// MemoryStore is an in-memory Provider used in tests and for ephemeral runs.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]map[string]json.RawMessage),
	}
}

// Namespace returns a view scoped to ns, creating it on first use.
func (m *MemoryStore) Namespace(ns string) Store {
	return &memoryNamespace{parent: m, ns: ns}
}

type memoryNamespace struct {
	parent *MemoryStore
	ns     string
}

func (n *memoryNamespace) Get(_ context.Context, key string) (json.RawMessage, error) {
	n.parent.mu.RLock()
	defer n.parent.mu.RUnlock()

	records, ok := n.parent.namespaces[n.ns]
	if !ok {
		return nil, nil
	}
	raw, ok := records[key]
	if !ok {
		return nil, nil
	}
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return cp, nil
}

func (n *memoryNamespace) Set(_ context.Context, key string, value json.RawMessage) error {
	n.parent.mu.Lock()
	defer n.parent.mu.Unlock()

	records, ok := n.parent.namespaces[n.ns]
	if !ok {
		records = make(map[string]json.RawMessage)
		n.parent.namespaces[n.ns] = records
	}
	cp := make(json.RawMessage, len(value))
	copy(cp, value)
	records[key] = cp
	return nil
}

func (n *memoryNamespace) Delete(_ context.Context, key string) error {
	n.parent.mu.Lock()
	defer n.parent.mu.Unlock()

	if records, ok := n.parent.namespaces[n.ns]; ok {
		delete(records, key)
	}
	return nil
}

func (n *memoryNamespace) List(_ context.Context) ([]json.RawMessage, error) {
	n.parent.mu.RLock()
	defer n.parent.mu.RUnlock()

	records := n.parent.namespaces[n.ns]
	out := make([]json.RawMessage, 0, len(records))
	for _, raw := range records {
		cp := make(json.RawMessage, len(raw))
		copy(cp, raw)
		out = append(out, cp)
	}
	return out, nil
}
