package cache

import (
	"context"
	"sync"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// MemoryStore keeps catalogs and places in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	catalogs map[string]model.Catalog
	places   map[string]model.Place
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		catalogs: make(map[string]model.Catalog),
		places:   make(map[string]model.Place),
	}
}

func (m *MemoryStore) LoadCatalog(_ context.Context, source string) (model.Catalog, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.catalogs[source]
	if !ok {
		return model.Catalog{}, false, nil
	}
	c.Data = append([]byte(nil), c.Data...)
	return c, true, nil
}

func (m *MemoryStore) StoreCatalog(_ context.Context, c model.Catalog) error {
	c.Data = append([]byte(nil), c.Data...)
	m.mu.Lock()
	m.catalogs[c.Source] = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetPlace(_ context.Context, key string) (model.Place, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.places[NormalizeKey(key)]
	return p, ok, nil
}

func (m *MemoryStore) PutPlace(_ context.Context, key string, p model.Place) error {
	m.mu.Lock()
	m.places[NormalizeKey(key)] = p
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
