package search

import (
	"context"
	"sync"

	"backoffice/internal/domain"

	"github.com/google/uuid"
)

// Cache holds resolved units keyed by unit id. Entries are never evicted;
// Clear is the only way to drop them.
type Cache interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.UnitRef, error)
	PutMany(ctx context.Context, units []domain.UnitRef) error
	Clear(ctx context.Context) error
}

// MemoryCache is a process-lifetime Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	units map[uuid.UUID]domain.UnitRef
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{units: make(map[uuid.UUID]domain.UnitRef)}
}

func (c *MemoryCache) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.UnitRef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	found := make(map[uuid.UUID]domain.UnitRef, len(ids))
	for _, id := range ids {
		if unit, ok := c.units[id]; ok {
			found[id] = unit
		}
	}
	return found, nil
}

func (c *MemoryCache) PutMany(_ context.Context, units []domain.UnitRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, unit := range units {
		c.units[unit.ID] = unit
	}
	return nil
}

func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.units = make(map[uuid.UUID]domain.UnitRef)
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.units)
}
