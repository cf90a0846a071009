package quotes

import (
	"sync"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// Cache holds the latest full tick snapshot keyed by normalized code.
// Readers always see a complete snapshot; ReplaceAll swaps it atomically.
type Cache struct {
	mu    sync.RWMutex
	ticks map[string]models.PriceTick
}

// NewCache creates an empty tick cache.
func NewCache() *Cache {
	return &Cache{
		ticks: make(map[string]models.PriceTick),
	}
}

// ReplaceAll swaps the cached snapshot for the given ticks. Instruments
// missing from the new snapshot are dropped.
func (c *Cache) ReplaceAll(ticks []models.PriceTick) {
	next := make(map[string]models.PriceTick, len(ticks))
	for _, tick := range ticks {
		if tick.Code == "" {
			continue
		}
		next[tick.Code] = tick
	}

	c.mu.Lock()
	c.ticks = next
	c.mu.Unlock()
}

// Get returns the tick for a normalized code.
func (c *Cache) Get(code string) (models.PriceTick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tick, ok := c.ticks[code]
	return tick, ok
}

// All returns a copy of every cached tick.
func (c *Cache) All() []models.PriceTick {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.PriceTick, 0, len(c.ticks))
	for _, tick := range c.ticks {
		out = append(out, tick)
	}
	return out
}

// Len returns the number of cached instruments.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ticks)
}
