package blueprint

import (
	"fmt"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"github.com/on-the-ground/effect_ive_feedbacks/config"
)

// Cache memoizes the resolved initial state of item formulas by formula id.
type Cache struct {
	cache *ristretto.Cache[string, any]
}

func NewCache(cfg config.Cache) (*Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create initial state cache: %w", err)
	}
	return &Cache{cache: cache}, nil
}

// Resolve returns f's resolved initial state, computing it on a miss.
// Subscriptions inside item formulas are not wired.
func (c *Cache) Resolve(f Formula) any {
	if v, ok := c.cache.Get(f.ID()); ok {
		return v
	}
	v, _ := ResolveInitialState(f)
	c.cache.Set(f.ID(), v, 1)
	c.cache.Wait()
	return v
}

func (c *Cache) Close() {
	c.cache.Close()
}
