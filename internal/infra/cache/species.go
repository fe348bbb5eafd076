// Package cache keeps species data close to the engine.
// It is never the source of truth: entries expire and are refetched.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/combatant"
)

// Defaults used when the caller passes zero values.
const (
	DefaultTTL  = time.Hour
	DefaultSize = 512
)

// SpeciesSource is anything that can resolve a species by id.
// This allows for easy mocking in tests.
type SpeciesSource interface {
	Species(ctx context.Context, id int) (combatant.Species, error)
}

// SpeciesCache fronts a SpeciesSource with a size-bounded TTL cache.
// Concurrent misses for the same id share one upstream call.
type SpeciesCache struct {
	source SpeciesSource
	lru    *expirable.LRU[int, combatant.Species]
	group  singleflight.Group
}

// NewSpeciesCache creates a new species cache.
func NewSpeciesCache(source SpeciesSource, size int, ttl time.Duration) *SpeciesCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SpeciesCache{
		source: source,
		lru:    expirable.NewLRU[int, combatant.Species](size, nil, ttl),
	}
}

// Species returns the cached species or loads it from the source.
// Failures are not cached.
func (c *SpeciesCache) Species(ctx context.Context, id int) (combatant.Species, error) {
	if sp, ok := c.lru.Get(id); ok {
		return copySpecies(sp), nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(id), func() (interface{}, error) {
		if sp, ok := c.lru.Get(id); ok {
			return sp, nil
		}
		sp, err := c.source.Species(ctx, id)
		if err != nil {
			return nil, err
		}
		c.lru.Add(id, sp)
		return sp, nil
	})
	if err != nil {
		return combatant.Species{}, err
	}
	return copySpecies(v.(combatant.Species)), nil
}

// Invalidate drops one entry.
func (c *SpeciesCache) Invalidate(id int) {
	c.lru.Remove(id)
}

// Len reports the number of live entries.
func (c *SpeciesCache) Len() int {
	return c.lru.Len()
}

func copySpecies(sp combatant.Species) combatant.Species {
	sp.Types = append(sp.Types[:0:0], sp.Types...)
	sp.Moves = append(sp.Moves[:0:0], sp.Moves...)
	return sp
}
