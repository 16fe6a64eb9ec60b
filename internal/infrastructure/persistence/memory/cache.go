package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
)

// RecommendationCache is a TTL map used when Redis is not configured.
type RecommendationCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	recs      []mentorship.Recommendation
	expiresAt time.Time
}

// NewRecommendationCache creates a cache with the given TTL.
func NewRecommendationCache(ttl time.Duration) *RecommendationCache {
	return &RecommendationCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

var _ mentorship.RecommendationCache = (*RecommendationCache)(nil)

func cacheKey(menteeKey string, opts mentorship.RankOptions) string {
	return fmt.Sprintf("%s:%d:%d", menteeKey, opts.MinScore, opts.Limit)
}

func (c *RecommendationCache) GetRecommendations(_ context.Context, menteeKey string, opts mentorship.RankOptions) ([]mentorship.Recommendation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[cacheKey(menteeKey, opts)]
	if !ok || c.now().After(e.expiresAt) {
		return nil, mentorship.ErrCacheMiss
	}
	return append([]mentorship.Recommendation(nil), e.recs...), nil
}

func (c *RecommendationCache) SetRecommendations(_ context.Context, menteeKey string, opts mentorship.RankOptions, recs []mentorship.Recommendation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(menteeKey, opts)] = cacheEntry{
		recs:      append([]mentorship.Recommendation(nil), recs...),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *RecommendationCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	return nil
}

// PurgeExpired drops expired entries and returns how many were removed.
// Redis expires keys on its own; the in-memory cache needs a sweeper.
func (c *RecommendationCache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
