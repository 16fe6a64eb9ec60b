package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATION CACHE
// Keys carry a generation number. InvalidateAll bumps the generation, so
// every older list becomes unreachable at once and expires by TTL.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// TTLRecommendations is the default lifetime of a cached list.
	TTLRecommendations = 5 * time.Minute

	generationKey = PrefixRecommendations + "generation"
)

// RecommendationCache implements mentorship.RecommendationCache on Redis.
type RecommendationCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewRecommendationCache creates the cache. ttl <= 0 uses TTLRecommendations.
func NewRecommendationCache(cache *Cache, ttl time.Duration) *RecommendationCache {
	if ttl <= 0 {
		ttl = TTLRecommendations
	}
	return &RecommendationCache{cache: cache, ttl: ttl}
}

var _ mentorship.RecommendationCache = (*RecommendationCache)(nil)

// cachedRecommendation is the stored form; the mentor is flattened so the
// JSON shape does not depend on domain struct layout.
type cachedRecommendation struct {
	Rank             int                    `json:"rank"`
	Score            int                    `json:"score"`
	Factors          []string               `json:"factors"`
	Components       []mentorship.Component `json:"components"`
	MentorUserID     string                 `json:"mentor_user_id"`
	ExpertiseAreas   []string               `json:"expertise_areas"`
	Skills           []string               `json:"skills"`
	Industry         string                 `json:"industry"`
	AvailabilityMode string                 `json:"availability_mode"`
	YearsExperience  int                    `json:"years_experience"`
	MaxMentees       int                    `json:"max_mentees"`
	CurrentMentees   int                    `json:"current_mentees"`
	IsActive         bool                   `json:"is_active"`
}

func (r *RecommendationCache) key(ctx context.Context, menteeKey string, opts mentorship.RankOptions) (string, error) {
	gen, err := r.cache.GetInt64(ctx, generationKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sg%d:%s:%d:%d", PrefixRecommendations, gen, menteeKey, opts.MinScore, opts.Limit), nil
}

// GetRecommendations returns mentorship.ErrCacheMiss when nothing is cached.
func (r *RecommendationCache) GetRecommendations(ctx context.Context, menteeKey string, opts mentorship.RankOptions) ([]mentorship.Recommendation, error) {
	key, err := r.key(ctx, menteeKey, opts)
	if err != nil {
		return nil, err
	}

	var stored []cachedRecommendation
	if err := r.cache.Get(ctx, key, &stored); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, mentorship.ErrCacheMiss
		}
		return nil, err
	}

	recs := make([]mentorship.Recommendation, 0, len(stored))
	for _, s := range stored {
		recs = append(recs, mentorship.Recommendation{
			Rank:       s.Rank,
			Score:      s.Score,
			Factors:    s.Factors,
			Components: s.Components,
			Mentor: &mentorship.MentorProfile{
				UserID:           s.MentorUserID,
				ExpertiseAreas:   mentorship.TagSet(s.ExpertiseAreas),
				Skills:           mentorship.TagSet(s.Skills),
				Industry:         s.Industry,
				AvailabilityMode: mentorship.MeetingMode(s.AvailabilityMode),
				YearsExperience:  s.YearsExperience,
				MaxMentees:       s.MaxMentees,
				CurrentMentees:   s.CurrentMentees,
				IsActive:         s.IsActive,
			},
		})
	}
	return recs, nil
}

// SetRecommendations stores the list under the current generation.
func (r *RecommendationCache) SetRecommendations(ctx context.Context, menteeKey string, opts mentorship.RankOptions, recs []mentorship.Recommendation) error {
	key, err := r.key(ctx, menteeKey, opts)
	if err != nil {
		return err
	}

	stored := make([]cachedRecommendation, 0, len(recs))
	for _, rec := range recs {
		c := cachedRecommendation{
			Rank:       rec.Rank,
			Score:      rec.Score,
			Factors:    rec.Factors,
			Components: rec.Components,
		}
		if m := rec.Mentor; m != nil {
			c.MentorUserID = m.UserID
			c.ExpertiseAreas = m.ExpertiseAreas.Strings()
			c.Skills = m.Skills.Strings()
			c.Industry = m.Industry
			c.AvailabilityMode = string(m.AvailabilityMode)
			c.YearsExperience = m.YearsExperience
			c.MaxMentees = m.MaxMentees
			c.CurrentMentees = m.CurrentMentees
			c.IsActive = m.IsActive
		}
		stored = append(stored, c)
	}
	return r.cache.Set(ctx, key, stored, r.ttl)
}

// InvalidateAll bumps the generation counter.
func (r *RecommendationCache) InvalidateAll(ctx context.Context) error {
	_, err := r.cache.Incr(ctx, generationKey)
	return err
}
