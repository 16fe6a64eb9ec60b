package mentorship

import (
	"context"
	"errors"
)

// ErrCacheMiss возвращается кешем, когда записи нет или она устарела.
var ErrCacheMiss = errors.New("recommendation cache miss")

// RecommendationCache хранит готовые списки рекомендаций для менти.
// Кеш - оптимизация: любая его ошибка означает «пересчитать».
// menteeKey - MenteeProfile.CacheKey(), а не голый идентификатор.
type RecommendationCache interface {
	GetRecommendations(ctx context.Context, menteeKey string, opts RankOptions) ([]Recommendation, error)
	SetRecommendations(ctx context.Context, menteeKey string, opts RankOptions, recs []Recommendation) error

	// InvalidateAll drops every cached list. Called when any mentor's
	// availability or capacity changes.
	InvalidateAll(ctx context.Context) error
}
