// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMEND MENTORS QUERY
// Подбирает менторов для менти: загружает активных менторов со свободными
// местами, оценивает каждого и возвращает лучших. Результат кешируется.
// ══════════════════════════════════════════════════════════════════════════════

// RecommendMentorsQuery содержит параметры подбора.
type RecommendMentorsQuery struct {
	// MenteeUserID - для кого подбираем.
	MenteeUserID string

	// MinScore - порог отсечения (nil = порог по умолчанию, 0 = без порога).
	MinScore *int

	// Limit - размер выдачи (0 = DefaultRankLimit).
	Limit int
}

// options превращает запрос в RankOptions с подставленными значениями по умолчанию.
func (q RecommendMentorsQuery) options(defaults mentorship.RankOptions) mentorship.RankOptions {
	opts := defaults
	if q.MinScore != nil {
		opts.MinScore = *q.MinScore
	}
	if q.Limit > 0 {
		opts.Limit = q.Limit
	}
	return opts
}

// RecommendationDTO - одна позиция выдачи.
type RecommendationDTO struct {
	Rank             int                    `json:"rank"`
	MentorUserID     string                 `json:"mentor_user_id"`
	Score            int                    `json:"score"`
	Factors          []string               `json:"factors"`
	Components       []mentorship.Component `json:"components"`
	ExpertiseAreas   []string               `json:"expertise_areas"`
	Skills           []string               `json:"skills"`
	Industry         string                 `json:"industry"`
	AvailabilityMode string                 `json:"availability_mode"`
	YearsExperience  int                    `json:"years_experience"`
	OpenSlots        int                    `json:"open_slots"`
}

// RecommendMentorsResult содержит выдачу.
type RecommendMentorsResult struct {
	Recommendations []RecommendationDTO `json:"recommendations"`
	MinScore        int                 `json:"min_score"`
	Limit           int                 `json:"limit"`
	FromCache       bool                `json:"from_cache"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// ScoreObserver получает каждую выданную оценку (гистограмма метрик).
type ScoreObserver interface {
	ObserveScore(score int)
}

// RecommendMentorsHandler обрабатывает запрос подбора.
type RecommendMentorsHandler struct {
	profiles mentorship.ProfileRepository
	cache    mentorship.RecommendationCache
	observer ScoreObserver
	logger   *slog.Logger
	defaults mentorship.RankOptions
}

// NewRecommendMentorsHandler создаёт обработчик. cache и observer могут быть nil.
func NewRecommendMentorsHandler(
	profiles mentorship.ProfileRepository,
	cache mentorship.RecommendationCache,
	observer ScoreObserver,
	logger *slog.Logger,
) *RecommendMentorsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecommendMentorsHandler{
		profiles: profiles,
		cache:    cache,
		observer: observer,
		logger:   logger,
		defaults: mentorship.DefaultRankOptions(),
	}
}

// WithDefaults заменяет порог и размер выдачи по умолчанию (MATCH_MIN_SCORE,
// MATCH_LIMIT). Отрицательный порог и непозитивный лимит игнорируются.
func (h *RecommendMentorsHandler) WithDefaults(minScore, limit int) *RecommendMentorsHandler {
	if minScore >= 0 {
		h.defaults.MinScore = minScore
	}
	if limit > 0 {
		h.defaults.Limit = limit
	}
	return h
}

// Handle выполняет подбор.
func (h *RecommendMentorsHandler) Handle(ctx context.Context, q RecommendMentorsQuery) (*RecommendMentorsResult, error) {
	if strings.TrimSpace(q.MenteeUserID) == "" {
		return nil, shared.NewDomainError("query", "RecommendMentors", shared.ErrValidation, "mentee_user_id is required")
	}
	opts := q.options(h.defaults)

	// Ключ кеша включает отпечаток профиля менти.
	mentee, err := h.profiles.GetMentee(ctx, q.MenteeUserID)
	if err != nil {
		return nil, err
	}
	cacheKey := mentee.CacheKey()

	if h.cache != nil {
		recs, err := h.cache.GetRecommendations(ctx, cacheKey, opts)
		switch {
		case err == nil:
			return h.buildResult(recs, opts, true), nil
		case !errors.Is(err, mentorship.ErrCacheMiss):
			h.logger.Warn("recommendation cache read failed", "mentee_user_id", q.MenteeUserID, "error", err)
		}
	}

	// Оценивается весь пул доступных менторов.
	pool, err := h.profiles.ListAvailableMentors(ctx, 0)
	if err != nil {
		return nil, shared.WrapError("query", "RecommendMentors", shared.ErrServiceUnavailable, "failed to load mentors", err)
	}

	// Сам себе не ментор
	candidates := make([]*mentorship.MentorProfile, 0, len(pool))
	for _, m := range pool {
		if m.UserID != mentee.UserID {
			candidates = append(candidates, m)
		}
	}

	recs := mentorship.RankMentors(mentee, candidates, opts)

	if h.observer != nil {
		for _, r := range recs {
			h.observer.ObserveScore(r.Score)
		}
	}

	if h.cache != nil {
		if err := h.cache.SetRecommendations(ctx, cacheKey, opts, recs); err != nil {
			h.logger.Warn("recommendation cache write failed", "mentee_user_id", q.MenteeUserID, "error", err)
		}
	}

	h.logger.Debug("mentors ranked",
		"mentee_user_id", q.MenteeUserID,
		"pool", len(candidates),
		"returned", len(recs),
	)

	return h.buildResult(recs, opts, false), nil
}

func (h *RecommendMentorsHandler) buildResult(recs []mentorship.Recommendation, opts mentorship.RankOptions, fromCache bool) *RecommendMentorsResult {
	dtos := make([]RecommendationDTO, 0, len(recs))
	for _, r := range recs {
		dtos = append(dtos, toRecommendationDTO(r))
	}
	return &RecommendMentorsResult{
		Recommendations: dtos,
		MinScore:        opts.MinScore,
		Limit:           opts.Limit,
		FromCache:       fromCache,
		GeneratedAt:     time.Now().UTC(),
	}
}

func toRecommendationDTO(r mentorship.Recommendation) RecommendationDTO {
	dto := RecommendationDTO{
		Rank:       r.Rank,
		Score:      r.Score,
		Factors:    r.Factors,
		Components: r.Components,
	}
	if dto.Factors == nil {
		dto.Factors = []string{}
	}
	if m := r.Mentor; m != nil {
		dto.MentorUserID = m.UserID
		dto.ExpertiseAreas = m.ExpertiseAreas.Strings()
		dto.Skills = m.Skills.Strings()
		dto.Industry = m.Industry
		dto.AvailabilityMode = string(m.AvailabilityMode)
		dto.YearsExperience = m.YearsExperience
		dto.OpenSlots = m.OpenSlots()
	}
	return dto
}
