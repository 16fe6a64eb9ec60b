package mentorship

import "sort"

// Ranking defaults.
const (
	DefaultMinScore  = 30
	DefaultRankLimit = 10
)

// RankOptions controls candidate filtering and truncation.
type RankOptions struct {
	// MinScore - кандидаты с оценкой ниже порога отбрасываются.
	MinScore int

	// Limit - максимальное число рекомендаций. <= 0 означает DefaultRankLimit.
	Limit int
}

// DefaultRankOptions returns min score 30 and limit 10.
func DefaultRankOptions() RankOptions {
	return RankOptions{MinScore: DefaultMinScore, Limit: DefaultRankLimit}
}

// Recommendation - ментор с оценкой и позицией в выдаче.
type Recommendation struct {
	Mentor     *MentorProfile
	Score      int
	Factors    []string
	Components []Component
	Rank       int
}

// RankMentors оценивает каждого ментора из пула, отбрасывает тех, кто ниже
// MinScore, стабильно сортирует по убыванию оценки и обрезает до Limit.
// При равных оценках сохраняется порядок пула. Полные и неактивные менторы
// не исключаются заранее: они просто теряют баллы доступности.
func RankMentors(mentee *MenteeProfile, pool []*MentorProfile, opts RankOptions) []Recommendation {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultRankLimit
	}

	results := make([]Recommendation, 0, len(pool))
	for _, mentor := range pool {
		if mentor == nil {
			continue
		}
		c := Score(mentor, mentee)
		if c.Score < opts.MinScore {
			continue
		}
		results = append(results, Recommendation{
			Mentor:     mentor,
			Score:      c.Score,
			Factors:    c.Factors,
			Components: c.Components,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
