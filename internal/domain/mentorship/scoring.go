package mentorship

import (
	"fmt"
	"math"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPATIBILITY WEIGHTS
// ══════════════════════════════════════════════════════════════════════════════

// Максимальный вклад каждого фактора. Сумма равна 100.
const (
	WeightInterests          = 30.0
	WeightIndustry           = 25.0
	WeightSkills             = 20.0
	WeightMeetingMode        = 10.0
	WeightMeetingModePartial = 5.0
	WeightAvailability       = 5.0

	WeightExperienceSenior = 10.0 // >= 5 лет
	WeightExperienceMid    = 7.0  // >= 3 лет
	WeightExperienceJunior = 5.0  // >= 1 года

	MaxScore = 100
)

// Factor names used in the score breakdown.
const (
	FactorInterests    = "interests"
	FactorIndustry     = "industry"
	FactorSkills       = "skills"
	FactorMeetingMode  = "meeting_mode"
	FactorExperience   = "experience"
	FactorAvailability = "availability"
)

// Component - вклад одного фактора в итоговую оценку.
type Component struct {
	Factor string  `json:"factor"`
	Points float64 `json:"points"`
}

// Compatibility - результат оценки пары ментор/менти.
type Compatibility struct {
	// Score в диапазоне 0..100.
	Score int

	// Factors - человекочитаемые причины, в порядке вычисления.
	Factors []string

	// Components - ненулевые вклады факторов.
	Components []Component
}

// Score вычисляет совместимость ментора и менти.
// Функция чистая и тотальная: пустые множества пропускают фактор,
// а не приводят к делению на ноль.
func Score(mentor *MentorProfile, mentee *MenteeProfile) Compatibility {
	result := Compatibility{Factors: []string{}, Components: []Component{}}
	if mentor == nil || mentee == nil {
		return result
	}

	var total float64
	add := func(factor string, points float64, reason string) {
		if points <= 0 {
			return
		}
		total += points
		result.Components = append(result.Components, Component{Factor: factor, Points: points})
		if reason != "" {
			result.Factors = append(result.Factors, reason)
		}
	}

	// Интересы менти против экспертизы ментора
	if mentor.ExpertiseAreas.Len() > 0 && mentee.CareerInterests.Len() > 0 {
		common := mentor.ExpertiseAreas.IntersectCount(mentee.CareerInterests)
		denom := max(mentor.ExpertiseAreas.Len(), mentee.CareerInterests.Len())
		add(FactorInterests, WeightInterests*float64(common)/float64(denom),
			fmt.Sprintf("%d matching interests", common))
	}

	if sameIndustry(mentor.Industry, mentee.TargetIndustry) {
		add(FactorIndustry, WeightIndustry, "Same industry")
	}

	if mentee.SkillsToDevelop.Len() > 0 {
		common := mentor.Skills.IntersectCount(mentee.SkillsToDevelop)
		add(FactorSkills, WeightSkills*float64(common)/float64(mentee.SkillsToDevelop.Len()),
			fmt.Sprintf("Can teach %d skills you want", common))
	}

	points, reason := meetingModePoints(mentor.AvailabilityMode, mentee.PreferredMeetingMode)
	add(FactorMeetingMode, points, reason)

	add(FactorExperience, experiencePoints(mentor.YearsExperience),
		fmt.Sprintf("%d years experience", mentor.YearsExperience))

	if mentor.HasCapacity() {
		add(FactorAvailability, WeightAvailability, "Available now")
	}

	result.Score = clampScore(int(math.Floor(total)))
	return result
}

// meetingModePoints: совпадение формата даёт 10, "both" с любой стороны - 5.
// Частичная совместимость через "both" не добавляет текстовую причину.
func meetingModePoints(mentorMode, menteeMode MeetingMode) (float64, string) {
	if !mentorMode.IsValid() || !menteeMode.IsValid() {
		return 0, ""
	}
	switch {
	case mentorMode == menteeMode:
		return WeightMeetingMode, "Same meeting preference"
	case mentorMode == MeetingBoth || menteeMode == MeetingBoth:
		return WeightMeetingModePartial, ""
	}
	return 0, ""
}

func experiencePoints(years int) float64 {
	switch {
	case years >= 5:
		return WeightExperienceSenior
	case years >= 3:
		return WeightExperienceMid
	case years >= 1:
		return WeightExperienceJunior
	}
	return 0
}

func sameIndustry(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && strings.EqualFold(a, b)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
