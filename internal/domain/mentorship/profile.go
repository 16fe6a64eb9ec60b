// Package mentorship contains the mentor/mentee matching domain:
// profiles, compatibility scoring, candidate ranking and the match lifecycle.
package mentorship

import (
	"hash/fnv"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCHING PHILOSOPHY
//
// Подбор ментора строится на совместимости, а не на статусе:
// 1. Общие интересы и отрасль
// 2. Навыки, которым ментор может научить
// 3. Удобный формат встреч и опыт ментора
// 4. Наличие свободного места прямо сейчас
// ══════════════════════════════════════════════════════════════════════════════

// ══════════════════════════════════════════════════════════════════════════════
// MEETING MODE
// ══════════════════════════════════════════════════════════════════════════════

// MeetingMode - формат встреч.
type MeetingMode string

const (
	MeetingInPerson MeetingMode = "in_person"
	MeetingVirtual  MeetingMode = "virtual"
	MeetingBoth     MeetingMode = "both"
)

// IsValid проверяет корректность формата.
func (m MeetingMode) IsValid() bool {
	switch m {
	case MeetingInPerson, MeetingVirtual, MeetingBoth:
		return true
	}
	return false
}

// ParseMeetingMode нормализует строку в MeetingMode.
func ParseMeetingMode(s string) (MeetingMode, error) {
	mode := MeetingMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.IsValid() {
		return "", validationError("ParseMeetingMode", "meeting mode must be one of in_person, virtual, both")
	}
	return mode, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TAG SET
// ══════════════════════════════════════════════════════════════════════════════

// TagSet - множество строк без учёта регистра.
// Значения обрезаются и приводятся к нижнему регистру, пустые отбрасываются,
// порядок первого вхождения сохраняется.
type TagSet []string

// NewTagSet builds a normalized set from raw values.
func NewTagSet(values ...string) TagSet {
	set := make(TagSet, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		set = append(set, v)
	}
	return set
}

// Len returns the number of distinct tags.
func (t TagSet) Len() int {
	return len(t)
}

// Contains reports whether the tag is in the set (case-insensitive).
func (t TagSet) Contains(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, v := range t {
		if v == tag {
			return true
		}
	}
	return false
}

// IntersectCount returns |t ∩ other|.
func (t TagSet) IntersectCount(other TagSet) int {
	if len(t) == 0 || len(other) == 0 {
		return 0
	}
	lookup := make(map[string]struct{}, len(other))
	for _, v := range other {
		lookup[v] = struct{}{}
	}
	n := 0
	for _, v := range t {
		if _, ok := lookup[v]; ok {
			n++
		}
	}
	return n
}

// Strings returns the tags as a plain slice.
func (t TagSet) Strings() []string {
	out := make([]string, len(t))
	copy(out, t)
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// MENTOR PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// MentorProfile - роль ментора, привязанная к аккаунту пользователя (1:1).
// Инвариант: 0 <= CurrentMentees <= MaxMentees.
type MentorProfile struct {
	UserID           string
	ExpertiseAreas   TagSet
	Skills           TagSet
	Industry         string
	AvailabilityMode MeetingMode
	YearsExperience  int
	MaxMentees       int
	CurrentMentees   int
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasCapacity reports whether the mentor can take another mentee.
func (m *MentorProfile) HasCapacity() bool {
	return m.CurrentMentees < m.MaxMentees
}

// IsAvailable - активен и есть свободное место.
func (m *MentorProfile) IsAvailable() bool {
	return m.IsActive && m.HasCapacity()
}

// OpenSlots returns how many more mentees the mentor can accept.
func (m *MentorProfile) OpenSlots() int {
	if !m.HasCapacity() {
		return 0
	}
	return m.MaxMentees - m.CurrentMentees
}

// Validate checks profile invariants.
func (m *MentorProfile) Validate() error {
	switch {
	case strings.TrimSpace(m.UserID) == "":
		return validationError("ValidateMentor", "user id is required")
	case !m.AvailabilityMode.IsValid():
		return validationError("ValidateMentor", "invalid availability mode")
	case m.YearsExperience < 0:
		return validationError("ValidateMentor", "years of experience cannot be negative")
	case m.MaxMentees <= 0:
		return validationError("ValidateMentor", "max mentees must be positive")
	case m.CurrentMentees < 0 || m.CurrentMentees > m.MaxMentees:
		return validationError("ValidateMentor", "current mentees must be between 0 and max mentees")
	}
	return nil
}

// Deactivate - ментор выходит из программы. Профиль сохраняется.
func (m *MentorProfile) Deactivate(now time.Time) {
	m.IsActive = false
	m.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// MENTEE PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// MenteeProfile - роль менти, привязанная к аккаунту пользователя (1:1).
type MenteeProfile struct {
	UserID               string
	CareerInterests      TagSet
	SkillsToDevelop      TagSet
	TargetIndustry       string
	PreferredMeetingMode MeetingMode
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Validate checks profile invariants.
func (m *MenteeProfile) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return validationError("ValidateMentee", "user id is required")
	}
	if !m.PreferredMeetingMode.IsValid() {
		return validationError("ValidateMentee", "invalid preferred meeting mode")
	}
	return nil
}

// CacheKey identifies the mentee together with the fields that feed the
// scorer. Any edit to interests, skills, industry or meeting mode yields a
// new key, so lists ranked for the old profile are never served.
func (m *MenteeProfile) CacheKey() string {
	h := fnv.New64a()
	for _, part := range []string{
		strings.Join(m.CareerInterests, ","),
		strings.Join(m.SkillsToDevelop, ","),
		strings.ToLower(strings.TrimSpace(m.TargetIndustry)),
		string(m.PreferredMeetingMode),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return m.UserID + "@" + strconv.FormatUint(h.Sum64(), 36)
}
