package mentorship

import (
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH STATUS
//
//  (none) --request--> PENDING --accept--> ACTIVE --end--> COMPLETED
//                         |--decline--> DECLINED
// ══════════════════════════════════════════════════════════════════════════════

// MatchStatus - статус пары ментор/менти.
type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchActive    MatchStatus = "active"
	MatchDeclined  MatchStatus = "declined"
	MatchCompleted MatchStatus = "completed"
)

// IsValid проверяет корректность статуса.
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchPending, MatchActive, MatchDeclined, MatchCompleted:
		return true
	}
	return false
}

// IsFinal - пара закрыта и хранится только для истории.
func (s MatchStatus) IsFinal() bool {
	return s == MatchDeclined || s == MatchCompleted
}

// Decision - ответ ментора на запрос.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// ParseDecision normalizes a raw decision string.
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	if d != DecisionAccept && d != DecisionDecline {
		return "", validationError("ParseDecision", "decision must be accept or decline")
	}
	return d, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Match - пара ментор/менти со своим жизненным циклом.
// Инвариант: у менти не более одной пары в статусе ACTIVE.
type Match struct {
	ID            string
	MentorUserID  string
	MenteeUserID  string
	Status        MatchStatus
	MenteeMessage string
	MatchedAt     *time.Time
	EndedAt       *time.Time
	TotalHours    float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewMatchParams - параметры для создания запроса.
type NewMatchParams struct {
	ID           string
	MentorUserID string
	MenteeUserID string
	Message      string
	Now          time.Time
}

// NewMatch создаёт пару в статусе PENDING.
func NewMatch(p NewMatchParams) (*Match, error) {
	if p.ID == "" {
		return nil, validationError("NewMatch", "match id is required")
	}
	if p.MentorUserID == "" || p.MenteeUserID == "" {
		return nil, validationError("NewMatch", "mentor and mentee are required")
	}
	if p.MentorUserID == p.MenteeUserID {
		return nil, ErrSelfMatch
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return &Match{
		ID:            p.ID,
		MentorUserID:  p.MentorUserID,
		MenteeUserID:  p.MenteeUserID,
		Status:        MatchPending,
		MenteeMessage: strings.TrimSpace(p.Message),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsMentor reports whether the user is this match's mentor.
func (m *Match) IsMentor(userID string) bool {
	return userID != "" && m.MentorUserID == userID
}

// IsParty reports whether the user is the mentor or the mentee of this match.
func (m *Match) IsParty(userID string) bool {
	return userID != "" && (m.MentorUserID == userID || m.MenteeUserID == userID)
}

// Accept переводит PENDING -> ACTIVE и фиксирует matched_at.
func (m *Match) Accept(now time.Time) error {
	if m.Status != MatchPending {
		return m.transitionError("accept")
	}
	m.Status = MatchActive
	m.MatchedAt = &now
	m.UpdatedAt = now
	return nil
}

// Decline переводит PENDING -> DECLINED.
func (m *Match) Decline(now time.Time) error {
	if m.Status != MatchPending {
		return m.transitionError("decline")
	}
	m.Status = MatchDeclined
	m.UpdatedAt = now
	return nil
}

// Complete завершает активную пару (ACTIVE -> COMPLETED).
func (m *Match) Complete(now time.Time) error {
	if m.Status != MatchActive {
		return m.transitionError("complete")
	}
	m.Status = MatchCompleted
	m.EndedAt = &now
	m.UpdatedAt = now
	return nil
}

// AddHours добавляет часы завершённой сессии.
func (m *Match) AddHours(hours float64, now time.Time) {
	if hours <= 0 {
		return
	}
	m.TotalHours += hours
	m.UpdatedAt = now
}

func (m *Match) transitionError(action string) error {
	return fmt.Errorf("%w: cannot %s a %s mentorship", ErrInvalidState, action, m.Status)
}
