package mentorship

import (
	"fmt"
	"strings"
	"time"

	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// SessionStatus - статус встречи.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCompleted SessionStatus = "completed"
)

// Session - одна встреча внутри активной пары. Принадлежит Match.
type Session struct {
	ID              string
	MatchID         string
	ScheduledTime   time.Time
	DurationMinutes int
	MeetingLink     string
	Agenda          string
	Status          SessionStatus
	Notes           string
	MentorRating    *shared.Rating
	MenteeRating    *shared.Rating
	CompletedAt     *time.Time
	CreatedAt       time.Time
}

// NewSessionParams - параметры для планирования встречи.
type NewSessionParams struct {
	ID              string
	MatchID         string
	ScheduledTime   time.Time
	DurationMinutes int
	MeetingLink     string
	Agenda          string
	Now             time.Time
}

// NewSession создаёт встречу в статусе SCHEDULED.
// Время в прошлом допускается.
func NewSession(p NewSessionParams) (*Session, error) {
	if p.ID == "" || p.MatchID == "" {
		return nil, validationError("NewSession", "session id and match id are required")
	}
	if p.ScheduledTime.IsZero() {
		return nil, validationError("NewSession", "scheduled time is required")
	}
	if p.DurationMinutes <= 0 {
		return nil, validationError("NewSession", "duration must be a positive number of minutes")
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return &Session{
		ID:              p.ID,
		MatchID:         p.MatchID,
		ScheduledTime:   p.ScheduledTime,
		DurationMinutes: p.DurationMinutes,
		MeetingLink:     strings.TrimSpace(p.MeetingLink),
		Agenda:          strings.TrimSpace(p.Agenda),
		Status:          SessionScheduled,
		CreatedAt:       now,
	}, nil
}

// Hours returns the session length in hours.
func (s *Session) Hours() float64 {
	return float64(s.DurationMinutes) / 60
}

// Complete переводит SCHEDULED -> COMPLETED с заметками и оценками.
func (s *Session) Complete(notes string, mentorRating, menteeRating *shared.Rating, now time.Time) error {
	if s.Status != SessionScheduled {
		return fmt.Errorf("%w: session is already %s", ErrInvalidState, s.Status)
	}
	for _, r := range []*shared.Rating{mentorRating, menteeRating} {
		if r != nil && !r.IsValid() {
			return shared.ErrInvalidRating
		}
	}
	s.Status = SessionCompleted
	s.Notes = strings.TrimSpace(notes)
	s.MentorRating = mentorRating
	s.MenteeRating = menteeRating
	s.CompletedAt = &now
	return nil
}
