package query

import (
	"context"
	"time"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST SESSIONS QUERY
// Встречи пары. Видны только участникам.
// ══════════════════════════════════════════════════════════════════════════════

// ListSessionsQuery содержит параметры выборки.
type ListSessionsQuery struct {
	MatchID     string
	ActorUserID string
}

// SessionDTO - встреча для API.
type SessionDTO struct {
	ID              string     `json:"id"`
	MatchID         string     `json:"match_id"`
	ScheduledTime   time.Time  `json:"scheduled_time"`
	DurationMinutes int        `json:"duration_minutes"`
	MeetingLink     string     `json:"meeting_link,omitempty"`
	Agenda          string     `json:"agenda,omitempty"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	MentorRating    *int       `json:"mentor_rating,omitempty"`
	MenteeRating    *int       `json:"mentee_rating,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// ToSessionDTO converts a session.
func ToSessionDTO(s *mentorship.Session) SessionDTO {
	return SessionDTO{
		ID:              s.ID,
		MatchID:         s.MatchID,
		ScheduledTime:   s.ScheduledTime,
		DurationMinutes: s.DurationMinutes,
		MeetingLink:     s.MeetingLink,
		Agenda:          s.Agenda,
		Status:          string(s.Status),
		Notes:           s.Notes,
		MentorRating:    ratingPtr(s.MentorRating),
		MenteeRating:    ratingPtr(s.MenteeRating),
		CompletedAt:     s.CompletedAt,
	}
}

func ratingPtr(r *shared.Rating) *int {
	if r == nil {
		return nil
	}
	v := int(*r)
	return &v
}

// ListSessionsResult содержит встречи в хронологическом порядке.
type ListSessionsResult struct {
	MatchID  string       `json:"match_id"`
	Sessions []SessionDTO `json:"sessions"`
}

// sessionReader - то, что нужно выборке от хранилища.
type sessionReader interface {
	GetMatch(ctx context.Context, id string) (*mentorship.Match, error)
	ListSessionsByMatch(ctx context.Context, matchID string) ([]*mentorship.Session, error)
}

// ListSessionsHandler обрабатывает выборку встреч.
type ListSessionsHandler struct {
	store sessionReader
}

// NewListSessionsHandler создаёт обработчик.
func NewListSessionsHandler(store mentorship.Store) *ListSessionsHandler {
	return &ListSessionsHandler{store: store}
}

// Handle выполняет выборку.
func (h *ListSessionsHandler) Handle(ctx context.Context, q ListSessionsQuery) (*ListSessionsResult, error) {
	if q.MatchID == "" || q.ActorUserID == "" {
		return nil, shared.NewDomainError("query", "ListSessions", shared.ErrValidation, "match_id and actor are required")
	}

	match, err := h.store.GetMatch(ctx, q.MatchID)
	if err != nil {
		return nil, err
	}
	if !match.IsParty(q.ActorUserID) {
		return nil, mentorship.ErrNotAuthorized
	}

	sessions, err := h.store.ListSessionsByMatch(ctx, match.ID)
	if err != nil {
		return nil, shared.WrapError("query", "ListSessions", shared.ErrServiceUnavailable, "failed to list sessions", err)
	}

	dtos := make([]SessionDTO, 0, len(sessions))
	for _, s := range sessions {
		dtos = append(dtos, ToSessionDTO(s))
	}
	return &ListSessionsResult{MatchID: match.ID, Sessions: dtos}, nil
}
