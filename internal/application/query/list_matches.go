package query

import (
	"context"
	"strings"
	"time"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MATCHES QUERY
// Пары пользователя - и как ментора, и как менти.
// ══════════════════════════════════════════════════════════════════════════════

// ListMatchesQuery содержит параметры выборки.
type ListMatchesQuery struct {
	UserID   string
	Statuses []mentorship.MatchStatus
	Page     int
	PageSize int
}

// Validate проверяет параметры.
func (q ListMatchesQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return shared.NewDomainError("query", "ListMatches", shared.ErrValidation, "user_id is required")
	}
	for _, s := range q.Statuses {
		if !s.IsValid() {
			return shared.NewDomainError("query", "ListMatches", shared.ErrValidation, "unknown status "+string(s))
		}
	}
	return nil
}

// MatchDTO - пара для API.
type MatchDTO struct {
	ID            string     `json:"id"`
	MentorUserID  string     `json:"mentor_user_id"`
	MenteeUserID  string     `json:"mentee_user_id"`
	Role          string     `json:"role,omitempty"`
	Status        string     `json:"status"`
	MenteeMessage string     `json:"mentee_message,omitempty"`
	MatchedAt     *time.Time `json:"matched_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	TotalHours    float64    `json:"total_hours"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ToMatchDTO converts a match; viewerUserID decides the role field.
func ToMatchDTO(m *mentorship.Match, viewerUserID string) MatchDTO {
	dto := MatchDTO{
		ID:            m.ID,
		MentorUserID:  m.MentorUserID,
		MenteeUserID:  m.MenteeUserID,
		Status:        string(m.Status),
		MenteeMessage: m.MenteeMessage,
		MatchedAt:     m.MatchedAt,
		EndedAt:       m.EndedAt,
		TotalHours:    m.TotalHours,
		CreatedAt:     m.CreatedAt,
	}
	switch viewerUserID {
	case "":
	case m.MentorUserID:
		dto.Role = "mentor"
	case m.MenteeUserID:
		dto.Role = "mentee"
	}
	return dto
}

// ListMatchesResult содержит страницу пар.
type ListMatchesResult struct {
	Matches  []MatchDTO `json:"matches"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// ListMatchesHandler обрабатывает выборку пар.
type ListMatchesHandler struct {
	matches mentorship.MatchRepository
}

// NewListMatchesHandler создаёт обработчик.
func NewListMatchesHandler(matches mentorship.MatchRepository) *ListMatchesHandler {
	return &ListMatchesHandler{matches: matches}
}

// Handle выполняет выборку.
func (h *ListMatchesHandler) Handle(ctx context.Context, q ListMatchesQuery) (*ListMatchesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	page := shared.NewPagination(q.Page, q.PageSize)

	matches, err := h.matches.ListMatchesByUser(ctx, q.UserID, q.Statuses, page)
	if err != nil {
		return nil, shared.WrapError("query", "ListMatches", shared.ErrServiceUnavailable, "failed to list matches", err)
	}

	dtos := make([]MatchDTO, 0, len(matches))
	for _, m := range matches {
		dtos = append(dtos, ToMatchDTO(m, q.UserID))
	}
	return &ListMatchesResult{
		Matches:  dtos,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}
