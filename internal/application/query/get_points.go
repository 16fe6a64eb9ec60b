package query

import (
	"context"
	"strings"
	"time"

	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// recentAwardsLimit - сколько последних начислений показывать.
const recentAwardsLimit = 20

// GetPointsQuery запрашивает баланс пользователя.
type GetPointsQuery struct {
	UserID string
}

// AwardDTO - одно начисление.
type AwardDTO struct {
	ID        string    `json:"id"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	AwardedAt time.Time `json:"awarded_at"`
}

// GetPointsResult содержит баланс и последние начисления.
type GetPointsResult struct {
	UserID string     `json:"user_id"`
	Total  int        `json:"total"`
	Recent []AwardDTO `json:"recent"`
}

// GetPointsHandler читает журнал баллов.
type GetPointsHandler struct {
	ledger rewards.Ledger
}

// NewGetPointsHandler создаёт обработчик.
func NewGetPointsHandler(ledger rewards.Ledger) *GetPointsHandler {
	return &GetPointsHandler{ledger: ledger}
}

// Handle возвращает баланс.
func (h *GetPointsHandler) Handle(ctx context.Context, q GetPointsQuery) (*GetPointsResult, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return nil, shared.NewDomainError("query", "GetPoints", shared.ErrValidation, "user_id is required")
	}

	total, err := h.ledger.Total(ctx, q.UserID)
	if err != nil {
		return nil, shared.WrapError("query", "GetPoints", shared.ErrServiceUnavailable, "failed to read points total", err)
	}
	awards, err := h.ledger.ListByUser(ctx, q.UserID, recentAwardsLimit)
	if err != nil {
		return nil, shared.WrapError("query", "GetPoints", shared.ErrServiceUnavailable, "failed to read awards", err)
	}

	recent := make([]AwardDTO, 0, len(awards))
	for _, a := range awards {
		recent = append(recent, AwardDTO{
			ID:        a.ID,
			Amount:    a.Amount,
			Reason:    string(a.Reason),
			AwardedAt: a.AwardedAt,
		})
	}
	return &GetPointsResult{UserID: q.UserID, Total: total, Recent: recent}, nil
}
