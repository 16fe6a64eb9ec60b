// Package rewards contains the points ledger that mentorship milestones feed.
package rewards

import (
	"context"
	"strings"
	"time"

	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// Reason - код причины начисления баллов.
type Reason string

const (
	ReasonMentorAccepted    Reason = "mentor_accepted"
	ReasonMentorMatched     Reason = "mentor_matched"
	ReasonMentorshipSession Reason = "mentorship_session"
)

// Point amounts for mentorship milestones.
const (
	PointsMentorAccepted    = 50
	PointsMentorMatched     = 25
	PointsMentorshipSession = 15
)

// Errors
var (
	ErrInvalidAward = shared.NewDomainError("rewards", "NewAward", shared.ErrValidation, "award needs a user, a positive amount and a reason")
)

// Award - одна запись в журнале баллов.
type Award struct {
	ID        string
	UserID    string
	Amount    int
	Reason    Reason
	AwardedAt time.Time
}

// NewAward validates and builds a ledger entry.
func NewAward(id, userID string, amount int, reason Reason, now time.Time) (*Award, error) {
	if id == "" || strings.TrimSpace(userID) == "" || amount <= 0 || reason == "" {
		return nil, ErrInvalidAward
	}
	return &Award{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		AwardedAt: now,
	}, nil
}

// Ledger - журнал начислений (append-only).
type Ledger interface {
	Append(ctx context.Context, award *Award) error
	Total(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Award, error)
}
