package command

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE SESSION COMMAND
// Either party marks a SCHEDULED session as held. The session's hours are
// added to the match total in the same transaction. When the mentor completes
// the session they earn mentorship_session points.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteSessionCommand contains the session outcome.
type CompleteSessionCommand struct {
	SessionID     string
	ActorUserID   string
	Notes         string
	MentorRating  *int
	MenteeRating  *int
	CorrelationID string
}

// Validate validates the command.
func (c CompleteSessionCommand) Validate() error {
	if strings.TrimSpace(c.SessionID) == "" {
		return shared.NewDomainError("mentorship", "CompleteSession", shared.ErrValidation, "session_id is required")
	}
	if strings.TrimSpace(c.ActorUserID) == "" {
		return shared.NewDomainError("mentorship", "CompleteSession", shared.ErrValidation, "actor_user_id is required")
	}
	return nil
}

// CompleteSessionResult contains the completed session and updated match.
type CompleteSessionResult struct {
	Session *mentorship.Session
	Match   *mentorship.Match

	// Rewards is empty unless the mentor completed the session.
	Rewards RewardReport
}

// CompleteSessionHandler handles CompleteSessionCommand.
type CompleteSessionHandler struct {
	deps Deps
}

// NewCompleteSessionHandler creates a new CompleteSessionHandler.
func NewCompleteSessionHandler(deps Deps) *CompleteSessionHandler {
	return &CompleteSessionHandler{deps: deps.withDefaults()}
}

// Handle completes the session.
func (h *CompleteSessionHandler) Handle(ctx context.Context, cmd CompleteSessionCommand) (result *CompleteSessionResult, err error) {
	ctx, span := startSpan(ctx, "complete_session", attribute.String("session_id", cmd.SessionID))
	defer func() { h.deps.finish(span, "complete_session", err) }()

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_session: %w", err)
	}
	mentorRating, err := optionalRating(cmd.MentorRating)
	if err != nil {
		return nil, fmt.Errorf("complete_session: mentor_rating: %w", err)
	}
	menteeRating, err := optionalRating(cmd.MenteeRating)
	if err != nil {
		return nil, fmt.Errorf("complete_session: mentee_rating: %w", err)
	}

	result = &CompleteSessionResult{}
	err = h.deps.Store.WithinTx(ctx, func(tx mentorship.Store) error {
		session, err := tx.GetSession(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		match, err := tx.GetMatch(ctx, session.MatchID)
		if err != nil {
			return err
		}
		if !match.IsParty(cmd.ActorUserID) {
			return mentorship.ErrNotAuthorized
		}

		now := h.deps.Clock()
		if err := session.Complete(cmd.Notes, mentorRating, menteeRating, now); err != nil {
			return err
		}
		match.AddHours(session.Hours(), now)

		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}
		if err := tx.UpdateMatch(ctx, match); err != nil {
			return err
		}
		result.Session, result.Match = session, match
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete_session: %w", err)
	}

	s, m := result.Session, result.Match
	h.deps.Logger.Info("mentorship session completed",
		"session_id", s.ID,
		"match_id", m.ID,
		"hours", s.Hours(),
		"total_hours", m.TotalHours,
	)

	event := shared.NewSessionCompletedEvent(s.ID, m.ID, m.MentorUserID, m.MenteeUserID,
		cmd.ActorUserID, s.Hours(), m.TotalHours)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.deps.publish(event)

	if m.IsMentor(cmd.ActorUserID) {
		result.Rewards = h.deps.award(ctx, "complete_session",
			PointGrant{UserID: m.MentorUserID, Amount: rewards.PointsMentorshipSession, Reason: rewards.ReasonMentorshipSession},
		)
	}

	return result, nil
}

func optionalRating(v *int) (*shared.Rating, error) {
	if v == nil {
		return nil, nil
	}
	r, err := shared.NewRating(*v)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
