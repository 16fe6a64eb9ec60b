package command

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// END MATCH COMMAND
// Either party closes an ACTIVE mentorship. The mentor's slot is released
// in the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// EndMatchCommand identifies the match to close.
type EndMatchCommand struct {
	MatchID       string
	ActorUserID   string
	CorrelationID string
}

// Validate validates the command.
func (c EndMatchCommand) Validate() error {
	if strings.TrimSpace(c.MatchID) == "" {
		return shared.NewDomainError("mentorship", "EndMatch", shared.ErrValidation, "match_id is required")
	}
	if strings.TrimSpace(c.ActorUserID) == "" {
		return shared.NewDomainError("mentorship", "EndMatch", shared.ErrValidation, "actor_user_id is required")
	}
	return nil
}

// EndMatchResult contains the completed match.
type EndMatchResult struct {
	Match  *mentorship.Match
	Mentor *mentorship.MentorProfile
}

// EndMatchHandler handles EndMatchCommand.
type EndMatchHandler struct {
	deps Deps
}

// NewEndMatchHandler creates a new EndMatchHandler.
func NewEndMatchHandler(deps Deps) *EndMatchHandler {
	return &EndMatchHandler{deps: deps.withDefaults()}
}

// Handle ends the mentorship.
func (h *EndMatchHandler) Handle(ctx context.Context, cmd EndMatchCommand) (result *EndMatchResult, err error) {
	ctx, span := startSpan(ctx, "end_match", attribute.String("match_id", cmd.MatchID))
	defer func() { h.deps.finish(span, "end_match", err) }()

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("end_match: %w", err)
	}

	result = &EndMatchResult{}
	err = h.deps.Store.WithinTx(ctx, func(tx mentorship.Store) error {
		match, err := tx.GetMatch(ctx, cmd.MatchID)
		if err != nil {
			return err
		}
		if !match.IsParty(cmd.ActorUserID) {
			return mentorship.ErrNotAuthorized
		}
		if err := match.Complete(h.deps.Clock()); err != nil {
			return err
		}
		if err := tx.UpdateMatch(ctx, match); err != nil {
			return err
		}
		mentor, err := tx.ReleaseMentorSlot(ctx, match.MentorUserID)
		if err != nil {
			return err
		}
		result.Match, result.Mentor = match, mentor
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("end_match: %w", err)
	}

	m := result.Match
	h.deps.Logger.Info("mentorship ended",
		"match_id", m.ID,
		"ended_by", cmd.ActorUserID,
		"total_hours", m.TotalHours,
		"mentor_current_mentees", result.Mentor.CurrentMentees,
	)

	event := shared.NewMentorshipEndedEvent(m.ID, m.MentorUserID, m.MenteeUserID, cmd.ActorUserID, m.TotalHours)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.deps.publish(event)

	return result, nil
}
