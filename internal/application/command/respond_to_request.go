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
// RESPOND TO REQUEST COMMAND
// The requested mentor accepts or declines a PENDING match.
// Accept reserves a mentor slot with an atomic increment-if-below-capacity,
// so concurrent accepts can never push current_mentees past max_mentees.
// ══════════════════════════════════════════════════════════════════════════════

// RespondToRequestCommand contains the mentor's decision.
type RespondToRequestCommand struct {
	// MatchID is the pending match.
	MatchID string

	// ActorUserID must be the match's mentor.
	ActorUserID string

	// Decision is accept or decline.
	Decision mentorship.Decision

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RespondToRequestCommand) Validate() error {
	if strings.TrimSpace(c.MatchID) == "" {
		return shared.NewDomainError("mentorship", "RespondToRequest", shared.ErrValidation, "match_id is required")
	}
	if strings.TrimSpace(c.ActorUserID) == "" {
		return shared.NewDomainError("mentorship", "RespondToRequest", shared.ErrValidation, "actor_user_id is required")
	}
	if c.Decision != mentorship.DecisionAccept && c.Decision != mentorship.DecisionDecline {
		return shared.NewDomainError("mentorship", "RespondToRequest", shared.ErrValidation, "decision must be accept or decline")
	}
	return nil
}

// RespondToRequestResult contains the resolved match.
type RespondToRequestResult struct {
	Match *mentorship.Match

	// Mentor is the mentor profile after the decision (capacity updated on accept).
	Mentor *mentorship.MentorProfile

	// Rewards reports the point awards triggered by an accept.
	Rewards RewardReport
}

// RespondToRequestHandler handles RespondToRequestCommand.
type RespondToRequestHandler struct {
	deps Deps
}

// NewRespondToRequestHandler creates a new RespondToRequestHandler.
func NewRespondToRequestHandler(deps Deps) *RespondToRequestHandler {
	return &RespondToRequestHandler{deps: deps.withDefaults()}
}

// Handle executes the decision.
func (h *RespondToRequestHandler) Handle(ctx context.Context, cmd RespondToRequestCommand) (result *RespondToRequestResult, err error) {
	ctx, span := startSpan(ctx, "respond_to_request",
		attribute.String("match_id", cmd.MatchID),
		attribute.String("decision", string(cmd.Decision)),
	)
	defer func() { h.deps.finish(span, "respond_to_request", err) }()

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("respond_to_request: %w", err)
	}

	result = &RespondToRequestResult{}
	err = h.deps.Store.WithinTx(ctx, func(tx mentorship.Store) error {
		match, err := tx.GetMatch(ctx, cmd.MatchID)
		if err != nil {
			return err
		}
		if !match.IsMentor(cmd.ActorUserID) {
			return mentorship.ErrNotAuthorized
		}
		if match.Status != mentorship.MatchPending {
			return fmt.Errorf("%w: mentorship is already %s", mentorship.ErrInvalidState, match.Status)
		}

		now := h.deps.Clock()
		if cmd.Decision == mentorship.DecisionDecline {
			if err := match.Decline(now); err != nil {
				return err
			}
			mentor, err := tx.GetMentor(ctx, match.MentorUserID)
			if err != nil {
				return err
			}
			result.Match, result.Mentor = match, mentor
			return tx.UpdateMatch(ctx, match)
		}

		active, err := tx.HasActiveMatch(ctx, match.MenteeUserID)
		if err != nil {
			return err
		}
		if active {
			return mentorship.ErrAlreadyMatched
		}

		mentor, err := tx.ReserveMentorSlot(ctx, match.MentorUserID)
		if err != nil {
			return err
		}
		if err := match.Accept(now); err != nil {
			return err
		}
		if err := tx.UpdateMatch(ctx, match); err != nil {
			return err
		}
		result.Match, result.Mentor = match, mentor
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("respond_to_request: %w", err)
	}

	match := result.Match
	h.deps.Logger.Info("mentorship request resolved",
		"match_id", match.ID,
		"status", match.Status,
		"mentor_user_id", match.MentorUserID,
		"mentee_user_id", match.MenteeUserID,
	)

	if match.Status == mentorship.MatchDeclined {
		event := shared.NewMentorshipDeclinedEvent(match.ID, match.MentorUserID, match.MenteeUserID)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		h.deps.publish(event)
		return result, nil
	}

	event := shared.NewMentorshipAcceptedEvent(match.ID, match.MentorUserID, match.MenteeUserID,
		result.Mentor.CurrentMentees, result.Mentor.MaxMentees)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.deps.publish(event)

	result.Rewards = h.deps.award(ctx, "respond_to_request",
		PointGrant{UserID: match.MentorUserID, Amount: rewards.PointsMentorAccepted, Reason: rewards.ReasonMentorAccepted},
		PointGrant{UserID: match.MenteeUserID, Amount: rewards.PointsMentorMatched, Reason: rewards.ReasonMentorMatched},
	)

	return result, nil
}
