package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST MATCH COMMAND
// A mentee asks a specific mentor for a mentorship. Creates a PENDING match.
// ══════════════════════════════════════════════════════════════════════════════

// maxMessageLength bounds the optional mentee message.
const maxMessageLength = 2000

// RequestMatchCommand contains the data to request a mentorship.
type RequestMatchCommand struct {
	// ActorUserID is the mentee making the request.
	ActorUserID string

	// MentorUserID is the requested mentor.
	MentorUserID string

	// Message is an optional note to the mentor.
	Message string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RequestMatchCommand) Validate() error {
	if strings.TrimSpace(c.ActorUserID) == "" {
		return shared.NewDomainError("mentorship", "RequestMatch", shared.ErrValidation, "actor_user_id is required")
	}
	if strings.TrimSpace(c.MentorUserID) == "" {
		return shared.NewDomainError("mentorship", "RequestMatch", shared.ErrValidation, "mentor_user_id is required")
	}
	if c.ActorUserID == c.MentorUserID {
		return mentorship.ErrSelfMatch
	}
	if len(c.Message) > maxMessageLength {
		return shared.NewDomainError("mentorship", "RequestMatch", shared.ErrValidation, "message is too long")
	}
	return nil
}

// RequestMatchResult contains the created match.
type RequestMatchResult struct {
	Match *mentorship.Match
}

// RequestMatchHandler handles RequestMatchCommand.
type RequestMatchHandler struct {
	deps Deps
}

// NewRequestMatchHandler creates a new RequestMatchHandler.
func NewRequestMatchHandler(deps Deps) *RequestMatchHandler {
	return &RequestMatchHandler{deps: deps.withDefaults()}
}

// Handle executes the request. Preconditions are checked inside one
// transaction; on any failure no match is created.
func (h *RequestMatchHandler) Handle(ctx context.Context, cmd RequestMatchCommand) (result *RequestMatchResult, err error) {
	ctx, span := startSpan(ctx, "request_match",
		attribute.String("mentee_user_id", cmd.ActorUserID),
		attribute.String("mentor_user_id", cmd.MentorUserID),
	)
	defer func() { h.deps.finish(span, "request_match", err) }()

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("request_match: %w", err)
	}

	var match *mentorship.Match
	err = h.deps.Store.WithinTx(ctx, func(tx mentorship.Store) error {
		mentee, err := tx.GetMentee(ctx, cmd.ActorUserID)
		if err != nil {
			return err
		}
		if !mentee.IsActive {
			return mentorship.ErrMenteeInactive
		}

		active, err := tx.HasActiveMatch(ctx, cmd.ActorUserID)
		if err != nil {
			return err
		}
		if active {
			return mentorship.ErrAlreadyMatched
		}

		mentor, err := tx.GetMentor(ctx, cmd.MentorUserID)
		if err != nil {
			return err
		}
		if !mentor.IsAvailable() {
			return mentorship.ErrMentorUnavailable
		}

		pending, err := tx.HasPendingRequest(ctx, cmd.ActorUserID, cmd.MentorUserID)
		if err != nil {
			return err
		}
		if pending {
			return mentorship.ErrDuplicateRequest
		}

		match, err = mentorship.NewMatch(mentorship.NewMatchParams{
			ID:           uuid.NewString(),
			MentorUserID: mentor.UserID,
			MenteeUserID: mentee.UserID,
			Message:      cmd.Message,
			Now:          h.deps.Clock(),
		})
		if err != nil {
			return err
		}
		return tx.CreateMatch(ctx, match)
	})
	if err != nil {
		return nil, fmt.Errorf("request_match: %w", err)
	}

	h.deps.Logger.Info("mentorship requested",
		"match_id", match.ID,
		"mentor_user_id", match.MentorUserID,
		"mentee_user_id", match.MenteeUserID,
	)

	event := shared.NewMentorshipRequestedEvent(match.ID, match.MentorUserID, match.MenteeUserID, match.MenteeMessage)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.deps.publish(event)

	return &RequestMatchResult{Match: match}, nil
}
