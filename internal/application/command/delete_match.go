package command

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// DeleteMatchCommand is an administrative removal of a match and its sessions.
// Authorization happens at the transport layer (admin API key).
type DeleteMatchCommand struct {
	MatchID string
}

// DeleteMatchResult reports what was removed.
type DeleteMatchResult struct {
	Match *mentorship.Match

	// SlotReleased is true when the deleted match was ACTIVE.
	SlotReleased bool
}

// DeleteMatchHandler handles DeleteMatchCommand.
type DeleteMatchHandler struct {
	deps Deps
}

// NewDeleteMatchHandler creates a new DeleteMatchHandler.
func NewDeleteMatchHandler(deps Deps) *DeleteMatchHandler {
	return &DeleteMatchHandler{deps: deps.withDefaults()}
}

// Handle deletes the match.
func (h *DeleteMatchHandler) Handle(ctx context.Context, cmd DeleteMatchCommand) (result *DeleteMatchResult, err error) {
	ctx, span := startSpan(ctx, "delete_match", attribute.String("match_id", cmd.MatchID))
	defer func() { h.deps.finish(span, "delete_match", err) }()

	if strings.TrimSpace(cmd.MatchID) == "" {
		return nil, fmt.Errorf("delete_match: %w",
			shared.NewDomainError("mentorship", "DeleteMatch", shared.ErrValidation, "match_id is required"))
	}

	result = &DeleteMatchResult{}
	err = h.deps.Store.WithinTx(ctx, func(tx mentorship.Store) error {
		match, err := tx.GetMatch(ctx, cmd.MatchID)
		if err != nil {
			return err
		}
		if err := tx.DeleteMatch(ctx, match.ID); err != nil {
			return err
		}
		if match.Status == mentorship.MatchActive {
			if _, err := tx.ReleaseMentorSlot(ctx, match.MentorUserID); err != nil {
				return err
			}
			result.SlotReleased = true
		}
		result.Match = match
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete_match: %w", err)
	}

	h.deps.Logger.Warn("mentorship deleted by admin",
		"match_id", result.Match.ID,
		"status", result.Match.Status,
		"slot_released", result.SlotReleased,
	)
	if result.SlotReleased {
		h.deps.publish(shared.NewMentorProfileChangedEvent(result.Match.MentorUserID, true))
	}

	return result, nil
}
