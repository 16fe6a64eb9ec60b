package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE SESSION COMMAND
// Either party of an ACTIVE match schedules a meeting.
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleSessionCommand contains the meeting details.
type ScheduleSessionCommand struct {
	MatchID         string
	ActorUserID     string
	ScheduledTime   time.Time
	DurationMinutes int
	MeetingLink     string
	Agenda          string
	CorrelationID   string
}

// Validate validates the command.
func (c ScheduleSessionCommand) Validate() error {
	if strings.TrimSpace(c.MatchID) == "" {
		return shared.NewDomainError("mentorship", "ScheduleSession", shared.ErrValidation, "match_id is required")
	}
	if strings.TrimSpace(c.ActorUserID) == "" {
		return shared.NewDomainError("mentorship", "ScheduleSession", shared.ErrValidation, "actor_user_id is required")
	}
	if c.ScheduledTime.IsZero() {
		return shared.NewDomainError("mentorship", "ScheduleSession", shared.ErrValidation, "scheduled_time is required")
	}
	if c.DurationMinutes <= 0 {
		return shared.NewDomainError("mentorship", "ScheduleSession", shared.ErrValidation, "duration_minutes must be positive")
	}
	return nil
}

// ScheduleSessionResult contains the created session.
type ScheduleSessionResult struct {
	Session *mentorship.Session
	Match   *mentorship.Match
}

// ScheduleSessionHandler handles ScheduleSessionCommand.
type ScheduleSessionHandler struct {
	deps Deps
}

// NewScheduleSessionHandler creates a new ScheduleSessionHandler.
func NewScheduleSessionHandler(deps Deps) *ScheduleSessionHandler {
	return &ScheduleSessionHandler{deps: deps.withDefaults()}
}

// Handle schedules the session.
func (h *ScheduleSessionHandler) Handle(ctx context.Context, cmd ScheduleSessionCommand) (result *ScheduleSessionResult, err error) {
	ctx, span := startSpan(ctx, "schedule_session", attribute.String("match_id", cmd.MatchID))
	defer func() { h.deps.finish(span, "schedule_session", err) }()

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("schedule_session: %w", err)
	}

	result = &ScheduleSessionResult{}
	err = h.deps.Store.WithinTx(ctx, func(tx mentorship.Store) error {
		match, err := tx.GetMatch(ctx, cmd.MatchID)
		if err != nil {
			return err
		}
		if !match.IsParty(cmd.ActorUserID) {
			return mentorship.ErrNotAuthorized
		}
		if match.Status != mentorship.MatchActive {
			return fmt.Errorf("%w: sessions need an active mentorship, this one is %s",
				mentorship.ErrInvalidState, match.Status)
		}

		session, err := mentorship.NewSession(mentorship.NewSessionParams{
			ID:              uuid.NewString(),
			MatchID:         match.ID,
			ScheduledTime:   cmd.ScheduledTime.UTC(),
			DurationMinutes: cmd.DurationMinutes,
			MeetingLink:     cmd.MeetingLink,
			Agenda:          cmd.Agenda,
			Now:             h.deps.Clock(),
		})
		if err != nil {
			return err
		}
		if err := tx.CreateSession(ctx, session); err != nil {
			return err
		}
		result.Session, result.Match = session, match
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("schedule_session: %w", err)
	}

	s, m := result.Session, result.Match
	h.deps.Logger.Info("mentorship session scheduled",
		"session_id", s.ID,
		"match_id", m.ID,
		"scheduled_time", s.ScheduledTime,
		"duration_minutes", s.DurationMinutes,
	)

	event := shared.NewSessionScheduledEvent(s.ID, m.ID, m.MentorUserID, m.MenteeUserID,
		cmd.ActorUserID, s.ScheduledTime, s.DurationMinutes)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.deps.publish(event)

	return result, nil
}
