package command

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE COMMANDS
// Создание и обновление ролей ментора и менти.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertMentorProfileCommand contains the mentor's editable fields.
type UpsertMentorProfileCommand struct {
	UserID           string
	ExpertiseAreas   []string
	Skills           []string
	Industry         string
	AvailabilityMode mentorship.MeetingMode
	YearsExperience  int
	MaxMentees       int
	IsActive         bool
}

// UpsertMenteeProfileCommand contains the mentee's editable fields.
type UpsertMenteeProfileCommand struct {
	UserID               string
	CareerInterests      []string
	SkillsToDevelop      []string
	TargetIndustry       string
	PreferredMeetingMode mentorship.MeetingMode
	IsActive             bool
}

// ProfileHandler handles profile commands.
type ProfileHandler struct {
	deps Deps
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(deps Deps) *ProfileHandler {
	return &ProfileHandler{deps: deps.withDefaults()}
}

// UpsertMentor creates or updates a mentor profile. current_mentees is owned
// by the lifecycle and is never taken from the command.
func (h *ProfileHandler) UpsertMentor(ctx context.Context, cmd UpsertMentorProfileCommand) (profile *mentorship.MentorProfile, err error) {
	ctx, span := startSpan(ctx, "upsert_mentor", attribute.String("user_id", cmd.UserID))
	defer func() { h.deps.finish(span, "upsert_mentor", err) }()

	err = h.deps.Store.WithinTx(ctx, func(tx mentorship.Store) error {
		now := h.deps.Clock()
		existing, err := tx.GetMentor(ctx, cmd.UserID)
		switch {
		case errors.Is(err, mentorship.ErrMentorNotFound):
			existing = &mentorship.MentorProfile{UserID: cmd.UserID, CreatedAt: now}
		case err != nil:
			return err
		}

		if cmd.MaxMentees < existing.CurrentMentees {
			return shared.NewDomainError("mentorship", "UpsertMentor", shared.ErrValidation,
				fmt.Sprintf("max_mentees cannot be below current mentees (%d)", existing.CurrentMentees))
		}

		existing.ExpertiseAreas = mentorship.NewTagSet(cmd.ExpertiseAreas...)
		existing.Skills = mentorship.NewTagSet(cmd.Skills...)
		existing.Industry = cmd.Industry
		existing.AvailabilityMode = cmd.AvailabilityMode
		existing.YearsExperience = cmd.YearsExperience
		existing.MaxMentees = cmd.MaxMentees
		existing.IsActive = cmd.IsActive
		existing.UpdatedAt = now

		if err := existing.Validate(); err != nil {
			return err
		}
		if err := tx.SaveMentor(ctx, existing); err != nil {
			return err
		}
		profile = existing
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert_mentor: %w", err)
	}

	h.deps.Logger.Info("mentor profile saved",
		"user_id", profile.UserID,
		"is_active", profile.IsActive,
		"max_mentees", profile.MaxMentees,
	)
	h.deps.publish(shared.NewMentorProfileChangedEvent(profile.UserID, profile.IsActive))
	return profile, nil
}

// UpsertMentee creates or updates a mentee profile.
func (h *ProfileHandler) UpsertMentee(ctx context.Context, cmd UpsertMenteeProfileCommand) (profile *mentorship.MenteeProfile, err error) {
	ctx, span := startSpan(ctx, "upsert_mentee", attribute.String("user_id", cmd.UserID))
	defer func() { h.deps.finish(span, "upsert_mentee", err) }()

	err = h.deps.Store.WithinTx(ctx, func(tx mentorship.Store) error {
		now := h.deps.Clock()
		existing, err := tx.GetMentee(ctx, cmd.UserID)
		switch {
		case errors.Is(err, mentorship.ErrMenteeNotFound):
			existing = &mentorship.MenteeProfile{UserID: cmd.UserID, CreatedAt: now}
		case err != nil:
			return err
		}

		existing.CareerInterests = mentorship.NewTagSet(cmd.CareerInterests...)
		existing.SkillsToDevelop = mentorship.NewTagSet(cmd.SkillsToDevelop...)
		existing.TargetIndustry = cmd.TargetIndustry
		existing.PreferredMeetingMode = cmd.PreferredMeetingMode
		existing.IsActive = cmd.IsActive
		existing.UpdatedAt = now

		if err := existing.Validate(); err != nil {
			return err
		}
		if err := tx.SaveMentee(ctx, existing); err != nil {
			return err
		}
		profile = existing
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert_mentee: %w", err)
	}

	h.deps.Logger.Info("mentee profile saved", "user_id", profile.UserID, "is_active", profile.IsActive)
	return profile, nil
}

// DeactivateMentor takes the mentor out of the candidate pool. Active
// mentorships are left untouched.
func (h *ProfileHandler) DeactivateMentor(ctx context.Context, userID string) (profile *mentorship.MentorProfile, err error) {
	ctx, span := startSpan(ctx, "deactivate_mentor", attribute.String("user_id", userID))
	defer func() { h.deps.finish(span, "deactivate_mentor", err) }()

	err = h.deps.Store.WithinTx(ctx, func(tx mentorship.Store) error {
		mentor, err := tx.GetMentor(ctx, userID)
		if err != nil {
			return err
		}
		mentor.Deactivate(h.deps.Clock())
		if err := tx.SaveMentor(ctx, mentor); err != nil {
			return err
		}
		profile = mentor
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deactivate_mentor: %w", err)
	}

	h.deps.Logger.Info("mentor deactivated", "user_id", userID, "current_mentees", profile.CurrentMentees)
	h.deps.publish(shared.NewMentorProfileChangedEvent(profile.UserID, false))
	return profile, nil
}
