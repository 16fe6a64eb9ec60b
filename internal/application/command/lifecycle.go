// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE DEPENDENCIES
// Shared collaborators of the mentorship lifecycle commands.
// ══════════════════════════════════════════════════════════════════════════════

// PointsAwarder is the rewards collaborator. Calls are made after the
// lifecycle transaction commits; a failure never rolls the transition back.
type PointsAwarder interface {
	AwardPoints(ctx context.Context, userID string, amount int, reason rewards.Reason) error
}

// TransitionRecorder receives one observation per lifecycle operation.
type TransitionRecorder interface {
	RecordTransition(operation, outcome string)
	RecordRewardFailure(reason string)
}

// Deps bundles the collaborators every lifecycle handler needs.
type Deps struct {
	Store          mentorship.Store
	EventPublisher shared.EventPublisher
	Awarder        PointsAwarder
	Recorder       TransitionRecorder
	Logger         *slog.Logger

	// Clock returns the current time. Defaults to time.Now().UTC().
	Clock func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now().UTC() }
	}
	return d
}

var tracer = otel.Tracer("github.com/pittstate/pittstate-connect/internal/application/command")

// startSpan opens a span for a lifecycle operation.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mentorship."+name, trace.WithAttributes(attrs...))
}

// finish closes the span and records the outcome.
func (d Deps) finish(span trace.Span, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if d.Recorder != nil {
		d.Recorder.RecordTransition(operation, outcome)
	}
}

func outcomeOf(err error) string {
	switch {
	case shared.IsValidation(err):
		return "invalid"
	case shared.IsForbidden(err):
		return "forbidden"
	case shared.IsNotFound(err):
		return "not_found"
	case shared.IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}

// publish sends events after commit. Publishing failures are logged only.
func (d Deps) publish(events ...shared.Event) {
	if d.EventPublisher == nil {
		return
	}
	for _, e := range events {
		if err := d.EventPublisher.Publish(e); err != nil {
			d.Logger.Warn("failed to publish event", "event_type", e.EventType(), "error", err)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD REPORT
// ══════════════════════════════════════════════════════════════════════════════

// PointGrant describes one requested award.
type PointGrant struct {
	UserID string
	Amount int
	Reason rewards.Reason
}

// RewardFailure is a grant the rewards collaborator could not apply.
type RewardFailure struct {
	PointGrant
	Err error
}

// RewardReport tells the caller which awards went through. The lifecycle
// transition has already been committed regardless of its contents.
type RewardReport struct {
	Awarded []PointGrant
	Failed  []RewardFailure
}

// OK reports whether every award succeeded.
func (r RewardReport) OK() bool {
	return len(r.Failed) == 0
}

// award applies grants one by one. Failures are logged at WARN and returned
// in the report, never propagated as the operation's error.
func (d Deps) award(ctx context.Context, op string, grants ...PointGrant) RewardReport {
	report := RewardReport{}
	if d.Awarder == nil {
		return report
	}
	for _, g := range grants {
		if err := d.Awarder.AwardPoints(ctx, g.UserID, g.Amount, g.Reason); err != nil {
			d.Logger.Warn("reward notification failed",
				"op", op,
				"user_id", g.UserID,
				"amount", g.Amount,
				"reason", g.Reason,
				"error", err,
			)
			if d.Recorder != nil {
				d.Recorder.RecordRewardFailure(string(g.Reason))
			}
			report.Failed = append(report.Failed, RewardFailure{PointGrant: g, Err: err})
			continue
		}
		report.Awarded = append(report.Awarded, g)
	}
	return report
}
