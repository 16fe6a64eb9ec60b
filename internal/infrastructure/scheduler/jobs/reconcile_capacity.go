// Package jobs contains the scheduled maintenance jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE MENTOR CAPACITY
// ══════════════════════════════════════════════════════════════════════════════

// DriftRecorder counts corrected counters.
type DriftRecorder interface {
	RecordCapacityDrifts(n int)
}

// ReconcileCapacityJob resets current_mentees to the number of active
// matches. The lifecycle keeps them equal; this job repairs rows edited by
// hand or left behind by a crashed process.
type ReconcileCapacityJob struct {
	store     mentorship.CapacityReconciler
	publisher shared.EventPublisher
	recorder  DriftRecorder
	logger    *slog.Logger
}

// NewReconcileCapacityJob creates the job. publisher and recorder may be nil.
func NewReconcileCapacityJob(
	store mentorship.CapacityReconciler,
	publisher shared.EventPublisher,
	recorder DriftRecorder,
	logger *slog.Logger,
) *ReconcileCapacityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileCapacityJob{store: store, publisher: publisher, recorder: recorder, logger: logger}
}

func (j *ReconcileCapacityJob) Name() string { return "reconcile_mentor_capacity" }

func (j *ReconcileCapacityJob) Description() string {
	return "Resets mentor current_mentees to the number of active matches"
}

// Run fixes drifted counters. Each corrected mentor gets a profile-changed
// event so cached recommendations pick up the new capacity.
func (j *ReconcileCapacityJob) Run(ctx context.Context) error {
	drifts, err := j.store.ReconcileMentorCapacity(ctx)
	if err != nil {
		return fmt.Errorf("reconcile capacity: %w", err)
	}
	if len(drifts) == 0 {
		return nil
	}

	if j.recorder != nil {
		j.recorder.RecordCapacityDrifts(len(drifts))
	}
	for _, d := range drifts {
		if d.Overbooked() {
			j.logger.Error("mentor has more active matches than capacity",
				"mentor_user_id", d.MentorUserID,
				"recorded", d.Recorded,
				"actual", d.Actual,
				"capped_at", d.Applied,
			)
		} else {
			j.logger.Warn("mentor capacity drift corrected",
				"mentor_user_id", d.MentorUserID,
				"recorded", d.Recorded,
				"actual", d.Actual,
			)
		}
		if j.publisher != nil {
			if err := j.publisher.Publish(shared.NewMentorProfileChangedEvent(d.MentorUserID, d.IsActive)); err != nil {
				j.logger.Warn("failed to publish profile change", "mentor_user_id", d.MentorUserID, "error", err)
			}
		}
	}
	return nil
}
