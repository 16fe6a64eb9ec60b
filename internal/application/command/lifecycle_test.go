package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ──────────────────────────────────────────────────────────────────────────────
// RequestMatch
// ──────────────────────────────────────────────────────────────────────────────

func TestRequestMatch_CreatesPendingMatch(t *testing.T) {
	f := newFixture(t)
	f.addMentor(t, "mentor", 2)
	f.addMentee(t, "mentee")

	res, err := NewRequestMatchHandler(f.deps).Handle(context.Background(), RequestMatchCommand{
		ActorUserID:  "mentee",
		MentorUserID: "mentor",
		Message:      " would love help with python ",
	})
	require.NoError(t, err)

	assert.Equal(t, mentorship.MatchPending, res.Match.Status)
	assert.Equal(t, "would love help with python", res.Match.MenteeMessage)
	assert.Equal(t, fixedNow, res.Match.CreatedAt)
	assert.Contains(t, f.publisher.types(), shared.EventMentorshipRequested)
	assert.Equal(t, 0, f.mentor(t, "mentor").CurrentMentees)
	assert.Equal(t, 1, f.recorder.transitions["request_match:ok"])
}

func TestRequestMatch_FullMentorIsRejected(t *testing.T) {
	f := newFixture(t)
	f.addMentor(t, "mentor", 1)
	f.addMentee(t, "first")
	f.addMentee(t, "second")

	f.accept(t, f.request(t, "first", "mentor"))

	_, err := NewRequestMatchHandler(f.deps).Handle(context.Background(), RequestMatchCommand{
		ActorUserID:  "second",
		MentorUserID: "mentor",
	})
	require.ErrorIs(t, err, mentorship.ErrMentorUnavailable)
	assert.Empty(t, f.matchesOf(t, "second"))
	assert.Equal(t, 1, f.recorder.transitions["request_match:conflict"])
}

func TestRequestMatch_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture)
		cmd     RequestMatchCommand
		wantErr error
	}{
		{
			name:    "self match",
			cmd:     RequestMatchCommand{ActorUserID: "mentor", MentorUserID: "mentor"},
			wantErr: mentorship.ErrSelfMatch,
		},
		{
			name:    "unknown mentee",
			cmd:     RequestMatchCommand{ActorUserID: "ghost", MentorUserID: "mentor"},
			wantErr: mentorship.ErrMenteeNotFound,
		},
		{
			name:    "unknown mentor",
			cmd:     RequestMatchCommand{ActorUserID: "mentee", MentorUserID: "ghost"},
			wantErr: mentorship.ErrMentorNotFound,
		},
		{
			name: "inactive mentee",
			setup: func(t *testing.T, f *fixture) {
				_, err := NewProfileHandler(f.deps).UpsertMentee(context.Background(), UpsertMenteeProfileCommand{
					UserID:               "mentee",
					PreferredMeetingMode: mentorship.MeetingVirtual,
					IsActive:             false,
				})
				require.NoError(t, err)
			},
			cmd:     RequestMatchCommand{ActorUserID: "mentee", MentorUserID: "mentor"},
			wantErr: mentorship.ErrMenteeInactive,
		},
		{
			name: "inactive mentor",
			setup: func(t *testing.T, f *fixture) {
				_, err := NewProfileHandler(f.deps).DeactivateMentor(context.Background(), "mentor")
				require.NoError(t, err)
			},
			cmd:     RequestMatchCommand{ActorUserID: "mentee", MentorUserID: "mentor"},
			wantErr: mentorship.ErrMentorUnavailable,
		},
		{
			name: "duplicate pending request",
			setup: func(t *testing.T, f *fixture) {
				f.request(t, "mentee", "mentor")
			},
			cmd:     RequestMatchCommand{ActorUserID: "mentee", MentorUserID: "mentor"},
			wantErr: mentorship.ErrDuplicateRequest,
		},
		{
			name: "mentee already matched",
			setup: func(t *testing.T, f *fixture) {
				f.addMentor(t, "other", 3)
				f.accept(t, f.request(t, "mentee", "other"))
			},
			cmd:     RequestMatchCommand{ActorUserID: "mentee", MentorUserID: "mentor"},
			wantErr: mentorship.ErrAlreadyMatched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addMentor(t, "mentor", 2)
			f.addMentee(t, "mentee")
			if tt.setup != nil {
				tt.setup(t, f)
			}

			_, err := NewRequestMatchHandler(f.deps).Handle(context.Background(), tt.cmd)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRequestMatch_DeclinedRequestCanBeRepeated(t *testing.T) {
	f := newFixture(t)
	f.addMentor(t, "mentor", 1)
	f.addMentee(t, "mentee")

	m := f.request(t, "mentee", "mentor")
	_, err := NewRespondToRequestHandler(f.deps).Handle(context.Background(), RespondToRequestCommand{
		MatchID:     m.ID,
		ActorUserID: "mentor",
		Decision:    mentorship.DecisionDecline,
	})
	require.NoError(t, err)

	again := f.request(t, "mentee", "mentor")
	assert.NotEqual(t, m.ID, again.ID)
}

// ──────────────────────────────────────────────────────────────────────────────
// RespondToRequest
// ──────────────────────────────────────────────────────────────────────────────

func TestRespondToRequest_AcceptReservesSlotAndRewards(t *testing.T) {
	f := newFixture(t)
	f.addMentor(t, "mentor", 2)
	f.addMentee(t, "mentee")

	res := f.accept(t, f.request(t, "mentee", "mentor"))

	assert.Equal(t, mentorship.MatchActive, res.Match.Status)
	require.NotNil(t, res.Match.MatchedAt)
	assert.Equal(t, fixedNow, *res.Match.MatchedAt)
	assert.Equal(t, 1, res.Mentor.CurrentMentees)
	assert.Equal(t, 1, f.mentor(t, "mentor").CurrentMentees)

	assert.True(t, res.Rewards.OK())
	assert.Equal(t, []PointGrant{
		{UserID: "mentor", Amount: 50, Reason: rewards.ReasonMentorAccepted},
		{UserID: "mentee", Amount: 25, Reason: rewards.ReasonMentorMatched},
	}, f.awarder.grants())
	assert.Contains(t, f.publisher.types(), shared.EventMentorshipAccepted)
}

func TestRespondToRequest_DeclineLeavesCapacity(t *testing.T) {
	f := newFixture(t)
	f.addMentor(t, "mentor", 2)
	f.addMentee(t, "mentee")
	m := f.request(t, "mentee", "mentor")

	res, err := NewRespondToRequestHandler(f.deps).Handle(context.Background(), RespondToRequestCommand{
		MatchID:     m.ID,
		ActorUserID: "mentor",
		Decision:    mentorship.DecisionDecline,
	})
	require.NoError(t, err)

	assert.Equal(t, mentorship.MatchDeclined, res.Match.Status)
	assert.Nil(t, res.Match.MatchedAt)
	assert.Equal(t, 0, f.mentor(t, "mentor").CurrentMentees)
	assert.Empty(t, f.awarder.grants())
	assert.Contains(t, f.publisher.types(), shared.EventMentorshipDeclined)
}

func TestRespondToRequest_Rejections(t *testing.T) {
	f := newFixture(t)
	f.addMentor(t, "mentor", 1)
	f.addMentee(t, "mentee")
	f.addMentee(t, "other")
	m := f.request(t, "mentee", "mentor")
	h := NewRespondToRequestHandler(f.deps)
	ctx := context.Background()

	_, err := h.Handle(ctx, RespondToRequestCommand{MatchID: m.ID, ActorUserID: "mentee", Decision: mentorship.DecisionAccept})
	assert.ErrorIs(t, err, mentorship.ErrNotAuthorized)

	_, err = h.Handle(ctx, RespondToRequestCommand{MatchID: "missing", ActorUserID: "mentor", Decision: mentorship.DecisionAccept})
	assert.ErrorIs(t, err, mentorship.ErrMatchNotFound)

	_, err = h.Handle(ctx, RespondToRequestCommand{MatchID: m.ID, ActorUserID: "mentor", Decision: "maybe"})
	assert.True(t, shared.IsValidation(err))

	f.accept(t, m)
	_, err = h.Handle(ctx, RespondToRequestCommand{MatchID: m.ID, ActorUserID: "mentor", Decision: mentorship.DecisionDecline})
	assert.ErrorIs(t, err, mentorship.ErrInvalidState)
}

func TestRespondToRequest_AcceptWhenFullKeepsPending(t *testing.T) {
	f := newFixture(t)
	f.addMentor(t, "mentor", 1)
	f.addMentee(t, "first")
	f.addMentee(t, "second")

	first := f.request(t, "first", "mentor")
	second := f.request(t, "second", "mentor")
	f.accept(t, first)

	_, err := NewRespondToRequestHandler(f.deps).Handle(context.Background(), RespondToRequestCommand{
		MatchID:     second.ID,
		ActorUserID: "mentor",
		Decision:    mentorship.DecisionAccept,
	})
	require.ErrorIs(t, err, mentorship.ErrMentorUnavailable)

	stored, err := f.store.GetMatch(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, mentorship.MatchPending, stored.Status)
	assert.Equal(t, 1, f.mentor(t, "mentor").CurrentMentees)
}

func TestRespondToRequest_ConcurrentAcceptsRespectCapacity(t *testing.T) {
	const mentees = 8
	f := newFixture(t)
	f.addMentor(t, "mentor", 3)

	matches := make([]*mentorship.Match, 0, mentees)
	for i := 0; i < mentees; i++ {
		id := "mentee-" + string(rune('a'+i))
		f.addMentee(t, id)
		matches = append(matches, f.request(t, id, "mentor"))
	}

	h := NewRespondToRequestHandler(f.deps)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, m := range matches {
		wg.Add(1)
		go func(m *mentorship.Match) {
			defer wg.Done()
			_, err := h.Handle(context.Background(), RespondToRequestCommand{
				MatchID:     m.ID,
				ActorUserID: "mentor",
				Decision:    mentorship.DecisionAccept,
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, mentorship.ErrMentorUnavailable)
		}(m)
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	mentor := f.mentor(t, "mentor")
	assert.Equal(t, 3, mentor.CurrentMentees)
	assert.LessOrEqual(t, mentor.CurrentMentees, mentor.MaxMentees)
}

func TestRespondToRequest_RewardFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.awarder.failFor[rewards.ReasonMentorMatched] = errLedgerDown
	f.addMentor(t, "mentor", 2)
	f.addMentee(t, "mentee")

	res := f.accept(t, f.request(t, "mentee", "mentor"))

	assert.Equal(t, mentorship.MatchActive, res.Match.Status)
	assert.False(t, res.Rewards.OK())
	require.Len(t, res.Rewards.Awarded, 1)
	assert.Equal(t, "mentor", res.Rewards.Awarded[0].UserID)
	require.Len(t, res.Rewards.Failed, 1)
	assert.Equal(t, "mentee", res.Rewards.Failed[0].UserID)
	assert.ErrorIs(t, res.Rewards.Failed[0].Err, errLedgerDown)
	assert.Equal(t, []string{string(rewards.ReasonMentorMatched)}, f.recorder.rewardFailures)

	stored, err := f.store.GetMatch(context.Background(), res.Match.ID)
	require.NoError(t, err)
	assert.Equal(t, mentorship.MatchActive, stored.Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Sessions
// ──────────────────────────────────────────────────────────────────────────────

func activeMatch(t *testing.T, f *fixture) *mentorship.Match {
	t.Helper()
	f.addMentor(t, "mentor", 2)
	f.addMentee(t, "mentee")
	return f.accept(t, f.request(t, "mentee", "mentor")).Match
}

func schedule(t *testing.T, f *fixture, matchID, actor string, minutes int) *mentorship.Session {
	t.Helper()
	res, err := NewScheduleSessionHandler(f.deps).Handle(context.Background(), ScheduleSessionCommand{
		MatchID:         matchID,
		ActorUserID:     actor,
		ScheduledTime:   fixedNow.Add(24 * time.Hour),
		DurationMinutes: minutes,
		Agenda:          "resume review",
	})
	require.NoError(t, err)
	return res.Session
}

func TestScheduleSession(t *testing.T) {
	f := newFixture(t)
	m := activeMatch(t, f)

	s := schedule(t, f, m.ID, "mentee", 60)
	assert.Equal(t, mentorship.SessionScheduled, s.Status)
	assert.Equal(t, m.ID, s.MatchID)
	assert.Contains(t, f.publisher.types(), shared.EventSessionScheduled)

	_, err := NewScheduleSessionHandler(f.deps).Handle(context.Background(), ScheduleSessionCommand{
		MatchID:         m.ID,
		ActorUserID:     "stranger",
		ScheduledTime:   fixedNow,
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, mentorship.ErrNotAuthorized)
}

func TestScheduleSession_RequiresActiveMatch(t *testing.T) {
	f := newFixture(t)
	f.addMentor(t, "mentor", 2)
	f.addMentee(t, "mentee")
	m := f.request(t, "mentee", "mentor")

	_, err := NewScheduleSessionHandler(f.deps).Handle(context.Background(), ScheduleSessionCommand{
		MatchID:         m.ID,
		ActorUserID:     "mentor",
		ScheduledTime:   fixedNow,
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, mentorship.ErrInvalidState)

	_, err = NewScheduleSessionHandler(f.deps).Handle(context.Background(), ScheduleSessionCommand{
		MatchID:         m.ID,
		ActorUserID:     "mentor",
		ScheduledTime:   fixedNow,
		DurationMinutes: 0,
	})
	assert.True(t, shared.IsValidation(err))
}

func TestCompleteSession_MentorEarnsPoints(t *testing.T) {
	f := newFixture(t)
	m := activeMatch(t, f)
	s := schedule(t, f, m.ID, "mentor", 90)
	before := len(f.awarder.grants())

	four := 4
	res, err := NewCompleteSessionHandler(f.deps).Handle(context.Background(), CompleteSessionCommand{
		SessionID:    s.ID,
		ActorUserID:  "mentor",
		Notes:        "covered interviews",
		MenteeRating: &four,
	})
	require.NoError(t, err)

	assert.Equal(t, mentorship.SessionCompleted, res.Session.Status)
	assert.InDelta(t, 1.5, res.Match.TotalHours, 1e-9)
	require.Len(t, res.Rewards.Awarded, 1)
	assert.Equal(t, PointGrant{UserID: "mentor", Amount: 15, Reason: rewards.ReasonMentorshipSession}, res.Rewards.Awarded[0])
	assert.Len(t, f.awarder.grants(), before+1)

	_, err = NewCompleteSessionHandler(f.deps).Handle(context.Background(), CompleteSessionCommand{
		SessionID:   s.ID,
		ActorUserID: "mentor",
	})
	assert.ErrorIs(t, err, mentorship.ErrInvalidState)
}

func TestCompleteSession_MenteeEarnsNothing(t *testing.T) {
	f := newFixture(t)
	m := activeMatch(t, f)
	first := schedule(t, f, m.ID, "mentor", 30)
	second := schedule(t, f, m.ID, "mentee", 45)
	before := len(f.awarder.grants())

	h := NewCompleteSessionHandler(f.deps)
	_, err := h.Handle(context.Background(), CompleteSessionCommand{SessionID: first.ID, ActorUserID: "mentee"})
	require.NoError(t, err)
	res, err := h.Handle(context.Background(), CompleteSessionCommand{SessionID: second.ID, ActorUserID: "mentee"})
	require.NoError(t, err)

	assert.Empty(t, res.Rewards.Awarded)
	assert.Len(t, f.awarder.grants(), before)
	assert.InDelta(t, 1.25, res.Match.TotalHours, 1e-9)
}

func TestCompleteSession_Rejections(t *testing.T) {
	f := newFixture(t)
	m := activeMatch(t, f)
	s := schedule(t, f, m.ID, "mentor", 30)
	h := NewCompleteSessionHandler(f.deps)

	bad := 6
	_, err := h.Handle(context.Background(), CompleteSessionCommand{SessionID: s.ID, ActorUserID: "mentor", MentorRating: &bad})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), CompleteSessionCommand{SessionID: s.ID, ActorUserID: "stranger"})
	assert.ErrorIs(t, err, mentorship.ErrNotAuthorized)

	_, err = h.Handle(context.Background(), CompleteSessionCommand{SessionID: "missing", ActorUserID: "mentor"})
	assert.ErrorIs(t, err, mentorship.ErrSessionNotFound)

	stored, err := f.store.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, mentorship.SessionScheduled, stored.Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// EndMatch / DeleteMatch
// ──────────────────────────────────────────────────────────────────────────────

func TestEndMatch_ReleasesSlot(t *testing.T) {
	f := newFixture(t)
	m := activeMatch(t, f)
	require.Equal(t, 1, f.mentor(t, "mentor").CurrentMentees)

	res, err := NewEndMatchHandler(f.deps).Handle(context.Background(), EndMatchCommand{MatchID: m.ID, ActorUserID: "mentee"})
	require.NoError(t, err)

	assert.Equal(t, mentorship.MatchCompleted, res.Match.Status)
	require.NotNil(t, res.Match.EndedAt)
	assert.Equal(t, 0, res.Mentor.CurrentMentees)
	assert.Equal(t, 0, f.mentor(t, "mentor").CurrentMentees)
	assert.Contains(t, f.publisher.types(), shared.EventMentorshipEnded)

	_, err = NewEndMatchHandler(f.deps).Handle(context.Background(), EndMatchCommand{MatchID: m.ID, ActorUserID: "mentor"})
	assert.ErrorIs(t, err, mentorship.ErrInvalidState)
}

func TestEndMatch_Rejections(t *testing.T) {
	f := newFixture(t)
	f.addMentor(t, "mentor", 2)
	f.addMentee(t, "mentee")
	pending := f.request(t, "mentee", "mentor")
	h := NewEndMatchHandler(f.deps)

	_, err := h.Handle(context.Background(), EndMatchCommand{MatchID: pending.ID, ActorUserID: "mentor"})
	assert.ErrorIs(t, err, mentorship.ErrInvalidState)

	_, err = h.Handle(context.Background(), EndMatchCommand{MatchID: pending.ID, ActorUserID: "stranger"})
	assert.ErrorIs(t, err, mentorship.ErrNotAuthorized)
}

func TestDeleteMatch(t *testing.T) {
	t.Run("active match releases the slot", func(t *testing.T) {
		f := newFixture(t)
		m := activeMatch(t, f)
		s := schedule(t, f, m.ID, "mentor", 30)

		res, err := NewDeleteMatchHandler(f.deps).Handle(context.Background(), DeleteMatchCommand{MatchID: m.ID})
		require.NoError(t, err)
		assert.True(t, res.SlotReleased)
		assert.Equal(t, 0, f.mentor(t, "mentor").CurrentMentees)

		_, err = f.store.GetMatch(context.Background(), m.ID)
		assert.ErrorIs(t, err, mentorship.ErrMatchNotFound)
		_, err = f.store.GetSession(context.Background(), s.ID)
		assert.ErrorIs(t, err, mentorship.ErrSessionNotFound)
		assert.Contains(t, f.publisher.types(), shared.EventMentorProfileChanged)
	})

	t.Run("pending match keeps capacity", func(t *testing.T) {
		f := newFixture(t)
		f.addMentor(t, "mentor", 2)
		f.addMentee(t, "mentee")
		m := f.request(t, "mentee", "mentor")

		res, err := NewDeleteMatchHandler(f.deps).Handle(context.Background(), DeleteMatchCommand{MatchID: m.ID})
		require.NoError(t, err)
		assert.False(t, res.SlotReleased)
		assert.Equal(t, 0, f.mentor(t, "mentor").CurrentMentees)
	})

	t.Run("missing match", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewDeleteMatchHandler(f.deps).Handle(context.Background(), DeleteMatchCommand{MatchID: "nope"})
		assert.True(t, shared.IsNotFound(err))
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Profiles
// ──────────────────────────────────────────────────────────────────────────────

func TestUpsertMentor_KeepsCurrentMentees(t *testing.T) {
	f := newFixture(t)
	activeMatch(t, f)
	h := NewProfileHandler(f.deps)

	p, err := h.UpsertMentor(context.Background(), UpsertMentorProfileCommand{
		UserID:           "mentor",
		Skills:           []string{"Go"},
		AvailabilityMode: mentorship.MeetingInPerson,
		MaxMentees:       4,
		IsActive:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentMentees)
	assert.Equal(t, mentorship.TagSet{"go"}, p.Skills)

	_, err = h.UpsertMentor(context.Background(), UpsertMentorProfileCommand{
		UserID:           "mentor",
		AvailabilityMode: mentorship.MeetingInPerson,
		MaxMentees:       0,
		IsActive:         true,
	})
	assert.True(t, shared.IsValidation(err))
}

func TestDeactivateMentor(t *testing.T) {
	f := newFixture(t)
	activeMatch(t, f)

	p, err := NewProfileHandler(f.deps).DeactivateMentor(context.Background(), "mentor")
	require.NoError(t, err)
	assert.False(t, p.IsActive)
	assert.Equal(t, 1, p.CurrentMentees)

	_, err = NewProfileHandler(f.deps).DeactivateMentor(context.Background(), "ghost")
	assert.ErrorIs(t, err, mentorship.ErrMentorNotFound)
}
