package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/persistence/memory"
)

var fixedNow = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

// fakeAwarder records grants and fails for the configured reasons.
type fakeAwarder struct {
	mu      sync.Mutex
	granted []PointGrant
	failFor map[rewards.Reason]error
}

func (f *fakeAwarder) AwardPoints(_ context.Context, userID string, amount int, reason rewards.Reason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[reason]; err != nil {
		return err
	}
	f.granted = append(f.granted, PointGrant{UserID: userID, Amount: amount, Reason: reason})
	return nil
}

func (f *fakeAwarder) grants() []PointGrant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PointGrant(nil), f.granted...)
}

// fakeRecorder counts outcomes per operation.
type fakeRecorder struct {
	mu             sync.Mutex
	transitions    map[string]int
	rewardFailures []string
}

func (r *fakeRecorder) RecordTransition(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitions == nil {
		r.transitions = make(map[string]int)
	}
	r.transitions[operation+":"+outcome]++
}

func (r *fakeRecorder) RecordRewardFailure(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewardFailures = append(r.rewardFailures, reason)
}

// capturePublisher keeps every published event.
type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fixture struct {
	store     *memory.Store
	awarder   *fakeAwarder
	recorder  *fakeRecorder
	publisher *capturePublisher
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		awarder:   &fakeAwarder{failFor: map[rewards.Reason]error{}},
		recorder:  &fakeRecorder{},
		publisher: &capturePublisher{},
	}
	f.deps = Deps{
		Store:          f.store,
		EventPublisher: f.publisher,
		Awarder:        f.awarder,
		Recorder:       f.recorder,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:          func() time.Time { return fixedNow },
	}
	return f
}

func (f *fixture) addMentor(t *testing.T, userID string, maxMentees int) {
	t.Helper()
	_, err := NewProfileHandler(f.deps).UpsertMentor(context.Background(), UpsertMentorProfileCommand{
		UserID:           userID,
		ExpertiseAreas:   []string{"python", "data"},
		Skills:           []string{"python", "sql"},
		Industry:         "Tech",
		AvailabilityMode: mentorship.MeetingBoth,
		YearsExperience:  6,
		MaxMentees:       maxMentees,
		IsActive:         true,
	})
	require.NoError(t, err)
}

func (f *fixture) addMentee(t *testing.T, userID string) {
	t.Helper()
	_, err := NewProfileHandler(f.deps).UpsertMentee(context.Background(), UpsertMenteeProfileCommand{
		UserID:               userID,
		CareerInterests:      []string{"python", "ml"},
		SkillsToDevelop:      []string{"python"},
		TargetIndustry:       "Tech",
		PreferredMeetingMode: mentorship.MeetingVirtual,
		IsActive:             true,
	})
	require.NoError(t, err)
}

func (f *fixture) request(t *testing.T, mentee, mentor string) *mentorship.Match {
	t.Helper()
	res, err := NewRequestMatchHandler(f.deps).Handle(context.Background(), RequestMatchCommand{
		ActorUserID:  mentee,
		MentorUserID: mentor,
	})
	require.NoError(t, err)
	return res.Match
}

func (f *fixture) accept(t *testing.T, match *mentorship.Match) *RespondToRequestResult {
	t.Helper()
	res, err := NewRespondToRequestHandler(f.deps).Handle(context.Background(), RespondToRequestCommand{
		MatchID:     match.ID,
		ActorUserID: match.MentorUserID,
		Decision:    mentorship.DecisionAccept,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) mentor(t *testing.T, userID string) *mentorship.MentorProfile {
	t.Helper()
	m, err := f.store.GetMentor(context.Background(), userID)
	require.NoError(t, err)
	return m
}

func (f *fixture) matchesOf(t *testing.T, userID string) []*mentorship.Match {
	t.Helper()
	out, err := f.store.ListMatchesByUser(context.Background(), userID, nil, shared.NewPagination(1, 100))
	require.NoError(t, err)
	return out
}

var errLedgerDown = errors.New("ledger unavailable")
