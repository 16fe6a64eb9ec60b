package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func mentor(id string, capacity int) *mentorship.MentorProfile {
	return &mentorship.MentorProfile{
		UserID:           id,
		AvailabilityMode: mentorship.MeetingBoth,
		MaxMentees:       capacity,
		IsActive:         true,
		CreatedAt:        t0,
	}
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveMentor(ctx, mentor("m1", 2)))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx mentorship.Store) error {
		if _, err := tx.ReserveMentorSlot(ctx, "m1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetMentor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentMentees)
}

func TestStore_WithinTxHonoursCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(mentorship.Store) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestStore_ReserveAndRelease(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveMentor(ctx, mentor("m1", 1)))

	p, err := s.ReserveMentorSlot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentMentees)

	_, err = s.ReserveMentorSlot(ctx, "m1")
	assert.ErrorIs(t, err, mentorship.ErrMentorUnavailable)

	p, err = s.ReleaseMentorSlot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentMentees)

	p, err = s.ReleaseMentorSlot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentMentees, "never negative")

	_, err = s.ReserveMentorSlot(ctx, "ghost")
	assert.ErrorIs(t, err, mentorship.ErrMentorNotFound)
}

func TestStore_ConcurrentReservationsNeverExceedCapacity(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveMentor(ctx, mentor("m1", 5)))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(tx mentorship.Store) error {
				_, err := tx.ReserveMentorSlot(ctx, "m1")
				return err
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	got, err := s.GetMentor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.CurrentMentees)
}

func TestStore_SaveMentorKeepsCurrentMentees(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveMentor(ctx, mentor("m1", 3)))
	_, err := s.ReserveMentorSlot(ctx, "m1")
	require.NoError(t, err)

	update := mentor("m1", 4)
	update.CurrentMentees = 0
	require.NoError(t, s.SaveMentor(ctx, update))

	got, err := s.GetMentor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentMentees)
	assert.Equal(t, 4, got.MaxMentees)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveMentor(ctx, mentor("m1", 3)))

	got, err := s.GetMentor(ctx, "m1")
	require.NoError(t, err)
	got.MaxMentees = 99

	again, err := s.GetMentor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 3, again.MaxMentees)
}

func TestStore_OneActiveMatchPerMentee(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	newMatch := func(id, mentorID string) *mentorship.Match {
		m, err := mentorship.NewMatch(mentorship.NewMatchParams{ID: id, MentorUserID: mentorID, MenteeUserID: "e1", Now: t0})
		require.NoError(t, err)
		require.NoError(t, s.CreateMatch(ctx, m))
		return m
	}
	a := newMatch("a", "m1")
	b := newMatch("b", "m2")

	ok, err := s.HasPendingRequest(ctx, "e1", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, a.Accept(t0))
	require.NoError(t, s.UpdateMatch(ctx, a))

	active, err := s.HasActiveMatch(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, b.Accept(t0))
	assert.ErrorIs(t, s.UpdateMatch(ctx, b), mentorship.ErrAlreadyMatched)

	err = s.CreateMatch(ctx, a)
	assert.True(t, shared.IsConflict(err))
}

func TestRecommendationCache_Expiry(t *testing.T) {
	c := NewRecommendationCache(time.Minute)
	now := t0
	c.now = func() time.Time { return now }
	ctx := context.Background()
	opts := mentorship.DefaultRankOptions()

	_, err := c.GetRecommendations(ctx, "e1", opts)
	assert.ErrorIs(t, err, mentorship.ErrCacheMiss)

	recs := []mentorship.Recommendation{{Rank: 1, Score: 80}}
	require.NoError(t, c.SetRecommendations(ctx, "e1", opts, recs))

	got, err := c.GetRecommendations(ctx, "e1", opts)
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	_, err = c.GetRecommendations(ctx, "e1", mentorship.RankOptions{MinScore: 50, Limit: 10})
	assert.ErrorIs(t, err, mentorship.ErrCacheMiss, "options are part of the key")

	now = now.Add(2 * time.Minute)
	_, err = c.GetRecommendations(ctx, "e1", opts)
	assert.ErrorIs(t, err, mentorship.ErrCacheMiss)
}

func TestRecommendationCache_InvalidateAll(t *testing.T) {
	c := NewRecommendationCache(time.Hour)
	ctx := context.Background()
	opts := mentorship.DefaultRankOptions()
	require.NoError(t, c.SetRecommendations(ctx, "e1", opts, nil))
	require.NoError(t, c.SetRecommendations(ctx, "e2", opts, nil))

	require.NoError(t, c.InvalidateAll(ctx))
	_, err := c.GetRecommendations(ctx, "e2", opts)
	assert.ErrorIs(t, err, mentorship.ErrCacheMiss)
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	for i, amount := range []int{50, 15, 15} {
		a, err := rewards.NewAward(string(rune('a'+i)), "u1", amount, rewards.ReasonMentorshipSession, t0.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		require.NoError(t, l.Append(ctx, a))
	}

	dup, err := rewards.NewAward("a", "u1", 50, rewards.ReasonMentorAccepted, t0)
	require.NoError(t, err)
	assert.True(t, shared.IsConflict(l.Append(ctx, dup)))

	total, err := l.Total(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 80, total)

	recent, err := l.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
}
