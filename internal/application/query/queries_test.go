package query

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/persistence/memory"
)

var baseTime = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

type scoreRecorder struct {
	mu     sync.Mutex
	scores []int
}

func (r *scoreRecorder) ObserveScore(score int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, score)
}

func minScore(n int) *int { return &n }

func saveMentor(t *testing.T, store *memory.Store, id string, mode mentorship.MeetingMode, active bool) {
	t.Helper()
	require.NoError(t, store.SaveMentor(context.Background(), &mentorship.MentorProfile{
		UserID:           id,
		ExpertiseAreas:   mentorship.NewTagSet("python", "data"),
		Skills:           mentorship.NewTagSet("python", "sql"),
		Industry:         "Tech",
		AvailabilityMode: mode,
		YearsExperience:  6,
		MaxMentees:       2,
		IsActive:         active,
		CreatedAt:        baseTime,
	}))
}

func seedRecommendations(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveMentee(ctx, &mentorship.MenteeProfile{
		UserID:               "mentee",
		CareerInterests:      mentorship.NewTagSet("python", "ml"),
		SkillsToDevelop:      mentorship.NewTagSet("python"),
		TargetIndustry:       "Tech",
		PreferredMeetingMode: mentorship.MeetingVirtual,
		IsActive:             true,
	}))

	saveMentor(t, store, "both", mentorship.MeetingBoth, true)       // 80
	saveMentor(t, store, "virtual", mentorship.MeetingVirtual, true) // 85
	saveMentor(t, store, "retired", mentorship.MeetingVirtual, false)
	saveMentor(t, store, "mentee", mentorship.MeetingVirtual, true) // same user

	require.NoError(t, store.SaveMentor(ctx, &mentorship.MentorProfile{
		UserID:           "weak",
		AvailabilityMode: mentorship.MeetingInPerson,
		MaxMentees:       1,
		IsActive:         true,
		CreatedAt:        baseTime,
	}))
	return store
}

func TestRecommendMentors_RanksAvailableMentors(t *testing.T) {
	store := seedRecommendations(t)
	obs := &scoreRecorder{}
	h := NewRecommendMentorsHandler(store, nil, obs, nil)

	res, err := h.Handle(context.Background(), RecommendMentorsQuery{MenteeUserID: "mentee"})
	require.NoError(t, err)

	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, "virtual", res.Recommendations[0].MentorUserID)
	assert.Equal(t, 85, res.Recommendations[0].Score)
	assert.Equal(t, 1, res.Recommendations[0].Rank)
	assert.Equal(t, "both", res.Recommendations[1].MentorUserID)
	assert.Equal(t, 80, res.Recommendations[1].Score)
	assert.Equal(t, 2, res.Recommendations[1].OpenSlots)
	assert.Equal(t, mentorship.DefaultMinScore, res.MinScore)
	assert.Equal(t, mentorship.DefaultRankLimit, res.Limit)
	assert.False(t, res.FromCache)
	assert.Equal(t, []int{85, 80}, obs.scores)
}

func TestRecommendMentors_CustomThresholdAndLimit(t *testing.T) {
	store := seedRecommendations(t)
	h := NewRecommendMentorsHandler(store, nil, nil, nil)

	res, err := h.Handle(context.Background(), RecommendMentorsQuery{MenteeUserID: "mentee", MinScore: minScore(81)})
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, "virtual", res.Recommendations[0].MentorUserID)

	res, err = h.Handle(context.Background(), RecommendMentorsQuery{MenteeUserID: "mentee", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Recommendations, 1)
}

func TestRecommendMentors_ConfiguredDefaults(t *testing.T) {
	store := seedRecommendations(t)
	h := NewRecommendMentorsHandler(store, nil, nil, nil).WithDefaults(82, 0)

	res, err := h.Handle(context.Background(), RecommendMentorsQuery{MenteeUserID: "mentee"})
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, 82, res.MinScore)
	assert.Equal(t, mentorship.DefaultRankLimit, res.Limit)

	// Параметры запроса важнее настроек.
	res, err = h.Handle(context.Background(), RecommendMentorsQuery{MenteeUserID: "mentee", MinScore: minScore(30)})
	require.NoError(t, err)
	assert.Len(t, res.Recommendations, 2)
}

func TestRecommendMentors_UsesCache(t *testing.T) {
	store := seedRecommendations(t)
	cache := memory.NewRecommendationCache(time.Minute)
	h := NewRecommendMentorsHandler(store, cache, nil, nil)
	ctx := context.Background()

	first, err := h.Handle(ctx, RecommendMentorsQuery{MenteeUserID: "mentee"})
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	// Новый ментор не виден, пока кеш не сброшен.
	saveMentor(t, store, "late", mentorship.MeetingVirtual, true)

	second, err := h.Handle(ctx, RecommendMentorsQuery{MenteeUserID: "mentee"})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Len(t, second.Recommendations, 2)

	require.NoError(t, cache.InvalidateAll(ctx))
	third, err := h.Handle(ctx, RecommendMentorsQuery{MenteeUserID: "mentee"})
	require.NoError(t, err)
	assert.False(t, third.FromCache)
	assert.Len(t, third.Recommendations, 3)
}

func TestRecommendMentors_ExplicitZeroThreshold(t *testing.T) {
	store := seedRecommendations(t)
	h := NewRecommendMentorsHandler(store, nil, nil, nil)

	res, err := h.Handle(context.Background(), RecommendMentorsQuery{MenteeUserID: "mentee", MinScore: minScore(0)})
	require.NoError(t, err)
	assert.Zero(t, res.MinScore)
	require.Len(t, res.Recommendations, 3)
	assert.Equal(t, "weak", res.Recommendations[2].MentorUserID)
	assert.Equal(t, 5, res.Recommendations[2].Score)
}

func TestRecommendMentors_MenteeEditMissesCache(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	saveMentor(t, store, "mentor", mentorship.MeetingVirtual, true)

	mentee := &mentorship.MenteeProfile{
		UserID:               "mentee",
		CareerInterests:      mentorship.NewTagSet("art"),
		TargetIndustry:       "Arts",
		PreferredMeetingMode: mentorship.MeetingInPerson,
		IsActive:             true,
	}
	require.NoError(t, store.SaveMentee(ctx, mentee))

	h := NewRecommendMentorsHandler(store, memory.NewRecommendationCache(time.Hour), nil, nil)
	first, err := h.Handle(ctx, RecommendMentorsQuery{MenteeUserID: "mentee"})
	require.NoError(t, err)
	assert.Empty(t, first.Recommendations)

	// Тот же профиль - попадание в кеш.
	again, err := h.Handle(ctx, RecommendMentorsQuery{MenteeUserID: "mentee"})
	require.NoError(t, err)
	assert.True(t, again.FromCache)

	mentee.CareerInterests = mentorship.NewTagSet("python", "data")
	mentee.SkillsToDevelop = mentorship.NewTagSet("python")
	mentee.TargetIndustry = "Tech"
	mentee.PreferredMeetingMode = mentorship.MeetingVirtual
	require.NoError(t, store.SaveMentee(ctx, mentee))

	second, err := h.Handle(ctx, RecommendMentorsQuery{MenteeUserID: "mentee"})
	require.NoError(t, err)
	assert.False(t, second.FromCache)
	require.Len(t, second.Recommendations, 1)
	assert.Equal(t, 100, second.Recommendations[0].Score)
}

func TestRecommendMentors_ScoresWholePool(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.SaveMentee(ctx, &mentorship.MenteeProfile{
		UserID:               "mentee",
		CareerInterests:      mentorship.NewTagSet("python", "data"),
		SkillsToDevelop:      mentorship.NewTagSet("python"),
		TargetIndustry:       "Tech",
		PreferredMeetingMode: mentorship.MeetingVirtual,
		IsActive:             true,
	}))

	for i := 0; i < 600; i++ {
		require.NoError(t, store.SaveMentor(ctx, &mentorship.MentorProfile{
			UserID:           fmt.Sprintf("filler-%03d", i),
			AvailabilityMode: mentorship.MeetingInPerson,
			MaxMentees:       1,
			IsActive:         true,
			CreatedAt:        baseTime,
		}))
	}
	// Самый новый профиль - лучший кандидат.
	require.NoError(t, store.SaveMentor(ctx, &mentorship.MentorProfile{
		UserID:           "newest",
		ExpertiseAreas:   mentorship.NewTagSet("python", "data"),
		Skills:           mentorship.NewTagSet("python"),
		Industry:         "Tech",
		AvailabilityMode: mentorship.MeetingVirtual,
		YearsExperience:  8,
		MaxMentees:       1,
		IsActive:         true,
		CreatedAt:        baseTime.Add(time.Hour),
	}))

	h := NewRecommendMentorsHandler(store, nil, nil, nil)
	res, err := h.Handle(ctx, RecommendMentorsQuery{MenteeUserID: "mentee"})
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, "newest", res.Recommendations[0].MentorUserID)
	assert.Equal(t, 100, res.Recommendations[0].Score)
}

func TestRecommendMentors_Errors(t *testing.T) {
	h := NewRecommendMentorsHandler(memory.NewStore(), nil, nil, nil)

	_, err := h.Handle(context.Background(), RecommendMentorsQuery{})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), RecommendMentorsQuery{MenteeUserID: "ghost"})
	assert.ErrorIs(t, err, mentorship.ErrMenteeNotFound)
}

func TestRecommendMentors_EmptyPool(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.SaveMentee(context.Background(), &mentorship.MenteeProfile{
		UserID:               "mentee",
		PreferredMeetingMode: mentorship.MeetingBoth,
		IsActive:             true,
	}))

	res, err := NewRecommendMentorsHandler(store, nil, nil, nil).Handle(context.Background(), RecommendMentorsQuery{MenteeUserID: "mentee"})
	require.NoError(t, err)
	assert.NotNil(t, res.Recommendations)
	assert.Empty(t, res.Recommendations)
}

// ──────────────────────────────────────────────────────────────────────────────

func seedMatches(t *testing.T, store *memory.Store) []*mentorship.Match {
	t.Helper()
	ctx := context.Background()
	out := make([]*mentorship.Match, 0, 3)
	for i, mentee := range []string{"a", "b", "c"} {
		m, err := mentorship.NewMatch(mentorship.NewMatchParams{
			ID:           fmt.Sprintf("m-%d", i),
			MentorUserID: "mentor",
			MenteeUserID: mentee,
			Now:          baseTime.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		require.NoError(t, store.CreateMatch(ctx, m))
		out = append(out, m)
	}

	require.NoError(t, out[1].Accept(baseTime))
	require.NoError(t, store.UpdateMatch(ctx, out[1]))
	require.NoError(t, out[2].Decline(baseTime))
	require.NoError(t, store.UpdateMatch(ctx, out[2]))
	return out
}

func TestListMatches(t *testing.T) {
	store := memory.NewStore()
	seedMatches(t, store)
	h := NewListMatchesHandler(store)
	ctx := context.Background()

	res, err := h.Handle(ctx, ListMatchesQuery{UserID: "mentor"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	assert.Equal(t, "m-2", res.Matches[0].ID, "newest first")
	assert.Equal(t, "mentor", res.Matches[0].Role)

	res, err = h.Handle(ctx, ListMatchesQuery{UserID: "mentor", Statuses: []mentorship.MatchStatus{mentorship.MatchActive, mentorship.MatchPending}})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)

	res, err = h.Handle(ctx, ListMatchesQuery{UserID: "b"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "mentee", res.Matches[0].Role)
	assert.Equal(t, "active", res.Matches[0].Status)

	res, err = h.Handle(ctx, ListMatchesQuery{UserID: "mentor", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 1)
	assert.Equal(t, 2, res.Page)

	_, err = h.Handle(ctx, ListMatchesQuery{UserID: "mentor", Statuses: []mentorship.MatchStatus{"archived"}})
	assert.True(t, shared.IsValidation(err))
}

func TestListSessions(t *testing.T) {
	store := memory.NewStore()
	matches := seedMatches(t, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s, err := mentorship.NewSession(mentorship.NewSessionParams{
			ID:              fmt.Sprintf("s-%d", i),
			MatchID:         matches[1].ID,
			ScheduledTime:   baseTime.Add(time.Duration(2-i) * 24 * time.Hour),
			DurationMinutes: 60,
			Now:             baseTime,
		})
		require.NoError(t, err)
		require.NoError(t, store.CreateSession(ctx, s))
	}

	h := NewListSessionsHandler(store)
	res, err := h.Handle(ctx, ListSessionsQuery{MatchID: matches[1].ID, ActorUserID: "b"})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 2)
	assert.True(t, res.Sessions[0].ScheduledTime.Before(res.Sessions[1].ScheduledTime))

	_, err = h.Handle(ctx, ListSessionsQuery{MatchID: matches[1].ID, ActorUserID: "a"})
	assert.ErrorIs(t, err, mentorship.ErrNotAuthorized)

	_, err = h.Handle(ctx, ListSessionsQuery{MatchID: "missing", ActorUserID: "b"})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetPoints(t *testing.T) {
	ledger := memory.NewLedger()
	ctx := context.Background()

	grants := []struct {
		amount int
		reason rewards.Reason
	}{
		{rewards.PointsMentorAccepted, rewards.ReasonMentorAccepted},
		{rewards.PointsMentorshipSession, rewards.ReasonMentorshipSession},
	}
	for i, g := range grants {
		a, err := rewards.NewAward(fmt.Sprintf("aw-%d", i), "mentor", g.amount, g.reason, baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, ledger.Append(ctx, a))
	}

	res, err := NewGetPointsHandler(ledger).Handle(ctx, GetPointsQuery{UserID: "mentor"})
	require.NoError(t, err)
	assert.Equal(t, 65, res.Total)
	require.Len(t, res.Recent, 2)
	assert.Equal(t, "mentorship_session", res.Recent[0].Reason)

	empty, err := NewGetPointsHandler(ledger).Handle(ctx, GetPointsQuery{UserID: "nobody"})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.Recent)

	_, err = NewGetPointsHandler(ledger).Handle(ctx, GetPointsQuery{UserID: " "})
	assert.True(t, shared.IsValidation(err))
}
