package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/messaging"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/persistence/memory"
)

type capturePusher struct {
	mu   sync.Mutex
	sent map[string][]Notification
}

func (p *capturePusher) Push(userID string, n Notification) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent == nil {
		p.sent = make(map[string][]Notification)
	}
	p.sent[userID] = append(p.sent[userID], n)
	return 1
}

func syncBus(t *testing.T) *messaging.InMemoryEventBus {
	t.Helper()
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false, Logger: quietLogger})
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestNotificationService_RoutesToRecipients(t *testing.T) {
	pusher := &capturePusher{}
	bus := syncBus(t)
	require.NoError(t, NewNotificationService(pusher, quietLogger).Register(bus))

	require.NoError(t, bus.Publish(shared.NewMentorshipRequestedEvent("m-1", "mentor", "mentee", "hi")))
	require.NoError(t, bus.Publish(shared.NewMentorshipAcceptedEvent("m-1", "mentor", "mentee", 1, 3)))

	require.Len(t, pusher.sent["mentor"], 1)
	assert.Equal(t, "New mentorship request", pusher.sent["mentor"][0].Title)
	assert.Equal(t, "m-1", pusher.sent["mentor"][0].AggregateID)

	require.Len(t, pusher.sent["mentee"], 1)
	assert.Equal(t, string(shared.EventMentorshipAccepted), pusher.sent["mentee"][0].Type)
	assert.Equal(t, "Your mentorship request was accepted", pusher.sent["mentee"][0].Title)
}

func TestNotificationService_Audience(t *testing.T) {
	pusher := &capturePusher{}
	svc := NewNotificationService(pusher, quietLogger).
		WithAudience(func(userID string) bool { return userID == "mentor" })

	require.NoError(t, svc.Handle(shared.NewMentorshipAcceptedEvent("m-1", "mentor", "mentee", 1, 3)))
	require.NoError(t, svc.Handle(shared.NewMentorshipRequestedEvent("m-2", "mentor", "mentee", "")))

	assert.Len(t, pusher.sent["mentor"], 1)
	assert.Empty(t, pusher.sent["mentee"])
}

func TestNotificationService_IgnoresUnaddressedEvents(t *testing.T) {
	pusher := &capturePusher{}
	svc := NewNotificationService(pusher, quietLogger)

	require.NoError(t, svc.Handle(shared.NewMentorProfileChangedEvent("mentor", true)))
	assert.Empty(t, pusher.sent)
}

// countingCache wraps the memory cache and counts invalidations.
type countingCache struct {
	*memory.RecommendationCache
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.calls++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.RecommendationCache.InvalidateAll(ctx)
}

func TestCacheInvalidator_CapacityEvents(t *testing.T) {
	cache := &countingCache{RecommendationCache: memory.NewRecommendationCache(time.Hour)}
	bus := syncBus(t)
	require.NoError(t, NewCacheInvalidator(cache, quietLogger).Register(bus))

	ctx := context.Background()
	opts := mentorship.DefaultRankOptions()
	require.NoError(t, cache.SetRecommendations(ctx, "mentee", opts, []mentorship.Recommendation{{Rank: 1}}))

	// Запрос не меняет ёмкость ментора.
	require.NoError(t, bus.Publish(shared.NewMentorshipRequestedEvent("m-1", "mentor", "mentee", "")))
	_, err := cache.GetRecommendations(ctx, "mentee", opts)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewMentorshipAcceptedEvent("m-1", "mentor", "mentee", 1, 2)))
	_, err = cache.GetRecommendations(ctx, "mentee", opts)
	assert.ErrorIs(t, err, mentorship.ErrCacheMiss)

	require.NoError(t, bus.Publish(shared.NewMentorshipEndedEvent("m-1", "mentor", "mentee", "mentor", 2)))
	require.NoError(t, bus.Publish(shared.NewMentorProfileChangedEvent("mentor", false)))
	assert.Equal(t, 3, cache.calls)
}

func TestCacheInvalidator_ReportsFailure(t *testing.T) {
	cache := &countingCache{RecommendationCache: memory.NewRecommendationCache(time.Hour), err: errors.New("redis down")}
	inv := NewCacheInvalidator(cache, quietLogger)

	err := inv.Handle(shared.NewMentorProfileChangedEvent("mentor", true))
	assert.EqualError(t, err, "redis down")
}
