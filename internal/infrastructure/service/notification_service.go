package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// Turns addressed domain events into user-facing pushes.
// ══════════════════════════════════════════════════════════════════════════════

// Notification is the message delivered to a connected user.
type Notification struct {
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	AggregateID string                 `json:"aggregate_id"`
	Data        map[string]interface{} `json:"data,omitempty"`
	SentAt      time.Time              `json:"sent_at"`
}

// Pusher delivers a notification to every live connection of a user and
// returns how many connections received it.
type Pusher interface {
	Push(userID string, n Notification) int
}

// NotificationService routes addressed events to a Pusher.
type NotificationService struct {
	pusher   Pusher
	audience func(userID string) bool
	logger   *slog.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(pusher Pusher, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{pusher: pusher, logger: logger}
}

// WithAudience limits pushes to users for whom include returns true.
func (s *NotificationService) WithAudience(include func(userID string) bool) *NotificationService {
	s.audience = include
	return s
}

// Register subscribes the service to every event on the bus.
func (s *NotificationService) Register(sub shared.EventSubscriber) error {
	return sub.SubscribeAll(s.Handle)
}

// Handle pushes the event to its recipients. Events without recipients are
// ignored. Users without a live connection simply miss the push.
func (s *NotificationService) Handle(event shared.Event) error {
	addressed, ok := event.(shared.Addressed)
	if !ok {
		return nil
	}
	recipients := addressed.Recipients()
	if len(recipients) == 0 {
		return nil
	}

	n := Notification{
		Type:        string(event.EventType()),
		Title:       titleFor(event.EventType()),
		AggregateID: event.AggregateID(),
		Data:        event.Payload(),
		SentAt:      time.Now().UTC(),
	}

	for _, userID := range recipients {
		if s.audience != nil && !s.audience(userID) {
			continue
		}
		delivered := s.pusher.Push(userID, n)
		s.logger.Debug("notification pushed",
			"event_type", n.Type,
			"user_id", userID,
			"connections", delivered,
		)
	}
	return nil
}

func titleFor(t shared.EventType) string {
	switch t {
	case shared.EventMentorshipRequested:
		return "New mentorship request"
	case shared.EventMentorshipAccepted:
		return "Your mentorship request was accepted"
	case shared.EventMentorshipDeclined:
		return "Your mentorship request was declined"
	case shared.EventMentorshipEnded:
		return "Mentorship ended"
	case shared.EventSessionScheduled:
		return "Session scheduled"
	case shared.EventSessionCompleted:
		return "Session completed"
	case shared.EventPointsAwarded:
		return "Points awarded"
	default:
		return string(t)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INVALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// invalidatingEvents change mentor capacity or availability, so every cached
// recommendation list may now be stale.
var invalidatingEvents = []shared.EventType{
	shared.EventMentorshipAccepted,
	shared.EventMentorshipEnded,
	shared.EventMentorProfileChanged,
}

// CacheInvalidator drops cached recommendations when mentor capacity changes.
type CacheInvalidator struct {
	cache   mentorship.RecommendationCache
	logger  *slog.Logger
	timeout time.Duration
}

// NewCacheInvalidator creates the invalidator.
func NewCacheInvalidator(cache mentorship.RecommendationCache, logger *slog.Logger) *CacheInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidator{cache: cache, logger: logger, timeout: 2 * time.Second}
}

// Register subscribes to the capacity-changing events.
func (c *CacheInvalidator) Register(sub shared.EventSubscriber) error {
	for _, t := range invalidatingEvents {
		if err := sub.Subscribe(t, c.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle invalidates the whole recommendation cache.
func (c *CacheInvalidator) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.cache.InvalidateAll(ctx); err != nil {
		c.logger.Warn("failed to invalidate recommendations",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
		return err
	}
	c.logger.Debug("recommendations invalidated", "event_type", event.EventType())
	return nil
}
