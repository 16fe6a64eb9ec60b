package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event is published after its transaction commits.
const (
	// Mentorship events
	EventMentorshipRequested EventType = "mentorship.requested"
	EventMentorshipAccepted  EventType = "mentorship.accepted"
	EventMentorshipDeclined  EventType = "mentorship.declined"
	EventMentorshipEnded     EventType = "mentorship.ended"

	// Session events
	EventSessionScheduled EventType = "session.scheduled"
	EventSessionCompleted EventType = "session.completed"

	// Profile events
	EventMentorProfileChanged EventType = "profile.mentor_changed"

	// Rewards events
	EventPointsAwarded EventType = "rewards.points_awarded"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// Addressed is implemented by events that should reach specific users
// (the notification hub uses it to route pushes).
type Addressed interface {
	Recipients() []string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Mentorship Events
// ═══════════════════════════════════════════════════════════════════════════

// MentorshipRequestedEvent is emitted when a mentee asks a mentor for a match.
type MentorshipRequestedEvent struct {
	BaseEvent
	MentorUserID string `json:"mentor_user_id"`
	MenteeUserID string `json:"mentee_user_id"`
	Message      string `json:"message,omitempty"`
}

// Payload implements Event interface.
func (e MentorshipRequestedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"mentor_user_id": e.MentorUserID,
		"mentee_user_id": e.MenteeUserID,
		"message":        e.Message,
	}
}

// Recipients implements Addressed. Only the mentor has to act on a request.
func (e MentorshipRequestedEvent) Recipients() []string {
	return []string{e.MentorUserID}
}

// NewMentorshipRequestedEvent creates a new MentorshipRequestedEvent.
func NewMentorshipRequestedEvent(matchID, mentorUserID, menteeUserID, message string) MentorshipRequestedEvent {
	return MentorshipRequestedEvent{
		BaseEvent:    NewBaseEvent(EventMentorshipRequested, matchID),
		MentorUserID: mentorUserID,
		MenteeUserID: menteeUserID,
		Message:      message,
	}
}

// MentorshipResolvedEvent is emitted when a mentor accepts or declines a request.
type MentorshipResolvedEvent struct {
	BaseEvent
	MentorUserID   string `json:"mentor_user_id"`
	MenteeUserID   string `json:"mentee_user_id"`
	CurrentMentees int    `json:"current_mentees"`
	MaxMentees     int    `json:"max_mentees"`
}

// Payload implements Event interface.
func (e MentorshipResolvedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"mentor_user_id":  e.MentorUserID,
		"mentee_user_id":  e.MenteeUserID,
		"current_mentees": e.CurrentMentees,
		"max_mentees":     e.MaxMentees,
	}
}

// Recipients implements Addressed.
func (e MentorshipResolvedEvent) Recipients() []string {
	return []string{e.MenteeUserID}
}

// Accepted reports whether the request was accepted.
func (e MentorshipResolvedEvent) Accepted() bool {
	return e.Type == EventMentorshipAccepted
}

// NewMentorshipAcceptedEvent creates an accepted MentorshipResolvedEvent.
func NewMentorshipAcceptedEvent(matchID, mentorUserID, menteeUserID string, currentMentees, maxMentees int) MentorshipResolvedEvent {
	return MentorshipResolvedEvent{
		BaseEvent:      NewBaseEvent(EventMentorshipAccepted, matchID),
		MentorUserID:   mentorUserID,
		MenteeUserID:   menteeUserID,
		CurrentMentees: currentMentees,
		MaxMentees:     maxMentees,
	}
}

// NewMentorshipDeclinedEvent creates a declined MentorshipResolvedEvent.
func NewMentorshipDeclinedEvent(matchID, mentorUserID, menteeUserID string) MentorshipResolvedEvent {
	return MentorshipResolvedEvent{
		BaseEvent:    NewBaseEvent(EventMentorshipDeclined, matchID),
		MentorUserID: mentorUserID,
		MenteeUserID: menteeUserID,
	}
}

// MentorshipEndedEvent is emitted when an active match is completed.
type MentorshipEndedEvent struct {
	BaseEvent
	MentorUserID string  `json:"mentor_user_id"`
	MenteeUserID string  `json:"mentee_user_id"`
	EndedBy      string  `json:"ended_by"`
	TotalHours   float64 `json:"total_hours"`
}

// Payload implements Event interface.
func (e MentorshipEndedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"mentor_user_id": e.MentorUserID,
		"mentee_user_id": e.MenteeUserID,
		"ended_by":       e.EndedBy,
		"total_hours":    e.TotalHours,
	}
}

// Recipients implements Addressed.
func (e MentorshipEndedEvent) Recipients() []string {
	return otherParty(e.EndedBy, e.MentorUserID, e.MenteeUserID)
}

// NewMentorshipEndedEvent creates a new MentorshipEndedEvent.
func NewMentorshipEndedEvent(matchID, mentorUserID, menteeUserID, endedBy string, totalHours float64) MentorshipEndedEvent {
	return MentorshipEndedEvent{
		BaseEvent:    NewBaseEvent(EventMentorshipEnded, matchID),
		MentorUserID: mentorUserID,
		MenteeUserID: menteeUserID,
		EndedBy:      endedBy,
		TotalHours:   totalHours,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionScheduledEvent is emitted when a party schedules a session.
type SessionScheduledEvent struct {
	BaseEvent
	MatchID         string    `json:"match_id"`
	MentorUserID    string    `json:"mentor_user_id"`
	MenteeUserID    string    `json:"mentee_user_id"`
	ScheduledBy     string    `json:"scheduled_by"`
	ScheduledTime   time.Time `json:"scheduled_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Payload implements Event interface.
func (e SessionScheduledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"match_id":         e.MatchID,
		"mentor_user_id":   e.MentorUserID,
		"mentee_user_id":   e.MenteeUserID,
		"scheduled_by":     e.ScheduledBy,
		"scheduled_time":   e.ScheduledTime,
		"duration_minutes": e.DurationMinutes,
	}
}

// Recipients implements Addressed.
func (e SessionScheduledEvent) Recipients() []string {
	return otherParty(e.ScheduledBy, e.MentorUserID, e.MenteeUserID)
}

// NewSessionScheduledEvent creates a new SessionScheduledEvent.
func NewSessionScheduledEvent(sessionID, matchID, mentorUserID, menteeUserID, scheduledBy string, at time.Time, duration int) SessionScheduledEvent {
	return SessionScheduledEvent{
		BaseEvent:       NewBaseEvent(EventSessionScheduled, sessionID),
		MatchID:         matchID,
		MentorUserID:    mentorUserID,
		MenteeUserID:    menteeUserID,
		ScheduledBy:     scheduledBy,
		ScheduledTime:   at,
		DurationMinutes: duration,
	}
}

// SessionCompletedEvent is emitted when a session is marked completed.
type SessionCompletedEvent struct {
	BaseEvent
	MatchID      string  `json:"match_id"`
	MentorUserID string  `json:"mentor_user_id"`
	MenteeUserID string  `json:"mentee_user_id"`
	CompletedBy  string  `json:"completed_by"`
	Hours        float64 `json:"hours"`
	TotalHours   float64 `json:"total_hours"`
}

// Payload implements Event interface.
func (e SessionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"match_id":       e.MatchID,
		"mentor_user_id": e.MentorUserID,
		"mentee_user_id": e.MenteeUserID,
		"completed_by":   e.CompletedBy,
		"hours":          e.Hours,
		"total_hours":    e.TotalHours,
	}
}

// Recipients implements Addressed.
func (e SessionCompletedEvent) Recipients() []string {
	return otherParty(e.CompletedBy, e.MentorUserID, e.MenteeUserID)
}

// NewSessionCompletedEvent creates a new SessionCompletedEvent.
func NewSessionCompletedEvent(sessionID, matchID, mentorUserID, menteeUserID, completedBy string, hours, totalHours float64) SessionCompletedEvent {
	return SessionCompletedEvent{
		BaseEvent:    NewBaseEvent(EventSessionCompleted, sessionID),
		MatchID:      matchID,
		MentorUserID: mentorUserID,
		MenteeUserID: menteeUserID,
		CompletedBy:  completedBy,
		Hours:        hours,
		TotalHours:   totalHours,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Profile & Rewards Events
// ═══════════════════════════════════════════════════════════════════════════

// MentorProfileChangedEvent is emitted when a mentor profile is created,
// updated or deactivated.
type MentorProfileChangedEvent struct {
	BaseEvent
	IsActive bool `json:"is_active"`
}

// Payload implements Event interface.
func (e MentorProfileChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"is_active": e.IsActive,
	}
}

// NewMentorProfileChangedEvent creates a new MentorProfileChangedEvent.
func NewMentorProfileChangedEvent(mentorUserID string, isActive bool) MentorProfileChangedEvent {
	return MentorProfileChangedEvent{
		BaseEvent: NewBaseEvent(EventMentorProfileChanged, mentorUserID),
		IsActive:  isActive,
	}
}

// PointsAwardedEvent is emitted after a point award is written to the ledger.
type PointsAwardedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"amount":  e.Amount,
		"reason":  e.Reason,
	}
}

// Recipients implements Addressed.
func (e PointsAwardedEvent) Recipients() []string {
	return []string{e.UserID}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent.
func NewPointsAwardedEvent(awardID, userID string, amount int, reason string) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent: NewBaseEvent(EventPointsAwarded, awardID),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
	}
}

func otherParty(actor, mentorUserID, menteeUserID string) []string {
	switch actor {
	case mentorUserID:
		return []string{menteeUserID}
	case menteeUserID:
		return []string{mentorUserID}
	default:
		return []string{mentorUserID, menteeUserID}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
