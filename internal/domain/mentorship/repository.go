package mentorship

import (
	"context"

	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации: postgres (production) и memory (development, тесты).
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository хранит профили менторов и менти.
type ProfileRepository interface {
	// GetMentor returns ErrMentorNotFound if the user has no mentor profile.
	GetMentor(ctx context.Context, userID string) (*MentorProfile, error)

	// SaveMentor creates or updates a mentor profile.
	SaveMentor(ctx context.Context, profile *MentorProfile) error

	// GetMentee returns ErrMenteeNotFound if the user has no mentee profile.
	GetMentee(ctx context.Context, userID string) (*MenteeProfile, error)

	// SaveMentee creates or updates a mentee profile.
	SaveMentee(ctx context.Context, profile *MenteeProfile) error

	// ListAvailableMentors returns active mentors with free capacity,
	// oldest profiles first. limit <= 0 means no limit.
	ListAvailableMentors(ctx context.Context, limit int) ([]*MentorProfile, error)

	// ReserveMentorSlot atomically increments current_mentees if the mentor
	// is active and below capacity (compare-and-swap). Returns the updated
	// profile or ErrMentorUnavailable.
	ReserveMentorSlot(ctx context.Context, mentorUserID string) (*MentorProfile, error)

	// ReleaseMentorSlot atomically decrements current_mentees, never below zero.
	ReleaseMentorSlot(ctx context.Context, mentorUserID string) (*MentorProfile, error)
}

// MatchRepository хранит пары.
type MatchRepository interface {
	CreateMatch(ctx context.Context, match *Match) error

	// GetMatch returns ErrMatchNotFound. Inside a transaction the row is locked.
	GetMatch(ctx context.Context, id string) (*Match, error)

	// UpdateMatch returns ErrAlreadyMatched if activating the match would give
	// the mentee a second active mentorship.
	UpdateMatch(ctx context.Context, match *Match) error

	// DeleteMatch removes the match and its sessions.
	DeleteMatch(ctx context.Context, id string) error

	HasActiveMatch(ctx context.Context, menteeUserID string) (bool, error)
	HasPendingRequest(ctx context.Context, menteeUserID, mentorUserID string) (bool, error)

	// ListMatchesByUser returns matches where the user is mentor or mentee,
	// newest first. Empty statuses means all statuses.
	ListMatchesByUser(ctx context.Context, userID string, statuses []MatchStatus, page shared.Pagination) ([]*Match, error)
}

// SessionRepository хранит встречи.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error

	// GetSession returns ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
	ListSessionsByMatch(ctx context.Context, matchID string) ([]*Session, error)
}

// Store объединяет репозитории и даёт транзакционную границу.
// Каждая операция жизненного цикла выполняется внутри одного WithinTx:
// если fn возвращает ошибку, ни одно изменение не сохраняется.
type Store interface {
	ProfileRepository
	MatchRepository
	SessionRepository

	// WithinTx runs fn against a transactional view of the store.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// CapacityDrift - расхождение счётчика current_mentees с числом активных пар.
// Applied - записанное значение: Actual, но не больше max_mentees.
type CapacityDrift struct {
	MentorUserID string
	Recorded     int
	Actual       int
	Applied      int
	IsActive     bool
}

// Overbooked сообщает, что активных пар больше, чем мест у ментора.
// Такое расхождение исправляется только вручную.
func (d CapacityDrift) Overbooked() bool {
	return d.Actual > d.Applied
}

// CapacityReconciler выравнивает current_mentees по активным парам.
// Нужен после ручных правок в базе и прерванных операций.
type CapacityReconciler interface {
	// ReconcileMentorCapacity sets current_mentees to the number of ACTIVE
	// matches, capped at max_mentees, for every mentor whose counter differs
	// from that number and reports the fixes.
	ReconcileMentorCapacity(ctx context.Context) ([]CapacityDrift, error)
}
