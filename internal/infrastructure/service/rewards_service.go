package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pittstate/pittstate-connect/internal/application/command"
	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
	"github.com/pittstate/pittstate-connect/pkg/circuitbreaker"
	"github.com/pittstate/pittstate-connect/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARDS SERVICE
// Writes point awards to the ledger behind a retrier and a circuit breaker.
// ══════════════════════════════════════════════════════════════════════════════

// RewardsService implements command.PointsAwarder.
type RewardsService struct {
	ledger    rewards.Ledger
	publisher shared.EventPublisher
	retrier   *retry.Retrier
	breaker   *circuitbreaker.CircuitBreaker
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	retryOpts   []retry.Option
	breakerOpts []circuitbreaker.Option
}

// RewardsOption configures a RewardsService.
type RewardsOption func(*RewardsService)

// WithRetrier overrides the ledger retrier.
func WithRetrier(r *retry.Retrier) RewardsOption {
	return func(s *RewardsService) { s.retrier = r }
}

// WithBreaker overrides the ledger circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) RewardsOption {
	return func(s *RewardsService) { s.breaker = cb }
}

// WithRetryOptions tunes the default ledger retrier.
func WithRetryOptions(opts ...retry.Option) RewardsOption {
	return func(s *RewardsService) { s.retryOpts = append(s.retryOpts, opts...) }
}

// WithBreakerOptions tunes the default ledger circuit breaker.
func WithBreakerOptions(opts ...circuitbreaker.Option) RewardsOption {
	return func(s *RewardsService) { s.breakerOpts = append(s.breakerOpts, opts...) }
}

// WithClock overrides the award timestamp source.
func WithClock(now func() time.Time) RewardsOption {
	return func(s *RewardsService) { s.now = now }
}

// NewRewardsService creates the service. publisher may be nil.
func NewRewardsService(ledger rewards.Ledger, publisher shared.EventPublisher, logger *slog.Logger, opts ...RewardsOption) *RewardsService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RewardsService{
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuitbreaker.LedgerBreaker(func(name string, from, to circuitbreaker.State) {
			s.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}, s.breakerOpts...)
	}
	if s.retrier == nil {
		s.retrier = retry.LedgerRetrier(append(s.retryOpts, retry.WithRetryIf(isTransientLedgerError))...)
	}
	return s
}

var _ command.PointsAwarder = (*RewardsService)(nil)

// AwardPoints appends one award. The award ID is fixed before the first
// attempt, so a retried write that actually landed is reported as a
// duplicate and treated as success.
func (s *RewardsService) AwardPoints(ctx context.Context, userID string, amount int, reason rewards.Reason) error {
	award, err := rewards.NewAward(s.newID(), userID, amount, reason, s.now())
	if err != nil {
		return err
	}

	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.retrier.Do(ctx, func(ctx context.Context) error {
			err := s.ledger.Append(ctx, award)
			if shared.IsAlreadyExists(err) {
				return nil
			}
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("award %s to %s: %w", reason, userID, err)
	}

	s.logger.Info("points awarded",
		"award_id", award.ID,
		"user_id", award.UserID,
		"amount", award.Amount,
		"reason", award.Reason,
	)

	if s.publisher != nil {
		if err := s.publisher.Publish(shared.NewPointsAwardedEvent(award.ID, award.UserID, award.Amount, string(award.Reason))); err != nil {
			s.logger.Warn("failed to publish points event", "award_id", award.ID, "error", err)
		}
	}
	return nil
}

// BreakerState exposes the breaker state for health reporting.
func (s *RewardsService) BreakerState() circuitbreaker.State {
	return s.breaker.State()
}

// Validation and context errors are never retried.
func isTransientLedgerError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !shared.IsValidation(err) && !shared.IsNotFound(err)
}
