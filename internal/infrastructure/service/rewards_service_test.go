package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
	"github.com/pittstate/pittstate-connect/internal/infrastructure/persistence/memory"
	"github.com/pittstate/pittstate-connect/pkg/circuitbreaker"
	"github.com/pittstate/pittstate-connect/pkg/retry"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// flakyLedger fails the first n appends, optionally after writing.
type flakyLedger struct {
	*memory.Ledger
	mu          sync.Mutex
	failures    int
	writeFirst  bool
	attempts    int
	permanently error
}

func (l *flakyLedger) Append(ctx context.Context, a *rewards.Award) error {
	l.mu.Lock()
	l.attempts++
	fail := l.failures > 0
	if fail {
		l.failures--
	}
	l.mu.Unlock()

	if l.permanently != nil {
		return l.permanently
	}
	if fail {
		if l.writeFirst {
			_ = l.Ledger.Append(ctx, a)
		}
		return shared.WrapError("rewards", "Append", shared.ErrServiceUnavailable, "ledger timeout", errors.New("i/o timeout"))
	}
	return l.Ledger.Append(ctx, a)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func fastRetries() RewardsOption {
	return WithRetryOptions(retry.WithBackoff(time.Millisecond, 2*time.Millisecond), retry.WithJitter(0))
}

func TestRewardsService_AwardsAndPublishes(t *testing.T) {
	ledger := memory.NewLedger()
	pub := &recordingPublisher{}
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	svc := NewRewardsService(ledger, pub, quietLogger, WithClock(func() time.Time { return now }))

	require.NoError(t, svc.AwardPoints(context.Background(), "mentor", 50, rewards.ReasonMentorAccepted))

	total, err := ledger.Total(context.Background(), "mentor")
	require.NoError(t, err)
	assert.Equal(t, 50, total)

	awards, err := ledger.ListByUser(context.Background(), "mentor", 10)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, now, awards[0].AwardedAt)

	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventPointsAwarded, pub.events[0].EventType())
	assert.Equal(t, []string{"mentor"}, pub.events[0].(shared.Addressed).Recipients())
}

func TestRewardsService_RetriesTransientFailures(t *testing.T) {
	ledger := &flakyLedger{Ledger: memory.NewLedger(), failures: 2}
	svc := NewRewardsService(ledger, nil, quietLogger, fastRetries())

	require.NoError(t, svc.AwardPoints(context.Background(), "mentee", 25, rewards.ReasonMentorMatched))
	assert.Equal(t, 3, ledger.attempts)

	total, _ := ledger.Total(context.Background(), "mentee")
	assert.Equal(t, 25, total)
}

func TestRewardsService_LandedRetryIsNotDoubleCounted(t *testing.T) {
	ledger := &flakyLedger{Ledger: memory.NewLedger(), failures: 1, writeFirst: true}
	svc := NewRewardsService(ledger, nil, quietLogger, fastRetries())

	require.NoError(t, svc.AwardPoints(context.Background(), "mentor", 15, rewards.ReasonMentorshipSession))
	assert.Equal(t, 2, ledger.attempts)

	total, _ := ledger.Total(context.Background(), "mentor")
	assert.Equal(t, 15, total)
}

func TestRewardsService_GivesUpAndReports(t *testing.T) {
	ledger := &flakyLedger{Ledger: memory.NewLedger(), failures: 10}
	svc := NewRewardsService(ledger, nil, quietLogger, fastRetries(), WithRetryOptions(retry.WithMaxAttempts(2)))

	err := svc.AwardPoints(context.Background(), "mentor", 50, rewards.ReasonMentorAccepted)
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
	assert.Contains(t, err.Error(), "mentor_accepted")
	assert.Equal(t, 2, ledger.attempts)
}

func TestRewardsService_ValidationIsNotRetried(t *testing.T) {
	ledger := &flakyLedger{Ledger: memory.NewLedger()}
	svc := NewRewardsService(ledger, nil, quietLogger, fastRetries())

	err := svc.AwardPoints(context.Background(), "mentor", 0, rewards.ReasonMentorAccepted)
	assert.ErrorIs(t, err, rewards.ErrInvalidAward)
	assert.Zero(t, ledger.attempts)

	ledger.permanently = shared.NewDomainError("rewards", "Append", shared.ErrValidation, "bad row")
	err = svc.AwardPoints(context.Background(), "mentor", 5, rewards.ReasonMentorAccepted)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, 1, ledger.attempts)
}

func TestRewardsService_BreakerOpens(t *testing.T) {
	ledger := &flakyLedger{Ledger: memory.NewLedger(), failures: 100}
	svc := NewRewardsService(ledger, nil, quietLogger,
		fastRetries(),
		WithRetryOptions(retry.WithMaxAttempts(1)),
		WithBreakerOptions(circuitbreaker.WithFailureThreshold(2)),
	)
	ctx := context.Background()

	_ = svc.AwardPoints(ctx, "u", 5, rewards.ReasonMentorAccepted)
	_ = svc.AwardPoints(ctx, "u", 5, rewards.ReasonMentorAccepted)
	assert.Equal(t, circuitbreaker.StateOpen, svc.BreakerState())

	before := ledger.attempts
	err := svc.AwardPoints(ctx, "u", 5, rewards.ReasonMentorAccepted)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, before, ledger.attempts)
}
