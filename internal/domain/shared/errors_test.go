package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	notFound := NewDomainError("mentorship", "FindMentor", ErrNotFound, "mentor profile not found")
	conflict := NewDomainError("mentorship", "RequestMatch", ErrConflict, "mentee already has an active mentorship")
	otherConflict := NewDomainError("mentorship", "ReserveSlot", ErrConflict, "mentor is at capacity")

	assert.ErrorIs(t, notFound, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("request: %w", conflict), conflict)
	assert.ErrorIs(t, conflict, ErrConflict)

	// Ошибки одного вида не совпадают между собой.
	assert.NotErrorIs(t, conflict, otherConflict)

	wrapped := WrapError("rewards", "AwardPoints", ErrServiceUnavailable, "ledger write failed", context.DeadlineExceeded)
	assert.ErrorIs(t, wrapped, ErrServiceUnavailable)
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
	assert.Equal(t, "rewards.AwardPoints: ledger write failed: context deadline exceeded", wrapped.Error())
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"not found", NewDomainError("m", "op", ErrNotFound, "x"), IsNotFound, true},
		{"validation by range", ErrInvalidRating, IsValidation, true},
		{"state transition is conflict", NewDomainError("m", "op", ErrStateTransition, "x"), IsConflict, true},
		{"already exists is conflict", NewDomainError("m", "op", ErrAlreadyExists, "x"), IsConflict, true},
		{"forbidden", NewDomainError("m", "op", ErrForbidden, "x"), IsForbidden, true},
		{"deadline is retryable", fmt.Errorf("save: %w", context.DeadlineExceeded), IsRetryable, true},
		{"plain error", errors.New("boom"), IsRetryable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.err))
		})
	}
}

func TestNewRating(t *testing.T) {
	r, err := NewRating(5)
	assert.NoError(t, err)
	assert.Equal(t, MaxRating, r)

	_, err = NewRating(0)
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.Limit())
	assert.Zero(t, p.Offset())

	p = NewPagination(3, 500)
	assert.Equal(t, MaxPageSize, p.Limit())
	assert.Equal(t, 2*MaxPageSize, p.Offset())
}
