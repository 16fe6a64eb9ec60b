package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// Ledger is an append-only in-memory rewards.Ledger.
type Ledger struct {
	mu     sync.RWMutex
	awards []*rewards.Award
	ids    map[string]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{ids: make(map[string]struct{})}
}

var _ rewards.Ledger = (*Ledger)(nil)

// Append stores the award. Award IDs are unique.
func (l *Ledger) Append(_ context.Context, award *rewards.Award) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.ids[award.ID]; dup {
		return shared.NewDomainError("rewards", "Append", shared.ErrAlreadyExists, "award already recorded")
	}
	c := *award
	l.awards = append(l.awards, &c)
	l.ids[award.ID] = struct{}{}
	return nil
}

// Total sums the user's awards.
func (l *Ledger) Total(_ context.Context, userID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0
	for _, a := range l.awards {
		if a.UserID == userID {
			total += a.Amount
		}
	}
	return total, nil
}

// ListByUser returns the user's awards, newest first.
func (l *Ledger) ListByUser(_ context.Context, userID string, limit int) ([]*rewards.Award, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*rewards.Award, 0)
	for _, a := range l.awards {
		if a.UserID == userID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AwardedAt.After(out[j].AwardedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
