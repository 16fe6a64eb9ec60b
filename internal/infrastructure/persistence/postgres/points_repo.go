package postgres

import (
	"context"
	"fmt"

	"github.com/pittstate/pittstate-connect/internal/domain/rewards"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// PointsLedger implements rewards.Ledger for PostgreSQL.
type PointsLedger struct {
	conn *Connection
}

// NewPointsLedger creates a new PointsLedger.
func NewPointsLedger(conn *Connection) *PointsLedger {
	return &PointsLedger{conn: conn}
}

var _ rewards.Ledger = (*PointsLedger)(nil)

// Append inserts an award. A repeated award id is rejected.
func (l *PointsLedger) Append(ctx context.Context, a *rewards.Award) error {
	_, err := l.conn.Pool().Exec(ctx, `
		INSERT INTO point_awards (id, user_id, amount, reason, awarded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.UserID, a.Amount, string(a.Reason), a.AwardedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("rewards", "Append", shared.ErrAlreadyExists, "award already recorded")
		}
		return fmt.Errorf("failed to append award: %w", err)
	}
	return nil
}

// Total sums the user's points.
func (l *PointsLedger) Total(ctx context.Context, userID string) (int, error) {
	var total int
	err := l.conn.Pool().QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM point_awards WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum points: %w", err)
	}
	return total, nil
}

// ListByUser returns the user's awards, newest first.
func (l *PointsLedger) ListByUser(ctx context.Context, userID string, limit int) ([]*rewards.Award, error) {
	if limit <= 0 {
		limit = shared.MaxPageSize
	}
	rows, err := l.conn.Pool().Query(ctx, `
		SELECT id, user_id, amount, reason, awarded_at
		FROM point_awards
		WHERE user_id = $1
		ORDER BY awarded_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list awards: %w", err)
	}
	defer rows.Close()

	out := make([]*rewards.Award, 0)
	for rows.Next() {
		var (
			a      rewards.Award
			reason string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Amount, &reason, &a.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan award: %w", err)
		}
		a.Reason = rewards.Reason(reason)
		out = append(out, &a)
	}
	return out, rows.Err()
}
