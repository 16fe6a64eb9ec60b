package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MENTORSHIP STORE IMPLEMENTATION
// One type serves both the pool and a transaction: WithinTx hands fn a copy
// bound to pgx.Tx, and reads of matches inside it take row locks.
// ══════════════════════════════════════════════════════════════════════════════

// Partial unique indexes on mentorship_matches.
const (
	uniqueActiveMatchIndex  = "uq_mentorship_matches_one_active"
	uniquePendingMatchIndex = "uq_mentorship_matches_one_pending"
)

// MentorshipStore implements mentorship.Store for PostgreSQL.
type MentorshipStore struct {
	conn *Connection
	q    Querier
	inTx bool
}

// NewMentorshipStore creates a new MentorshipStore.
func NewMentorshipStore(conn *Connection) *MentorshipStore {
	return &MentorshipStore{conn: conn, q: conn.Pool()}
}

var _ mentorship.Store = (*MentorshipStore)(nil)

// WithinTx runs fn inside a database transaction. Nested calls reuse the
// outer transaction.
func (s *MentorshipStore) WithinTx(ctx context.Context, fn func(tx mentorship.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&MentorshipStore{conn: s.conn, q: tx, inTx: true})
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Profiles
// ─────────────────────────────────────────────────────────────────────────────

const mentorColumns = `user_id, expertise_areas, skills, industry, availability_mode,
	years_experience, max_mentees, current_mentees, is_active, created_at, updated_at`

// GetMentor returns a mentor profile by user id.
func (s *MentorshipStore) GetMentor(ctx context.Context, userID string) (*mentorship.MentorProfile, error) {
	row := s.q.QueryRow(ctx, `SELECT `+mentorColumns+` FROM mentor_profiles WHERE user_id = $1`, userID)
	p, err := scanMentor(row)
	if IsNoRows(err) {
		return nil, mentorship.ErrMentorNotFound
	}
	return p, err
}

// SaveMentor upserts the profile. current_mentees is written on insert only;
// afterwards it changes exclusively through ReserveMentorSlot and ReleaseMentorSlot.
func (s *MentorshipStore) SaveMentor(ctx context.Context, p *mentorship.MentorProfile) error {
	query := `
		INSERT INTO mentor_profiles (` + mentorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			expertise_areas   = EXCLUDED.expertise_areas,
			skills            = EXCLUDED.skills,
			industry          = EXCLUDED.industry,
			availability_mode = EXCLUDED.availability_mode,
			years_experience  = EXCLUDED.years_experience,
			max_mentees       = EXCLUDED.max_mentees,
			is_active         = EXCLUDED.is_active,
			updated_at        = EXCLUDED.updated_at
	`
	_, err := s.q.Exec(ctx, query,
		p.UserID,
		[]string(p.ExpertiseAreas),
		[]string(p.Skills),
		p.Industry,
		string(p.AvailabilityMode),
		p.YearsExperience,
		p.MaxMentees,
		p.CurrentMentees,
		p.IsActive,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if constraintName(err) == "valid_capacity" {
			return shared.NewDomainError("mentorship", "SaveMentor", shared.ErrValidation, "max_mentees cannot be below current mentees")
		}
		return fmt.Errorf("failed to save mentor profile: %w", err)
	}
	return nil
}

const menteeColumns = `user_id, career_interests, skills_to_develop, target_industry,
	preferred_meeting_mode, is_active, created_at, updated_at`

// GetMentee returns a mentee profile by user id.
func (s *MentorshipStore) GetMentee(ctx context.Context, userID string) (*mentorship.MenteeProfile, error) {
	row := s.q.QueryRow(ctx, `SELECT `+menteeColumns+` FROM mentee_profiles WHERE user_id = $1`, userID)

	var (
		p                 mentorship.MenteeProfile
		interests, skills []string
		mode              string
	)
	err := row.Scan(&p.UserID, &interests, &skills, &p.TargetIndustry, &mode, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if IsNoRows(err) {
		return nil, mentorship.ErrMenteeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mentee profile: %w", err)
	}
	p.CareerInterests = mentorship.TagSet(interests)
	p.SkillsToDevelop = mentorship.TagSet(skills)
	p.PreferredMeetingMode = mentorship.MeetingMode(mode)
	return &p, nil
}

// SaveMentee upserts the profile.
func (s *MentorshipStore) SaveMentee(ctx context.Context, p *mentorship.MenteeProfile) error {
	query := `
		INSERT INTO mentee_profiles (` + menteeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			career_interests       = EXCLUDED.career_interests,
			skills_to_develop      = EXCLUDED.skills_to_develop,
			target_industry        = EXCLUDED.target_industry,
			preferred_meeting_mode = EXCLUDED.preferred_meeting_mode,
			is_active              = EXCLUDED.is_active,
			updated_at             = EXCLUDED.updated_at
	`
	_, err := s.q.Exec(ctx, query,
		p.UserID,
		[]string(p.CareerInterests),
		[]string(p.SkillsToDevelop),
		p.TargetIndustry,
		string(p.PreferredMeetingMode),
		p.IsActive,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save mentee profile: %w", err)
	}
	return nil
}

// ListAvailableMentors returns active mentors with free capacity.
func (s *MentorshipStore) ListAvailableMentors(ctx context.Context, limit int) ([]*mentorship.MentorProfile, error) {
	query := `
		SELECT ` + mentorColumns + `
		FROM mentor_profiles
		WHERE is_active AND current_mentees < max_mentees
		ORDER BY created_at, user_id
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentors: %w", err)
	}
	defer rows.Close()

	var out []*mentorship.MentorProfile
	for rows.Next() {
		p, err := scanMentor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReserveMentorSlot is a compare-and-swap increment: the row is only touched
// when the mentor is active and below capacity.
func (s *MentorshipStore) ReserveMentorSlot(ctx context.Context, mentorUserID string) (*mentorship.MentorProfile, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE mentor_profiles
		SET current_mentees = current_mentees + 1, updated_at = NOW()
		WHERE user_id = $1 AND is_active AND current_mentees < max_mentees
		RETURNING `+mentorColumns, mentorUserID)

	p, err := scanMentor(row)
	if IsNoRows(err) {
		if _, getErr := s.GetMentor(ctx, mentorUserID); getErr != nil {
			return nil, getErr
		}
		return nil, mentorship.ErrMentorUnavailable
	}
	return p, err
}

// ReleaseMentorSlot decrements current_mentees, never below zero.
func (s *MentorshipStore) ReleaseMentorSlot(ctx context.Context, mentorUserID string) (*mentorship.MentorProfile, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE mentor_profiles
		SET current_mentees = GREATEST(current_mentees - 1, 0), updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+mentorColumns, mentorUserID)

	p, err := scanMentor(row)
	if IsNoRows(err) {
		return nil, mentorship.ErrMentorNotFound
	}
	return p, err
}

func scanMentor(row pgx.Row) (*mentorship.MentorProfile, error) {
	var (
		p                 mentorship.MentorProfile
		expertise, skills []string
		mode              string
	)
	err := row.Scan(
		&p.UserID,
		&expertise,
		&skills,
		&p.Industry,
		&mode,
		&p.YearsExperience,
		&p.MaxMentees,
		&p.CurrentMentees,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan mentor profile: %w", err)
	}
	p.ExpertiseAreas = mentorship.TagSet(expertise)
	p.Skills = mentorship.TagSet(skills)
	p.AvailabilityMode = mentorship.MeetingMode(mode)
	return &p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Matches
// ─────────────────────────────────────────────────────────────────────────────

const matchColumns = `id, mentor_user_id, mentee_user_id, status, mentee_message,
	matched_at, ended_at, total_hours, created_at, updated_at`

// CreateMatch inserts a new match.
func (s *MentorshipStore) CreateMatch(ctx context.Context, m *mentorship.Match) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO mentorship_matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.MentorUserID, m.MenteeUserID, string(m.Status), m.MenteeMessage,
		m.MatchedAt, m.EndedAt, m.TotalHours, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			switch constraintName(err) {
			case uniqueActiveMatchIndex:
				return mentorship.ErrAlreadyMatched
			case uniquePendingMatchIndex:
				return mentorship.ErrDuplicateRequest
			}
			return shared.NewDomainError("mentorship", "CreateMatch", shared.ErrAlreadyExists, "match already exists")
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

// GetMatch returns a match; inside a transaction the row is locked FOR UPDATE.
func (s *MentorshipStore) GetMatch(ctx context.Context, id string) (*mentorship.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM mentorship_matches WHERE id = $1`
	if s.inTx {
		query += ` FOR UPDATE`
	}
	m, err := scanMatch(s.q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, mentorship.ErrMatchNotFound
	}
	return m, err
}

// UpdateMatch writes the mutable match columns.
func (s *MentorshipStore) UpdateMatch(ctx context.Context, m *mentorship.Match) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE mentorship_matches SET
			status = $1,
			matched_at = $2,
			ended_at = $3,
			total_hours = $4,
			updated_at = $5
		WHERE id = $6`,
		string(m.Status), m.MatchedAt, m.EndedAt, m.TotalHours, m.UpdatedAt, m.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) && constraintName(err) == uniqueActiveMatchIndex {
			return mentorship.ErrAlreadyMatched
		}
		return fmt.Errorf("failed to update match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mentorship.ErrMatchNotFound
	}
	return nil
}

// DeleteMatch removes the match; sessions go with it via ON DELETE CASCADE.
func (s *MentorshipStore) DeleteMatch(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM mentorship_matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mentorship.ErrMatchNotFound
	}
	return nil
}

// HasActiveMatch reports whether the mentee already has an active mentorship.
func (s *MentorshipStore) HasActiveMatch(ctx context.Context, menteeUserID string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM mentorship_matches WHERE mentee_user_id = $1 AND status = 'active'
		)`, menteeUserID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active match: %w", err)
	}
	return exists, nil
}

// HasPendingRequest reports whether the mentee already asked this mentor.
func (s *MentorshipStore) HasPendingRequest(ctx context.Context, menteeUserID, mentorUserID string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM mentorship_matches
			WHERE mentee_user_id = $1 AND mentor_user_id = $2 AND status = 'pending'
		)`, menteeUserID, mentorUserID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending request: %w", err)
	}
	return exists, nil
}

// ListMatchesByUser returns the user's matches, newest first.
func (s *MentorshipStore) ListMatchesByUser(ctx context.Context, userID string, statuses []mentorship.MatchStatus, page shared.Pagination) ([]*mentorship.Match, error) {
	var filter []string
	for _, st := range statuses {
		filter = append(filter, string(st))
	}

	rows, err := s.q.Query(ctx, `
		SELECT `+matchColumns+`
		FROM mentorship_matches
		WHERE (mentor_user_id = $1 OR mentee_user_id = $1)
		  AND ($2::text[] IS NULL OR status = ANY($2))
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`,
		userID, filter, page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	out := make([]*mentorship.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMatch(row pgx.Row) (*mentorship.Match, error) {
	var (
		m      mentorship.Match
		status string
	)
	err := row.Scan(
		&m.ID,
		&m.MentorUserID,
		&m.MenteeUserID,
		&status,
		&m.MenteeMessage,
		&m.MatchedAt,
		&m.EndedAt,
		&m.TotalHours,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	m.Status = mentorship.MatchStatus(status)
	return &m, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

const sessionColumns = `id, match_id, scheduled_time, duration_minutes, meeting_link, agenda,
	status, notes, mentor_rating, mentee_rating, completed_at, created_at`

// CreateSession inserts a scheduled session.
func (s *MentorshipStore) CreateSession(ctx context.Context, ss *mentorship.Session) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO mentorship_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ss.ID, ss.MatchID, ss.ScheduledTime, ss.DurationMinutes, ss.MeetingLink, ss.Agenda,
		string(ss.Status), ss.Notes, ratingValue(ss.MentorRating), ratingValue(ss.MenteeRating),
		ss.CompletedAt, ss.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession returns a session by id.
func (s *MentorshipStore) GetSession(ctx context.Context, id string) (*mentorship.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM mentorship_sessions WHERE id = $1`
	if s.inTx {
		query += ` FOR UPDATE`
	}
	ss, err := scanSession(s.q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, mentorship.ErrSessionNotFound
	}
	return ss, err
}

// UpdateSession writes the completion columns.
func (s *MentorshipStore) UpdateSession(ctx context.Context, ss *mentorship.Session) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE mentorship_sessions SET
			status = $1,
			notes = $2,
			mentor_rating = $3,
			mentee_rating = $4,
			completed_at = $5
		WHERE id = $6`,
		string(ss.Status), ss.Notes, ratingValue(ss.MentorRating), ratingValue(ss.MenteeRating),
		ss.CompletedAt, ss.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mentorship.ErrSessionNotFound
	}
	return nil
}

// ListSessionsByMatch returns the match's sessions in schedule order.
func (s *MentorshipStore) ListSessionsByMatch(ctx context.Context, matchID string) ([]*mentorship.Session, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM mentorship_sessions
		WHERE match_id = $1
		ORDER BY scheduled_time, id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]*mentorship.Session, 0)
	for rows.Next() {
		ss, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Capacity reconciliation
// ─────────────────────────────────────────────────────────────────────────────

var _ mentorship.CapacityReconciler = (*MentorshipStore)(nil)

// ReconcileMentorCapacity locks every mentor row, so no accept or end can run
// between the count and the fix, then resets drifted counters in one UPDATE.
// The new value is capped at max_mentees to satisfy valid_capacity; an
// overbooked mentor is reported on every run until fixed by hand.
func (s *MentorshipStore) ReconcileMentorCapacity(ctx context.Context) ([]mentorship.CapacityDrift, error) {
	var drifts []mentorship.CapacityDrift
	err := s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT user_id FROM mentor_profiles ORDER BY user_id FOR UPDATE`); err != nil {
			return fmt.Errorf("failed to lock mentor profiles: %w", err)
		}

		rows, err := tx.Query(ctx, `
			WITH counted AS (
				SELECT p.user_id, p.current_mentees AS recorded, COUNT(m.id)::int AS actual
				FROM mentor_profiles p
				LEFT JOIN mentorship_matches m
					ON m.mentor_user_id = p.user_id AND m.status = 'active'
				GROUP BY p.user_id, p.current_mentees
			)
			UPDATE mentor_profiles p
			SET current_mentees = LEAST(c.actual, p.max_mentees), updated_at = NOW()
			FROM counted c
			WHERE p.user_id = c.user_id AND c.recorded <> c.actual
			RETURNING p.user_id, c.recorded, c.actual, p.current_mentees, p.is_active`)
		if err != nil {
			return fmt.Errorf("failed to reconcile capacity: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var d mentorship.CapacityDrift
			if err := rows.Scan(&d.MentorUserID, &d.Recorded, &d.Actual, &d.Applied, &d.IsActive); err != nil {
				return fmt.Errorf("failed to scan capacity drift: %w", err)
			}
			drifts = append(drifts, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].MentorUserID < drifts[j].MentorUserID })
	return drifts, nil
}

func scanSession(row pgx.Row) (*mentorship.Session, error) {
	var (
		ss                         mentorship.Session
		status                     string
		mentorRating, menteeRating *int
		completedAt                *time.Time
	)
	err := row.Scan(
		&ss.ID,
		&ss.MatchID,
		&ss.ScheduledTime,
		&ss.DurationMinutes,
		&ss.MeetingLink,
		&ss.Agenda,
		&status,
		&ss.Notes,
		&mentorRating,
		&menteeRating,
		&completedAt,
		&ss.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	ss.Status = mentorship.SessionStatus(status)
	ss.MentorRating = toRating(mentorRating)
	ss.MenteeRating = toRating(menteeRating)
	ss.CompletedAt = completedAt
	return &ss, nil
}

func ratingValue(r *shared.Rating) *int {
	if r == nil {
		return nil
	}
	v := int(*r)
	return &v
}

func toRating(v *int) *shared.Rating {
	if v == nil {
		return nil
	}
	r := shared.Rating(*v)
	return &r
}
