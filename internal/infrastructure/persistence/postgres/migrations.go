package postgres

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_profiles", UpSQL: migration001Up},
		{Version: 2, Name: "create_matches_and_sessions", UpSQL: migration002Up},
		{Version: 3, Name: "create_point_awards", UpSQL: migration003Up},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS mentor_profiles (
    user_id           TEXT PRIMARY KEY,
    expertise_areas   TEXT[] NOT NULL DEFAULT '{}',
    skills            TEXT[] NOT NULL DEFAULT '{}',
    industry          TEXT NOT NULL DEFAULT '',
    availability_mode VARCHAR(16) NOT NULL,
    years_experience  INTEGER NOT NULL DEFAULT 0,
    max_mentees       INTEGER NOT NULL,
    current_mentees   INTEGER NOT NULL DEFAULT 0,
    is_active         BOOLEAN NOT NULL DEFAULT TRUE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_availability_mode CHECK (availability_mode IN ('in_person', 'virtual', 'both')),
    CONSTRAINT valid_years_experience CHECK (years_experience >= 0),
    CONSTRAINT valid_capacity CHECK (max_mentees > 0 AND current_mentees >= 0 AND current_mentees <= max_mentees)
);

CREATE INDEX IF NOT EXISTS idx_mentor_profiles_available
    ON mentor_profiles(created_at) WHERE is_active AND current_mentees < max_mentees;

CREATE TABLE IF NOT EXISTS mentee_profiles (
    user_id                TEXT PRIMARY KEY,
    career_interests       TEXT[] NOT NULL DEFAULT '{}',
    skills_to_develop      TEXT[] NOT NULL DEFAULT '{}',
    target_industry        TEXT NOT NULL DEFAULT '',
    preferred_meeting_mode VARCHAR(16) NOT NULL,
    is_active              BOOLEAN NOT NULL DEFAULT TRUE,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_preferred_meeting_mode CHECK (preferred_meeting_mode IN ('in_person', 'virtual', 'both'))
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: MATCHES AND SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS mentorship_matches (
    id             UUID PRIMARY KEY,
    mentor_user_id TEXT NOT NULL REFERENCES mentor_profiles(user_id),
    mentee_user_id TEXT NOT NULL REFERENCES mentee_profiles(user_id),
    status         VARCHAR(16) NOT NULL DEFAULT 'pending',
    mentee_message TEXT NOT NULL DEFAULT '',
    matched_at     TIMESTAMPTZ,
    ended_at       TIMESTAMPTZ,
    total_hours    DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_match_status CHECK (status IN ('pending', 'active', 'declined', 'completed')),
    CONSTRAINT no_self_match CHECK (mentor_user_id <> mentee_user_id),
    CONSTRAINT valid_total_hours CHECK (total_hours >= 0)
);

-- Не более одной активной пары на менти.
CREATE UNIQUE INDEX IF NOT EXISTS uq_mentorship_matches_one_active
    ON mentorship_matches(mentee_user_id) WHERE status = 'active';

-- Один ожидающий запрос на пару менти/ментор.
CREATE UNIQUE INDEX IF NOT EXISTS uq_mentorship_matches_one_pending
    ON mentorship_matches(mentee_user_id, mentor_user_id) WHERE status = 'pending';

CREATE INDEX IF NOT EXISTS idx_mentorship_matches_mentor ON mentorship_matches(mentor_user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_mentorship_matches_mentee ON mentorship_matches(mentee_user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS mentorship_sessions (
    id               UUID PRIMARY KEY,
    match_id         UUID NOT NULL REFERENCES mentorship_matches(id) ON DELETE CASCADE,
    scheduled_time   TIMESTAMPTZ NOT NULL,
    duration_minutes INTEGER NOT NULL,
    meeting_link     TEXT NOT NULL DEFAULT '',
    agenda           TEXT NOT NULL DEFAULT '',
    status           VARCHAR(16) NOT NULL DEFAULT 'scheduled',
    notes            TEXT NOT NULL DEFAULT '',
    mentor_rating    SMALLINT,
    mentee_rating    SMALLINT,
    completed_at     TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_session_status CHECK (status IN ('scheduled', 'completed')),
    CONSTRAINT valid_duration CHECK (duration_minutes > 0),
    CONSTRAINT valid_mentor_rating CHECK (mentor_rating IS NULL OR mentor_rating BETWEEN 1 AND 5),
    CONSTRAINT valid_mentee_rating CHECK (mentee_rating IS NULL OR mentee_rating BETWEEN 1 AND 5)
);

CREATE INDEX IF NOT EXISTS idx_mentorship_sessions_match ON mentorship_sessions(match_id, scheduled_time);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: POINT AWARDS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS point_awards (
    id         UUID PRIMARY KEY,
    user_id    TEXT NOT NULL,
    amount     INTEGER NOT NULL,
    reason     VARCHAR(32) NOT NULL,
    awarded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_amount CHECK (amount > 0)
);

CREATE INDEX IF NOT EXISTS idx_point_awards_user ON point_awards(user_id, awarded_at DESC);
`
