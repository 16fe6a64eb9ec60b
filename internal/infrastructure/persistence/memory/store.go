// Package memory provides in-process implementations of the mentorship
// store and the points ledger. Used in development when no DATABASE_URL is
// configured, and as the store in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// Transactions are serialized by a single mutex. WithinTx works on a deep
// copy of the data and swaps it in only when fn succeeds.
// ══════════════════════════════════════════════════════════════════════════════

// Store is an in-memory mentorship.Store.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

var _ mentorship.Store = (*Store)(nil)

// WithinTx runs fn on a private snapshot and commits it if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx mentorship.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.data.clone()
	if err := fn(&view{data: snapshot}); err != nil {
		return err
	}
	s.data = snapshot
	return nil
}

// locked runs fn against the live data under the store mutex.
func (s *Store) locked(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{data: s.data})
}

func (s *Store) GetMentor(ctx context.Context, userID string) (p *mentorship.MentorProfile, err error) {
	err = s.locked(func(v *view) error { p, err = v.GetMentor(ctx, userID); return err })
	return p, err
}

func (s *Store) SaveMentor(ctx context.Context, profile *mentorship.MentorProfile) error {
	return s.locked(func(v *view) error { return v.SaveMentor(ctx, profile) })
}

func (s *Store) GetMentee(ctx context.Context, userID string) (p *mentorship.MenteeProfile, err error) {
	err = s.locked(func(v *view) error { p, err = v.GetMentee(ctx, userID); return err })
	return p, err
}

func (s *Store) SaveMentee(ctx context.Context, profile *mentorship.MenteeProfile) error {
	return s.locked(func(v *view) error { return v.SaveMentee(ctx, profile) })
}

func (s *Store) ListAvailableMentors(ctx context.Context, limit int) (out []*mentorship.MentorProfile, err error) {
	err = s.locked(func(v *view) error { out, err = v.ListAvailableMentors(ctx, limit); return err })
	return out, err
}

func (s *Store) ReserveMentorSlot(ctx context.Context, mentorUserID string) (p *mentorship.MentorProfile, err error) {
	err = s.locked(func(v *view) error { p, err = v.ReserveMentorSlot(ctx, mentorUserID); return err })
	return p, err
}

func (s *Store) ReleaseMentorSlot(ctx context.Context, mentorUserID string) (p *mentorship.MentorProfile, err error) {
	err = s.locked(func(v *view) error { p, err = v.ReleaseMentorSlot(ctx, mentorUserID); return err })
	return p, err
}

func (s *Store) CreateMatch(ctx context.Context, match *mentorship.Match) error {
	return s.locked(func(v *view) error { return v.CreateMatch(ctx, match) })
}

func (s *Store) GetMatch(ctx context.Context, id string) (m *mentorship.Match, err error) {
	err = s.locked(func(v *view) error { m, err = v.GetMatch(ctx, id); return err })
	return m, err
}

func (s *Store) UpdateMatch(ctx context.Context, match *mentorship.Match) error {
	return s.locked(func(v *view) error { return v.UpdateMatch(ctx, match) })
}

func (s *Store) DeleteMatch(ctx context.Context, id string) error {
	return s.locked(func(v *view) error { return v.DeleteMatch(ctx, id) })
}

func (s *Store) HasActiveMatch(ctx context.Context, menteeUserID string) (ok bool, err error) {
	err = s.locked(func(v *view) error { ok, err = v.HasActiveMatch(ctx, menteeUserID); return err })
	return ok, err
}

func (s *Store) HasPendingRequest(ctx context.Context, menteeUserID, mentorUserID string) (ok bool, err error) {
	err = s.locked(func(v *view) error { ok, err = v.HasPendingRequest(ctx, menteeUserID, mentorUserID); return err })
	return ok, err
}

func (s *Store) ListMatchesByUser(ctx context.Context, userID string, statuses []mentorship.MatchStatus, page shared.Pagination) (out []*mentorship.Match, err error) {
	err = s.locked(func(v *view) error { out, err = v.ListMatchesByUser(ctx, userID, statuses, page); return err })
	return out, err
}

func (s *Store) CreateSession(ctx context.Context, session *mentorship.Session) error {
	return s.locked(func(v *view) error { return v.CreateSession(ctx, session) })
}

func (s *Store) GetSession(ctx context.Context, id string) (out *mentorship.Session, err error) {
	err = s.locked(func(v *view) error { out, err = v.GetSession(ctx, id); return err })
	return out, err
}

func (s *Store) UpdateSession(ctx context.Context, session *mentorship.Session) error {
	return s.locked(func(v *view) error { return v.UpdateSession(ctx, session) })
}

func (s *Store) ListSessionsByMatch(ctx context.Context, matchID string) (out []*mentorship.Session, err error) {
	err = s.locked(func(v *view) error { out, err = v.ListSessionsByMatch(ctx, matchID); return err })
	return out, err
}

var _ mentorship.CapacityReconciler = (*Store)(nil)

// ReconcileMentorCapacity recounts active matches per mentor and fixes the
// counters that drifted. Drifts are reported in mentor id order.
func (s *Store) ReconcileMentorCapacity(ctx context.Context) ([]mentorship.CapacityDrift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	active := make(map[string]int)
	for _, m := range s.data.matches {
		if m.Status == mentorship.MatchActive {
			active[m.MentorUserID]++
		}
	}

	var drifts []mentorship.CapacityDrift
	for id, p := range s.data.mentors {
		if p.CurrentMentees == active[id] {
			continue
		}
		d := mentorship.CapacityDrift{
			MentorUserID: id,
			Recorded:     p.CurrentMentees,
			Actual:       active[id],
			Applied:      min(active[id], p.MaxMentees),
			IsActive:     p.IsActive,
		}
		drifts = append(drifts, d)
		p.CurrentMentees = d.Applied
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].MentorUserID < drifts[j].MentorUserID })
	return drifts, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEW
// Unlocked operations over one dataset. Values are copied in and out so
// callers never alias stored records.
// ══════════════════════════════════════════════════════════════════════════════

type dataset struct {
	mentors  map[string]*mentorship.MentorProfile
	mentees  map[string]*mentorship.MenteeProfile
	matches  map[string]*mentorship.Match
	sessions map[string]*mentorship.Session
}

func newDataset() *dataset {
	return &dataset{
		mentors:  make(map[string]*mentorship.MentorProfile),
		mentees:  make(map[string]*mentorship.MenteeProfile),
		matches:  make(map[string]*mentorship.Match),
		sessions: make(map[string]*mentorship.Session),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.mentors {
		c.mentors[k] = copyMentor(v)
	}
	for k, v := range d.mentees {
		c.mentees[k] = copyMentee(v)
	}
	for k, v := range d.matches {
		c.matches[k] = copyMatch(v)
	}
	for k, v := range d.sessions {
		c.sessions[k] = copySession(v)
	}
	return c
}

type view struct {
	data *dataset
}

// WithinTx on a view is already transactional.
func (v *view) WithinTx(_ context.Context, fn func(tx mentorship.Store) error) error {
	return fn(v)
}

func (v *view) GetMentor(_ context.Context, userID string) (*mentorship.MentorProfile, error) {
	p, ok := v.data.mentors[userID]
	if !ok {
		return nil, mentorship.ErrMentorNotFound
	}
	return copyMentor(p), nil
}

// SaveMentor keeps the stored current_mentees on update; only the slot
// operations change it.
func (v *view) SaveMentor(_ context.Context, profile *mentorship.MentorProfile) error {
	c := copyMentor(profile)
	if existing, ok := v.data.mentors[profile.UserID]; ok {
		c.CurrentMentees = existing.CurrentMentees
	}
	if err := c.Validate(); err != nil {
		return err
	}
	v.data.mentors[c.UserID] = c
	return nil
}

func (v *view) GetMentee(_ context.Context, userID string) (*mentorship.MenteeProfile, error) {
	p, ok := v.data.mentees[userID]
	if !ok {
		return nil, mentorship.ErrMenteeNotFound
	}
	return copyMentee(p), nil
}

func (v *view) SaveMentee(_ context.Context, profile *mentorship.MenteeProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	v.data.mentees[profile.UserID] = copyMentee(profile)
	return nil
}

func (v *view) ListAvailableMentors(_ context.Context, limit int) ([]*mentorship.MentorProfile, error) {
	out := make([]*mentorship.MentorProfile, 0, len(v.data.mentors))
	for _, p := range v.data.mentors {
		if p.IsAvailable() {
			out = append(out, copyMentor(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *view) ReserveMentorSlot(_ context.Context, mentorUserID string) (*mentorship.MentorProfile, error) {
	p, ok := v.data.mentors[mentorUserID]
	if !ok {
		return nil, mentorship.ErrMentorNotFound
	}
	if !p.IsAvailable() {
		return nil, mentorship.ErrMentorUnavailable
	}
	p.CurrentMentees++
	return copyMentor(p), nil
}

func (v *view) ReleaseMentorSlot(_ context.Context, mentorUserID string) (*mentorship.MentorProfile, error) {
	p, ok := v.data.mentors[mentorUserID]
	if !ok {
		return nil, mentorship.ErrMentorNotFound
	}
	if p.CurrentMentees > 0 {
		p.CurrentMentees--
	}
	return copyMentor(p), nil
}

func (v *view) CreateMatch(_ context.Context, match *mentorship.Match) error {
	if _, exists := v.data.matches[match.ID]; exists {
		return shared.NewDomainError("mentorship", "CreateMatch", shared.ErrAlreadyExists, "match id already exists")
	}
	v.data.matches[match.ID] = copyMatch(match)
	return nil
}

func (v *view) GetMatch(_ context.Context, id string) (*mentorship.Match, error) {
	m, ok := v.data.matches[id]
	if !ok {
		return nil, mentorship.ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (v *view) UpdateMatch(_ context.Context, match *mentorship.Match) error {
	if _, ok := v.data.matches[match.ID]; !ok {
		return mentorship.ErrMatchNotFound
	}
	if match.Status == mentorship.MatchActive {
		for id, other := range v.data.matches {
			if id != match.ID && other.MenteeUserID == match.MenteeUserID && other.Status == mentorship.MatchActive {
				return mentorship.ErrAlreadyMatched
			}
		}
	}
	v.data.matches[match.ID] = copyMatch(match)
	return nil
}

func (v *view) DeleteMatch(_ context.Context, id string) error {
	if _, ok := v.data.matches[id]; !ok {
		return mentorship.ErrMatchNotFound
	}
	delete(v.data.matches, id)
	for sid, s := range v.data.sessions {
		if s.MatchID == id {
			delete(v.data.sessions, sid)
		}
	}
	return nil
}

func (v *view) HasActiveMatch(_ context.Context, menteeUserID string) (bool, error) {
	for _, m := range v.data.matches {
		if m.MenteeUserID == menteeUserID && m.Status == mentorship.MatchActive {
			return true, nil
		}
	}
	return false, nil
}

func (v *view) HasPendingRequest(_ context.Context, menteeUserID, mentorUserID string) (bool, error) {
	for _, m := range v.data.matches {
		if m.MenteeUserID == menteeUserID && m.MentorUserID == mentorUserID && m.Status == mentorship.MatchPending {
			return true, nil
		}
	}
	return false, nil
}

func (v *view) ListMatchesByUser(_ context.Context, userID string, statuses []mentorship.MatchStatus, page shared.Pagination) ([]*mentorship.Match, error) {
	wanted := make(map[mentorship.MatchStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	all := make([]*mentorship.Match, 0)
	for _, m := range v.data.matches {
		if !m.IsParty(userID) {
			continue
		}
		if len(wanted) > 0 && !wanted[m.Status] {
			continue
		}
		all = append(all, copyMatch(m))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	offset := page.Offset()
	if offset >= len(all) {
		return []*mentorship.Match{}, nil
	}
	end := offset + page.Limit()
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (v *view) CreateSession(_ context.Context, session *mentorship.Session) error {
	if _, ok := v.data.matches[session.MatchID]; !ok {
		return mentorship.ErrMatchNotFound
	}
	if _, exists := v.data.sessions[session.ID]; exists {
		return shared.NewDomainError("mentorship", "CreateSession", shared.ErrAlreadyExists, "session id already exists")
	}
	v.data.sessions[session.ID] = copySession(session)
	return nil
}

func (v *view) GetSession(_ context.Context, id string) (*mentorship.Session, error) {
	s, ok := v.data.sessions[id]
	if !ok {
		return nil, mentorship.ErrSessionNotFound
	}
	return copySession(s), nil
}

func (v *view) UpdateSession(_ context.Context, session *mentorship.Session) error {
	if _, ok := v.data.sessions[session.ID]; !ok {
		return mentorship.ErrSessionNotFound
	}
	v.data.sessions[session.ID] = copySession(session)
	return nil
}

func (v *view) ListSessionsByMatch(_ context.Context, matchID string) ([]*mentorship.Session, error) {
	out := make([]*mentorship.Session, 0)
	for _, s := range v.data.sessions {
		if s.MatchID == matchID {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// copies
// ──────────────────────────────────────────────────────────────────────────────

func copyMentor(p *mentorship.MentorProfile) *mentorship.MentorProfile {
	c := *p
	c.ExpertiseAreas = append(mentorship.TagSet(nil), p.ExpertiseAreas...)
	c.Skills = append(mentorship.TagSet(nil), p.Skills...)
	return &c
}

func copyMentee(p *mentorship.MenteeProfile) *mentorship.MenteeProfile {
	c := *p
	c.CareerInterests = append(mentorship.TagSet(nil), p.CareerInterests...)
	c.SkillsToDevelop = append(mentorship.TagSet(nil), p.SkillsToDevelop...)
	return &c
}

func copyMatch(m *mentorship.Match) *mentorship.Match {
	c := *m
	if m.MatchedAt != nil {
		t := *m.MatchedAt
		c.MatchedAt = &t
	}
	if m.EndedAt != nil {
		t := *m.EndedAt
		c.EndedAt = &t
	}
	return &c
}

func copySession(s *mentorship.Session) *mentorship.Session {
	c := *s
	if s.MentorRating != nil {
		r := *s.MentorRating
		c.MentorRating = &r
	}
	if s.MenteeRating != nil {
		r := *s.MenteeRating
		c.MenteeRating = &r
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
