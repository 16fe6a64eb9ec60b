package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pittstate/pittstate-connect/internal/application/command"
	"github.com/pittstate/pittstate-connect/internal/application/query"
	"github.com/pittstate/pittstate-connect/internal/domain/mentorship"
	"github.com/pittstate/pittstate-connect/internal/domain/shared"
	"github.com/pittstate/pittstate-connect/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "PittState Connect API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":          "/health",
			"recommendations": "/api/v1/recommendations",
			"matches":         "/api/v1/matches",
			"points":          "/api/v1/points",
			"notifications":   "/ws",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type upsertMentorRequest struct {
	ExpertiseAreas   []string `json:"expertise_areas" validate:"max=50,dive,max=100"`
	Skills           []string `json:"skills" validate:"max=50,dive,max=100"`
	Industry         string   `json:"industry" validate:"max=100"`
	AvailabilityMode string   `json:"availability_mode" validate:"required,oneof=in_person virtual both"`
	YearsExperience  int      `json:"years_experience" validate:"gte=0,lte=80"`
	MaxMentees       int      `json:"max_mentees" validate:"required,gte=1,lte=50"`
	IsActive         *bool    `json:"is_active"`
}

type upsertMenteeRequest struct {
	CareerInterests      []string `json:"career_interests" validate:"max=50,dive,max=100"`
	SkillsToDevelop      []string `json:"skills_to_develop" validate:"max=50,dive,max=100"`
	TargetIndustry       string   `json:"target_industry" validate:"max=100"`
	PreferredMeetingMode string   `json:"preferred_meeting_mode" validate:"required,oneof=in_person virtual both"`
	IsActive             *bool    `json:"is_active"`
}

type mentorProfileResponse struct {
	UserID           string    `json:"user_id"`
	ExpertiseAreas   []string  `json:"expertise_areas"`
	Skills           []string  `json:"skills"`
	Industry         string    `json:"industry"`
	AvailabilityMode string    `json:"availability_mode"`
	YearsExperience  int       `json:"years_experience"`
	MaxMentees       int       `json:"max_mentees"`
	CurrentMentees   int       `json:"current_mentees"`
	IsActive         bool      `json:"is_active"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toMentorResponse(p *mentorship.MentorProfile) *mentorProfileResponse {
	if p == nil {
		return nil
	}
	return &mentorProfileResponse{
		UserID:           p.UserID,
		ExpertiseAreas:   []string(p.ExpertiseAreas),
		Skills:           []string(p.Skills),
		Industry:         p.Industry,
		AvailabilityMode: string(p.AvailabilityMode),
		YearsExperience:  p.YearsExperience,
		MaxMentees:       p.MaxMentees,
		CurrentMentees:   p.CurrentMentees,
		IsActive:         p.IsActive,
		UpdatedAt:        p.UpdatedAt,
	}
}

type menteeProfileResponse struct {
	UserID               string    `json:"user_id"`
	CareerInterests      []string  `json:"career_interests"`
	SkillsToDevelop      []string  `json:"skills_to_develop"`
	TargetIndustry       string    `json:"target_industry"`
	PreferredMeetingMode string    `json:"preferred_meeting_mode"`
	IsActive             bool      `json:"is_active"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// handleUpsertMentor handles PUT /api/v1/profiles/mentor
func (s *Server) handleUpsertMentor(w http.ResponseWriter, r *http.Request) {
	var req upsertMentorRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	profile, err := s.deps.Profiles.UpsertMentor(r.Context(), command.UpsertMentorProfileCommand{
		UserID:           actorID(r),
		ExpertiseAreas:   req.ExpertiseAreas,
		Skills:           req.Skills,
		Industry:         req.Industry,
		AvailabilityMode: mentorship.MeetingMode(req.AvailabilityMode),
		YearsExperience:  req.YearsExperience,
		MaxMentees:       req.MaxMentees,
		IsActive:         req.IsActive == nil || *req.IsActive,
	})
	if err != nil {
		s.writeDomainError(w, r, "UpsertMentor", err)
		return
	}

	writeJSON(w, http.StatusOK, toMentorResponse(profile))
}

// handleDeactivateMentor handles DELETE /api/v1/profiles/mentor
func (s *Server) handleDeactivateMentor(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.Profiles.DeactivateMentor(r.Context(), actorID(r))
	if err != nil {
		s.writeDomainError(w, r, "DeactivateMentor", err)
		return
	}
	writeJSON(w, http.StatusOK, toMentorResponse(profile))
}

// handleUpsertMentee handles PUT /api/v1/profiles/mentee
func (s *Server) handleUpsertMentee(w http.ResponseWriter, r *http.Request) {
	var req upsertMenteeRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	p, err := s.deps.Profiles.UpsertMentee(r.Context(), command.UpsertMenteeProfileCommand{
		UserID:               actorID(r),
		CareerInterests:      req.CareerInterests,
		SkillsToDevelop:      req.SkillsToDevelop,
		TargetIndustry:       req.TargetIndustry,
		PreferredMeetingMode: mentorship.MeetingMode(req.PreferredMeetingMode),
		IsActive:             req.IsActive == nil || *req.IsActive,
	})
	if err != nil {
		s.writeDomainError(w, r, "UpsertMentee", err)
		return
	}

	writeJSON(w, http.StatusOK, menteeProfileResponse{
		UserID:               p.UserID,
		CareerInterests:      []string(p.CareerInterests),
		SkillsToDevelop:      []string(p.SkillsToDevelop),
		TargetIndustry:       p.TargetIndustry,
		PreferredMeetingMode: string(p.PreferredMeetingMode),
		IsActive:             p.IsActive,
		UpdatedAt:            p.UpdatedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecommendations handles GET /api/v1/recommendations
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	q := query.RecommendMentorsQuery{
		MenteeUserID: actorID(r),
		Limit:        getQueryParamInt(r, "limit", 0),
	}
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		minScore, err := strconv.Atoi(raw)
		if err != nil || minScore < 0 || minScore > 100 {
			writeJSONError(w, http.StatusBadRequest, "validation_error", "min_score must be between 0 and 100")
			return
		}
		q.MinScore = &minScore
	}

	result, err := s.deps.RecommendMentors.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, "RecommendMentors", err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type requestMatchRequest struct {
	MentorUserID string `json:"mentor_user_id" validate:"required,max=128"`
	Message      string `json:"message" validate:"max=2000"`
}

type respondRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accept decline"`
}

// handleRequestMatch handles POST /api/v1/matches
func (s *Server) handleRequestMatch(w http.ResponseWriter, r *http.Request) {
	var req requestMatchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	actor := actorID(r)
	result, err := s.deps.RequestMatch.Handle(r.Context(), command.RequestMatchCommand{
		ActorUserID:   actor,
		MentorUserID:  req.MentorUserID,
		Message:       req.Message,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, "RequestMatch", err)
		return
	}

	writeJSON(w, http.StatusCreated, query.ToMatchDTO(result.Match, actor))
}

// handleListMatches handles GET /api/v1/matches?status=active,pending
func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	var statuses []mentorship.MatchStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, mentorship.MatchStatus(strings.ToLower(part)))
			}
		}
	}

	actor := actorID(r)
	result, err := s.deps.ListMatches.Handle(r.Context(), query.ListMatchesQuery{
		UserID:   actor,
		Statuses: statuses,
		Page:     getQueryParamInt(r, "page", 1),
		PageSize: getQueryParamInt(r, "page_size", 20),
	})
	if err != nil {
		s.writeDomainError(w, r, "ListMatches", err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result.Matches, &ResponseMeta{
		Page:     result.Page,
		PageSize: result.PageSize,
		HasMore:  len(result.Matches) == result.PageSize,
	})
}

type respondResponse struct {
	Match   query.MatchDTO         `json:"match"`
	Mentor  *mentorProfileResponse `json:"mentor,omitempty"`
	Rewards rewardReportResponse   `json:"rewards"`
}

// handleRespond handles POST /api/v1/matches/{id}/respond
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	decision, err := mentorship.ParseDecision(req.Decision)
	if err != nil {
		s.writeDomainError(w, r, "RespondToRequest", err)
		return
	}

	actor := actorID(r)
	result, err := s.deps.RespondToRequest.Handle(r.Context(), command.RespondToRequestCommand{
		MatchID:       r.PathValue("id"),
		ActorUserID:   actor,
		Decision:      decision,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, "RespondToRequest", err)
		return
	}

	writeJSON(w, http.StatusOK, respondResponse{
		Match:   query.ToMatchDTO(result.Match, actor),
		Mentor:  toMentorResponse(result.Mentor),
		Rewards: toRewardReport(result.Rewards),
	})
}

// handleEndMatch handles POST /api/v1/matches/{id}/end
func (s *Server) handleEndMatch(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	result, err := s.deps.EndMatch.Handle(r.Context(), command.EndMatchCommand{
		MatchID:       r.PathValue("id"),
		ActorUserID:   actor,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, "EndMatch", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"match":  query.ToMatchDTO(result.Match, actor),
		"mentor": toMentorResponse(result.Mentor),
	})
}

// handleDeleteMatch handles DELETE /admin/v1/matches/{id}
func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.DeleteMatch.Handle(r.Context(), command.DeleteMatchCommand{
		MatchID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, "DeleteMatch", err)
		return
	}

	s.logger.Info("match deleted by admin",
		"match_id", result.Match.ID,
		"slot_released", result.SlotReleased,
		"request_id", getRequestID(r.Context()),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"match":         query.ToMatchDTO(result.Match, ""),
		"slot_released": result.SlotReleased,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type scheduleSessionRequest struct {
	ScheduledTime   time.Time `json:"scheduled_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0,lte=480"`
	MeetingLink     string    `json:"meeting_link" validate:"omitempty,url,max=500"`
	Agenda          string    `json:"agenda" validate:"max=2000"`
}

type completeSessionRequest struct {
	Notes        string `json:"notes" validate:"max=5000"`
	MentorRating *int   `json:"mentor_rating" validate:"omitempty,min=1,max=5"`
	MenteeRating *int   `json:"mentee_rating" validate:"omitempty,min=1,max=5"`
}

// handleScheduleSession handles POST /api/v1/matches/{id}/sessions
func (s *Server) handleScheduleSession(w http.ResponseWriter, r *http.Request) {
	var req scheduleSessionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	actor := actorID(r)
	result, err := s.deps.ScheduleSession.Handle(r.Context(), command.ScheduleSessionCommand{
		MatchID:         r.PathValue("id"),
		ActorUserID:     actor,
		ScheduledTime:   req.ScheduledTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		MeetingLink:     req.MeetingLink,
		Agenda:          req.Agenda,
		CorrelationID:   getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, "ScheduleSession", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": query.ToSessionDTO(result.Session),
		"match":   query.ToMatchDTO(result.Match, actor),
	})
}

// handleListSessions handles GET /api/v1/matches/{id}/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListSessions.Handle(r.Context(), query.ListSessionsQuery{
		MatchID:     r.PathValue("id"),
		ActorUserID: actorID(r),
	})
	if err != nil {
		s.writeDomainError(w, r, "ListSessions", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCompleteSession handles POST /api/v1/sessions/{id}/complete
func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req completeSessionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	actor := actorID(r)
	result, err := s.deps.CompleteSession.Handle(r.Context(), command.CompleteSessionCommand{
		SessionID:     r.PathValue("id"),
		ActorUserID:   actor,
		Notes:         req.Notes,
		MentorRating:  req.MentorRating,
		MenteeRating:  req.MenteeRating,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, "CompleteSession", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": query.ToSessionDTO(result.Session),
		"match":   query.ToMatchDTO(result.Match, actor),
		"rewards": toRewardReport(result.Rewards),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetPoints handles GET /api/v1/points
func (s *Server) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetPoints.Handle(r.Context(), query.GetPointsQuery{UserID: actorID(r)})
	if err != nil {
		s.writeDomainError(w, r, "GetPoints", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type grantResponse struct {
	UserID string `json:"user_id"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

type rewardReportResponse struct {
	Awarded []grantResponse `json:"awarded"`
	Failed  []grantResponse `json:"failed"`
}

func toRewardReport(rep command.RewardReport) rewardReportResponse {
	out := rewardReportResponse{
		Awarded: make([]grantResponse, 0, len(rep.Awarded)),
		Failed:  make([]grantResponse, 0, len(rep.Failed)),
	}
	for _, g := range rep.Awarded {
		out.Awarded = append(out.Awarded, grantResponse{UserID: g.UserID, Amount: g.Amount, Reason: string(g.Reason)})
	}
	for _, f := range rep.Failed {
		out.Failed = append(out.Failed, grantResponse{
			UserID: f.UserID,
			Amount: f.Amount,
			Reason: string(f.Reason),
			Error:  f.Err.Error(),
		})
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING & ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// actorID returns the authenticated user. Routes registered through authed
// always have one.
func actorID(r *http.Request) string {
	id, _ := handlers.UserIDFromContext(r.Context())
	return id
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// On failure the error response is already written.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return false
		}
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON", err.Error())
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Request validation failed", describeValidation(err))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		p := fe.Field() + ": " + fe.Tag()
		if fe.Param() != "" {
			p += "=" + fe.Param()
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "; ")
}

// errorMapping pairs a specific lifecycle error with its response.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{mentorship.ErrNotAuthorized, http.StatusForbidden, "not_authorized"},
	{mentorship.ErrSelfMatch, http.StatusBadRequest, "self_match"},
	{mentorship.ErrAlreadyMatched, http.StatusConflict, "already_matched"},
	{mentorship.ErrMentorUnavailable, http.StatusConflict, "mentor_unavailable"},
	{mentorship.ErrDuplicateRequest, http.StatusConflict, "duplicate_request"},
	{mentorship.ErrMenteeInactive, http.StatusConflict, "mentee_inactive"},
	{mentorship.ErrInvalidState, http.StatusConflict, "invalid_state"},
}

// classifyError maps an application error to an HTTP status and code.
func classifyError(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	switch {
	case shared.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case shared.IsRetryable(err):
		return http.StatusServiceUnavailable, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"op", op,
			"error", err,
			"request_id", getRequestID(r.Context()),
		)
		writeJSONError(w, status, code, "The request could not be completed")
		return
	}

	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	writeJSONErrorWithDetails(w, status, code, message, err.Error())
}
