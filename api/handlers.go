/*
handlers.go - HTTP API handlers for the schedule engine

PURPOSE:
  Exposes schedule management and run/skip queries via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Schedules:
    GET    /api/schedules                      List all schedules
    POST   /api/schedules                      Create schedule with its rule
    GET    /api/schedules/{id}                 Get schedule details
    PUT    /api/schedules/{id}                 Update schedule metadata
    PUT    /api/schedules/{id}/rule            Replace the rule (new version)
    GET    /api/schedules/{id}/versions        Version history

  Deviations:
    GET    /api/schedules/{id}/deviations      List active-version deviations
    POST   /api/schedules/{id}/deviations      Add an override

  Queries:
    POST   /api/schedules/{id}/should-run      Run/skip decision for a date
    GET    /api/schedules/{id}/calendar        Month view (?year=&month=)
    POST   /api/schedules/{id}/materialize     Precompute a date range
    GET    /api/schedules/{id}/query-log       Audit trail (?limit=)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Schedule/version/rule not found
  - 409: Duplicate schedule name
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/schedule-guard/engine"
)

const timeFormat = time.RFC3339

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        engine.Store
	Service      *engine.ScheduleService
	Materializer *engine.MaterializationService
}

// NewHandler wires a handler over the given store and services.
func NewHandler(store engine.Store, service *engine.ScheduleService, materializer *engine.MaterializationService) *Handler {
	return &Handler{
		Store:        store,
		Service:      service,
		Materializer: materializer,
	}
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ListSchedules returns all schedules.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Store.ListSchedules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list schedules", err)
		return
	}

	dtos := make([]ScheduleDTO, len(schedules))
	for i, s := range schedules {
		dtos[i] = h.toScheduleDTO(r, s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSchedule creates a schedule with its initial rule.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.RuleType == "" {
		writeError(w, http.StatusBadRequest, "name and rule_type are required", nil)
		return
	}

	schedule, err := h.Service.CreateSchedule(r.Context(), engine.CreateScheduleInput{
		Name:        req.Name,
		Description: req.Description,
		Country:     req.Country,
		RuleType:    engine.RuleType(req.RuleType),
		RuleConfig:  req.RuleConfig,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, "Failed to create schedule", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toScheduleDTO(r, *schedule))
}

// GetSchedule returns a single schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.Store.FindSchedule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get schedule", err)
		return
	}
	if schedule == nil {
		writeError(w, http.StatusNotFound, "Schedule not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.toScheduleDTO(r, *schedule))
}

// UpdateSchedule changes schedule metadata; versions and rules are left
// untouched.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name != nil && *req.Name == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty", nil)
		return
	}

	schedule, err := h.Service.UpdateSchedule(r.Context(), id, engine.UpdateScheduleInput{
		Name:        req.Name,
		Description: req.Description,
		Country:     req.Country,
		Active:      req.Active,
	})
	if err != nil {
		writeDomainError(w, "Failed to update schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toScheduleDTO(r, *schedule))
}

// UpdateRule replaces the schedule's rule, opening a new version.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RuleType == "" {
		writeError(w, http.StatusBadRequest, "rule_type is required", nil)
		return
	}

	version, err := h.Service.UpdateRule(r.Context(), id, engine.RuleType(req.RuleType), req.RuleConfig)
	if err != nil {
		writeDomainError(w, "Failed to update rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTO(*version))
}

// ListVersions returns the schedule's full version history.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	versions, err := h.Store.VersionsBySchedule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list versions", err)
		return
	}

	dtos := make([]VersionDTO, len(versions))
	for i, v := range versions {
		dtos[i] = toVersionDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DEVIATION HANDLERS
// =============================================================================

// ListDeviations returns the active version's deviations.
func (h *Handler) ListDeviations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	deviations, err := h.Service.Deviations(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list deviations", err)
		return
	}

	dtos := make([]DeviationDTO, len(deviations))
	for i, d := range deviations {
		dtos[i] = toDeviationDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddDeviation attaches an override to the active version.
func (h *Handler) AddDeviation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	var req AddDeviationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	var expiresAt *engine.Date
	if req.ExpiresAt != "" {
		exp, err := engine.ParseDate(req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expires_at", err)
			return
		}
		expiresAt = &exp
	}

	deviation, err := h.Service.AddDeviation(r.Context(), id, date,
		engine.DeviationAction(req.Action), req.Reason, req.CreatedBy, expiresAt)
	if err != nil {
		writeDomainError(w, "Failed to add deviation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDeviationDTO(*deviation))
}

// =============================================================================
// QUERY HANDLERS
// =============================================================================

// ShouldRun answers the run/skip question for one date and logs it.
func (h *Handler) ShouldRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	var req ShouldRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	result, err := h.Service.ShouldRun(r.Context(), id, date)
	if err != nil {
		writeDomainError(w, "Query failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ShouldRunDTO{
		ScheduleID:       result.ScheduleID.String(),
		Date:             result.Date.String(),
		ShouldRun:        result.ShouldRun,
		DeviationApplied: result.DeviationApplied,
		Reason:           result.Reason,
	})
}

// CalendarMonth returns the per-day status of one month.
func (h *Handler) CalendarMonth(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	days, err := h.Service.CalendarMonth(r.Context(), id, year, time.Month(month))
	if err != nil {
		writeDomainError(w, "Calendar view failed", err)
		return
	}

	dtos := make([]CalendarDayDTO, len(days))
	for i, day := range days {
		dtos[i] = CalendarDayDTO{Date: day.Date.String(), Status: string(day.Status)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Materialize precomputes and caches the run dates of a range.
func (h *Handler) Materialize(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	var req MaterializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := engine.ParseDate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := engine.ParseDate(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}

	dates, err := h.Materializer.MaterializeCalendar(r.Context(), id, from, to)
	if err != nil {
		writeDomainError(w, "Materialization failed", err)
		return
	}

	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	writeJSON(w, http.StatusOK, MaterializeResponse{
		ScheduleID: id.String(),
		From:       from.String(),
		To:         to.String(),
		Dates:      out,
	})
}

// QueryLog returns the audit trail, newest first.
func (h *Handler) QueryLog(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = parsed
	}

	entries, err := h.Store.QueryLogBySchedule(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read query log", err)
		return
	}

	dtos := make([]QueryLogDTO, len(entries))
	for i, e := range entries {
		dtos[i] = QueryLogDTO{
			ID:               e.ID.String(),
			QueryDate:        e.QueryDate.String(),
			ShouldRun:        e.ShouldRun,
			DeviationApplied: e.DeviationApplied,
			Reason:           e.Reason,
			QueriedAt:        e.QueriedAt.UTC().Format(timeFormat),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) scheduleID(w http.ResponseWriter, r *http.Request) (engine.ScheduleID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schedule id", err)
		return engine.ScheduleID{}, false
	}
	return id, true
}

// toScheduleDTO enriches the schedule with its active rule when available.
func (h *Handler) toScheduleDTO(r *http.Request, s engine.Schedule) ScheduleDTO {
	dto := ScheduleDTO{
		ID:          s.ID.String(),
		Name:        s.Name,
		Description: s.Description,
		Country:     s.Country,
		Active:      s.Active,
		CreatedBy:   s.CreatedBy,
	}
	if !s.CreatedAt.IsZero() {
		dto.CreatedAt = s.CreatedAt.UTC().Format(timeFormat)
	}

	if version, err := h.Store.ActiveVersion(r.Context(), s.ID); err == nil && version != nil {
		if rules, err := h.Store.ActiveRules(r.Context(), s.ID, version.ID); err == nil && len(rules) > 0 {
			dto.RuleType = string(rules[0].Type)
			dto.RuleConfig = rules[0].Config
		}
	}
	return dto
}

func toVersionDTO(v engine.Version) VersionDTO {
	return VersionDTO{
		ID:            v.ID.String(),
		ScheduleID:    v.ScheduleID.String(),
		EffectiveFrom: v.EffectiveFrom.UTC().Format(timeFormat),
		Active:        v.Active,
	}
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, engine.ErrDuplicateSchedule):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
