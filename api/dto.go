/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import "github.com/warp/schedule-guard/engine"

// =============================================================================
// SCHEDULE TYPES
// =============================================================================

// ScheduleDTO represents a schedule in API responses.
type ScheduleDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Country     string `json:"country,omitempty"`
	Active      bool   `json:"active"`
	RuleType    string `json:"rule_type,omitempty"`
	RuleConfig  string `json:"rule_config,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateScheduleRequest is the request to create a schedule with its rule.
type CreateScheduleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Country     string `json:"country,omitempty"`
	RuleType    string `json:"rule_type"`
	RuleConfig  string `json:"rule_config,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

// UpdateScheduleRequest changes schedule metadata. Omitted fields are left
// untouched.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Country     *string `json:"country,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// UpdateRuleRequest replaces a schedule's rule, opening a new version.
type UpdateRuleRequest struct {
	RuleType   string `json:"rule_type"`
	RuleConfig string `json:"rule_config,omitempty"`
}

// VersionDTO represents one configuration epoch.
type VersionDTO struct {
	ID            string `json:"id"`
	ScheduleID    string `json:"schedule_id"`
	EffectiveFrom string `json:"effective_from"`
	Active        bool   `json:"active"`
}

// =============================================================================
// DEVIATION TYPES
// =============================================================================

// DeviationDTO represents a deviation in API responses.
type DeviationDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// AddDeviationRequest is the request to add an override.
type AddDeviationRequest struct {
	Date      string `json:"date"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// =============================================================================
// QUERY TYPES
// =============================================================================

// ShouldRunRequest asks whether the schedule runs on a date.
type ShouldRunRequest struct {
	Date string `json:"date"`
}

// ShouldRunDTO is the decision for one date.
type ShouldRunDTO struct {
	ScheduleID       string `json:"schedule_id"`
	Date             string `json:"date"`
	ShouldRun        bool   `json:"should_run"`
	DeviationApplied bool   `json:"deviation_applied"`
	Reason           string `json:"reason"`
}

// CalendarDayDTO is one day of the month view.
type CalendarDayDTO struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// MaterializeRequest asks for precomputation of a date range.
type MaterializeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MaterializeResponse lists the final run dates for the range.
type MaterializeResponse struct {
	ScheduleID string   `json:"schedule_id"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Dates      []string `json:"dates"`
}

// QueryLogDTO is one audit trail entry.
type QueryLogDTO struct {
	ID               string `json:"id"`
	QueryDate        string `json:"query_date"`
	ShouldRun        bool   `json:"should_run"`
	DeviationApplied bool   `json:"deviation_applied"`
	Reason           string `json:"reason,omitempty"`
	QueriedAt        string `json:"queried_at"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toDeviationDTO(d engine.Deviation) DeviationDTO {
	dto := DeviationDTO{
		ID:        d.ID.String(),
		Date:      d.Date.String(),
		Action:    string(d.Action),
		Reason:    d.Reason,
		CreatedBy: d.CreatedBy,
	}
	if !d.CreatedAt.IsZero() {
		dto.CreatedAt = d.CreatedAt.UTC().Format(timeFormat)
	}
	if d.ExpiresAt != nil {
		dto.ExpiresAt = d.ExpiresAt.String()
	}
	return dto
}
