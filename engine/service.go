/*
service.go - Schedule management and query service

PURPOSE:
  Store-backed operations layered on the engine: schedule creation, rule
  updates (which open a new version), deviation management, should-run
  queries with audit logging, month calendar views, and next-run-date
  projection. The REST layer is a thin shell over this.

VERSIONING:
  Any rule change deactivates the current version and activates a fresh one
  in the same operation. Old versions are kept for history.
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ScheduleService manages schedules and answers queries against the store.
type ScheduleService struct {
	store  Store
	engine *RuleEngine
	log    zerolog.Logger
}

func NewScheduleService(store Store, engine *RuleEngine, log zerolog.Logger) *ScheduleService {
	return &ScheduleService{store: store, engine: engine, log: log}
}

// CreateScheduleInput carries everything needed to create a schedule with
// its initial rule. The initial version is activated in the same operation.
type CreateScheduleInput struct {
	Name        string
	Description string
	Country     string
	RuleType    RuleType
	RuleConfig  string
	CreatedBy   string
}

// CreateSchedule creates the schedule, its first active version, and its
// rule. Names are unique: a clash fails with ErrDuplicateSchedule.
func (s *ScheduleService) CreateSchedule(ctx context.Context, in CreateScheduleInput) (*Schedule, error) {
	existing, err := s.store.FindScheduleByName(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSchedule, in.Name)
	}

	// Reject bad rule configs up front, before anything is persisted.
	if err := s.validateRule(in.RuleType, in.RuleConfig); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	schedule := Schedule{
		ID:          NewID(),
		Name:        in.Name,
		Description: in.Description,
		Country:     in.Country,
		Active:      true,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveSchedule(ctx, schedule); err != nil {
		return nil, err
	}

	version := Version{
		ID:            NewID(),
		ScheduleID:    schedule.ID,
		EffectiveFrom: now,
		Active:        true,
	}
	rule := Rule{
		ID:            NewID(),
		ScheduleID:    schedule.ID,
		VersionID:     version.ID,
		Type:          in.RuleType,
		Config:        in.RuleConfig,
		EffectiveFrom: DateOf(now),
		Active:        true,
	}
	if err := s.store.SwapActiveVersion(ctx, version, rule); err != nil {
		// Undo the schedule row so the name is not left claimed by a
		// half-created schedule.
		if cleanupErr := s.store.DeleteSchedule(ctx, schedule.ID); cleanupErr != nil {
			s.log.Error().Err(cleanupErr).
				Stringer("schedule_id", schedule.ID).
				Msg("failed to undo schedule after version save failure")
		}
		return nil, err
	}

	s.log.Info().
		Stringer("schedule_id", schedule.ID).
		Str("name", schedule.Name).
		Str("rule_type", string(rule.Type)).
		Msg("schedule created")

	return &schedule, nil
}

// UpdateRule replaces a schedule's rule. When type or config actually
// change, the current version is deactivated and a new active version with
// the new rule is created; an unchanged rule is a no-op returning the
// current version.
func (s *ScheduleService) UpdateRule(ctx context.Context, scheduleID ScheduleID, ruleType RuleType, ruleConfig string) (*Version, error) {
	schedule, err := s.requireSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	if err := s.validateRule(ruleType, ruleConfig); err != nil {
		return nil, err
	}

	current, err := s.store.ActiveVersion(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	if current != nil {
		rules, err := s.store.ActiveRules(ctx, scheduleID, current.ID)
		if err != nil {
			return nil, err
		}
		if len(rules) == 1 && rules[0].Type == ruleType && rules[0].Config == ruleConfig {
			return current, nil
		}
	}

	now := time.Now().UTC()
	version := Version{
		ID:            NewID(),
		ScheduleID:    schedule.ID,
		EffectiveFrom: now,
		Active:        true,
	}
	rule := Rule{
		ID:            NewID(),
		ScheduleID:    schedule.ID,
		VersionID:     version.ID,
		Type:          ruleType,
		Config:        ruleConfig,
		EffectiveFrom: DateOf(now),
		Active:        true,
	}
	// The swap is atomic: a failure leaves the current version active.
	if err := s.store.SwapActiveVersion(ctx, version, rule); err != nil {
		return nil, err
	}

	s.log.Info().
		Stringer("schedule_id", scheduleID).
		Stringer("version_id", version.ID).
		Str("rule_type", string(ruleType)).
		Msg("rule updated, new version activated")

	return &version, nil
}

// UpdateScheduleInput carries the metadata fields to change. Nil fields
// are left untouched.
type UpdateScheduleInput struct {
	Name        *string
	Description *string
	Country     *string
	Active      *bool
}

// UpdateSchedule changes schedule metadata without touching versions or
// rules. A rename is checked against the unique-name rule.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, id ScheduleID, in UpdateScheduleInput) (*Schedule, error) {
	schedule, err := s.requireSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil && *in.Name != schedule.Name {
		existing, err := s.store.FindScheduleByName(ctx, *in.Name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSchedule, *in.Name)
		}
		schedule.Name = *in.Name
	}
	if in.Description != nil {
		schedule.Description = *in.Description
	}
	if in.Country != nil {
		schedule.Country = *in.Country
	}
	if in.Active != nil {
		schedule.Active = *in.Active
	}
	schedule.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveSchedule(ctx, *schedule); err != nil {
		return nil, err
	}

	s.log.Info().Stringer("schedule_id", id).Msg("schedule metadata updated")
	return schedule, nil
}

// AddDeviation attaches a FORCE_RUN/FORCE_SKIP override to the schedule's
// active version.
func (s *ScheduleService) AddDeviation(ctx context.Context, scheduleID ScheduleID, date Date, action DeviationAction, reason, createdBy string, expiresAt *Date) (*Deviation, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidDeviation, action)
	}

	if _, err := s.requireSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	version, err := s.requireActiveVersion(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	deviation := Deviation{
		ID:         NewID(),
		ScheduleID: scheduleID,
		VersionID:  version.ID,
		Date:       date,
		Action:     action,
		Reason:     reason,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
	if err := s.store.SaveDeviation(ctx, deviation); err != nil {
		return nil, err
	}

	s.log.Info().
		Stringer("schedule_id", scheduleID).
		Stringer("date", date).
		Str("action", string(action)).
		Msg("deviation added")

	return &deviation, nil
}

// ShouldRunResult is the answer to a should-run query, with the reasoning
// that also lands in the query log.
type ShouldRunResult struct {
	ScheduleID       ScheduleID `json:"scheduleId"`
	Date             Date       `json:"date"`
	ShouldRun        bool       `json:"shouldRun"`
	DeviationApplied bool       `json:"deviationApplied"`
	Reason           string     `json:"reason"`
}

// ShouldRun answers for one date using the schedule's active configuration
// and appends a query-log entry.
func (s *ScheduleService) ShouldRun(ctx context.Context, scheduleID ScheduleID, date Date) (*ShouldRunResult, error) {
	calendar, err := s.BuildCalendar(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	run, err := calendar.ShouldRun(date)
	if err != nil {
		return nil, err
	}

	result := &ShouldRunResult{
		ScheduleID: scheduleID,
		Date:       date,
		ShouldRun:  run,
	}
	if dev := calendar.DeviationFor(date); dev != nil {
		result.DeviationApplied = true
		result.Reason = dev.Reason
	} else {
		result.Reason = fmt.Sprintf("rule %s evaluated", calendar.Rule().Type)
	}

	entry := QueryLogEntry{
		ID:               NewID(),
		ScheduleID:       scheduleID,
		QueryDate:        date,
		ShouldRun:        run,
		DeviationApplied: result.DeviationApplied,
		Reason:           result.Reason,
		QueriedAt:        time.Now().UTC(),
	}
	if err := s.store.AppendQueryLog(ctx, entry); err != nil {
		// The answer is correct even if the audit write failed; surface the
		// failure in logs rather than to the caller.
		s.log.Error().Err(err).Stringer("schedule_id", scheduleID).Msg("query log append failed")
	}

	return result, nil
}

// BuildCalendar loads the schedule's active configuration into a Calendar
// backed by the rule engine.
func (s *ScheduleService) BuildCalendar(ctx context.Context, scheduleID ScheduleID) (*Calendar, error) {
	schedule, err := s.requireSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	version, err := s.requireActiveVersion(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	rules, err := s.store.ActiveRules(ctx, scheduleID, version.ID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, &NotFoundError{What: "active rule", ID: scheduleID.String(), Err: ErrNoActiveRule}
	}

	deviations, err := s.store.FindByScheduleAndVersion(ctx, scheduleID, version.ID)
	if err != nil {
		return nil, err
	}

	return NewCalendar(*schedule, rules[0], deviations, s.engine), nil
}

// DayStatus is one day of a month view.
type DayStatus struct {
	Date   Date      `json:"date"`
	Status RunStatus `json:"status"`
}

// CalendarMonth evaluates every day of the month through the Calendar and
// reports the enriched run status per day.
func (s *ScheduleService) CalendarMonth(ctx context.Context, scheduleID ScheduleID, year int, month time.Month) ([]DayStatus, error) {
	calendar, err := s.BuildCalendar(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	from := FirstOfMonth(year, month)
	to := NewDate(year, month, DaysInMonth(year, month))

	var days []DayStatus
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		status, err := calendar.Status(d)
		if err != nil {
			return nil, err
		}
		days = append(days, DayStatus{Date: d, Status: status})
	}
	return days, nil
}

// NextRunDates returns the next n run dates starting at from (inclusive),
// scanning forward through the Calendar. The scan is capped at ten years to
// terminate on never-running configurations.
func (s *ScheduleService) NextRunDates(ctx context.Context, scheduleID ScheduleID, from Date, n int) ([]Date, error) {
	calendar, err := s.BuildCalendar(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	limit := from.AddDays(366 * 10)
	var dates []Date
	for d := from; len(dates) < n && d.BeforeOrEqual(limit); d = d.AddDays(1) {
		run, err := calendar.ShouldRun(d)
		if err != nil {
			return nil, err
		}
		if run {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// Deviations lists the active version's deviations.
func (s *ScheduleService) Deviations(ctx context.Context, scheduleID ScheduleID) ([]Deviation, error) {
	if _, err := s.requireSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	version, err := s.requireActiveVersion(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	return s.store.FindByScheduleAndVersion(ctx, scheduleID, version.ID)
}

func (s *ScheduleService) validateRule(ruleType RuleType, config string) error {
	probe := Rule{Type: ruleType, Config: config}
	_, err := s.engine.ShouldRun(probe, Today())
	return err
}

func (s *ScheduleService) requireSchedule(ctx context.Context, id ScheduleID) (*Schedule, error) {
	schedule, err := s.store.FindSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, &NotFoundError{What: "schedule", ID: id.String(), Err: ErrScheduleNotFound}
	}
	return schedule, nil
}

func (s *ScheduleService) requireActiveVersion(ctx context.Context, scheduleID ScheduleID) (*Version, error) {
	version, err := s.store.ActiveVersion(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, &NotFoundError{What: "active version", ID: scheduleID.String(), Err: ErrNoActiveVersion}
	}
	return version, nil
}
