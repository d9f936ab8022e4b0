/*
Package engine decides whether a named recurring schedule should run on a
given calendar date.

PURPOSE:
  This package contains the rule evaluation and deviation-application engine
  used by batch, payroll, and ACH-style jobs that must respect business-day
  and holiday calendars with manual exceptions. A declarative rule (weekdays,
  cron, explicit dates, monthly pattern, US business days) plus a set of
  date-specific deviations produces a definitive run/skip answer for a single
  date or a date range.

KEY CONCEPTS IN THIS FILE (types.go):
  - Schedule: A named recurring process
  - Version:  An immutable snapshot boundary for a schedule's configuration
  - Rule:     The type-tagged definition of "normal" run days
  - Deviation: A manual FORCE_RUN/FORCE_SKIP exception for a single date
  - MaterializedEntry: A cached "runs on this date" record

DESIGN PRINCIPLES:
  1. Purity: rule handlers, the deviation applicator, and the Calendar
     aggregate are pure computations with no I/O
  2. Precedence: deviations always outrank rule evaluation
  3. Consistency: range queries reuse the single-date algorithm
  4. Auditability: every version change is retained, every should-run query
     can be logged

SEE ALSO:
  - handlers.go: Per-rule-type date generation
  - rules.go:    Handler registry and dispatch
  - deviation.go: Override application
  - calendar.go: The queryable aggregate
  - materialize.go: Bulk precomputation and cache replacement
*/
package engine

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ScheduleID = uuid.UUID
type VersionID = uuid.UUID

func NewID() uuid.UUID { return uuid.New() }

// =============================================================================
// SCHEDULE - A named recurring process
// =============================================================================

type Schedule struct {
	ID          ScheduleID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Country     string     `json:"country,omitempty"`
	Active      bool       `json:"active"`

	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// =============================================================================
// VERSION - Snapshot boundary for a schedule's rule + deviation set
// =============================================================================

// Version marks an immutable configuration epoch. At most one version is
// active per schedule; superseded versions are kept for audit history, never
// deleted.
type Version struct {
	ID            VersionID  `json:"id"`
	ScheduleID    ScheduleID `json:"scheduleId"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	Active        bool       `json:"active"`
}

// =============================================================================
// RULE - Declarative definition of normal run days
// =============================================================================

type RuleType string

const (
	WeekdaysOnly             RuleType = "WEEKDAYS_ONLY"
	AllDays                  RuleType = "ALL_DAYS"
	NoDays                   RuleType = "NO_DAYS"
	USFederalReserveBusiness RuleType = "US_FEDERAL_RESERVE_BUSINESS_DAYS"
	CronExpression           RuleType = "CRON_EXPRESSION"
	CustomDates              RuleType = "CUSTOM_DATES"
	MonthlyPattern           RuleType = "MONTHLY_PATTERN"
)

// Rule carries a type tag plus a free-form config payload whose grammar
// depends on the type (cron string, JSON date array, JSON pattern object).
// The zero-config types ignore Config entirely.
type Rule struct {
	ID            uuid.UUID  `json:"id"`
	ScheduleID    ScheduleID `json:"scheduleId"`
	VersionID     VersionID  `json:"versionId"`
	Type          RuleType   `json:"ruleType"`
	Config        string     `json:"ruleConfig,omitempty"`
	EffectiveFrom Date       `json:"effectiveFrom,omitempty"`
	Active        bool       `json:"active"`
}

// =============================================================================
// DEVIATION - Manual date-specific override
// =============================================================================

type DeviationAction string

const (
	ForceRun  DeviationAction = "FORCE_RUN"
	ForceSkip DeviationAction = "FORCE_SKIP"
)

func (a DeviationAction) Valid() bool {
	return a == ForceRun || a == ForceSkip
}

// Deviation forces a run or a skip on one date, outranking the rule. An
// optional expiry makes the override lapse for dates after ExpiresAt.
type Deviation struct {
	ID         uuid.UUID       `json:"id"`
	ScheduleID ScheduleID      `json:"scheduleId"`
	VersionID  VersionID       `json:"versionId"`
	Date       Date            `json:"date"`
	Action     DeviationAction `json:"action"`
	Reason     string          `json:"reason,omitempty"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	CreatedAt  time.Time       `json:"createdAt,omitempty"`
	ExpiresAt  *Date           `json:"expiresAt,omitempty"`
}

// AppliesTo reports whether the deviation governs the given date: the date
// must match exactly and the deviation must not have expired for it.
func (d Deviation) AppliesTo(date Date) bool {
	if !d.Date.Equal(date) {
		return false
	}
	if d.ExpiresAt != nil && d.ExpiresAt.Before(date) {
		return false
	}
	return true
}

// =============================================================================
// MATERIALIZED ENTRY - Cached run date
// =============================================================================

// MaterializedEntry records that a schedule runs on a date under a specific
// version. Absence of an entry means "does not run". Entries are replaced
// wholesale per (schedule, version, range), never patched incrementally.
type MaterializedEntry struct {
	ScheduleID ScheduleID `json:"scheduleId"`
	VersionID  VersionID  `json:"versionId"`
	OccursOn   Date       `json:"occursOn"`
}

// =============================================================================
// RUN STATUS - Enriched per-day answer for calendar views
// =============================================================================

type RunStatus string

const (
	StatusRun       RunStatus = "RUN"
	StatusSkip      RunStatus = "SKIP"
	StatusForceRun  RunStatus = "FORCE_RUN"
	StatusForceSkip RunStatus = "FORCE_SKIP"
)

func runStatus(shouldRun bool, deviation *Deviation) RunStatus {
	switch {
	case deviation != nil && shouldRun:
		return StatusForceRun
	case deviation != nil:
		return StatusForceSkip
	case shouldRun:
		return StatusRun
	default:
		return StatusSkip
	}
}

// =============================================================================
// QUERY LOG - Audit trail of should-run decisions
// =============================================================================

type QueryLogEntry struct {
	ID               uuid.UUID  `json:"id"`
	ScheduleID       ScheduleID `json:"scheduleId"`
	QueryDate        Date       `json:"queryDate"`
	ShouldRun        bool       `json:"shouldRun"`
	DeviationApplied bool       `json:"deviationApplied"`
	Reason           string     `json:"reason,omitempty"`
	QueriedAt        time.Time  `json:"queriedAt"`
}
