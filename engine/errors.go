/*
errors.go - Centralized error types for the schedule engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (API, CLI) classify with the helpers at the bottom.

ERROR CATEGORIES:
  1. Lookup errors  - missing schedules, versions, rules
  2. Config errors  - malformed rule configurations
  3. Dispatch errors - unregistered rule types

Note that an inverted date range (from after to) is NOT an error anywhere in
this package: range operations return empty results for it.
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrScheduleNotFound is returned when a referenced schedule doesn't exist.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrNoActiveVersion is returned when a schedule has no active version.
	// Materialization checks this before touching the cache.
	ErrNoActiveVersion = errors.New("no active version for schedule")

	// ErrNoActiveRule is returned when an active version carries no rule.
	ErrNoActiveRule = errors.New("no active rule for schedule version")

	// ErrUnsupportedRuleType is returned when no handler is registered for a
	// rule's type. This fails fast; rules are never silently skipped.
	ErrUnsupportedRuleType = errors.New("unsupported rule type")

	// ErrDuplicateSchedule is returned when creating a schedule whose name is
	// already taken.
	ErrDuplicateSchedule = errors.New("schedule name already exists")

	// ErrInvalidDeviation is returned for deviations with an unknown action.
	ErrInvalidDeviation = errors.New("invalid deviation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRuleConfigError reports a malformed rule configuration: a cron
// expression that won't parse, broken JSON, an unknown day-of-week name, or
// an unparseable date string. The offending value is always included.
type InvalidRuleConfigError struct {
	Type   RuleType
	Config string
	Reason string
}

func (e *InvalidRuleConfigError) Error() string {
	return fmt.Sprintf("invalid %s config %q: %s", e.Type, e.Config, e.Reason)
}

func invalidConfig(ruleType RuleType, config, reason string) error {
	return &InvalidRuleConfigError{Type: ruleType, Config: config, Reason: reason}
}

// NotFoundError wraps a lookup sentinel with the identifier that missed.
type NotFoundError struct {
	What string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrNoActiveVersion) ||
		errors.Is(err, ErrNoActiveRule)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	var cfg *InvalidRuleConfigError
	return errors.As(err, &cfg) ||
		errors.Is(err, ErrUnsupportedRuleType) ||
		errors.Is(err, ErrDuplicateSchedule) ||
		errors.Is(err, ErrInvalidDeviation)
}
