/*
handlers.go - Rule handlers for the zero-config rule types

PURPOSE:
  Each rule type has one handler implementing two operations: bulk date
  generation over an inclusive range, and single-date evaluation. The two
  must agree for any date inside a generated range.

CONTRACT:
  - GenerateDates(rule, from, to) returns a sorted, deduplicated date list;
    from > to yields an empty list, not an error.
  - ShouldRun(rule, date) evaluates one date without generating a range.
  - Handlers are pure and stateless; they are safe for concurrent use.

HANDLERS IN THIS FILE:
  WEEKDAYS_ONLY, ALL_DAYS, NO_DAYS, US_FEDERAL_RESERVE_BUSINESS_DAYS

SEE ALSO:
  - cron.go:    CRON_EXPRESSION
  - pattern.go: CUSTOM_DATES and MONTHLY_PATTERN
  - rules.go:   The registry that dispatches to these
*/
package engine

import "sort"

// RuleHandler evaluates one rule type.
type RuleHandler interface {
	// RuleType identifies which rule type this handler serves.
	RuleType() RuleType

	// GenerateDates returns every date in [from, to] on which the rule says
	// "run", sorted and deduplicated. An inverted range yields nil.
	GenerateDates(rule Rule, from, to Date) ([]Date, error)

	// ShouldRun evaluates the rule for a single date.
	ShouldRun(rule Rule, date Date) (bool, error)
}

// generateByPredicate walks the range and keeps dates matching the handler's
// single-date evaluation. Shared by every handler whose generation is just
// day-by-day filtering, which guarantees the two operations agree.
func generateByPredicate(h RuleHandler, rule Rule, from, to Date) ([]Date, error) {
	var dates []Date
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		run, err := h.ShouldRun(rule, d)
		if err != nil {
			return nil, err
		}
		if run {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

// =============================================================================
// WEEKDAYS_ONLY
// =============================================================================

type weekdaysOnlyHandler struct{}

func (weekdaysOnlyHandler) RuleType() RuleType { return WeekdaysOnly }

func (h weekdaysOnlyHandler) GenerateDates(rule Rule, from, to Date) ([]Date, error) {
	return generateByPredicate(h, rule, from, to)
}

func (weekdaysOnlyHandler) ShouldRun(_ Rule, date Date) (bool, error) {
	return !date.IsWeekend(), nil
}

// =============================================================================
// ALL_DAYS
// =============================================================================

type allDaysHandler struct{}

func (allDaysHandler) RuleType() RuleType { return AllDays }

func (h allDaysHandler) GenerateDates(rule Rule, from, to Date) ([]Date, error) {
	return generateByPredicate(h, rule, from, to)
}

func (allDaysHandler) ShouldRun(_ Rule, _ Date) (bool, error) {
	return true, nil
}

// =============================================================================
// NO_DAYS
// =============================================================================

// NO_DAYS never runs on its own; it exists to be combined with FORCE_RUN
// deviations for fully manual schedules.
type noDaysHandler struct{}

func (noDaysHandler) RuleType() RuleType { return NoDays }

func (noDaysHandler) GenerateDates(_ Rule, _, _ Date) ([]Date, error) {
	return nil, nil
}

func (noDaysHandler) ShouldRun(_ Rule, _ Date) (bool, error) {
	return false, nil
}

// =============================================================================
// US_FEDERAL_RESERVE_BUSINESS_DAYS
// =============================================================================

type usFederalBusinessDaysHandler struct{}

func (usFederalBusinessDaysHandler) RuleType() RuleType { return USFederalReserveBusiness }

func (h usFederalBusinessDaysHandler) GenerateDates(rule Rule, from, to Date) ([]Date, error) {
	return generateByPredicate(h, rule, from, to)
}

func (usFederalBusinessDaysHandler) ShouldRun(_ Rule, date Date) (bool, error) {
	return IsUSFederalBusinessDay(date), nil
}

// =============================================================================
// DATE LIST HELPERS
// =============================================================================

func sortDates(dates []Date) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}

// sortedUnique sorts a copy of the input and drops duplicates.
func sortedUnique(dates []Date) []Date {
	out := make([]Date, len(dates))
	copy(out, dates)
	sortDates(out)
	n := 0
	for i, d := range out {
		if i == 0 || !d.Equal(out[n-1]) {
			out[n] = d
			n++
		}
	}
	return out[:n]
}
