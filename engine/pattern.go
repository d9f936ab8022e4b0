package engine

import (
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// CUSTOM_DATES
// =============================================================================
//
// The rule config is a JSON array of ISO date strings. Generation intersects
// the literal set with the query range.

type customDatesHandler struct{}

func (customDatesHandler) RuleType() RuleType { return CustomDates }

func (h customDatesHandler) GenerateDates(rule Rule, from, to Date) ([]Date, error) {
	configured, err := h.parse(rule)
	if err != nil {
		return nil, err
	}

	var dates []Date
	for _, d := range configured {
		if d.AfterOrEqual(from) && d.BeforeOrEqual(to) {
			dates = append(dates, d)
		}
	}
	return sortedUnique(dates), nil
}

func (h customDatesHandler) ShouldRun(rule Rule, date Date) (bool, error) {
	configured, err := h.parse(rule)
	if err != nil {
		return false, err
	}
	for _, d := range configured {
		if d.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (customDatesHandler) parse(rule Rule) ([]Date, error) {
	var raw []string
	if err := json.Unmarshal([]byte(rule.Config), &raw); err != nil {
		return nil, invalidConfig(CustomDates, rule.Config, "expected a JSON array of date strings")
	}

	dates := make([]Date, 0, len(raw))
	for _, s := range raw {
		d, err := ParseDate(s)
		if err != nil {
			return nil, invalidConfig(CustomDates, rule.Config, err.Error())
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// =============================================================================
// MONTHLY_PATTERN
// =============================================================================
//
// The rule config is a JSON object, one of:
//
//	{"dayOfMonth": 15, "skipWeekends": true}
//	{"dayOfWeek": "FRIDAY", "weekOfMonth": "LAST"}
//
// One candidate date per month. Months lacking the requested day of month
// (day 31 in February) contribute nothing; the candidate is skipped, not
// shifted. skipWeekends moves a Saturday candidate to the following Monday
// (+2) and a Sunday candidate to Monday (+1).

type monthlyPatternConfig struct {
	DayOfMonth   *int    `json:"dayOfMonth"`
	SkipWeekends bool    `json:"skipWeekends"`
	DayOfWeek    *string `json:"dayOfWeek"`
	WeekOfMonth  *string `json:"weekOfMonth"`
}

type monthlyPatternHandler struct{}

func (monthlyPatternHandler) RuleType() RuleType { return MonthlyPattern }

func (h monthlyPatternHandler) GenerateDates(rule Rule, from, to Date) ([]Date, error) {
	cfg, err := h.parse(rule)
	if err != nil {
		return nil, err
	}

	var dates []Date

	// Visit each month touched by the range plus the month before it:
	// weekend rolling can push a late-month candidate forward across the
	// month boundary into [from, to]. Candidates landing outside the range
	// are discarded.
	for month := FirstOfMonth(from.Year(), from.Month()).AddMonths(-1); month.BeforeOrEqual(to); month = month.AddMonths(1) {
		candidate, err := h.candidateFor(rule, cfg, month.Year(), month.Month())
		if err != nil {
			return nil, err
		}
		if candidate.IsZero() {
			continue
		}
		if cfg.SkipWeekends {
			candidate = rollForwardToMonday(candidate)
		}
		if candidate.AfterOrEqual(from) && candidate.BeforeOrEqual(to) {
			dates = append(dates, candidate)
		}
	}
	return sortedUnique(dates), nil
}

func (h monthlyPatternHandler) ShouldRun(rule Rule, date Date) (bool, error) {
	// Weekend rolling can push a candidate from the end of one month into
	// the next, so evaluate the surrounding months and check for a hit.
	dates, err := h.GenerateDates(rule, FirstOfMonth(date.Year(), date.Month()).AddMonths(-1), date.AddDays(31))
	if err != nil {
		return false, err
	}
	for _, d := range dates {
		if d.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (h monthlyPatternHandler) candidateFor(rule Rule, cfg monthlyPatternConfig, year int, month time.Month) (Date, error) {
	if cfg.DayOfMonth != nil {
		if *cfg.DayOfMonth < 1 || *cfg.DayOfMonth > DaysInMonth(year, month) {
			return Date{}, nil // month has no such day
		}
		return NewDate(year, month, *cfg.DayOfMonth), nil
	}

	weekday, err := parseWeekday(rule, *cfg.DayOfWeek)
	if err != nil {
		return Date{}, err
	}

	switch strings.ToUpper(*cfg.WeekOfMonth) {
	case "FIRST":
		return NthWeekdayOfMonth(year, month, weekday, 1), nil
	case "SECOND":
		return NthWeekdayOfMonth(year, month, weekday, 2), nil
	case "THIRD":
		return NthWeekdayOfMonth(year, month, weekday, 3), nil
	case "FOURTH":
		return NthWeekdayOfMonth(year, month, weekday, 4), nil
	case "LAST":
		return LastWeekdayOfMonth(year, month, weekday), nil
	default:
		return Date{}, invalidConfig(MonthlyPattern, rule.Config,
			"weekOfMonth must be one of FIRST, SECOND, THIRD, FOURTH, LAST")
	}
}

func (monthlyPatternHandler) parse(rule Rule) (monthlyPatternConfig, error) {
	var cfg monthlyPatternConfig
	if strings.TrimSpace(rule.Config) == "" {
		return cfg, invalidConfig(MonthlyPattern, rule.Config, "configuration must not be empty")
	}
	if err := json.Unmarshal([]byte(rule.Config), &cfg); err != nil {
		return cfg, invalidConfig(MonthlyPattern, rule.Config, "expected a JSON object")
	}
	if cfg.DayOfMonth == nil && (cfg.DayOfWeek == nil || cfg.WeekOfMonth == nil) {
		return cfg, invalidConfig(MonthlyPattern, rule.Config,
			"must specify either dayOfMonth or both dayOfWeek and weekOfMonth")
	}
	return cfg, nil
}

var weekdayNames = map[string]time.Weekday{
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
	"SUNDAY":    time.Sunday,
}

func parseWeekday(rule Rule, name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToUpper(name)]
	if !ok {
		return 0, invalidConfig(MonthlyPattern, rule.Config,
			"dayOfWeek must be a full English weekday name, got "+name)
	}
	return wd, nil
}

func rollForwardToMonday(d Date) Date {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDays(2)
	case time.Sunday:
		return d.AddDays(1)
	default:
		return d
	}
}
