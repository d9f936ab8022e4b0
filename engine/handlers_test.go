/*
handlers_test.go - Rule handler and engine dispatch tests

Covers each rule type's generation/evaluation behavior plus the contract
shared by all handlers: sorted unique output, empty result for inverted
ranges, and agreement between GenerateDates and ShouldRun.
*/
package engine

import (
	"errors"
	"testing"
	"time"
)

func dates(strs ...string) []Date {
	out := make([]Date, len(strs))
	for i, s := range strs {
		out[i] = MustParseDate(s)
	}
	return out
}

func assertDates(t *testing.T, got []Date, want []Date) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d dates, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("date[%d]: expected %s, got %s", i, want[i], got[i])
		}
	}
}

// =============================================================================
// WEEKDAYS_ONLY
// =============================================================================

func TestWeekdaysOnlyGeneratesMondayThroughFriday(t *testing.T) {
	engine := NewRuleEngine()
	rule := Rule{Type: WeekdaysOnly}

	// GIVEN the week of 2025-01-06 (Monday) through 2025-01-12 (Sunday)
	// WHEN generating dates
	got, err := engine.GenerateDates(rule, MustParseDate("2025-01-06"), MustParseDate("2025-01-12"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN exactly the five weekdays come back
	assertDates(t, got, dates("2025-01-06", "2025-01-07", "2025-01-08", "2025-01-09", "2025-01-10"))
}

func TestWeekdaysOnlyShouldRun(t *testing.T) {
	engine := NewRuleEngine()
	rule := Rule{Type: WeekdaysOnly}

	monday := MustParseDate("2025-01-06")
	saturday := MustParseDate("2025-01-11")

	if run, err := engine.ShouldRun(rule, monday); err != nil || !run {
		t.Errorf("Monday: expected run, got %v (err %v)", run, err)
	}
	if run, err := engine.ShouldRun(rule, saturday); err != nil || run {
		t.Errorf("Saturday: expected skip, got %v (err %v)", run, err)
	}
}

// =============================================================================
// ALL_DAYS / NO_DAYS
// =============================================================================

func TestAllDaysGeneratesEveryDate(t *testing.T) {
	engine := NewRuleEngine()

	got, err := engine.GenerateDates(Rule{Type: AllDays}, MustParseDate("2025-02-26"), MustParseDate("2025-03-02"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, dates("2025-02-26", "2025-02-27", "2025-02-28", "2025-03-01", "2025-03-02"))
}

func TestNoDaysNeverRuns(t *testing.T) {
	engine := NewRuleEngine()

	got, err := engine.GenerateDates(Rule{Type: NoDays}, MustParseDate("2025-01-01"), MustParseDate("2025-12-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no dates, got %d", len(got))
	}

	run, err := engine.ShouldRun(Rule{Type: NoDays}, Today())
	if err != nil || run {
		t.Errorf("expected skip for every date, got %v (err %v)", run, err)
	}
}

// =============================================================================
// US_FEDERAL_RESERVE_BUSINESS_DAYS
// =============================================================================

func TestBusinessDaysExcludeWeekendsAndHolidays(t *testing.T) {
	engine := NewRuleEngine()
	rule := Rule{Type: USFederalReserveBusiness}

	cases := []struct {
		date string
		run  bool
		why  string
	}{
		{"2025-07-04", false, "Independence Day (Friday)"},
		{"2025-07-03", true, "ordinary Thursday"},
		{"2025-07-05", false, "Saturday"},
		{"2025-06-19", false, "Juneteenth, holiday since 2021"},
		{"2020-06-19", true, "Juneteenth not yet a holiday in 2020"},
		{"2025-11-27", false, "Thanksgiving (4th Thursday)"},
		{"2025-01-20", false, "MLK Day (3rd Monday)"},
	}

	for _, tc := range cases {
		run, err := engine.ShouldRun(rule, MustParseDate(tc.date))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.date, err)
		}
		if run != tc.run {
			t.Errorf("%s (%s): expected run=%v, got %v", tc.date, tc.why, tc.run, run)
		}
	}
}

// =============================================================================
// CRON_EXPRESSION
// =============================================================================

func TestCronWeekdayExpressionMatchesWeekdaysRule(t *testing.T) {
	engine := NewRuleEngine()
	from := MustParseDate("2025-01-01")
	to := MustParseDate("2025-01-07")

	// GIVEN a 9am weekday cron and the plain weekday rule
	cronDates, err := engine.GenerateDates(Rule{Type: CronExpression, Config: "0 0 9 * * MON-FRI"}, from, to)
	if err != nil {
		t.Fatalf("cron generation failed: %v", err)
	}
	weekdayDates, err := engine.GenerateDates(Rule{Type: WeekdaysOnly}, from, to)
	if err != nil {
		t.Fatalf("weekday generation failed: %v", err)
	}

	// THEN both rules select the same dates
	assertDates(t, cronDates, weekdayDates)
}

func TestCronMonthlyFifteenth(t *testing.T) {
	engine := NewRuleEngine()
	rule := Rule{Type: CronExpression, Config: "0 0 0 15 * *"}

	got, err := engine.GenerateDates(rule, MustParseDate("2025-01-01"), MustParseDate("2025-03-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, dates("2025-01-15", "2025-02-15", "2025-03-15"))
}

func TestCronInvalidExpressionFailsLoudly(t *testing.T) {
	engine := NewRuleEngine()
	rule := Rule{Type: CronExpression, Config: "not a cron"}

	_, err := engine.ShouldRun(rule, Today())
	if err == nil {
		t.Fatal("expected an error for a malformed expression")
	}
	var cfgErr *InvalidRuleConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected InvalidRuleConfigError, got %T: %v", err, err)
	}
	if cfgErr.Config != "not a cron" {
		t.Errorf("error should carry the offending config, got %q", cfgErr.Config)
	}
}

// =============================================================================
// CUSTOM_DATES
// =============================================================================

func TestCustomDatesIntersectsRange(t *testing.T) {
	engine := NewRuleEngine()
	rule := Rule{Type: CustomDates, Config: `["2025-03-15", "2025-01-10", "2025-06-01", "2025-01-10"]`}

	got, err := engine.GenerateDates(rule, MustParseDate("2025-01-01"), MustParseDate("2025-03-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Sorted, deduplicated, and restricted to the range.
	assertDates(t, got, dates("2025-01-10", "2025-03-15"))

	run, err := engine.ShouldRun(rule, MustParseDate("2025-06-01"))
	if err != nil || !run {
		t.Errorf("listed date outside the generation range should still run: %v (err %v)", run, err)
	}
}

func TestCustomDatesRejectsBadConfig(t *testing.T) {
	engine := NewRuleEngine()

	for _, config := range []string{`{"not": "an array"}`, `["2025-13-45"]`, ``} {
		_, err := engine.ShouldRun(Rule{Type: CustomDates, Config: config}, Today())
		var cfgErr *InvalidRuleConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("config %q: expected InvalidRuleConfigError, got %v", config, err)
		}
	}
}

// =============================================================================
// MONTHLY_PATTERN
// =============================================================================

func TestMonthlyPatternSkipsMonthsLackingTheDay(t *testing.T) {
	engine := NewRuleEngine()
	rule := Rule{Type: MonthlyPattern, Config: `{"dayOfMonth": 31}`}

	// GIVEN day 31 over January through April 2025
	got, err := engine.GenerateDates(rule, MustParseDate("2025-01-01"), MustParseDate("2025-04-30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN February and April contribute nothing; no shifting to day 28/30
	assertDates(t, got, dates("2025-01-31", "2025-03-31"))
}

func TestMonthlyPatternSkipWeekendsRollsForward(t *testing.T) {
	engine := NewRuleEngine()
	rule := Rule{Type: MonthlyPattern, Config: `{"dayOfMonth": 15, "skipWeekends": true}`}

	// 2025-06-15 is a Sunday; the run moves to Monday the 16th.
	got, err := engine.GenerateDates(rule, MustParseDate("2025-06-01"), MustParseDate("2025-06-30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, dates("2025-06-16"))

	// 2025-03-15 is a Saturday; the run moves to Monday the 17th.
	run, err := engine.ShouldRun(rule, MustParseDate("2025-03-17"))
	if err != nil || !run {
		t.Errorf("Saturday candidate should roll to Monday 2025-03-17: %v (err %v)", run, err)
	}
	run, err = engine.ShouldRun(rule, MustParseDate("2025-03-15"))
	if err != nil || run {
		t.Errorf("the raw Saturday date itself should not run: %v (err %v)", run, err)
	}
}

func TestMonthlyPatternWeekendRollCrossesMonthBoundary(t *testing.T) {
	engine := NewRuleEngine()
	rule := Rule{Type: MonthlyPattern, Config: `{"dayOfMonth": 31, "skipWeekends": true}`}

	// 2026-01-31 is a Saturday and rolls to Monday 2026-02-02. Generating
	// for February alone must still surface the rolled date.
	got, err := engine.GenerateDates(rule, MustParseDate("2026-02-01"), MustParseDate("2026-02-28"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, dates("2026-02-02"))

	run, err := engine.ShouldRun(rule, MustParseDate("2026-02-02"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !run {
		t.Error("single-date evaluation must agree with generation for 2026-02-02")
	}
}

func TestMonthlyPatternNthWeekday(t *testing.T) {
	engine := NewRuleEngine()
	rule := Rule{Type: MonthlyPattern, Config: `{"dayOfWeek": "FRIDAY", "weekOfMonth": "LAST"}`}

	got, err := engine.GenerateDates(rule, MustParseDate("2025-01-01"), MustParseDate("2025-03-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, got, dates("2025-01-31", "2025-02-28", "2025-03-28"))
}

func TestMonthlyPatternRejectsIncompleteConfig(t *testing.T) {
	engine := NewRuleEngine()

	bad := []string{
		``,
		`{}`,
		`{"dayOfWeek": "FRIDAY"}`,
		`{"dayOfWeek": "FREITAG", "weekOfMonth": "LAST"}`,
		`{"dayOfWeek": "FRIDAY", "weekOfMonth": "FIFTH"}`,
	}
	for _, config := range bad {
		_, err := engine.ShouldRun(Rule{Type: MonthlyPattern, Config: config}, Today())
		var cfgErr *InvalidRuleConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("config %q: expected InvalidRuleConfigError, got %v", config, err)
		}
	}
}

// =============================================================================
// SHARED CONTRACT
// =============================================================================

func TestInvertedRangeYieldsEmptyForEveryRuleType(t *testing.T) {
	engine := NewRuleEngine()
	from := MustParseDate("2025-06-30")
	to := MustParseDate("2025-06-01") // before from

	rules := []Rule{
		{Type: WeekdaysOnly},
		{Type: AllDays},
		{Type: NoDays},
		{Type: USFederalReserveBusiness},
		{Type: CronExpression, Config: "0 0 0 * * *"},
		{Type: CustomDates, Config: `["2025-06-15"]`},
		{Type: MonthlyPattern, Config: `{"dayOfMonth": 15}`},
	}
	for _, rule := range rules {
		got, err := engine.GenerateDates(rule, from, to)
		if err != nil {
			t.Errorf("%s: inverted range must not error: %v", rule.Type, err)
		}
		if len(got) != 0 {
			t.Errorf("%s: inverted range must be empty, got %d dates", rule.Type, len(got))
		}
	}
}

func TestGenerateAndShouldRunAgree(t *testing.T) {
	engine := NewRuleEngine()
	from := MustParseDate("2025-05-01")
	to := MustParseDate("2025-07-31")

	rules := []Rule{
		{Type: WeekdaysOnly},
		{Type: USFederalReserveBusiness},
		{Type: CronExpression, Config: "0 30 8 * * MON,WED"},
		{Type: CustomDates, Config: `["2025-05-05", "2025-07-04"]`},
		{Type: MonthlyPattern, Config: `{"dayOfMonth": 1, "skipWeekends": true}`},
	}

	for _, rule := range rules {
		generated, err := engine.GenerateDates(rule, from, to)
		if err != nil {
			t.Fatalf("%s: generation failed: %v", rule.Type, err)
		}
		inSet := make(map[Date]bool, len(generated))
		for _, d := range generated {
			inSet[d] = true
		}

		for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
			run, err := engine.ShouldRun(rule, d)
			if err != nil {
				t.Fatalf("%s %s: evaluation failed: %v", rule.Type, d, err)
			}
			if run != inSet[d] {
				t.Errorf("%s %s: ShouldRun=%v but generated=%v", rule.Type, d, run, inSet[d])
			}
		}
	}
}

func TestUnknownRuleTypeFails(t *testing.T) {
	engine := NewRuleEngine()

	_, err := engine.ShouldRun(Rule{Type: "LUNAR_PHASE"}, Today())
	if !errors.Is(err, ErrUnsupportedRuleType) {
		t.Fatalf("expected ErrUnsupportedRuleType, got %v", err)
	}
}

func TestDateHelpers(t *testing.T) {
	// Nth weekday: 3rd Monday of January 2025 is the 20th.
	if got := NthWeekdayOfMonth(2025, time.January, time.Monday, 3); !got.Equal(MustParseDate("2025-01-20")) {
		t.Errorf("3rd Monday of Jan 2025: got %s", got)
	}
	// A 5th Friday that doesn't exist comes back zero.
	if got := NthWeekdayOfMonth(2025, time.February, time.Friday, 5); !got.IsZero() {
		t.Errorf("expected zero date for missing 5th Friday, got %s", got)
	}
	// Last Monday of May 2025 is Memorial Day, the 26th.
	if got := LastWeekdayOfMonth(2025, time.May, time.Monday); !got.Equal(MustParseDate("2025-05-26")) {
		t.Errorf("last Monday of May 2025: got %s", got)
	}
	if got := DaysInMonth(2024, time.February); got != 29 {
		t.Errorf("Feb 2024 has 29 days, got %d", got)
	}
}
