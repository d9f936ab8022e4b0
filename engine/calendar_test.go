/*
calendar_test.go - Calendar aggregate behavior

Covers deviation precedence in both directions, agreement between the
single-date and range queries, the enriched day status, and snapshot
round-tripping with a re-supplied evaluator.
*/
package engine

import (
	"testing"
	"time"
)

func testCalendar(rule Rule, deviations []Deviation) *Calendar {
	schedule := Schedule{ID: NewID(), Name: "test-schedule", Active: true}
	return NewCalendar(schedule, rule, deviations, NewRuleEngine())
}

func TestCalendarForceSkipBeatsRule(t *testing.T) {
	// GIVEN a weekday rule with a skip on Monday 2025-01-06
	calendar := testCalendar(Rule{Type: WeekdaysOnly}, []Deviation{
		deviationAt("2025-01-06", ForceSkip, time.Now().UTC()),
	})

	// WHEN asking about the Monday
	run, err := calendar.ShouldRun(MustParseDate("2025-01-06"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN the deviation overrides the rule
	if run {
		t.Error("FORCE_SKIP must beat a rule that says run")
	}
}

func TestCalendarForceRunBeatsRule(t *testing.T) {
	calendar := testCalendar(Rule{Type: WeekdaysOnly}, []Deviation{
		deviationAt("2025-01-11", ForceRun, time.Now().UTC()), // Saturday
	})

	run, err := calendar.ShouldRun(MustParseDate("2025-01-11"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !run {
		t.Error("FORCE_RUN must beat a rule that says skip")
	}
}

func TestCalendarExpiredDeviationFallsBackToRule(t *testing.T) {
	expiry := MustParseDate("2025-01-01")
	dev := deviationAt("2025-01-06", ForceSkip, time.Now().UTC())
	dev.ExpiresAt = &expiry

	calendar := testCalendar(Rule{Type: WeekdaysOnly}, []Deviation{dev})

	run, err := calendar.ShouldRun(MustParseDate("2025-01-06"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !run {
		t.Error("an expired deviation must not govern; the weekday rule says run")
	}
}

func TestCalendarDuplicateDeviationsLatestWins(t *testing.T) {
	base := time.Now().UTC()
	calendar := testCalendar(Rule{Type: NoDays}, []Deviation{
		deviationAt("2025-01-06", ForceSkip, base.Add(time.Hour)),
		deviationAt("2025-01-06", ForceRun, base),
	})

	run, err := calendar.ShouldRun(MustParseDate("2025-01-06"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run {
		t.Error("the later-created FORCE_SKIP should win the tie")
	}

	winner := calendar.DeviationFor(MustParseDate("2025-01-06"))
	if winner == nil || winner.Action != ForceSkip {
		t.Errorf("DeviationFor should surface the winning deviation, got %+v", winner)
	}
}

func TestCalendarRangeAgreesWithSingleDate(t *testing.T) {
	base := time.Now().UTC()
	calendar := testCalendar(Rule{Type: USFederalReserveBusiness}, []Deviation{
		deviationAt("2025-07-04", ForceRun, base),  // a holiday forced on
		deviationAt("2025-07-07", ForceSkip, base), // a Monday forced off
	})

	start := MustParseDate("2025-07-01")
	end := MustParseDate("2025-07-14")

	decisions, err := calendar.ShouldRunRange(start, end)
	if err != nil {
		t.Fatalf("range query failed: %v", err)
	}
	if len(decisions) != 14 {
		t.Fatalf("expected 14 decisions, got %d", len(decisions))
	}

	for i, dec := range decisions {
		if !dec.Date.Equal(start.AddDays(i)) {
			t.Errorf("decision %d out of order: %s", i, dec.Date)
		}
		single, err := calendar.ShouldRun(dec.Date)
		if err != nil {
			t.Fatalf("%s: single query failed: %v", dec.Date, err)
		}
		if single != dec.Run {
			t.Errorf("%s: range says %v, single says %v", dec.Date, dec.Run, single)
		}
	}
}

func TestCalendarInvertedRangeIsEmpty(t *testing.T) {
	calendar := testCalendar(Rule{Type: AllDays}, nil)

	decisions, err := calendar.ShouldRunRange(MustParseDate("2025-02-01"), MustParseDate("2025-01-01"))
	if err != nil {
		t.Fatalf("inverted range must not error: %v", err)
	}
	if len(decisions) != 0 {
		t.Errorf("inverted range must be empty, got %d decisions", len(decisions))
	}
}

func TestCalendarStatus(t *testing.T) {
	base := time.Now().UTC()
	calendar := testCalendar(Rule{Type: WeekdaysOnly}, []Deviation{
		deviationAt("2025-01-06", ForceSkip, base),
		deviationAt("2025-01-11", ForceRun, base),
	})

	cases := []struct {
		date string
		want RunStatus
	}{
		{"2025-01-07", StatusRun},       // plain weekday
		{"2025-01-12", StatusSkip},      // plain Sunday
		{"2025-01-06", StatusForceSkip}, // overridden weekday
		{"2025-01-11", StatusForceRun},  // overridden Saturday
	}
	for _, tc := range cases {
		got, err := calendar.Status(MustParseDate(tc.date))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.date, err)
		}
		if got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.date, tc.want, got)
		}
	}
}

func TestCalendarSnapshotRoundTrip(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)
	original := testCalendar(Rule{Type: WeekdaysOnly}, []Deviation{
		deviationAt("2025-01-06", ForceSkip, base),
	})

	// WHEN serializing and restoring with a fresh evaluator
	data, err := original.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	restored, err := RestoreCalendarJSON(data, NewRuleEngine())
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	// THEN the restored calendar answers identically across a range
	for d := MustParseDate("2025-01-01"); d.BeforeOrEqual(MustParseDate("2025-01-31")); d = d.AddDays(1) {
		want, err := original.ShouldRun(d)
		if err != nil {
			t.Fatalf("%s: original query failed: %v", d, err)
		}
		got, err := restored.ShouldRun(d)
		if err != nil {
			t.Fatalf("%s: restored query failed: %v", d, err)
		}
		if got != want {
			t.Errorf("%s: original=%v restored=%v", d, want, got)
		}
	}

	if restored.Schedule().Name != "test-schedule" {
		t.Errorf("schedule metadata lost: %q", restored.Schedule().Name)
	}
}

func TestRuleEvaluatorFunc(t *testing.T) {
	// A calendar works with any evaluator, not just the full engine.
	calendar := NewCalendar(Schedule{Name: "stub"}, Rule{Type: "ANY"}, nil,
		RuleEvaluatorFunc(func(_ Rule, date Date) (bool, error) {
			return date.Day()%2 == 0, nil
		}))

	run, err := calendar.ShouldRun(MustParseDate("2025-01-04"))
	if err != nil || !run {
		t.Errorf("even day should run: %v (err %v)", run, err)
	}
	run, err = calendar.ShouldRun(MustParseDate("2025-01-05"))
	if err != nil || run {
		t.Errorf("odd day should skip: %v (err %v)", run, err)
	}
}
