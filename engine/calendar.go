/*
calendar.go - The Calendar aggregate

PURPOSE:
  Calendar composes one schedule, its rule, and its deviations into a single
  queryable value that answers "should run" with no store behind it. Both
  single-date and range queries use the exact same algorithm: check for a
  governing deviation first (deviations always win), otherwise evaluate the
  rule via the injected evaluator.

DESIGN:
  The evaluator is a capability, not data: it is supplied at construction,
  excluded from snapshots, and must be re-supplied on restore. RuleEngine
  satisfies it directly.
*/
package engine

import "encoding/json"

// RuleEvaluator is the capability the Calendar needs from a rule engine:
// given a rule and a date, decide whether the rule says run.
type RuleEvaluator interface {
	ShouldRun(rule Rule, date Date) (bool, error)
}

// RuleEvaluatorFunc adapts a function to the RuleEvaluator interface.
type RuleEvaluatorFunc func(rule Rule, date Date) (bool, error)

func (f RuleEvaluatorFunc) ShouldRun(rule Rule, date Date) (bool, error) {
	return f(rule, date)
}

// Calendar is an in-memory aggregate, reconstructible from a Snapshot.
type Calendar struct {
	schedule   Schedule
	rule       Rule
	deviations []Deviation
	evaluator  RuleEvaluator
}

func NewCalendar(schedule Schedule, rule Rule, deviations []Deviation, evaluator RuleEvaluator) *Calendar {
	return &Calendar{
		schedule:   schedule,
		rule:       rule,
		deviations: deviations,
		evaluator:  evaluator,
	}
}

func (c *Calendar) Schedule() Schedule      { return c.schedule }
func (c *Calendar) Rule() Rule              { return c.rule }
func (c *Calendar) Deviations() []Deviation { return c.deviations }

// ShouldRun answers for a single date. A governing deviation decides
// directly; otherwise the rule evaluator does.
func (c *Calendar) ShouldRun(date Date) (bool, error) {
	if dev := c.DeviationFor(date); dev != nil {
		return dev.Action == ForceRun, nil
	}
	return c.evaluator.ShouldRun(c.rule, date)
}

// Decision pairs a date with its run answer; range queries return these in
// chronological order.
type Decision struct {
	Date Date `json:"date"`
	Run  bool `json:"run"`
}

// ShouldRunRange answers for every date in [start, end] inclusive by calling
// ShouldRun per date, so single-date and range queries always agree. An
// inverted range yields an empty list.
func (c *Calendar) ShouldRunRange(start, end Date) ([]Decision, error) {
	var decisions []Decision
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		run, err := c.ShouldRun(d)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, Decision{Date: d, Run: run})
	}
	return decisions, nil
}

// DeviationFor returns the deviation governing the date, or nil. When
// multiple deviations share the date the latest-created wins, matching the
// applicator's last-applied-wins order.
func (c *Calendar) DeviationFor(date Date) *Deviation {
	var winner *Deviation
	for i := range c.deviations {
		dev := &c.deviations[i]
		if !dev.AppliesTo(date) {
			continue
		}
		if winner == nil || dev.CreatedAt.After(winner.CreatedAt) {
			winner = dev
		}
	}
	return winner
}

// Status returns the enriched per-day answer used by calendar views.
func (c *Calendar) Status(date Date) (RunStatus, error) {
	run, err := c.ShouldRun(date)
	if err != nil {
		return "", err
	}
	return runStatus(run, c.DeviationFor(date)), nil
}

// =============================================================================
// SNAPSHOT - Serialization without the evaluator
// =============================================================================

// Snapshot is the persistent form of a Calendar: schedule, rule, and
// deviations. The evaluator is behavior, not data, and is never serialized;
// restoring requires the caller to supply one again.
type Snapshot struct {
	Schedule   Schedule    `json:"schedule"`
	Rule       Rule        `json:"rule"`
	Deviations []Deviation `json:"deviations"`
}

func (c *Calendar) Snapshot() Snapshot {
	deviations := make([]Deviation, len(c.deviations))
	copy(deviations, c.deviations)
	return Snapshot{Schedule: c.schedule, Rule: c.rule, Deviations: deviations}
}

// MarshalJSON serializes the snapshot form.
func (c *Calendar) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}

// RestoreCalendar rebuilds a Calendar from a snapshot and a fresh evaluator.
func RestoreCalendar(snap Snapshot, evaluator RuleEvaluator) *Calendar {
	return NewCalendar(snap.Schedule, snap.Rule, snap.Deviations, evaluator)
}

// RestoreCalendarJSON rebuilds a Calendar from serialized snapshot bytes.
func RestoreCalendarJSON(data []byte, evaluator RuleEvaluator) (*Calendar, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return RestoreCalendar(snap, evaluator), nil
}
