/*
deviation.go - Deviation application over rule-generated dates

PURPOSE:
  Turns a rule-generated date list plus the deviations in range into the
  final run-date list. FORCE_SKIP removes a date (no-op if absent),
  FORCE_RUN adds one (no-op if present). Deviations are applied in creation
  order, so when duplicates exist for one date the last-created wins, the
  same tie-break the Calendar aggregate uses for single-date queries.
*/
package engine

import (
	"context"
	"sort"
)

// DeviationApplicator adjusts rule dates with the deviations persisted for a
// schedule version.
type DeviationApplicator struct {
	deviations DeviationStore
}

func NewDeviationApplicator(deviations DeviationStore) *DeviationApplicator {
	return &DeviationApplicator{deviations: deviations}
}

// Apply selects the schedule version's deviations dated within [from, to]
// and applies them to ruleDates. The result is chronologically sorted and
// deduplicated. With no matching deviations the input is returned as a copy,
// untouched.
func (a *DeviationApplicator) Apply(ctx context.Context, scheduleID ScheduleID, versionID VersionID, ruleDates []Date, from, to Date) ([]Date, error) {
	deviations, err := a.deviations.FindByScheduleAndVersion(ctx, scheduleID, versionID)
	if err != nil {
		return nil, err
	}

	var inRange []Deviation
	for _, d := range deviations {
		if d.Date.AfterOrEqual(from) && d.Date.BeforeOrEqual(to) {
			inRange = append(inRange, d)
		}
	}

	if len(inRange) == 0 {
		out := make([]Date, len(ruleDates))
		copy(out, ruleDates)
		return out, nil
	}

	return ApplyDeviations(ruleDates, inRange), nil
}

// ApplyDeviations is the pure core: apply each deviation in creation order
// to the date set, then emit a sorted unique list. Deterministic and
// idempotent for a fixed input.
func ApplyDeviations(ruleDates []Date, deviations []Deviation) []Date {
	set := make(map[Date]bool, len(ruleDates))
	for _, d := range ruleDates {
		set[d] = true
	}

	ordered := make([]Deviation, len(deviations))
	copy(ordered, deviations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	for _, dev := range ordered {
		if !dev.AppliesTo(dev.Date) {
			continue // expired
		}
		switch dev.Action {
		case ForceSkip:
			delete(set, dev.Date)
		case ForceRun:
			set[dev.Date] = true
		}
	}

	out := make([]Date, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sortDates(out)
	return out
}
