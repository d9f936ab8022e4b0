/*
materialize.go - Bulk precomputation of run dates

PURPOSE:
  Orchestrates the rule engine and deviation applicator against persisted
  rules/deviations, then replaces the cached materialized entries for the
  requested range. Preconditions (schedule exists, exactly one active
  version) are checked before any cache mutation.

CONCURRENCY:
  Concurrent materializations of the SAME schedule+version are serialized
  with a per-key mutex so interleaved delete/insert phases can't corrupt the
  cache, even for overlapping ranges. Different schedules never contend.
  The store's ReplaceRange supplies the transactional guarantee within one
  call.
*/
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// MaterializationService precomputes and caches run dates.
type MaterializationService struct {
	schedules    ScheduleStore
	versions     VersionStore
	rules        RuleStore
	materialized MaterializedStore

	engine     *RuleEngine
	applicator *DeviationApplicator
	log        zerolog.Logger

	mu    sync.Mutex
	locks map[lockKey]*sync.Mutex
}

type lockKey struct {
	schedule ScheduleID
	version  VersionID
}

func NewMaterializationService(store Store, engine *RuleEngine, applicator *DeviationApplicator, log zerolog.Logger) *MaterializationService {
	return &MaterializationService{
		schedules:    store,
		versions:     store,
		rules:        store,
		materialized: store,
		engine:       engine,
		applicator:   applicator,
		log:          log,
		locks:        make(map[lockKey]*sync.Mutex),
	}
}

// MaterializeCalendar computes the final run dates for [from, to], replaces
// the cached entries for that range, and returns the dates. Idempotent:
// repeating the call with unchanged rules/deviations leaves identical cache
// contents.
func (s *MaterializationService) MaterializeCalendar(ctx context.Context, scheduleID ScheduleID, from, to Date) ([]Date, error) {
	schedule, err := s.schedules.FindSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, &NotFoundError{What: "schedule", ID: scheduleID.String(), Err: ErrScheduleNotFound}
	}

	version, err := s.versions.ActiveVersion(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, &NotFoundError{What: "active version", ID: scheduleID.String(), Err: ErrNoActiveVersion}
	}

	lock := s.lockFor(scheduleID, version.ID)
	lock.Lock()
	defer lock.Unlock()

	rules, err := s.rules.ActiveRules(ctx, scheduleID, version.ID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, &NotFoundError{What: "active rule", ID: scheduleID.String(), Err: ErrNoActiveRule}
	}

	// Union the dates of every active rule.
	var ruleDates []Date
	for _, rule := range rules {
		dates, err := s.engine.GenerateDates(rule, from, to)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		ruleDates = append(ruleDates, dates...)
	}
	ruleDates = sortedUnique(ruleDates)

	finalDates, err := s.applicator.Apply(ctx, scheduleID, version.ID, ruleDates, from, to)
	if err != nil {
		return nil, err
	}

	if err := s.materialized.ReplaceRange(ctx, scheduleID, version.ID, from, to, finalDates); err != nil {
		return nil, fmt.Errorf("replacing materialized range: %w", err)
	}

	s.log.Info().
		Stringer("schedule_id", scheduleID).
		Stringer("version_id", version.ID).
		Stringer("from", from).
		Stringer("to", to).
		Int("dates", len(finalDates)).
		Msg("materialized calendar")

	return finalDates, nil
}

func (s *MaterializationService) lockFor(scheduleID ScheduleID, versionID VersionID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := lockKey{schedule: scheduleID, version: versionID}
	if s.locks[k] == nil {
		s.locks[k] = &sync.Mutex{}
	}
	return s.locks[k]
}
