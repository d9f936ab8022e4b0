/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the contract between the engine and whatever stores schedules,
  versions, rules, deviations, the materialized calendar cache, and the
  query log. Implementations: store/sqlite (production) and engine/store
  (in-memory, tests and the CLI path).

REPLACE-RANGE CONTRACT:
  MaterializedStore.ReplaceRange must atomically delete every cached entry
  for (schedule, version) dated within [from, to] and insert the new dates.
  A reader must never observe a partially-cleared range, and a failed call
  must leave the previous cache contents intact.
*/
package engine

import "context"

// ScheduleStore persists schedules.
type ScheduleStore interface {
	SaveSchedule(ctx context.Context, s Schedule) error
	FindSchedule(ctx context.Context, id ScheduleID) (*Schedule, error)
	FindScheduleByName(ctx context.Context, name string) (*Schedule, error)
	ListSchedules(ctx context.Context) ([]Schedule, error)
	// DeleteSchedule removes a schedule that has no versions yet, undoing
	// a half-created one. A schedule with version history is refused.
	DeleteSchedule(ctx context.Context, id ScheduleID) error
}

// VersionStore persists schedule versions. Versions are never deleted; a
// superseded version is deactivated and retained for history.
type VersionStore interface {
	SaveVersion(ctx context.Context, v Version) error
	// SwapActiveVersion deactivates the schedule's current active version
	// (if any) and persists the new version with its rule in one atomic
	// operation. A failure leaves the previous active version in place.
	SwapActiveVersion(ctx context.Context, v Version, r Rule) error
	ActiveVersion(ctx context.Context, scheduleID ScheduleID) (*Version, error)
	VersionsBySchedule(ctx context.Context, scheduleID ScheduleID) ([]Version, error)
}

// RuleStore persists rules keyed by schedule and version.
type RuleStore interface {
	SaveRule(ctx context.Context, r Rule) error
	// ActiveRules returns the active rules for a schedule version. The
	// simplified model keeps one rule per version, but the engine unions
	// several when present.
	ActiveRules(ctx context.Context, scheduleID ScheduleID, versionID VersionID) ([]Rule, error)
}

// DeviationStore persists deviations.
type DeviationStore interface {
	SaveDeviation(ctx context.Context, d Deviation) error
	// FindByScheduleAndVersion returns deviations in creation order.
	FindByScheduleAndVersion(ctx context.Context, scheduleID ScheduleID, versionID VersionID) ([]Deviation, error)
}

// MaterializedStore is the cache for precomputed run dates.
type MaterializedStore interface {
	// ReplaceRange atomically swaps the cached entries for the range.
	ReplaceRange(ctx context.Context, scheduleID ScheduleID, versionID VersionID, from, to Date, dates []Date) error
	// EntriesInRange returns cached entries sorted by date.
	EntriesInRange(ctx context.Context, scheduleID ScheduleID, versionID VersionID, from, to Date) ([]MaterializedEntry, error)
}

// QueryLogStore records should-run decisions for audit.
type QueryLogStore interface {
	AppendQueryLog(ctx context.Context, entry QueryLogEntry) error
	QueryLogBySchedule(ctx context.Context, scheduleID ScheduleID, limit int) ([]QueryLogEntry, error)
}

// Store is the full persistence surface, satisfied by both implementations.
type Store interface {
	ScheduleStore
	VersionStore
	RuleStore
	DeviationStore
	MaterializedStore
	QueryLogStore
}
