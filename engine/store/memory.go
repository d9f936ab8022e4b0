// Package store provides an in-memory implementation of the engine's
// persistence interfaces, used by tests and the store-less CLI path.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/schedule-guard/engine"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	schedules    map[engine.ScheduleID]engine.Schedule
	versions     map[engine.ScheduleID][]engine.Version
	rules        map[versionKey][]engine.Rule
	deviations   map[versionKey][]engine.Deviation
	materialized map[versionKey][]engine.MaterializedEntry
	queryLog     map[engine.ScheduleID][]engine.QueryLogEntry
}

type versionKey struct {
	Schedule engine.ScheduleID
	Version  engine.VersionID
}

func NewMemory() *Memory {
	return &Memory{
		schedules:    make(map[engine.ScheduleID]engine.Schedule),
		versions:     make(map[engine.ScheduleID][]engine.Version),
		rules:        make(map[versionKey][]engine.Rule),
		deviations:   make(map[versionKey][]engine.Deviation),
		materialized: make(map[versionKey][]engine.MaterializedEntry),
		queryLog:     make(map[engine.ScheduleID][]engine.QueryLogEntry),
	}
}

// =============================================================================
// SCHEDULES
// =============================================================================

func (m *Memory) SaveSchedule(_ context.Context, s engine.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = s
	return nil
}

func (m *Memory) FindSchedule(_ context.Context, id engine.ScheduleID) (*engine.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.schedules[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) FindScheduleByName(_ context.Context, name string) (*engine.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.schedules {
		if s.Name == name {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListSchedules(_ context.Context) ([]engine.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteSchedule(_ context.Context, id engine.ScheduleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.versions[id]) > 0 {
		return fmt.Errorf("schedule %s still has versions", id)
	}
	delete(m.schedules, id)
	return nil
}

// =============================================================================
// VERSIONS
// =============================================================================

func (m *Memory) SaveVersion(_ context.Context, v engine.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions := m.versions[v.ScheduleID]
	for i := range versions {
		if versions[i].ID == v.ID {
			versions[i] = v
			return nil
		}
	}
	m.versions[v.ScheduleID] = append(versions, v)
	return nil
}

// SwapActiveVersion performs the deactivate and insert under one lock
// acquisition, so no reader sees the schedule without an active version.
func (m *Memory) SwapActiveVersion(_ context.Context, v engine.Version, r engine.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions := m.versions[v.ScheduleID]
	for i := range versions {
		versions[i].Active = false
	}
	m.versions[v.ScheduleID] = append(versions, v)

	k := versionKey{Schedule: r.ScheduleID, Version: r.VersionID}
	m.rules[k] = append(m.rules[k], r)
	return nil
}

func (m *Memory) ActiveVersion(_ context.Context, scheduleID engine.ScheduleID) (*engine.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.versions[scheduleID] {
		if v.Active {
			v := v
			return &v, nil
		}
	}
	return nil, nil
}

func (m *Memory) VersionsBySchedule(_ context.Context, scheduleID engine.ScheduleID) ([]engine.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Version, len(m.versions[scheduleID]))
	copy(out, m.versions[scheduleID])
	return out, nil
}

// =============================================================================
// RULES
// =============================================================================

func (m *Memory) SaveRule(_ context.Context, r engine.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := versionKey{Schedule: r.ScheduleID, Version: r.VersionID}
	m.rules[k] = append(m.rules[k], r)
	return nil
}

func (m *Memory) ActiveRules(_ context.Context, scheduleID engine.ScheduleID, versionID engine.VersionID) ([]engine.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Rule
	for _, r := range m.rules[versionKey{Schedule: scheduleID, Version: versionID}] {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// DEVIATIONS
// =============================================================================

func (m *Memory) SaveDeviation(_ context.Context, d engine.Deviation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := versionKey{Schedule: d.ScheduleID, Version: d.VersionID}
	m.deviations[k] = append(m.deviations[k], d)
	return nil
}

func (m *Memory) FindByScheduleAndVersion(_ context.Context, scheduleID engine.ScheduleID, versionID engine.VersionID) ([]engine.Deviation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.deviations[versionKey{Schedule: scheduleID, Version: versionID}]
	out := make([]engine.Deviation, len(src))
	copy(out, src)
	return out, nil
}

// =============================================================================
// MATERIALIZED CALENDAR
// =============================================================================

// ReplaceRange swaps entries under one lock acquisition, which makes the
// delete+insert atomic with respect to readers.
func (m *Memory) ReplaceRange(_ context.Context, scheduleID engine.ScheduleID, versionID engine.VersionID, from, to engine.Date, dates []engine.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := versionKey{Schedule: scheduleID, Version: versionID}

	var kept []engine.MaterializedEntry
	for _, e := range m.materialized[k] {
		if e.OccursOn.Before(from) || e.OccursOn.After(to) {
			kept = append(kept, e)
		}
	}
	for _, d := range dates {
		kept = append(kept, engine.MaterializedEntry{
			ScheduleID: scheduleID,
			VersionID:  versionID,
			OccursOn:   d,
		})
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].OccursOn.Before(kept[j].OccursOn) })
	m.materialized[k] = kept
	return nil
}

func (m *Memory) EntriesInRange(_ context.Context, scheduleID engine.ScheduleID, versionID engine.VersionID, from, to engine.Date) ([]engine.MaterializedEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.MaterializedEntry
	for _, e := range m.materialized[versionKey{Schedule: scheduleID, Version: versionID}] {
		if e.OccursOn.AfterOrEqual(from) && e.OccursOn.BeforeOrEqual(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// =============================================================================
// QUERY LOG
// =============================================================================

func (m *Memory) AppendQueryLog(_ context.Context, entry engine.QueryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryLog[entry.ScheduleID] = append(m.queryLog[entry.ScheduleID], entry)
	return nil
}

func (m *Memory) QueryLogBySchedule(_ context.Context, scheduleID engine.ScheduleID, limit int) ([]engine.QueryLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.queryLog[scheduleID]
	// Newest first.
	out := make([]engine.QueryLogEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
