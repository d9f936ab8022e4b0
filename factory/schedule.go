/*
Package factory provides JSON to Go schedule conversion and built-in
schedule presets.

PURPOSE:
  Converts JSON schedule definitions into engine.Schedule, engine.Rule, and
  engine.Deviation objects. This enables schedule configuration without code
  changes - operations teams can define schedules in JSON, and the factory
  creates the proper Go structs.

JSON SCHEMA:
  {
    "name": "payroll-ach",
    "description": "ACH payroll submission",
    "country": "US",
    "rule": {
      "type": "WEEKDAYS_ONLY"
    },
    "deviations": [
      {"date": "2025-07-04", "action": "FORCE_SKIP", "reason": "Independence Day"}
    ]
  }

KEY FEATURES:
  - Validates the rule config through the real rule engine before returning
  - Wires schedule/version/rule/deviation identifiers consistently
  - Rejects unknown deviation actions and malformed dates

USAGE:
  f := factory.NewScheduleFactory()

  // From JSON string
  def, err := f.ParseSchedule(jsonString)

  // From built-in preset (recommended for ACH)
  def, err := f.BuildACHSchedule(2025)

  // Persist through the service layer or directly to a store
  store.SaveSchedule(ctx, def.Schedule)

SEE ALSO:
  - engine/types.go: Schedule, Rule, Deviation definitions
  - factory/ach.go: The ACH processing preset
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/schedule-guard/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of a schedule definition.
type ScheduleJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Country     string          `json:"country,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	Rule        RuleJSON        `json:"rule"`
	Deviations  []DeviationJSON `json:"deviations,omitempty"`
}

// RuleJSON represents the rule portion of a definition.
type RuleJSON struct {
	Type   string `json:"type"`
	Config string `json:"config,omitempty"`
}

// DeviationJSON represents one override in a definition.
type DeviationJSON struct {
	Date      string `json:"date"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// Definition is the fully-wired output: a schedule, its active version, the
// rule, and any deviations, all sharing consistent identifiers and ready to
// persist.
type Definition struct {
	Schedule   engine.Schedule
	Version    engine.Version
	Rule       engine.Rule
	Deviations []engine.Deviation
}

// =============================================================================
// FACTORY
// =============================================================================

// ScheduleFactory builds schedule definitions from JSON or presets.
type ScheduleFactory struct {
	engine *engine.RuleEngine
}

func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{engine: engine.NewRuleEngine()}
}

// ParseSchedule converts a JSON definition into a wired Definition. The rule
// config is validated through the rule engine, so a definition that parses
// here will also evaluate.
func (f *ScheduleFactory) ParseSchedule(jsonStr string) (*Definition, error) {
	var raw ScheduleJSON
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("invalid schedule JSON: %w", err)
	}
	return f.Build(raw)
}

// Build wires a parsed ScheduleJSON into domain objects.
func (f *ScheduleFactory) Build(raw ScheduleJSON) (*Definition, error) {
	if raw.Name == "" {
		return nil, fmt.Errorf("schedule definition requires a name")
	}

	rule := engine.Rule{
		ID:     engine.NewID(),
		Type:   engine.RuleType(raw.Rule.Type),
		Config: raw.Rule.Config,
		Active: true,
	}
	// Probe the rule once so malformed configs fail here, not at query time.
	if _, err := f.engine.ShouldRun(rule, engine.Today()); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", raw.Name, err)
	}

	now := time.Now().UTC()
	schedule := engine.Schedule{
		ID:          engine.NewID(),
		Name:        raw.Name,
		Description: raw.Description,
		Country:     raw.Country,
		Active:      true,
		CreatedBy:   raw.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	version := engine.Version{
		ID:            engine.NewID(),
		ScheduleID:    schedule.ID,
		EffectiveFrom: now,
		Active:        true,
	}
	rule.ScheduleID = schedule.ID
	rule.VersionID = version.ID
	rule.EffectiveFrom = engine.DateOf(now)

	deviations := make([]engine.Deviation, 0, len(raw.Deviations))
	for i, dj := range raw.Deviations {
		dev, err := f.buildDeviation(schedule.ID, version.ID, dj, now.Add(time.Duration(i)*time.Microsecond))
		if err != nil {
			return nil, fmt.Errorf("schedule %q deviation %d: %w", raw.Name, i, err)
		}
		deviations = append(deviations, dev)
	}

	return &Definition{
		Schedule:   schedule,
		Version:    version,
		Rule:       rule,
		Deviations: deviations,
	}, nil
}

func (f *ScheduleFactory) buildDeviation(scheduleID engine.ScheduleID, versionID engine.VersionID, dj DeviationJSON, createdAt time.Time) (engine.Deviation, error) {
	date, err := engine.ParseDate(dj.Date)
	if err != nil {
		return engine.Deviation{}, err
	}
	action := engine.DeviationAction(dj.Action)
	if !action.Valid() {
		return engine.Deviation{}, fmt.Errorf("unknown action %q", dj.Action)
	}

	dev := engine.Deviation{
		ID:         engine.NewID(),
		ScheduleID: scheduleID,
		VersionID:  versionID,
		Date:       date,
		Action:     action,
		Reason:     dj.Reason,
		CreatedAt:  createdAt,
	}
	if dj.ExpiresAt != "" {
		exp, err := engine.ParseDate(dj.ExpiresAt)
		if err != nil {
			return engine.Deviation{}, fmt.Errorf("expires_at: %w", err)
		}
		dev.ExpiresAt = &exp
	}
	return dev, nil
}
