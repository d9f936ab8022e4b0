/*
config.go - CLI configuration loading and calendar assembly

PURPOSE:
  Loads the schedules JSON file and turns one entry into an engine.Calendar
  ready to answer queries. The file uses the ruleType/ruleConfig key names
  shared with the REST payloads, so a config exported from the server can be
  fed to the CLI unchanged.
*/
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/warp/schedule-guard/engine"
	"github.com/warp/schedule-guard/factory"
)

// CLIConfig is the root of the schedules JSON file.
type CLIConfig struct {
	Schedules []ScheduleConfig `json:"schedules"`
}

// ScheduleConfig is one schedule entry.
type ScheduleConfig struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Rule        RuleConfig        `json:"rule"`
	Deviations  []DeviationConfig `json:"deviations,omitempty"`
}

// RuleConfig carries the rule type tag and its free-form config payload.
type RuleConfig struct {
	RuleType   string `json:"ruleType"`
	RuleConfig string `json:"ruleConfig,omitempty"`
}

// DeviationConfig is one override entry.
type DeviationConfig struct {
	Date   string `json:"date"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// loadConfig reads and parses the schedules file.
func loadConfig(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s (create a schedules.json or pass --config)", path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(cfg.Schedules) == 0 {
		return nil, fmt.Errorf("%s contains no schedules", path)
	}
	return &cfg, nil
}

// findSchedule matches by name, case-insensitively.
func (c *CLIConfig) findSchedule(name string) *ScheduleConfig {
	for i := range c.Schedules {
		if strings.EqualFold(c.Schedules[i].Name, name) {
			return &c.Schedules[i]
		}
	}
	return nil
}

func (c *CLIConfig) scheduleNames() []string {
	names := make([]string, len(c.Schedules))
	for i, s := range c.Schedules {
		names[i] = s.Name
	}
	return names
}

// buildCalendar wires a config entry into a queryable Calendar through the
// schedule factory, which also validates the rule config.
func buildCalendar(sc *ScheduleConfig) (*engine.Calendar, error) {
	raw := factory.ScheduleJSON{
		Name:        sc.Name,
		Description: sc.Description,
		Rule: factory.RuleJSON{
			Type:   sc.Rule.RuleType,
			Config: sc.Rule.RuleConfig,
		},
	}
	for _, dev := range sc.Deviations {
		raw.Deviations = append(raw.Deviations, factory.DeviationJSON{
			Date:   dev.Date,
			Action: dev.Action,
			Reason: dev.Reason,
		})
	}

	def, err := factory.NewScheduleFactory().Build(raw)
	if err != nil {
		return nil, err
	}
	return engine.NewCalendar(def.Schedule, def.Rule, def.Deviations, engine.NewRuleEngine()), nil
}

// parseQueryDate accepts ISO dates or the literal "today".
func parseQueryDate(input string) (engine.Date, error) {
	if strings.EqualFold(input, "today") {
		return engine.Today(), nil
	}
	d, err := engine.ParseDate(input)
	if err != nil {
		return engine.Date{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or 'today'", input)
	}
	return d, nil
}
