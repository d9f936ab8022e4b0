package engine

import (
	"time"

	"github.com/robfig/cron/v3"
)

// =============================================================================
// CRON_EXPRESSION
// =============================================================================
//
// The rule config is a six-field cron expression (seconds minutes hours
// day-of-month month day-of-week). A date is a run date if the expression
// fires at least once on that calendar day; multiple fires collapse to one
// entry. Since this engine only cares about dates, typical configs pin the
// time fields, e.g. "0 0 0 15 * *" for the 15th of every month.

// cronParser accepts the full six-field format, seconds included.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

type cronExpressionHandler struct{}

func (cronExpressionHandler) RuleType() RuleType { return CronExpression }

func (h cronExpressionHandler) GenerateDates(rule Rule, from, to Date) ([]Date, error) {
	sched, err := h.parse(rule)
	if err != nil {
		return nil, err
	}

	var dates []Date
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if firesOn(sched, d) {
			dates = append(dates, d)
		}
	}
	return dates, nil
}

func (h cronExpressionHandler) ShouldRun(rule Rule, date Date) (bool, error) {
	sched, err := h.parse(rule)
	if err != nil {
		return false, err
	}
	return firesOn(sched, date), nil
}

func (cronExpressionHandler) parse(rule Rule) (cron.Schedule, error) {
	sched, err := cronParser.Parse(rule.Config)
	if err != nil {
		return nil, invalidConfig(CronExpression, rule.Config, err.Error())
	}
	return sched, nil
}

// firesOn reports whether the schedule fires at least once on the given
// civil date. Next() is exclusive of its argument, so start one second
// before midnight.
func firesOn(sched cron.Schedule, date Date) bool {
	dayStart := date.StartOfDay()
	next := sched.Next(dayStart.Add(-time.Second))
	return !next.IsZero() && next.Before(dayStart.AddDate(0, 0, 1))
}
