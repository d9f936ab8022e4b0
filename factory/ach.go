/*
ach.go - ACH processing schedule preset

PURPOSE:
  Builds the canonical ACH processing schedule for a year: runs every
  weekday, with a FORCE_SKIP deviation for each US federal holiday carrying
  the holiday's name as the reason. The Federal Reserve does not settle on
  holidays, so payroll files submitted those days would sit unprocessed.

  Weekend holidays still get a deviation; it is a no-op on top of the
  weekday rule but keeps the holiday record visible in calendar views.
*/
package factory

import (
	"fmt"
	"time"

	"github.com/warp/schedule-guard/engine"
)

// BuildACHSchedule builds a weekday ACH schedule with skip deviations for
// every US federal holiday of the given year.
func (f *ScheduleFactory) BuildACHSchedule(year int) (*Definition, error) {
	def, err := f.Build(ScheduleJSON{
		Name:        fmt.Sprintf("ach-processing-%d", year),
		Description: fmt.Sprintf("ACH processing calendar for %d", year),
		Country:     "US",
		CreatedBy:   "factory",
		Rule:        RuleJSON{Type: string(engine.WeekdaysOnly)},
	})
	if err != nil {
		return nil, err
	}

	createdAt := def.Schedule.CreatedAt
	for i, holiday := range engine.USFederalHolidays(year) {
		def.Deviations = append(def.Deviations, engine.Deviation{
			ID:         engine.NewID(),
			ScheduleID: def.Schedule.ID,
			VersionID:  def.Version.ID,
			Date:       holiday,
			Action:     engine.ForceSkip,
			Reason:     engine.USFederalHolidayName(holiday),
			CreatedBy:  "factory",
			CreatedAt:  createdAt.Add(time.Duration(i) * time.Microsecond),
		})
	}
	return def, nil
}
