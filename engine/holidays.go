package engine

import "time"

// =============================================================================
// US FEDERAL HOLIDAYS - Deterministic per-year calculation
// =============================================================================
//
// Fixed dates: Jan 1, Jul 4, Nov 11, Dec 25, plus Jun 19 from 2021 onward.
// Floating dates are anchored to weekdays within a month (3rd Monday of
// January and so on). Holidays that land on a weekend are NOT shifted to an
// observed weekday; the raw calendar date is what the business-day rule
// excludes.

// USFederalHolidays returns all federal holidays for a year in chronological
// order: 10 holidays before 2021, 11 from 2021 onward (Juneteenth).
func USFederalHolidays(year int) []Date {
	holidays := []Date{
		NewDate(year, time.January, 1),   // New Year's Day
		NewDate(year, time.July, 4),      // Independence Day
		NewDate(year, time.November, 11), // Veterans Day
		NewDate(year, time.December, 25), // Christmas Day

		NthWeekdayOfMonth(year, time.January, time.Monday, 3),    // MLK Day
		NthWeekdayOfMonth(year, time.February, time.Monday, 3),   // Presidents' Day
		LastWeekdayOfMonth(year, time.May, time.Monday),          // Memorial Day
		NthWeekdayOfMonth(year, time.September, time.Monday, 1),  // Labor Day
		NthWeekdayOfMonth(year, time.October, time.Monday, 2),    // Columbus Day
		NthWeekdayOfMonth(year, time.November, time.Thursday, 4), // Thanksgiving
	}

	// Juneteenth became a federal holiday in 2021.
	if year >= 2021 {
		holidays = append(holidays, NewDate(year, time.June, 19))
	}

	sortDates(holidays)
	return holidays
}

// IsUSFederalHoliday reports whether the date is a federal holiday in its year.
func IsUSFederalHoliday(date Date) bool {
	for _, h := range USFederalHolidays(date.Year()) {
		if h.Equal(date) {
			return true
		}
	}
	return false
}

// USFederalHolidayName returns the human-readable holiday name, or "" if the
// date is not a federal holiday.
func USFederalHolidayName(date Date) string {
	year := date.Year()
	switch {
	case date.Equal(NewDate(year, time.January, 1)):
		return "New Year's Day"
	case date.Equal(NthWeekdayOfMonth(year, time.January, time.Monday, 3)):
		return "Martin Luther King Jr. Day"
	case date.Equal(NthWeekdayOfMonth(year, time.February, time.Monday, 3)):
		return "Presidents' Day"
	case date.Equal(LastWeekdayOfMonth(year, time.May, time.Monday)):
		return "Memorial Day"
	case year >= 2021 && date.Equal(NewDate(year, time.June, 19)):
		return "Juneteenth"
	case date.Equal(NewDate(year, time.July, 4)):
		return "Independence Day"
	case date.Equal(NthWeekdayOfMonth(year, time.September, time.Monday, 1)):
		return "Labor Day"
	case date.Equal(NthWeekdayOfMonth(year, time.October, time.Monday, 2)):
		return "Columbus Day"
	case date.Equal(NewDate(year, time.November, 11)):
		return "Veterans Day"
	case date.Equal(NthWeekdayOfMonth(year, time.November, time.Thursday, 4)):
		return "Thanksgiving Day"
	case date.Equal(NewDate(year, time.December, 25)):
		return "Christmas Day"
	default:
		return ""
	}
}

// IsUSFederalBusinessDay reports whether the date is a weekday that is not a
// federal holiday.
func IsUSFederalBusinessDay(date Date) bool {
	return !date.IsWeekend() && !IsUSFederalHoliday(date)
}
