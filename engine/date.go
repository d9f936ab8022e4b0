package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Civil calendar date (no time of day, no timezone)
// =============================================================================

// Date is a timezone-less calendar date. Every decision this engine makes is
// keyed on civil dates, so the zero-clock UTC representation is an internal
// detail that never leaks into comparisons or arithmetic.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses an ISO-8601 date string (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

// MustParseDate is for literals in tests and factories.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.t.After(other.t) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.t.Before(other.t) }
func (d Date) IsZero() bool                  { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// StartOfDay returns the date as a wall-clock time at 00:00:00 UTC.
// Used by the cron handler, which evaluates expressions against times.
func (d Date) StartOfDay() time.Time { return d.t }

func (d Date) String() string { return d.t.Format(dateLayout) }

// JSON: dates travel as bare ISO strings, matching the snapshot and CLI
// config formats.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// MONTH HELPERS
// =============================================================================

func FirstOfMonth(year int, month time.Month) Date {
	return NewDate(year, month, 1)
}

func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NthWeekdayOfMonth returns the n-th occurrence (1-based) of a weekday in the
// given month. The result is zero if the month has no n-th occurrence.
func NthWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, n int) Date {
	first := FirstOfMonth(year, month)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	day := 1 + offset + (n-1)*7
	if day > DaysInMonth(year, month) {
		return Date{}
	}
	return NewDate(year, month, day)
}

// LastWeekdayOfMonth returns the final occurrence of a weekday in the month.
func LastWeekdayOfMonth(year int, month time.Month, weekday time.Weekday) Date {
	last := NewDate(year, month, DaysInMonth(year, month))
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDays(-offset)
}

// DateRange returns every date in [from, to] inclusive, empty when from > to.
func DateRange(from, to Date) []Date {
	if from.After(to) {
		return nil
	}
	var dates []Date
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}
