// Package dates resolves symbolic relative-date options against a reference
// instant.
//
// All calendar arithmetic happens in UTC and every result is normalized to
// 00:00:00.000 of the resolved day. Weeks are Monday-start; working days are
// Monday through Friday.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// Option is a symbolic relative-date option.
//
// The option set is closed. Simple options are the exported constants below;
// two families are parsed structurally:
//
//	next_<weekday>       e.g. "next_monday"
//	next_week_<weekday>  e.g. "next_week_friday"
//	<ordinal>_<weekday>_of_month  e.g. "third_tuesday_of_month"
//
// Calculate fails loudly on anything outside the set - an unknown option is a
// programming error, not a data edge case.
type Option string

const (
	OptionToday                 Option = "today"
	OptionTomorrow              Option = "tomorrow"
	OptionNextWorkingDay        Option = "next_working_day"
	OptionDayOfMonth            Option = "day_of_month"
	OptionLastDayOfMonth        Option = "last_day_of_month"
	OptionLastWorkingDayOfMonth Option = "last_working_day_of_month"
	OptionSpecificDate          Option = "specific_date"
)

// Month targets for the day-of-month option family.
const (
	MonthTargetThisMonth = "this_month"
	MonthTargetNextMonth = "next_month"
)

// Params carries the refinements some options require.
type Params struct {
	// Day is the day number for day_of_month and specific_date.
	Day int
	// Month is the calendar month for specific_date (1-12).
	Month int
	// MonthTarget selects this_month (default) or next_month for the
	// day-of-month option family.
	MonthTarget string
}

// UnknownOptionError reports an option outside the closed set. This path is
// unreachable for rules produced by the authoring flow; hitting it means a
// code/schema mismatch.
type UnknownOptionError struct {
	Option Option
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("unhandled date option %q", string(e.Option))
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

var ordinalNames = map[string]int{
	"first":  1,
	"second": 2,
	"third":  3,
	"fourth": 4,
	"last":   -1,
}

// Calculate resolves an option plus a reference instant into the start of the
// resolved calendar day.
func Calculate(option Option, ref time.Time, p Params) (time.Time, error) {
	ref = ref.UTC()
	day := StartOfDay(ref)

	switch option {
	case OptionToday:
		return day, nil

	case OptionTomorrow:
		return day.AddDate(0, 0, 1), nil

	case OptionNextWorkingDay:
		d := day.AddDate(0, 0, 1)
		for isWeekend(d) {
			d = d.AddDate(0, 0, 1)
		}
		return d, nil

	case OptionDayOfMonth:
		if p.Day < 1 {
			return time.Time{}, fmt.Errorf("day_of_month requires a positive day, got %d", p.Day)
		}
		anchor := monthAnchor(day, p.MonthTarget)
		return clampToMonth(anchor, p.Day), nil

	case OptionLastDayOfMonth:
		anchor := monthAnchor(day, p.MonthTarget)
		return lastDayOfMonth(anchor), nil

	case OptionLastWorkingDayOfMonth:
		anchor := monthAnchor(day, p.MonthTarget)
		d := lastDayOfMonth(anchor)
		for isWeekend(d) {
			d = d.AddDate(0, 0, -1)
		}
		return d, nil

	case OptionSpecificDate:
		return specificDate(day, p)
	}

	if wd, ok := strings.CutPrefix(string(option), "next_week_"); ok {
		if target, ok := weekdayNames[wd]; ok {
			return nextWeekWeekday(day, target), nil
		}
	}
	if wd, ok := strings.CutPrefix(string(option), "next_"); ok {
		if target, ok := weekdayNames[wd]; ok {
			return nextWeekday(day, target), nil
		}
	}
	if ordinal, wd, ok := parseOrdinalWeekday(string(option)); ok {
		anchor := monthAnchor(day, p.MonthTarget)
		return ordinalWeekdayOfMonth(anchor, ordinal, wd), nil
	}

	return time.Time{}, &UnknownOptionError{Option: option}
}

// StartOfDay truncates an instant to 00:00:00.000 UTC of its calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfDayMs is StartOfDay over epoch milliseconds.
func StartOfDayMs(ms int64) int64 {
	return StartOfDay(time.UnixMilli(ms)).UnixMilli()
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// nextWeekday returns the next occurrence of target strictly after ref's day.
// If ref falls on target, the result rolls a full week forward.
func nextWeekday(day time.Time, target time.Weekday) time.Time {
	delta := (int(target) - int(day.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return day.AddDate(0, 0, delta)
}

// nextWeekWeekday returns target within the calendar week after ref's week.
// Weeks start on Monday; Sunday is the last day of its week.
func nextWeekWeekday(day time.Time, target time.Weekday) time.Time {
	nextMonday := day.AddDate(0, 0, 8-mondayIndex(day.Weekday()))
	return nextMonday.AddDate(0, 0, mondayIndex(target)-1)
}

// mondayIndex maps a weekday to its 1-based position in a Monday-start week.
func mondayIndex(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// monthAnchor returns the first day of the targeted month.
func monthAnchor(day time.Time, target string) time.Time {
	anchor := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	if target == MonthTargetNextMonth {
		anchor = anchor.AddDate(0, 1, 0)
	}
	return anchor
}

// clampToMonth returns day n of the anchor's month, clamped to the month's
// last valid day.
func clampToMonth(anchor time.Time, n int) time.Time {
	last := lastDayOfMonth(anchor)
	if n > last.Day() {
		return last
	}
	return time.Date(anchor.Year(), anchor.Month(), n, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(anchor time.Time) time.Time {
	return time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1, -1)
}

func parseOrdinalWeekday(option string) (ordinal int, wd time.Weekday, ok bool) {
	rest, found := strings.CutSuffix(option, "_of_month")
	if !found {
		return 0, 0, false
	}
	ordName, wdName, found := strings.Cut(rest, "_")
	if !found {
		return 0, 0, false
	}
	ordinal, ok = ordinalNames[ordName]
	if !ok {
		return 0, 0, false
	}
	wd, ok = weekdayNames[wdName]
	if !ok {
		return 0, 0, false
	}
	return ordinal, wd, true
}

// ordinalWeekdayOfMonth returns the nth occurrence of wd in the anchor's
// month. ordinal -1 means last. An ordinal past the month's occurrences falls
// back to the last occurrence.
func ordinalWeekdayOfMonth(anchor time.Time, ordinal int, wd time.Weekday) time.Time {
	first := anchor.AddDate(0, 0, (int(wd)-int(anchor.Weekday())+7)%7)
	if ordinal == -1 {
		d := first
		for d.AddDate(0, 0, 7).Month() == anchor.Month() {
			d = d.AddDate(0, 0, 7)
		}
		return d
	}
	d := first.AddDate(0, 0, 7*(ordinal-1))
	if d.Month() != anchor.Month() {
		// Fewer occurrences than requested: fall back to the last one.
		return ordinalWeekdayOfMonth(anchor, -1, wd)
	}
	return d
}

// specificDate resolves an explicit month+day to its nearest future
// occurrence. Feb 29 maps to Feb 28 in non-leap years.
func specificDate(day time.Time, p Params) (time.Time, error) {
	if p.Month < 1 || p.Month > 12 {
		return time.Time{}, fmt.Errorf("specific_date requires a month in 1-12, got %d", p.Month)
	}
	if p.Day < 1 || p.Day > 31 {
		return time.Time{}, fmt.Errorf("specific_date requires a day in 1-31, got %d", p.Day)
	}

	candidate := specificDateInYear(day.Year(), p)
	if candidate.Before(day) {
		candidate = specificDateInYear(day.Year()+1, p)
	}
	return candidate, nil
}

func specificDateInYear(year int, p Params) time.Time {
	month := time.Month(p.Month)
	d := p.Day
	if month == time.February && d == 29 && !isLeapYear(year) {
		d = 28
	}
	anchor := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return clampToMonth(anchor, d)
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
