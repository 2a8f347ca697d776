package dates

import "time"

// WorkingDaysFrom walks n working days forward from the reference day,
// skipping Saturdays and Sundays. n=0 returns the reference day itself when
// it is a working day, otherwise the following Monday.
//
// The result is always a Monday-Friday date at exact midnight UTC.
func WorkingDaysFrom(n int, from time.Time) time.Time {
	d := StartOfDay(from)
	if n <= 0 {
		for isWeekend(d) {
			d = d.AddDate(0, 0, 1)
		}
		return d
	}
	for i := 0; i < n; i++ {
		d = d.AddDate(0, 0, 1)
		for isWeekend(d) {
			d = d.AddDate(0, 0, 1)
		}
	}
	return d
}

// WorkingDaysBetween counts working days strictly between from and to,
// exclusive of both endpoint days. Returns 0 when to is not after from.
func WorkingDaysBetween(from, to time.Time) int {
	a := StartOfDay(from)
	b := StartOfDay(to)
	if !b.After(a) {
		return 0
	}
	count := 0
	for d := a.AddDate(0, 0, 1); d.Before(b); d = d.AddDate(0, 0, 1) {
		if !isWeekend(d) {
			count++
		}
	}
	return count
}
