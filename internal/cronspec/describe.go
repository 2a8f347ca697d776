package cronspec

import (
	"fmt"
	"strings"
	"time"
)

// Describe renders the schedule as a fixed-format human string:
//
//	"Every day at 09:00"
//	"Every Monday, Friday at 09:00"
//	"Every 1st, 15th of month at 09:00"
func (s Schedule) Describe() string {
	at := fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)

	switch {
	case len(s.DaysOfWeek) > 0:
		names := make([]string, len(s.DaysOfWeek))
		for i, d := range s.DaysOfWeek {
			names[i] = time.Weekday(d).String()
		}
		return fmt.Sprintf("Every %s at %s", strings.Join(names, ", "), at)

	case len(s.DaysOfMonth) > 0:
		days := make([]string, len(s.DaysOfMonth))
		for i, d := range s.DaysOfMonth {
			days[i] = ordinal(d)
		}
		return fmt.Sprintf("Every %s of month at %s", strings.Join(days, ", "), at)

	default:
		return fmt.Sprintf("Every day at %s", at)
	}
}

func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
