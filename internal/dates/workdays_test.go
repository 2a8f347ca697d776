package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkingDaysFrom(t *testing.T) {
	testCases := []struct {
		name string
		n    int
		from time.Time
		want time.Time
	}{
		{"zero from working day", 0, date(2024, time.January, 10), date(2024, time.January, 10)},
		{"zero from saturday", 0, date(2024, time.January, 13), date(2024, time.January, 15)},
		{"zero from sunday", 0, date(2024, time.January, 14), date(2024, time.January, 15)},
		{"one from friday", 1, date(2024, time.January, 12), date(2024, time.January, 15)},
		{"one from saturday", 1, date(2024, time.January, 13), date(2024, time.January, 15)},
		{"three across a weekend", 3, date(2024, time.January, 11), date(2024, time.January, 16)},
		{"five is one calendar week", 5, date(2024, time.January, 10), date(2024, time.January, 17)},
		{"ten spans two weekends", 10, date(2024, time.January, 10), date(2024, time.January, 24)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WorkingDaysFrom(tc.n, tc.from))
		})
	}
}

// Working-day closure: for all n and reference dates the result is a
// Monday-Friday date at exact midnight.
func TestWorkingDaysFrom_Closure(t *testing.T) {
	start := date(2023, time.December, 25)
	for offset := 0; offset < 21; offset++ {
		from := start.AddDate(0, 0, offset).Add(13 * time.Hour)
		for n := 0; n <= 8; n++ {
			got := WorkingDaysFrom(n, from)
			wd := got.Weekday()
			assert.NotEqual(t, time.Saturday, wd, "n=%d from=%s", n, from)
			assert.NotEqual(t, time.Sunday, wd, "n=%d from=%s", n, from)
			assert.Equal(t, StartOfDay(got), got, "n=%d from=%s", n, from)
		}
	}
}

func TestWorkingDaysBetween(t *testing.T) {
	testCases := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"same day", date(2024, time.January, 10), date(2024, time.January, 10), 0},
		{"adjacent days", date(2024, time.January, 10), date(2024, time.January, 11), 0},
		{"one strictly between", date(2024, time.January, 10), date(2024, time.January, 12), 1},
		{"weekend only between", date(2024, time.January, 12), date(2024, time.January, 15), 0},
		{"full week exclusive", date(2024, time.January, 8), date(2024, time.January, 15), 4},
		{"reversed range", date(2024, time.January, 15), date(2024, time.January, 8), 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WorkingDaysBetween(tc.from, tc.to))
		})
	}
}
