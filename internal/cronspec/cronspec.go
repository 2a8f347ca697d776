// Package cronspec parses and serializes the restricted 5-field cron subset
// used by scheduled triggers.
//
// The subset is deliberately narrow: a single literal minute and hour, no
// month filtering, and either a day-of-week set or a day-of-month set (never
// both). Anything outside the subset is rejected at parse time rather than
// silently reinterpreted.
package cronspec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Schedule is the structured form of a restricted cron expression.
//
// Exactly one of DaysOfWeek / DaysOfMonth may be populated. Both empty means
// every day. Day lists are always sorted ascending and de-duplicated, so two
// schedules are equal iff their expressions are equivalent.
type Schedule struct {
	Minute int `json:"minute"`
	Hour   int `json:"hour"`

	// DaysOfWeek holds cron weekday numbers, 0 (Sunday) through 6.
	DaysOfWeek []int `json:"daysOfWeek"`

	// DaysOfMonth holds day numbers 1-31.
	DaysOfMonth []int `json:"daysOfMonth"`
}

// ParseError reports a rejected cron expression.
type ParseError struct {
	Expression string
	Reason     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid cron expression %q: %s", e.Expression, e.Reason)
}

// unsupported special characters across all fields.
var unsupportedChars = []string{"L", "W", "#", "?"}

// Parse parses a 5-field cron expression into a Schedule.
//
// Rejected outright: 6-field (seconds) expressions, the special characters
// L W # ?, any month field other than *, non-literal minute or hour, and
// expressions populating both day-of-week and day-of-month.
func Parse(expr string) (Schedule, error) {
	fail := func(reason string) (Schedule, error) {
		return Schedule{}, &ParseError{Expression: expr, Reason: reason}
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fail(fmt.Sprintf("expected 5 fields, got %d", len(fields)))
	}
	for _, f := range fields {
		for _, ch := range unsupportedChars {
			if strings.Contains(f, ch) {
				return fail(fmt.Sprintf("unsupported character %q", ch))
			}
		}
	}

	minuteField, hourField, domField, monthField, dowField := fields[0], fields[1], fields[2], fields[3], fields[4]

	if monthField != "*" {
		return fail("month filtering is not supported")
	}

	minute, err := parseLiteral(minuteField, 0, 59)
	if err != nil {
		return fail(fmt.Sprintf("minute: %v", err))
	}
	hour, err := parseLiteral(hourField, 0, 23)
	if err != nil {
		return fail(fmt.Sprintf("hour: %v", err))
	}

	daysOfMonth, err := parseDaySet(domField, 1, 31)
	if err != nil {
		return fail(fmt.Sprintf("day-of-month: %v", err))
	}
	daysOfWeek, err := parseDaySet(dowField, 0, 7)
	if err != nil {
		return fail(fmt.Sprintf("day-of-week: %v", err))
	}
	daysOfWeek = normalizeSunday(daysOfWeek)

	if len(daysOfMonth) > 0 && len(daysOfWeek) > 0 {
		return fail("day-of-month and day-of-week are mutually exclusive")
	}

	return Schedule{
		Minute:      minute,
		Hour:        hour,
		DaysOfWeek:  daysOfWeek,
		DaysOfMonth: daysOfMonth,
	}, nil
}

// String renders the schedule as a cron expression. It is the exact
// structural inverse of Parse for any schedule Parse produced: day sets are
// rendered as canonical comma lists, so Parse(s.String()) == s.
func (s Schedule) String() string {
	dom := "*"
	if len(s.DaysOfMonth) > 0 {
		dom = joinInts(s.DaysOfMonth)
	}
	dow := "*"
	if len(s.DaysOfWeek) > 0 {
		dow = joinInts(s.DaysOfWeek)
	}
	return fmt.Sprintf("%d %d %s * %s", s.Minute, s.Hour, dom, dow)
}

// Matches reports whether the schedule fires in the given minute.
func (s Schedule) Matches(minute, hour, dayOfMonth int, weekday int) bool {
	if minute != s.Minute || hour != s.Hour {
		return false
	}
	if len(s.DaysOfWeek) > 0 {
		return containsInt(s.DaysOfWeek, weekday)
	}
	if len(s.DaysOfMonth) > 0 {
		return containsInt(s.DaysOfMonth, dayOfMonth)
	}
	return true
}

// parseLiteral accepts a single integer literal within [min, max]. Steps,
// ranges, lists and * are rejected - they would expand to multiple values.
func parseLiteral(field string, min, max int) (int, error) {
	if strings.ContainsAny(field, "*/,-") {
		return 0, fmt.Errorf("only a single literal value is supported, got %q", field)
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", field)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value %d out of range %d-%d", v, min, max)
	}
	return v, nil
}

// parseDaySet expands a day field into a sorted, de-duplicated ascending
// list. Supported forms: *, literals, comma lists, ranges a-b, and stepped
// ranges a-b/n or */n. "*" expands to the empty list (no restriction).
func parseDaySet(field string, min, max int) ([]int, error) {
	if field == "*" {
		return nil, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return nil, fmt.Errorf("empty list element")
		}
		values, err := parseDayPart(part, min, max)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			seen[v] = true
		}
	}

	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

func parseDayPart(part string, min, max int) ([]int, error) {
	rangeExpr := part
	step := 1
	if base, stepStr, ok := strings.Cut(part, "/"); ok {
		rangeExpr = base
		n, err := strconv.Atoi(stepStr)
		if err != nil {
			return nil, fmt.Errorf("step is not a number: %q", stepStr)
		}
		if n <= 0 {
			return nil, fmt.Errorf("step must be positive, got %d", n)
		}
		step = n
	}

	var lo, hi int
	switch {
	case rangeExpr == "*":
		lo, hi = min, max
	case strings.Contains(rangeExpr, "-"):
		loStr, hiStr, _ := strings.Cut(rangeExpr, "-")
		var err error
		if lo, err = parseBound(loStr, min, max); err != nil {
			return nil, err
		}
		if hi, err = parseBound(hiStr, min, max); err != nil {
			return nil, err
		}
		if lo > hi {
			return nil, fmt.Errorf("descending range %d-%d", lo, hi)
		}
	default:
		v, err := parseBound(rangeExpr, min, max)
		if err != nil {
			return nil, err
		}
		if step != 1 {
			return nil, fmt.Errorf("step requires a range, got %q", part)
		}
		return []int{v}, nil
	}

	// A step larger than the range still yields the range start.
	var values []int
	for v := lo; v <= hi; v += step {
		values = append(values, v)
	}
	return values, nil
}

func parseBound(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value %d out of range %d-%d", v, min, max)
	}
	return v, nil
}

// normalizeSunday folds cron's alternate Sunday (7) onto 0.
func normalizeSunday(days []int) []int {
	if len(days) == 0 {
		return days
	}
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d == 7 {
			d = 0
		}
		seen[d] = true
	}
	out := make([]int, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
