// Package schedule decides when time-driven rules fire. The evaluator is a
// pure function over a rule, a clock reading, and the rule's high-water
// mark; the scheduler wraps it in a ticking service that persists progress
// and hands due rules to the engine.
package schedule

import (
	"time"

	"boardflow/internal/board"
	"boardflow/internal/cronspec"
	"boardflow/internal/dates"
	"boardflow/internal/rule"
)

const (
	minuteMs = int64(time.Minute / time.Millisecond)
	dayMs    = 24 * 60 * minuteMs

	// maxCatchUpMs bounds how far back a cron catch-up scan reaches after
	// downtime. Anything older fires once from the clamped window start
	// rather than replaying every missed occurrence.
	maxCatchUpMs = 25 * 60 * minuteMs

	// defaultLookbackMs seeds the evaluation window for rules that have
	// never been evaluated.
	defaultLookbackMs = dayMs
)

// Decision is the outcome of evaluating one scheduled rule at one instant.
// HighWater is the new LastEvaluatedAt to persist when the rule is due; it
// is zero otherwise. A non-due rule's mark must not move, or an interval
// anchor would never accumulate a full period between ticks.
type Decision struct {
	Due       bool
	HighWater int64
}

// Evaluate decides whether a scheduled rule is due at now (epoch ms). tasks
// are the rule's project tasks, consulted only by the due-date-relative
// kind; other kinds ignore them.
//
// Evaluation is windowed: a rule is due when its firing instant falls in
// (LastEvaluatedAt, now]. A nil high-water mark opens the window one day
// back, so a rule created moments ago does not instantly replay history.
func Evaluate(now int64, r *rule.Rule, tasks []*board.Task) Decision {
	var d Decision
	t := r.Trigger
	if !t.Scheduled() || t.Schedule == nil {
		return d
	}

	windowStart := now - defaultLookbackMs
	if t.LastEvaluatedAt != nil {
		windowStart = *t.LastEvaluatedAt
	}

	switch t.Kind {
	case rule.TriggerScheduledInterval:
		intervalMs := int64(t.Schedule.IntervalMinutes) * minuteMs
		if intervalMs <= 0 {
			return d
		}
		d.Due = t.LastEvaluatedAt == nil || now-*t.LastEvaluatedAt >= intervalMs

	case rule.TriggerScheduledCron:
		d.Due = cronDueInWindow(t.Schedule.Cron, windowStart, now)

	case rule.TriggerScheduledDueDateRelative:
		d.Due = dueDateThresholdInWindow(t.Schedule.OffsetDays, tasks, windowStart, now)

	case rule.TriggerScheduledOneTime:
		at := t.Schedule.At
		d.Due = now >= at && (t.LastEvaluatedAt == nil || *t.LastEvaluatedAt < at)
	}
	if d.Due {
		d.HighWater = now
	}
	return d
}

// cronDueInWindow scans the minute marks in (start, now] for a match. The
// scan is clamped so a long outage fires the schedule once, not once per
// missed occurrence.
func cronDueInWindow(s *cronspec.Schedule, start, now int64) bool {
	if s == nil {
		return false
	}
	if now-start > maxCatchUpMs {
		start = now - maxCatchUpMs
	}
	// First minute boundary strictly after start.
	mark := (start/minuteMs)*minuteMs + minuteMs
	for ; mark <= now; mark += minuteMs {
		tm := time.UnixMilli(mark).UTC()
		if s.Matches(tm.Minute(), tm.Hour(), tm.Day(), int(tm.Weekday())) {
			return true
		}
	}
	return false
}

// dueDateThresholdInWindow reports whether any task's firing instant
// crossed into the window. The instant is the due date's midnight shifted
// offsetDays earlier: offset 1 fires one day before the due date, 0 on the
// due date, -1 the day after.
func dueDateThresholdInWindow(offsetDays int, tasks []*board.Task, start, now int64) bool {
	for _, task := range tasks {
		if task.DueDate == nil || task.Completed {
			continue
		}
		threshold := dates.StartOfDayMs(*task.DueDate) - int64(offsetDays)*dayMs
		if start < threshold && threshold <= now {
			return true
		}
	}
	return false
}
