package engine

import (
	"time"

	"boardflow/internal/board"
	"boardflow/internal/dates"
	"boardflow/internal/rule"
)

const dayMs = int64(24 * time.Hour / time.Millisecond)

// MatchAll evaluates an ordered filter list against a task with AND
// semantics. An empty list matches unconditionally.
func MatchAll(filters []rule.Filter, task *board.Task, now int64) (bool, error) {
	for _, f := range filters {
		ok, err := MatchFilter(f, task, now)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// MatchFilter evaluates a single filter condition against a task at the
// given reference instant.
//
// Boundary semantics, shared by every kind that uses them:
//   - Age thresholds are strict: elapsed exactly equal to the threshold does
//     NOT match.
//   - not_* due-window filters are the negation of the positive filter but
//     additionally match when the due date is null - absence is not "due".
//   - Comparison targets are start-of-day values; less_than is
//     now < due <= target, more_than is due > target, between is inclusive
//     on both ends.
func MatchFilter(f rule.Filter, task *board.Task, now int64) (bool, error) {
	switch f.Kind {
	case rule.FilterInSection:
		return task.SectionID == f.SectionID, nil
	case rule.FilterNotInSection:
		return task.SectionID != f.SectionID, nil

	case rule.FilterHasDueDate:
		return task.DueDate != nil, nil
	case rule.FilterNoDueDate:
		return task.DueDate == nil, nil

	case rule.FilterIsOverdue:
		return task.DueDate != nil && *task.DueDate < now && !task.Completed, nil

	case rule.FilterDueToday:
		return dueInWindow(task, windowToday(now)), nil
	case rule.FilterNotDueToday:
		return notDue(task, windowToday(now)), nil
	case rule.FilterDueTomorrow:
		return dueInWindow(task, windowTomorrow(now)), nil
	case rule.FilterNotDueTomorrow:
		return notDue(task, windowTomorrow(now)), nil
	case rule.FilterDueThisWeek:
		return dueInWindow(task, windowThisWeek(now)), nil
	case rule.FilterNotDueThisWeek:
		return notDue(task, windowThisWeek(now)), nil
	case rule.FilterDueNextWeek:
		return dueInWindow(task, windowNextWeek(now)), nil
	case rule.FilterNotDueNextWeek:
		return notDue(task, windowNextWeek(now)), nil
	case rule.FilterDueThisMonth:
		return dueInWindow(task, windowThisMonth(now)), nil
	case rule.FilterNotDueThisMonth:
		return notDue(task, windowThisMonth(now)), nil
	case rule.FilterDueNextMonth:
		return dueInWindow(task, windowNextMonth(now)), nil
	case rule.FilterNotDueNextMonth:
		return notDue(task, windowNextMonth(now)), nil

	case rule.FilterDueInLessThan:
		if task.DueDate == nil {
			return false, nil
		}
		due := dates.StartOfDayMs(*task.DueDate)
		target := offsetTarget(now, f.Value, f.Unit)
		return now < due && due <= target, nil
	case rule.FilterDueInMoreThan:
		if task.DueDate == nil {
			return false, nil
		}
		due := dates.StartOfDayMs(*task.DueDate)
		return due > offsetTarget(now, f.Value, f.Unit), nil
	case rule.FilterDueInExactly:
		if task.DueDate == nil {
			return false, nil
		}
		return dates.StartOfDayMs(*task.DueDate) == offsetTarget(now, f.Value, f.Unit), nil
	case rule.FilterDueInBetween:
		if task.DueDate == nil {
			return false, nil
		}
		due := dates.StartOfDayMs(*task.DueDate)
		lo := offsetTarget(now, f.MinValue, f.Unit)
		hi := offsetTarget(now, f.MaxValue, f.Unit)
		return lo <= due && due <= hi, nil

	case rule.FilterIsComplete:
		return task.Completed, nil
	case rule.FilterIsIncomplete:
		return !task.Completed, nil

	case rule.FilterCreatedMoreThan:
		return olderThan(task.CreatedAt, now, f.Value, f.Unit), nil
	case rule.FilterCompletedMoreThan:
		if !task.Completed {
			return false, nil
		}
		// Legacy data can be completed without a timestamp; treat it as
		// arbitrarily old.
		if task.CompletedAt == nil {
			return true, nil
		}
		return olderThan(*task.CompletedAt, now, f.Value, f.Unit), nil
	case rule.FilterLastUpdatedMoreThan, rule.FilterNotModifiedIn:
		return olderThan(task.UpdatedAt, now, f.Value, f.Unit), nil
	case rule.FilterOverdueByMoreThan:
		if task.DueDate == nil || task.Completed {
			return false, nil
		}
		return olderThan(dates.StartOfDayMs(*task.DueDate), now, f.Value, f.Unit), nil
	case rule.FilterInSectionForMoreThan:
		since := task.MovedToSectionAt
		if since == 0 {
			since = task.CreatedAt
		}
		return olderThan(since, now, f.Value, f.Unit), nil
	}

	return false, newUnknownFilterError("", string(f.Kind))
}

// window is a half-open day range [start, end) in epoch ms.
type window struct {
	start int64
	end   int64
}

func (w window) contains(ms int64) bool {
	day := dates.StartOfDayMs(ms)
	return w.start <= day && day < w.end
}

func dueInWindow(task *board.Task, w window) bool {
	return task.DueDate != nil && w.contains(*task.DueDate)
}

// notDue negates the positive window filter and also matches null due dates.
func notDue(task *board.Task, w window) bool {
	if task.DueDate == nil {
		return true
	}
	return !w.contains(*task.DueDate)
}

func windowToday(now int64) window {
	start := dates.StartOfDayMs(now)
	return window{start: start, end: start + dayMs}
}

func windowTomorrow(now int64) window {
	start := dates.StartOfDayMs(now) + dayMs
	return window{start: start, end: start + dayMs}
}

// windowThisWeek covers the Monday-start calendar week containing now.
func windowThisWeek(now int64) window {
	t := dates.StartOfDay(time.UnixMilli(now))
	monday := t.AddDate(0, 0, 1-mondayIndex(t.Weekday()))
	return window{start: monday.UnixMilli(), end: monday.AddDate(0, 0, 7).UnixMilli()}
}

func windowNextWeek(now int64) window {
	this := windowThisWeek(now)
	return window{start: this.end, end: this.end + 7*dayMs}
}

func windowThisMonth(now int64) window {
	t := dates.StartOfDay(time.UnixMilli(now))
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return window{start: first.UnixMilli(), end: first.AddDate(0, 1, 0).UnixMilli()}
}

func windowNextMonth(now int64) window {
	t := dates.StartOfDay(time.UnixMilli(now))
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return window{start: first.UnixMilli(), end: first.AddDate(0, 1, 0).UnixMilli()}
}

func mondayIndex(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// offsetTarget computes the start-of-day comparison target n units from now.
func offsetTarget(now int64, n int, unit rule.Unit) int64 {
	if unit == rule.UnitWorkingDays {
		return dates.WorkingDaysFrom(n, time.UnixMilli(now)).UnixMilli()
	}
	return dates.StartOfDayMs(now) + int64(n)*dayMs
}

// olderThan applies the strict elapsed-time comparison shared by the age
// filters. For working-day units the elapsed working days are counted
// strictly between the two calendar days.
func olderThan(since, now int64, value int, unit rule.Unit) bool {
	if unit == rule.UnitWorkingDays {
		elapsed := dates.WorkingDaysBetween(time.UnixMilli(since), time.UnixMilli(now))
		return elapsed > value
	}
	return now-since > int64(value)*dayMs
}
