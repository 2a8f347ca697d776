package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"boardflow/internal/board"
	"boardflow/internal/dates"
	"boardflow/internal/rule"
	"boardflow/internal/store"
)

// ExecResult is the outcome of one action execution. Skipped means the
// action did nothing (missing target, malformed params, dedup suppression)
// and no rule metadata was recorded. Events carry the mutations for the
// cascade dispatcher.
type ExecResult struct {
	Skipped    bool
	SkipReason string
	Events     []rule.Event
	Snapshot   *UndoSnapshot
}

func skipped(reason string) (*ExecResult, error) {
	return &ExecResult{Skipped: true, SkipReason: reason}, nil
}

// ExecuteAction applies r's action to the target task (empty for
// create_card) and records rule execution metadata. The originating event
// may be nil for scheduled firings; when present it supplies the cascade
// depth and the section for SectionFromEvent placeholders.
//
// Missing entities and malformed parameters skip silently rather than fail:
// a rule pointed at a since-deleted card is routine, not exceptional.
func (e *Engine) ExecuteAction(r *rule.Rule, targetTaskID string, ev *rule.Event) (*ExecResult, error) {
	now := e.clock.Now()

	var res *ExecResult
	var err error
	switch r.Action.Kind {
	case rule.ActionMoveToTop, rule.ActionMoveToBottom:
		res, err = e.moveCard(r, targetTaskID, ev, now)
	case rule.ActionMarkComplete:
		res, err = e.setCompletion(r, targetTaskID, true, now)
	case rule.ActionMarkIncomplete:
		res, err = e.setCompletion(r, targetTaskID, false, now)
	case rule.ActionSetDueDate:
		res, err = e.setDueDate(r, targetTaskID, now)
	case rule.ActionRemoveDueDate:
		res, err = e.removeDueDate(r, targetTaskID, now)
	case rule.ActionCreateCard:
		res, err = e.createCard(r, ev, now)
	default:
		return nil, newUnknownActionError(r.ID, string(r.Action.Kind))
	}
	if err != nil {
		return nil, err
	}
	if res.Skipped {
		slog.Debug("action skipped",
			"rule_id", r.ID,
			"action", r.Action.Kind,
			"reason", res.SkipReason,
		)
		return res, nil
	}

	for i := range res.Events {
		res.Events[i].TriggeredByRule = r.ID
		if ev != nil {
			res.Events[i].Depth = ev.Depth + 1
		}
	}
	if res.Snapshot != nil {
		res.Snapshot.RuleID = r.ID
		res.Snapshot.RuleName = r.Name
		res.Snapshot.ActionKind = r.Action.Kind
		res.Snapshot.Timestamp = now
		e.undo.Record(res.Snapshot)
	}
	if err := e.recordExecution(r, res, now); err != nil {
		return nil, err
	}
	return res, nil
}

// recordExecution bumps the rule's execution counters and appends to its
// capped recent-execution log.
func (e *Engine) recordExecution(r *rule.Rule, res *ExecResult, now int64) error {
	taskName := ""
	if res.Snapshot != nil {
		taskName = res.Snapshot.TaskName
	}
	log := append(append([]rule.Execution(nil), r.RecentExecutions...), rule.Execution{
		Trigger:   r.Trigger.Label(),
		Action:    r.Action.Label(),
		TaskName:  taskName,
		Timestamp: now,
	})
	if len(log) > rule.MaxRecentExecutions {
		log = log[len(log)-rule.MaxRecentExecutions:]
	}
	count := r.ExecutionCount + 1
	patch := store.RulePatch{
		ExecutionCount:   &count,
		LastExecutedAt:   &now,
		RecentExecutions: &log,
		UpdatedAt:        &now,
	}
	if err := e.rules.Update(r.ID, patch); err != nil {
		return fmt.Errorf("record execution for rule %s: %w", r.ID, err)
	}
	r.ExecutionCount = count
	r.LastExecutedAt = &now
	r.RecentExecutions = log
	return nil
}

func (e *Engine) moveCard(r *rule.Rule, taskID string, ev *rule.Event, now int64) (*ExecResult, error) {
	task, err := e.findTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return skipped("task not found")
	}
	destID := e.resolveSectionID(r.Action, ev, task)
	if destID == "" {
		return skipped("destination section unresolved")
	}
	if _, err := e.sections.FindByID(destID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return skipped("destination section not found")
		}
		return nil, err
	}

	order, err := e.placementOrder(destID, r.Action.Kind == rule.ActionMoveToTop)
	if err != nil {
		return nil, err
	}
	prevSection := task.SectionID
	prevOrder := task.Order

	patch := store.TaskPatch{SectionID: &destID, Order: &order, UpdatedAt: &now}
	if destID != prevSection {
		patch.MovedToSectionAt = &now
	}
	if err := e.tasks.Update(task.ID, patch); err != nil {
		return nil, err
	}

	res := &ExecResult{
		Snapshot: &UndoSnapshot{
			TargetEntityID: task.ID,
			TaskName:       task.Title,
			Previous: PreviousState{
				SectionID: &prevSection,
				Order:     &prevOrder,
			},
		},
	}
	if destID != prevSection {
		res.Events = append(res.Events, rule.Event{
			Type:      rule.EventTaskUpdated,
			EntityID:  task.ID,
			ProjectID: task.ProjectID,
			Changes:   map[string]any{"sectionId": destID},
			PreviousValues: map[string]any{
				"sectionId": prevSection,
			},
		})
	}
	return res, nil
}

// placementOrder computes the fractional order for a card entering a
// section: strictly above the current top or strictly below the current
// bottom. An empty section places at -1 (top) or 1 (bottom).
func (e *Engine) placementOrder(sectionID string, top bool) (float64, error) {
	tasks, err := e.tasks.FindBySectionID(sectionID)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		if top {
			return -1, nil
		}
		return 1, nil
	}
	min, max := tasks[0].Order, tasks[0].Order
	for _, t := range tasks[1:] {
		if t.Order < min {
			min = t.Order
		}
		if t.Order > max {
			max = t.Order
		}
	}
	if top {
		return min - 1, nil
	}
	return max + 1, nil
}

func (e *Engine) setCompletion(r *rule.Rule, taskID string, complete bool, now int64) (*ExecResult, error) {
	task, err := e.findTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return skipped("task not found")
	}
	if task.Completed == complete {
		return skipped("completion state unchanged")
	}

	snap := &UndoSnapshot{
		TargetEntityID: task.ID,
		TaskName:       task.Title,
		Previous: PreviousState{
			Completed:   &task.Completed,
			CompletedAt: copyInt64(task.CompletedAt),
		},
	}
	res := &ExecResult{Snapshot: snap}

	apply := func(t board.Task, isSubtask bool) error {
		if t.Completed == complete {
			return nil
		}
		patch := store.TaskPatch{Completed: &complete, SetCompletedAt: true, UpdatedAt: &now}
		if complete {
			patch.CompletedAt = &now
		}
		if err := e.tasks.Update(t.ID, patch); err != nil {
			return err
		}
		if isSubtask {
			snap.SubtaskSnapshots = append(snap.SubtaskSnapshots, UndoSnapshot{
				TargetEntityID: t.ID,
				TaskName:       t.Title,
				Previous: PreviousState{
					Completed:   &t.Completed,
					CompletedAt: copyInt64(t.CompletedAt),
				},
			})
		}
		res.Events = append(res.Events, rule.Event{
			Type:      rule.EventTaskUpdated,
			EntityID:  t.ID,
			ProjectID: t.ProjectID,
			Changes:   map[string]any{"completed": complete},
			PreviousValues: map[string]any{
				"completed": t.Completed,
			},
		})
		return nil
	}

	if err := apply(*task, false); err != nil {
		return nil, err
	}
	// Completing a parent completes its subtasks too; reopening a parent
	// leaves subtasks alone.
	if complete {
		subs, err := e.tasks.FindByParentID(task.ID)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			if err := apply(*sub, true); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func (e *Engine) setDueDate(r *rule.Rule, taskID string, now int64) (*ExecResult, error) {
	task, err := e.findTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return skipped("task not found")
	}
	// A rule can be stored without a date option; that is malformed config,
	// not a closed-set violation, so it skips like a missing entity.
	if r.Action.DateOption == "" {
		return skipped("missing date option")
	}
	due, err := e.calculateDue(r, r.Action.DateOption, r.Action.DateParams, now)
	if err != nil {
		var re *RuleError
		if errors.As(err, &re) {
			return nil, err
		}
		return skipped("invalid date parameters")
	}

	res := &ExecResult{
		Snapshot: &UndoSnapshot{
			TargetEntityID: task.ID,
			TaskName:       task.Title,
			Previous:       PreviousState{DueDate: copyInt64(task.DueDate), HasDueDate: boolPtr(true)},
		},
	}
	patch := store.TaskPatch{DueDate: &due, SetDueDate: true, UpdatedAt: &now}
	if err := e.tasks.Update(task.ID, patch); err != nil {
		return nil, err
	}
	res.Events = append(res.Events, rule.Event{
		Type:           rule.EventTaskUpdated,
		EntityID:       task.ID,
		ProjectID:      task.ProjectID,
		Changes:        map[string]any{"dueDate": due},
		PreviousValues: map[string]any{"dueDate": task.DueDate},
	})
	return res, nil
}

func (e *Engine) removeDueDate(r *rule.Rule, taskID string, now int64) (*ExecResult, error) {
	task, err := e.findTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return skipped("task not found")
	}
	if task.DueDate == nil {
		return skipped("no due date to remove")
	}

	res := &ExecResult{
		Snapshot: &UndoSnapshot{
			TargetEntityID: task.ID,
			TaskName:       task.Title,
			Previous:       PreviousState{DueDate: copyInt64(task.DueDate), HasDueDate: boolPtr(true)},
		},
	}
	patch := store.TaskPatch{SetDueDate: true, UpdatedAt: &now}
	if err := e.tasks.Update(task.ID, patch); err != nil {
		return nil, err
	}
	res.Events = append(res.Events, rule.Event{
		Type:           rule.EventTaskUpdated,
		EntityID:       task.ID,
		ProjectID:      task.ProjectID,
		Changes:        map[string]any{"dueDate": nil},
		PreviousValues: map[string]any{"dueDate": task.DueDate},
	})
	return res, nil
}

func (e *Engine) createCard(r *rule.Rule, ev *rule.Event, now int64) (*ExecResult, error) {
	if r.Action.CardTitle == "" {
		return skipped("empty card title")
	}
	sectionID := e.resolveSectionID(r.Action, ev, nil)
	if sectionID == "" {
		return skipped("destination section unresolved")
	}
	if _, err := e.sections.FindByID(sectionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return skipped("destination section not found")
		}
		return nil, err
	}

	dup, err := e.isDuplicateCard(r, sectionID, now)
	if err != nil {
		return nil, err
	}
	if dup {
		return skipped("duplicate suppressed")
	}

	order, err := e.placementOrder(sectionID, false)
	if err != nil {
		return nil, err
	}

	task := board.Task{
		ID:               e.idGen.Generate(),
		ProjectID:        r.ProjectID,
		SectionID:        sectionID,
		Title:            r.Action.CardTitle,
		Order:            order,
		CreatedAt:        now,
		UpdatedAt:        now,
		MovedToSectionAt: now,
	}
	if r.Action.CardDateOption != "" {
		due, err := e.calculateDue(r, r.Action.CardDateOption, r.Action.DateParams, now)
		if err != nil {
			var re *RuleError
			if errors.As(err, &re) {
				return nil, err
			}
			return skipped("invalid date parameters")
		}
		task.DueDate = &due
	}
	if err := e.tasks.Create(&task); err != nil {
		return nil, err
	}

	return &ExecResult{
		Snapshot: &UndoSnapshot{
			TargetEntityID:  task.ID,
			TaskName:        task.Title,
			CreatedEntityID: task.ID,
		},
		Events: []rule.Event{{
			Type:      rule.EventTaskCreated,
			EntityID:  task.ID,
			ProjectID: task.ProjectID,
			Changes:   map[string]any{"sectionId": sectionID, "title": task.Title},
		}},
	}, nil
}

// calculateDue evaluates a rule's date option against the current instant.
// Unknown options surface as rule errors; out-of-range parameters are the
// caller's cue to skip.
func (e *Engine) calculateDue(r *rule.Rule, option dates.Option, p rule.DateParams, now int64) (int64, error) {
	ref := time.UnixMilli(now).UTC()
	due, err := dates.Calculate(option, ref, dates.Params{
		Day:         p.Day,
		Month:       p.Month,
		MonthTarget: p.MonthTarget,
	})
	if err != nil {
		var unknown *dates.UnknownOptionError
		if errors.As(err, &unknown) {
			return 0, newUnknownDateOptionError(r.ID, string(option))
		}
		return 0, err
	}
	return due.UnixMilli(), nil
}

// resolveSectionID resolves the action's destination, expanding the
// from-event placeholder against the originating event or the target task.
func (e *Engine) resolveSectionID(a rule.Action, ev *rule.Event, task *board.Task) string {
	if a.SectionID != rule.SectionFromEvent {
		return a.SectionID
	}
	if ev != nil {
		switch ev.Type {
		case rule.EventSectionCreated, rule.EventSectionRenamed:
			return ev.EntityID
		default:
			if s, ok := ev.Change("sectionId").(string); ok && s != "" {
				return s
			}
		}
	}
	if task != nil {
		return task.SectionID
	}
	return ""
}

// findTask loads a task, mapping not-found to nil so callers can skip.
func (e *Engine) findTask(id string) (*board.Task, error) {
	if id == "" {
		return nil, nil
	}
	task, err := e.tasks.FindByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func boolPtr(v bool) *bool { return &v }
