package engine

import (
	"log/slog"

	"boardflow/internal/rule"
)

// Dispatch runs the cascade loop: events are consumed FIFO, each event is
// offered to every runnable rule in its project in priority order, and the
// events produced by matching rules join the back of the queue. Processing
// is synchronous; by the time Dispatch returns the cascade has fully
// settled or been cut off at the depth cap.
func (e *Engine) Dispatch(events []rule.Event) {
	queue := append([]rule.Event(nil), events...)
	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]
		queue = append(queue, e.dispatchOne(ev)...)
	}
}

func (e *Engine) dispatchOne(ev rule.Event) []rule.Event {
	if ev.Depth >= e.maxDepth {
		// Fail closed: the event is dropped, not surfaced to the caller.
		slog.Warn("cascade depth cap reached, dropping event",
			"event_type", ev.Type,
			"entity_id", ev.EntityID,
			"error", newDepthExceededError(ev.TriggeredByRule, ev.Depth),
		)
		return nil
	}

	rules, err := e.rules.FindByProjectID(ev.ProjectID)
	if err != nil {
		slog.Error("dispatch aborted, rule load failed", "project_id", ev.ProjectID, "error", err)
		return nil
	}

	var produced []rule.Event
	for _, r := range rules {
		if !r.Runnable() {
			continue
		}
		if !triggerMatches(r.Trigger, &ev) {
			continue
		}
		// A rule never reacts to the event it just emitted.
		if ev.TriggeredByRule == r.ID {
			continue
		}
		res, err := e.executeForEvent(r, &ev)
		if err != nil {
			// One rule's failure never blocks its siblings.
			slog.Error("rule execution failed",
				"rule_id", r.ID,
				"rule_name", r.Name,
				"event_type", ev.Type,
				"error", err,
			)
			continue
		}
		if res != nil {
			produced = append(produced, res.Events...)
		}
	}
	return produced
}

// executeForEvent gates the rule's filters against the event's target task
// and executes on a pass. Section events have no target task; their rules
// pass only with an empty filter list.
func (e *Engine) executeForEvent(r *rule.Rule, ev *rule.Event) (*ExecResult, error) {
	targetID := ""
	switch ev.Type {
	case rule.EventTaskCreated, rule.EventTaskUpdated, rule.EventTaskDeleted:
		targetID = ev.EntityID
		task, err := e.findTask(targetID)
		if err != nil {
			return nil, err
		}
		if task == nil {
			return nil, nil
		}
		ok, err := MatchAll(r.Filters, task, e.clock.Now())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	default:
		if len(r.Filters) > 0 {
			return nil, nil
		}
	}
	return e.ExecuteAction(r, targetID, ev)
}

// triggerMatches decides whether an event satisfies an event trigger. A
// trigger with an empty SectionID matches the event's section wildcard-style.
func triggerMatches(t rule.Trigger, ev *rule.Event) bool {
	switch t.Kind {
	case rule.TriggerCardCreatedInSection:
		if ev.Type != rule.EventTaskCreated {
			return false
		}
		return t.SectionID == "" || t.SectionID == changedString(ev, "sectionId")

	case rule.TriggerCardMovedIntoSection:
		if !sectionChanged(ev) {
			return false
		}
		return t.SectionID == "" || t.SectionID == changedString(ev, "sectionId")

	case rule.TriggerCardMovedOutOfSection:
		if !sectionChanged(ev) {
			return false
		}
		return t.SectionID == "" || t.SectionID == previousString(ev, "sectionId")

	case rule.TriggerCardMarkedComplete:
		return completionFlipped(ev, true)

	case rule.TriggerCardMarkedIncomplete:
		return completionFlipped(ev, false)

	case rule.TriggerSectionCreated:
		return ev.Type == rule.EventSectionCreated

	case rule.TriggerSectionRenamed:
		return ev.Type == rule.EventSectionRenamed
	}
	return false
}

func sectionChanged(ev *rule.Event) bool {
	if ev.Type != rule.EventTaskUpdated {
		return false
	}
	next := changedString(ev, "sectionId")
	if next == "" {
		return false
	}
	return next != previousString(ev, "sectionId")
}

func completionFlipped(ev *rule.Event, to bool) bool {
	if ev.Type != rule.EventTaskUpdated {
		return false
	}
	next, ok := ev.Change("completed").(bool)
	if !ok || next != to {
		return false
	}
	prev, ok := ev.Previous("completed").(bool)
	if ok && prev == next {
		return false
	}
	return true
}

func changedString(ev *rule.Event, key string) string {
	s, _ := ev.Change(key).(string)
	return s
}

func previousString(ev *rule.Event, key string) string {
	s, _ := ev.Previous(key).(string)
	return s
}
