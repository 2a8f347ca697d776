package rule

import (
	"fmt"

	"boardflow/internal/cronspec"
)

// TriggerKind discriminates the trigger variant of a rule.
type TriggerKind string

// Event triggers fire when the cascade dispatcher observes a matching domain
// event. Scheduled triggers fire from the scheduler's tick loop.
const (
	TriggerCardMovedIntoSection  TriggerKind = "card_moved_into_section"
	TriggerCardMovedOutOfSection TriggerKind = "card_moved_out_of_section"
	TriggerCardCreatedInSection  TriggerKind = "card_created_in_section"
	TriggerCardMarkedComplete    TriggerKind = "card_marked_complete"
	TriggerCardMarkedIncomplete  TriggerKind = "card_marked_incomplete"
	TriggerSectionCreated        TriggerKind = "section_created"
	TriggerSectionRenamed        TriggerKind = "section_renamed"

	TriggerScheduledInterval        TriggerKind = "scheduled_interval"
	TriggerScheduledCron            TriggerKind = "scheduled_cron"
	TriggerScheduledDueDateRelative TriggerKind = "scheduled_due_date_relative"
	TriggerScheduledOneTime         TriggerKind = "scheduled_one_time"
)

// KnownTriggerKinds is the closed trigger set.
var KnownTriggerKinds = map[TriggerKind]bool{
	TriggerCardMovedIntoSection:     true,
	TriggerCardMovedOutOfSection:    true,
	TriggerCardCreatedInSection:     true,
	TriggerCardMarkedComplete:       true,
	TriggerCardMarkedIncomplete:     true,
	TriggerSectionCreated:           true,
	TriggerSectionRenamed:           true,
	TriggerScheduledInterval:        true,
	TriggerScheduledCron:            true,
	TriggerScheduledDueDateRelative: true,
	TriggerScheduledOneTime:         true,
}

// Schedule is the payload of a scheduled trigger. Exactly the field matching
// the trigger kind is meaningful.
type Schedule struct {
	// IntervalMinutes is the firing period for scheduled_interval.
	IntervalMinutes int `json:"intervalMinutes,omitempty"`

	// Cron is the restricted cron schedule for scheduled_cron.
	Cron *cronspec.Schedule `json:"cron,omitempty"`

	// OffsetDays shifts the firing day relative to a task's due date for
	// scheduled_due_date_relative. 1 fires one day before the due date, 0 on
	// the due date itself, -1 the day after.
	OffsetDays int `json:"offsetDays,omitempty"`

	// At is the firing instant (epoch ms) for scheduled_one_time.
	At int64 `json:"at,omitempty"`
}

// Trigger is a tagged variant over event and scheduled trigger kinds.
//
// Invariant: event triggers never carry a Schedule; scheduled triggers never
// target a section.
type Trigger struct {
	Kind TriggerKind `json:"kind"`

	// SectionID narrows event triggers to a section. Empty matches any
	// section for card_* triggers.
	SectionID string `json:"sectionId,omitempty"`

	// Schedule is required for scheduled trigger kinds.
	Schedule *Schedule `json:"schedule,omitempty"`

	// LastEvaluatedAt is the scheduler's high-water mark (epoch ms). Nil
	// means the trigger has never been evaluated.
	LastEvaluatedAt *int64 `json:"lastEvaluatedAt,omitempty"`
}

// Scheduled reports whether the trigger is time-driven.
func (t Trigger) Scheduled() bool {
	switch t.Kind {
	case TriggerScheduledInterval, TriggerScheduledCron,
		TriggerScheduledDueDateRelative, TriggerScheduledOneTime:
		return true
	}
	return false
}

// Validate checks the variant invariants.
func (t Trigger) Validate() error {
	if !KnownTriggerKinds[t.Kind] {
		return fmt.Errorf("unknown trigger kind %q", t.Kind)
	}
	if t.Scheduled() {
		if t.SectionID != "" {
			return fmt.Errorf("scheduled trigger %s must not target a section", t.Kind)
		}
		if t.Schedule == nil {
			return fmt.Errorf("scheduled trigger %s requires a schedule", t.Kind)
		}
		switch t.Kind {
		case TriggerScheduledInterval:
			if t.Schedule.IntervalMinutes <= 0 {
				return fmt.Errorf("scheduled_interval requires a positive interval")
			}
		case TriggerScheduledCron:
			if t.Schedule.Cron == nil {
				return fmt.Errorf("scheduled_cron requires a cron schedule")
			}
		case TriggerScheduledOneTime:
			if t.Schedule.At <= 0 {
				return fmt.Errorf("scheduled_one_time requires a firing time")
			}
		}
		return nil
	}
	if t.Schedule != nil {
		return fmt.Errorf("event trigger %s must not carry a schedule", t.Kind)
	}
	return nil
}

// Label renders a short human description for execution logs.
func (t Trigger) Label() string {
	switch t.Kind {
	case TriggerCardMovedIntoSection:
		return "card moved into section"
	case TriggerCardMovedOutOfSection:
		return "card moved out of section"
	case TriggerCardCreatedInSection:
		return "card created in section"
	case TriggerCardMarkedComplete:
		return "card marked complete"
	case TriggerCardMarkedIncomplete:
		return "card marked incomplete"
	case TriggerSectionCreated:
		return "section created"
	case TriggerSectionRenamed:
		return "section renamed"
	case TriggerScheduledInterval:
		if t.Schedule != nil {
			return fmt.Sprintf("every %d minutes", t.Schedule.IntervalMinutes)
		}
		return "on an interval"
	case TriggerScheduledCron:
		if t.Schedule != nil && t.Schedule.Cron != nil {
			return t.Schedule.Cron.Describe()
		}
		return "on a schedule"
	case TriggerScheduledDueDateRelative:
		return "relative to due date"
	case TriggerScheduledOneTime:
		return "at a fixed time"
	}
	return string(t.Kind)
}
