package rule

import (
	"fmt"

	"boardflow/internal/dates"
)

// ActionKind discriminates the action variant.
type ActionKind string

const (
	ActionMoveToTop      ActionKind = "move_card_to_top_of_section"
	ActionMoveToBottom   ActionKind = "move_card_to_bottom_of_section"
	ActionMarkComplete   ActionKind = "mark_card_complete"
	ActionMarkIncomplete ActionKind = "mark_card_incomplete"
	ActionSetDueDate     ActionKind = "set_due_date"
	ActionRemoveDueDate  ActionKind = "remove_due_date"
	ActionCreateCard     ActionKind = "create_card"
)

// KnownActionKinds is the closed action set.
var KnownActionKinds = map[ActionKind]bool{
	ActionMoveToTop: true, ActionMoveToBottom: true,
	ActionMarkComplete: true, ActionMarkIncomplete: true,
	ActionSetDueDate: true, ActionRemoveDueDate: true,
	ActionCreateCard: true,
}

// SectionFromEvent is the sentinel section id meaning "use the section from
// the triggering event" for move and create actions.
const SectionFromEvent = "@event"

// DateParams refines a date option with the specific-date and month-target
// parameters the Date Calculator needs.
type DateParams struct {
	Day         int    `json:"day,omitempty"`
	Month       int    `json:"month,omitempty"`
	MonthTarget string `json:"monthTarget,omitempty"`
}

// Action is the single mutation a rule performs. Only the params relevant to
// the kind are populated.
type Action struct {
	Kind ActionKind `json:"kind"`

	// SectionID targets move and create actions. May be SectionFromEvent.
	SectionID string `json:"sectionId,omitempty"`

	// DateOption + DateParams drive set_due_date.
	DateOption dates.Option `json:"dateOption,omitempty"`
	DateParams DateParams   `json:"dateParams,omitempty"`

	// CardTitle and CardDateOption drive create_card. CardDateOption is
	// optional; empty leaves the created card without a due date.
	CardTitle      string       `json:"cardTitle,omitempty"`
	CardDateOption dates.Option `json:"cardDateOption,omitempty"`
}

// SectionScoped reports whether the action references a concrete section id.
func (a Action) SectionScoped() bool {
	switch a.Kind {
	case ActionMoveToTop, ActionMoveToBottom, ActionCreateCard:
		return a.SectionID != "" && a.SectionID != SectionFromEvent
	}
	return false
}

// Validate checks discriminant and param requirements that are structural.
// Missing runtime entities are the executor's concern, not validation's.
func (a Action) Validate() error {
	if !KnownActionKinds[a.Kind] {
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	switch a.Kind {
	case ActionMoveToTop, ActionMoveToBottom:
		if a.SectionID == "" {
			return fmt.Errorf("action %s requires a section id", a.Kind)
		}
	case ActionCreateCard:
		if a.SectionID == "" {
			return fmt.Errorf("action %s requires a section id", a.Kind)
		}
		if a.CardTitle == "" {
			return fmt.Errorf("action %s requires a card title", a.Kind)
		}
	}
	return nil
}

// Label renders a short human description for execution logs.
func (a Action) Label() string {
	switch a.Kind {
	case ActionMoveToTop:
		return "move card to top of section"
	case ActionMoveToBottom:
		return "move card to bottom of section"
	case ActionMarkComplete:
		return "mark card complete"
	case ActionMarkIncomplete:
		return "mark card incomplete"
	case ActionSetDueDate:
		return "set due date"
	case ActionRemoveDueDate:
		return "remove due date"
	case ActionCreateCard:
		return fmt.Sprintf("create card %q", a.CardTitle)
	}
	return string(a.Kind)
}
