// Package rule defines the automation-rule data model: the rule record and
// the closed tagged variants for triggers, filters, actions, and domain
// events.
//
// The variant sets are closed on purpose. Evaluation code switches
// exhaustively over them and fails loudly on anything outside the set - an
// unknown discriminant is a code/schema mismatch, never a data edge case.
package rule

import "fmt"

// BrokenReasonSectionDeleted tags rules disabled because a section they
// reference was deleted.
const BrokenReasonSectionDeleted = "section_deleted"

// MaxRecentExecutions caps the rolling execution log, oldest dropped first.
const MaxRecentExecutions = 20

// Execution is one entry of a rule's rolling execution log.
type Execution struct {
	Trigger   string `json:"trigger"`
	Action    string `json:"action"`
	TaskName  string `json:"taskName,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Rule is an automation rule: when <trigger>, if <filters>, then <action>.
//
// Rules are owned by the rule store. The engine mutates only the execution
// metadata (ExecutionCount, LastExecutedAt, RecentExecutions) and the
// scheduler's LastEvaluatedAt high-water mark; everything else belongs to the
// authoring flow.
type Rule struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`

	Trigger Trigger  `json:"trigger"`
	Filters []Filter `json:"filters"`
	Action  Action   `json:"action"`

	Enabled bool `json:"enabled"`

	// BrokenReason is empty for healthy rules.
	BrokenReason string `json:"brokenReason,omitempty"`

	ExecutionCount   int         `json:"executionCount"`
	LastExecutedAt   *int64      `json:"lastExecutedAt,omitempty"`
	RecentExecutions []Execution `json:"recentExecutions,omitempty"`

	Order     int   `json:"order"`
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// Runnable reports whether the scheduler/dispatcher may consider the rule.
func (r *Rule) Runnable() bool {
	return r.Enabled && r.BrokenReason == ""
}

// ReferencesSection reports whether the rule's trigger, action, or any
// section-typed filter references the given section id.
func (r *Rule) ReferencesSection(sectionID string) bool {
	if r.Trigger.SectionID == sectionID {
		return true
	}
	if r.Action.SectionScoped() && r.Action.SectionID == sectionID {
		return true
	}
	for _, f := range r.Filters {
		if f.SectionScoped() && f.SectionID == sectionID {
			return true
		}
	}
	return false
}

// Validate checks the rule and all its variants.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule requires an id")
	}
	if r.ProjectID == "" {
		return fmt.Errorf("rule %s requires a project id", r.ID)
	}
	if err := r.Trigger.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	for i, f := range r.Filters {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("rule %s filter %d: %w", r.ID, i, err)
		}
	}
	if err := r.Action.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	c := *r
	if r.Trigger.Schedule != nil {
		s := *r.Trigger.Schedule
		if s.Cron != nil {
			cron := *s.Cron
			cron.DaysOfWeek = append([]int(nil), s.Cron.DaysOfWeek...)
			cron.DaysOfMonth = append([]int(nil), s.Cron.DaysOfMonth...)
			s.Cron = &cron
		}
		c.Trigger.Schedule = &s
	}
	if r.Trigger.LastEvaluatedAt != nil {
		v := *r.Trigger.LastEvaluatedAt
		c.Trigger.LastEvaluatedAt = &v
	}
	if r.LastExecutedAt != nil {
		v := *r.LastExecutedAt
		c.LastExecutedAt = &v
	}
	c.Filters = append([]Filter(nil), r.Filters...)
	c.RecentExecutions = append([]Execution(nil), r.RecentExecutions...)
	return &c
}
