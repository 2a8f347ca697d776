// Package store defines the collaborator contracts the engine depends on -
// task, section, and rule stores - plus the shipped memory and SQLite
// implementations.
//
// The engine assumes single-writer access: no external mutation during a
// scheduler tick or action batch. Both shipped implementations are
// internally synchronized anyway, but serializing engine work against
// external mutation remains the caller's contract.
package store

import (
	"errors"

	"boardflow/internal/board"
	"boardflow/internal/rule"
)

// ErrNotFound is returned by FindByID lookups for missing entities. The
// executor treats it as a silent skip, never as a failure.
var ErrNotFound = errors.New("not found")

// TaskPatch is a partial task update. Nil pointer fields are left untouched.
// The nullable timestamps use an explicit Set flag so a patch can clear them.
type TaskPatch struct {
	SectionID *string
	Order     *float64
	Title     *string
	Completed *bool

	SetCompletedAt bool
	CompletedAt    *int64 // applied when SetCompletedAt; nil clears

	SetDueDate bool
	DueDate    *int64 // applied when SetDueDate; nil clears

	MovedToSectionAt *int64
	UpdatedAt        *int64
}

// Apply copies the patch onto a task.
func (p TaskPatch) Apply(t *board.Task) {
	if p.SectionID != nil {
		t.SectionID = *p.SectionID
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.SetCompletedAt {
		t.CompletedAt = copyInt64(p.CompletedAt)
	}
	if p.SetDueDate {
		t.DueDate = copyInt64(p.DueDate)
	}
	if p.MovedToSectionAt != nil {
		t.MovedToSectionAt = *p.MovedToSectionAt
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
}

// RulePatch is a partial rule update. Nil fields are left untouched.
type RulePatch struct {
	Enabled      *bool
	BrokenReason *string

	ExecutionCount   *int
	LastExecutedAt   *int64
	RecentExecutions *[]rule.Execution

	// LastEvaluatedAt updates the scheduled trigger's high-water mark.
	LastEvaluatedAt *int64

	UpdatedAt *int64
}

// Apply copies the patch onto a rule.
func (p RulePatch) Apply(r *rule.Rule) {
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.BrokenReason != nil {
		r.BrokenReason = *p.BrokenReason
	}
	if p.ExecutionCount != nil {
		r.ExecutionCount = *p.ExecutionCount
	}
	if p.LastExecutedAt != nil {
		v := *p.LastExecutedAt
		r.LastExecutedAt = &v
	}
	if p.RecentExecutions != nil {
		r.RecentExecutions = append([]rule.Execution(nil), (*p.RecentExecutions)...)
	}
	if p.LastEvaluatedAt != nil {
		v := *p.LastEvaluatedAt
		r.Trigger.LastEvaluatedAt = &v
	}
	if p.UpdatedAt != nil {
		r.UpdatedAt = *p.UpdatedAt
	}
}

// TaskStore is the card collaborator contract.
type TaskStore interface {
	FindByID(id string) (*board.Task, error)
	FindAll() ([]*board.Task, error)
	FindBySectionID(sectionID string) ([]*board.Task, error)
	FindByParentID(parentID string) ([]*board.Task, error)
	Create(t *board.Task) error
	Update(id string, patch TaskPatch) error
	Delete(id string) error
}

// SectionStore is the section collaborator contract. The engine only reads
// sections; section CRUD belongs to the host application.
type SectionStore interface {
	FindByID(id string) (*board.Section, error)
	FindAll() ([]*board.Section, error)
}

// RuleStore is the rule collaborator contract.
type RuleStore interface {
	FindByID(id string) (*rule.Rule, error)
	FindAll() ([]*rule.Rule, error)
	FindByProjectID(projectID string) ([]*rule.Rule, error)
	Create(r *rule.Rule) error
	Update(id string, patch RulePatch) error
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
