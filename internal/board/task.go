package board

// Task is a card on a project board.
//
// All timestamps are milliseconds since the Unix epoch, matching the engine's
// Clock contract. Nullable timestamps use pointers so the zero value is
// distinguishable from "unset".
type Task struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	SectionID string `json:"sectionId"`
	Title     string `json:"title"`

	// Order is the sort key within a section. Lower sorts first. Move
	// actions assign min-1 / max+1 relative to the target section.
	Order float64 `json:"order"`

	Completed   bool   `json:"completed"`
	CompletedAt *int64 `json:"completedAt,omitempty"`
	DueDate     *int64 `json:"dueDate,omitempty"`

	// ParentID links a subtask to its parent card. Empty for top-level cards.
	ParentID string `json:"parentId,omitempty"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`

	// MovedToSectionAt records the last section change. Zero means the task
	// has never moved; age filters fall back to CreatedAt.
	MovedToSectionAt int64 `json:"movedToSectionAt,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.DueDate != nil {
		v := *t.DueDate
		c.DueDate = &v
	}
	return &c
}
