package rule

// EventType identifies what a domain event describes.
type EventType string

const (
	EventTaskCreated    EventType = "task.created"
	EventTaskUpdated    EventType = "task.updated"
	EventTaskDeleted    EventType = "task.deleted"
	EventSectionCreated EventType = "section.created"
	EventSectionRenamed EventType = "section.renamed"
)

// Event is a domain event flowing between the engine and the cascade
// dispatcher.
//
// Changes holds the values after the mutation; PreviousValues holds the same
// keys' values before it. PreviousValues is what makes undo possible, so the
// executor always fills it for the fields it touched. Keys are the JSON field
// names of board.Task ("sectionId", "order", "completed", "completedAt",
// "dueDate", "title", "name").
type Event struct {
	Type      EventType `json:"type"`
	EntityID  string    `json:"entityId"`
	ProjectID string    `json:"projectId"`

	Changes        map[string]any `json:"changes,omitempty"`
	PreviousValues map[string]any `json:"previousValues,omitempty"`

	// TriggeredByRule is set on events emitted by the action executor.
	TriggeredByRule string `json:"triggeredByRule,omitempty"`

	// Depth is the cascade distance from the originating external event.
	// External events start at 0; each executor hop adds 1. The dispatcher
	// fails closed past its cap.
	Depth int `json:"depth"`
}

// Change returns the new value for a key, or nil.
func (e *Event) Change(key string) any {
	if e.Changes == nil {
		return nil
	}
	return e.Changes[key]
}

// Previous returns the pre-mutation value for a key, or nil.
func (e *Event) Previous(key string) any {
	if e.PreviousValues == nil {
		return nil
	}
	return e.PreviousValues[key]
}
