package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"boardflow/internal/rule"
	"boardflow/internal/store"
)

// UndoWindowMs is how long after an execution its snapshot stays
// restorable. Snapshots older than the window are pruned lazily on access.
const UndoWindowMs = 10_000

// ErrNothingToUndo is returned when no snapshot is inside the undo window.
var ErrNothingToUndo = errors.New("nothing to undo")

// PreviousState captures the mutated fields of a task before an action
// touched it. Nil fields were not mutated. HasDueDate distinguishes "due
// date was cleared" (DueDate nil, HasDueDate set) from "due date untouched".
type PreviousState struct {
	SectionID   *string
	Order       *float64
	Completed   *bool
	CompletedAt *int64
	DueDate     *int64
	HasDueDate  *bool
}

// UndoSnapshot records one rule execution so it can be reverted. For
// create_card actions CreatedEntityID is set and undo deletes the card; for
// everything else Previous is restored onto TargetEntityID. Subtasks
// completed as a side effect of completing their parent carry their own
// nested snapshots.
type UndoSnapshot struct {
	RuleID           string
	RuleName         string
	ActionKind       rule.ActionKind
	TargetEntityID   string
	TaskName         string
	Previous         PreviousState
	Timestamp        int64
	CreatedEntityID  string
	SubtaskSnapshots []UndoSnapshot
}

// UndoManager holds recent execution snapshots inside a sliding window.
// Undo is last-writer-wins across all rules; UndoRule reverts one specific
// rule's latest execution.
type UndoManager struct {
	mu    sync.Mutex
	tasks store.TaskStore
	clock Clock
	snaps []*UndoSnapshot
}

func NewUndoManager(tasks store.TaskStore, clock Clock) *UndoManager {
	return &UndoManager{tasks: tasks, clock: clock}
}

// Record adds a snapshot. Called by the executor after a successful action.
func (m *UndoManager) Record(s *UndoSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(m.clock.Now())
	m.snaps = append(m.snaps, s)
}

// Latest returns the most recent snapshot still inside the window, or nil.
func (m *UndoManager) Latest() *UndoSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(m.clock.Now())
	if len(m.snaps) == 0 {
		return nil
	}
	return m.snaps[len(m.snaps)-1]
}

// Undo reverts the most recent in-window execution and clears the whole
// snapshot stack: a single undo gesture maps to a single revert, not a
// history walk.
func (m *UndoManager) Undo() (*UndoSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(m.clock.Now())
	if len(m.snaps) == 0 {
		return nil, ErrNothingToUndo
	}
	snap := m.snaps[len(m.snaps)-1]
	if err := m.restore(snap); err != nil {
		return nil, err
	}
	m.snaps = nil
	return snap, nil
}

// UndoRule reverts the latest in-window execution of one rule, leaving
// other rules' snapshots in place.
func (m *UndoManager) UndoRule(ruleID string) (*UndoSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(m.clock.Now())
	for i := len(m.snaps) - 1; i >= 0; i-- {
		if m.snaps[i].RuleID != ruleID {
			continue
		}
		snap := m.snaps[i]
		if err := m.restore(snap); err != nil {
			return nil, err
		}
		m.snaps = append(m.snaps[:i], m.snaps[i+1:]...)
		return snap, nil
	}
	return nil, ErrNothingToUndo
}

func (m *UndoManager) restore(s *UndoSnapshot) error {
	if s.CreatedEntityID != "" {
		if err := m.tasks.Delete(s.CreatedEntityID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				slog.Warn("undo target already deleted", "task_id", s.CreatedEntityID)
				return nil
			}
			return fmt.Errorf("undo create: %w", err)
		}
		return nil
	}
	if err := m.restorePrevious(s.TargetEntityID, s.Previous); err != nil {
		return err
	}
	for _, sub := range s.SubtaskSnapshots {
		if err := m.restorePrevious(sub.TargetEntityID, sub.Previous); err != nil {
			return err
		}
	}
	return nil
}

func (m *UndoManager) restorePrevious(taskID string, prev PreviousState) error {
	now := m.clock.Now()
	patch := store.TaskPatch{UpdatedAt: &now}
	if prev.SectionID != nil {
		patch.SectionID = prev.SectionID
		patch.MovedToSectionAt = &now
	}
	if prev.Order != nil {
		patch.Order = prev.Order
	}
	if prev.Completed != nil {
		patch.Completed = prev.Completed
		patch.SetCompletedAt = true
		patch.CompletedAt = prev.CompletedAt
	}
	if prev.HasDueDate != nil {
		patch.SetDueDate = true
		patch.DueDate = prev.DueDate
	}
	if err := m.tasks.Update(taskID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("undo target missing", "task_id", taskID)
			return nil
		}
		return fmt.Errorf("undo restore task %s: %w", taskID, err)
	}
	return nil
}

// prune drops snapshots that fell out of the window. Callers hold the lock.
func (m *UndoManager) prune(now int64) {
	kept := m.snaps[:0]
	for _, s := range m.snaps {
		if now-s.Timestamp <= UndoWindowMs {
			kept = append(kept, s)
		}
	}
	m.snaps = kept
}
