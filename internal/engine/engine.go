// Package engine is the automation-rule execution runtime: the filter
// matcher, the action executor with cascading events, the undo snapshot
// manager, the create-card dedup filter, the broken-rule detector, and the
// cascade dispatcher.
//
// The engine is single-writer: all mutation happens synchronously in the
// calling goroutine (a scheduler tick or a host event dispatch), one action
// batch at a time. Events returned by an action are dispatched only after
// that action's metadata updates are committed, so a crash mid-cascade never
// re-fires completed work.
package engine

import (
	"log/slog"

	"github.com/google/uuid"

	"boardflow/internal/rule"
	"boardflow/internal/store"
)

// DefaultMaxCascadeDepth bounds how many hops a cascade may travel from the
// originating event. Past the cap the engine fails closed: further cascades
// are dropped, not errors.
const DefaultMaxCascadeDepth = 5

// IDGenerator generates identities for created entities. Implemented by
// UUIDv7Generator (production) and fixed sequences in tests.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identities.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 as a hyphenated string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Engine composes the stores, clock, undo manager, and cascade dispatcher.
type Engine struct {
	tasks    store.TaskStore
	sections store.SectionStore
	rules    store.RuleStore
	clock    Clock
	undo     *UndoManager
	idGen    IDGenerator
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the identity generator. Tests use fixed sequences
// for deterministic created-card ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.idGen = g }
}

// WithMaxCascadeDepth overrides the cascade depth cap.
func WithMaxCascadeDepth(depth int) Option {
	return func(e *Engine) { e.maxDepth = depth }
}

// New creates an Engine. The undo manager is owned by the engine instance -
// there is deliberately no ambient process-wide undo state.
func New(tasks store.TaskStore, sections store.SectionStore, rules store.RuleStore, clock Clock, opts ...Option) *Engine {
	e := &Engine{
		tasks:    tasks,
		sections: sections,
		rules:    rules,
		clock:    clock,
		idGen:    UUIDv7Generator{},
		maxDepth: DefaultMaxCascadeDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.undo = NewUndoManager(tasks, clock)
	return e
}

// Undo returns the engine's undo snapshot manager.
func (e *Engine) Undo() *UndoManager {
	return e.undo
}

// HandleEvent feeds an external domain event through the cascade
// dispatcher. Hosts call this from their task/section mutation paths; the
// event's depth should be 0.
func (e *Engine) HandleEvent(ev rule.Event) {
	e.Dispatch([]rule.Event{ev})
}

// FireRule executes a scheduled rule's action across its candidate cards and
// dispatches the resulting cascade. It is the scheduler's fire callback.
//
// create_card actions run once per firing; every other action applies to
// each task in the rule's project that passes the rule's filters. Returns
// the number of tasks affected.
func (e *Engine) FireRule(r *rule.Rule) (int, error) {
	now := e.clock.Now()
	var batch []rule.Event
	affected := 0

	if r.Action.Kind == rule.ActionCreateCard {
		res, err := e.ExecuteAction(r, "", nil)
		if err != nil {
			return 0, err
		}
		if !res.Skipped {
			affected++
			batch = append(batch, res.Events...)
		}
	} else {
		tasks, err := e.tasks.FindAll()
		if err != nil {
			return 0, err
		}
		for _, t := range tasks {
			if t.ProjectID != r.ProjectID {
				continue
			}
			ok, err := MatchAll(r.Filters, t, now)
			if err != nil {
				return affected, err
			}
			if !ok {
				continue
			}
			res, err := e.ExecuteAction(r, t.ID, nil)
			if err != nil {
				return affected, err
			}
			if !res.Skipped {
				affected++
				batch = append(batch, res.Events...)
			}
		}
	}

	if len(batch) > 0 {
		e.Dispatch(batch)
	}

	slog.Debug("rule fired",
		"rule_id", r.ID,
		"rule_name", r.Name,
		"tasks_affected", affected,
	)
	return affected, nil
}
