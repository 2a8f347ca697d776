package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardflow/internal/board"
	"boardflow/internal/dates"
	"boardflow/internal/rule"
	"boardflow/internal/store"
	"boardflow/internal/testutil"
)

type seqIDGen struct{ n int }

func (g *seqIDGen) Generate() string {
	g.n++
	return fmt.Sprintf("gen-%d", g.n)
}

type fixture struct {
	engine   *Engine
	tasks    *store.MemoryTaskStore
	sections *store.MemorySectionStore
	rules    *store.MemoryRuleStore
	clock    *testutil.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tasks:    store.NewMemoryTaskStore(),
		sections: store.NewMemorySectionStore(),
		rules:    store.NewMemoryRuleStore(),
		clock:    testutil.NewFakeClock(matchNow),
	}
	f.engine = New(f.tasks, f.sections, f.rules, f.clock, WithIDGenerator(&seqIDGen{}))

	for _, id := range []string{"sec-a", "sec-b", "sec-done"} {
		f.sections.Put(&board.Section{ID: id, ProjectID: "p1", Name: id})
	}
	return f
}

func (f *fixture) seedTask(t *testing.T, task *board.Task) {
	t.Helper()
	if task.ProjectID == "" {
		task.ProjectID = "p1"
	}
	if task.CreatedAt == 0 {
		task.CreatedAt = f.clock.Now()
	}
	require.NoError(t, f.tasks.Create(task))
}

func (f *fixture) seedRule(t *testing.T, r *rule.Rule) *rule.Rule {
	t.Helper()
	if r.ProjectID == "" {
		r.ProjectID = "p1"
	}
	r.Enabled = true
	require.NoError(t, f.rules.Create(r))
	return r
}

func (f *fixture) task(t *testing.T, id string) *board.Task {
	t.Helper()
	task, err := f.tasks.FindByID(id)
	require.NoError(t, err)
	return task
}

func (f *fixture) rule(t *testing.T, id string) *rule.Rule {
	t.Helper()
	r, err := f.rules.FindByID(id)
	require.NoError(t, err)
	return r
}

func TestExecuteMoveCardToTop(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-b", Title: "existing", Order: 3})
	f.seedTask(t, &board.Task{ID: "t2", SectionID: "sec-b", Title: "also existing", Order: 7})
	f.seedTask(t, &board.Task{ID: "mover", SectionID: "sec-a", Title: "mover", Order: 1})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Name:    "to top",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMarkedComplete},
		Action:  rule.Action{Kind: rule.ActionMoveToTop, SectionID: "sec-b"},
	})

	res, err := f.engine.ExecuteAction(r, "mover", nil)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	moved := f.task(t, "mover")
	assert.Equal(t, "sec-b", moved.SectionID)
	assert.Equal(t, float64(2), moved.Order, "strictly above the current minimum")
	assert.Equal(t, f.clock.Now(), moved.MovedToSectionAt)

	require.Len(t, res.Events, 1)
	assert.Equal(t, rule.EventTaskUpdated, res.Events[0].Type)
	assert.Equal(t, "sec-b", res.Events[0].Changes["sectionId"])
	assert.Equal(t, "r1", res.Events[0].TriggeredByRule)
}

func TestExecuteMoveCardToBottomEmptySection(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "mover", SectionID: "sec-a", Title: "mover", Order: 5})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMarkedComplete},
		Action:  rule.Action{Kind: rule.ActionMoveToBottom, SectionID: "sec-done"},
	})

	res, err := f.engine.ExecuteAction(r, "mover", nil)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.Equal(t, float64(1), f.task(t, "mover").Order)
}

func TestExecuteMoveMissingTaskSkips(t *testing.T) {
	f := newFixture(t)
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMarkedComplete},
		Action:  rule.Action{Kind: rule.ActionMoveToTop, SectionID: "sec-b"},
	})

	res, err := f.engine.ExecuteAction(r, "ghost", nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, f.rule(t, "r1").ExecutionCount, "skips record no execution")
}

func TestExecuteMoveToDeletedSectionSkips(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "t"})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMarkedComplete},
		Action:  rule.Action{Kind: rule.ActionMoveToTop, SectionID: "sec-gone"},
	})

	res, err := f.engine.ExecuteAction(r, "t1", nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "sec-a", f.task(t, "t1").SectionID)
}

func TestExecuteMarkCompleteCascadesToSubtasks(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "parent", SectionID: "sec-a", Title: "parent"})
	f.seedTask(t, &board.Task{ID: "sub1", SectionID: "sec-a", Title: "sub1", ParentID: "parent"})
	f.seedTask(t, &board.Task{ID: "sub2", SectionID: "sec-a", Title: "sub2", ParentID: "parent", Completed: true, CompletedAt: msPtr(matchNow - dayMs)})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMovedIntoSection, SectionID: "sec-a"},
		Action:  rule.Action{Kind: rule.ActionMarkComplete},
	})

	res, err := f.engine.ExecuteAction(r, "parent", nil)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	for _, id := range []string{"parent", "sub1"} {
		task := f.task(t, id)
		assert.True(t, task.Completed, id)
		require.NotNil(t, task.CompletedAt, id)
		assert.Equal(t, f.clock.Now(), *task.CompletedAt, id)
	}
	// Already-complete subtask is untouched and not snapshotted.
	assert.Equal(t, matchNow-dayMs, *f.task(t, "sub2").CompletedAt)
	require.Len(t, res.Snapshot.SubtaskSnapshots, 1)
	assert.Equal(t, "sub1", res.Snapshot.SubtaskSnapshots[0].TargetEntityID)

	// Parent plus one subtask changed.
	assert.Len(t, res.Events, 2)
}

func TestExecuteMarkCompleteNoopSkips(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "t", Completed: true})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMovedIntoSection},
		Action:  rule.Action{Kind: rule.ActionMarkComplete},
	})

	res, err := f.engine.ExecuteAction(r, "t1", nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestExecuteMarkIncompleteLeavesSubtasks(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "parent", SectionID: "sec-a", Title: "parent", Completed: true, CompletedAt: msPtr(matchNow - dayMs)})
	f.seedTask(t, &board.Task{ID: "sub", SectionID: "sec-a", Title: "sub", ParentID: "parent", Completed: true, CompletedAt: msPtr(matchNow - dayMs)})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMovedIntoSection},
		Action:  rule.Action{Kind: rule.ActionMarkIncomplete},
	})

	_, err := f.engine.ExecuteAction(r, "parent", nil)
	require.NoError(t, err)

	parent := f.task(t, "parent")
	assert.False(t, parent.Completed)
	assert.Nil(t, parent.CompletedAt)
	assert.True(t, f.task(t, "sub").Completed, "reopening a parent leaves subtasks alone")
}

func TestExecuteSetDueDate(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "t"})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardCreatedInSection},
		Action:  rule.Action{Kind: rule.ActionSetDueDate, DateOption: dates.OptionTomorrow},
	})

	res, err := f.engine.ExecuteAction(r, "t1", nil)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	task := f.task(t, "t1")
	require.NotNil(t, task.DueDate)
	assert.Equal(t, ms(2024, 6, 13, 0), *task.DueDate, "midnight of the next day")
}

func TestExecuteSetDueDateUnknownOption(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "t"})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardCreatedInSection},
		Action:  rule.Action{Kind: rule.ActionSetDueDate, DateOption: "someday"},
	})

	_, err := f.engine.ExecuteAction(r, "t1", nil)
	require.Error(t, err)
	assert.True(t, IsUnknownDiscriminant(err))
}

func TestExecuteSetDueDateMissingOptionSkips(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "t"})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardCreatedInSection},
		Action:  rule.Action{Kind: rule.ActionSetDueDate},
	})

	res, err := f.engine.ExecuteAction(r, "t1", nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "missing date option", res.SkipReason)

	assert.Nil(t, f.task(t, "t1").DueDate)
	assert.Equal(t, 0, f.rule(t, "r1").ExecutionCount, "a skipped action records nothing")
}

func TestExecuteRemoveDueDate(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "t", DueDate: msPtr(matchNow)})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMarkedComplete},
		Action:  rule.Action{Kind: rule.ActionRemoveDueDate},
	})

	res, err := f.engine.ExecuteAction(r, "t1", nil)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.Nil(t, f.task(t, "t1").DueDate)

	// Removing again is a no-op skip.
	res, err = f.engine.ExecuteAction(r, "t1", nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestExecuteCreateCard(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-b", Title: "old", Order: 4})
	r := f.seedRule(t, &rule.Rule{
		ID:        "r1",
		ProjectID: "p1",
		Trigger:   rule.Trigger{Kind: rule.TriggerScheduledInterval, Schedule: &rule.Schedule{IntervalMinutes: 60}},
		Action: rule.Action{
			Kind:           rule.ActionCreateCard,
			SectionID:      "sec-b",
			CardTitle:      "Water the plants",
			CardDateOption: dates.OptionToday,
		},
	})

	res, err := f.engine.ExecuteAction(r, "", nil)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	created := f.task(t, "gen-1")
	assert.Equal(t, "Water the plants", created.Title)
	assert.Equal(t, "sec-b", created.SectionID)
	assert.Equal(t, "p1", created.ProjectID)
	assert.Equal(t, float64(5), created.Order, "placed at the bottom")
	require.NotNil(t, created.DueDate)
	assert.Equal(t, ms(2024, 6, 12, 0), *created.DueDate)

	require.Len(t, res.Events, 1)
	assert.Equal(t, rule.EventTaskCreated, res.Events[0].Type)
	assert.Equal(t, "gen-1", res.Events[0].EntityID)
	assert.Equal(t, "gen-1", res.Snapshot.CreatedEntityID)
}

func TestExecuteCreateCardDedup(t *testing.T) {
	f := newFixture(t)
	r := f.seedRule(t, &rule.Rule{
		ID:        "r1",
		ProjectID: "p1",
		Trigger:   rule.Trigger{Kind: rule.TriggerScheduledInterval, Schedule: &rule.Schedule{IntervalMinutes: 60}},
		Action:    rule.Action{Kind: rule.ActionCreateCard, SectionID: "sec-b", CardTitle: "Daily standup"},
	})

	res, err := f.engine.ExecuteAction(r, "", nil)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	// Same lookback window: suppressed, even with cosmetic title drift.
	f.clock.Advance(30 * 60_000)
	r2 := f.rule(t, "r1")
	r2.Action.CardTitle = "  daily STANDUP "
	res, err = f.engine.ExecuteAction(r2, "", nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "duplicate suppressed", res.SkipReason)

	// Past the interval lookback the card is created again.
	f.clock.Advance(31 * 60_000)
	res, err = f.engine.ExecuteAction(f.rule(t, "r1"), "", nil)
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	all, err := f.tasks.FindBySectionID("sec-b")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestExecuteCreateCardEmptyTitleSkips(t *testing.T) {
	f := newFixture(t)
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerScheduledInterval, Schedule: &rule.Schedule{IntervalMinutes: 60}},
		Action:  rule.Action{Kind: rule.ActionCreateCard, SectionID: "sec-b"},
	})

	res, err := f.engine.ExecuteAction(r, "", nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestExecuteRecordsMetadata(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "the card"})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMarkedComplete},
		Action:  rule.Action{Kind: rule.ActionMoveToTop, SectionID: "sec-b"},
	})

	_, err := f.engine.ExecuteAction(r, "t1", nil)
	require.NoError(t, err)

	stored := f.rule(t, "r1")
	assert.Equal(t, 1, stored.ExecutionCount)
	require.NotNil(t, stored.LastExecutedAt)
	assert.Equal(t, f.clock.Now(), *stored.LastExecutedAt)
	require.Len(t, stored.RecentExecutions, 1)
	assert.Equal(t, "the card", stored.RecentExecutions[0].TaskName)
}

func TestExecutionLogCapped(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "t", DueDate: msPtr(matchNow)})
	f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardCreatedInSection},
		Action:  rule.Action{Kind: rule.ActionSetDueDate, DateOption: dates.OptionTomorrow},
	})

	for i := 0; i < rule.MaxRecentExecutions+5; i++ {
		f.clock.Advance(1)
		_, err := f.engine.ExecuteAction(f.rule(t, "r1"), "t1", nil)
		require.NoError(t, err)
	}

	stored := f.rule(t, "r1")
	assert.Equal(t, rule.MaxRecentExecutions+5, stored.ExecutionCount)
	assert.Len(t, stored.RecentExecutions, rule.MaxRecentExecutions)
	// Oldest entries dropped: the newest entry carries the latest timestamp.
	last := stored.RecentExecutions[len(stored.RecentExecutions)-1]
	assert.Equal(t, f.clock.Now(), last.Timestamp)
}

func TestExecuteEventDepthPropagation(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "t"})
	r := f.seedRule(t, &rule.Rule{
		ID:      "r1",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMovedIntoSection},
		Action:  rule.Action{Kind: rule.ActionMoveToTop, SectionID: "sec-b"},
	})

	ev := &rule.Event{Type: rule.EventTaskUpdated, EntityID: "t1", ProjectID: "p1", Depth: 2}
	res, err := f.engine.ExecuteAction(r, "t1", ev)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, 3, res.Events[0].Depth)
}

func TestResolveSectionFromEvent(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "t"})
	r := f.seedRule(t, &rule.Rule{
		ID:        "r1",
		ProjectID: "p1",
		Trigger:   rule.Trigger{Kind: rule.TriggerSectionCreated},
		Action:    rule.Action{Kind: rule.ActionCreateCard, SectionID: rule.SectionFromEvent, CardTitle: "Welcome"},
	})

	ev := &rule.Event{Type: rule.EventSectionCreated, EntityID: "sec-b", ProjectID: "p1"}
	res, err := f.engine.ExecuteAction(r, "", ev)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.Equal(t, "sec-b", f.task(t, "gen-1").SectionID)
}
