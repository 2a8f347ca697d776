package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardflow/internal/board"
	"boardflow/internal/rule"
)

func TestFireRuleAppliesToMatchingTasks(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "a", DueDate: msPtr(matchNow - 2*dayMs)})
	f.seedTask(t, &board.Task{ID: "t2", SectionID: "sec-a", Title: "b", DueDate: msPtr(matchNow + 2*dayMs)})
	f.seedTask(t, &board.Task{ID: "t3", SectionID: "sec-a", Title: "c"})
	f.seedTask(t, &board.Task{ID: "other", ProjectID: "p2", SectionID: "sec-a", Title: "other project", DueDate: msPtr(matchNow - 2*dayMs)})
	r := f.seedRule(t, &rule.Rule{
		ID:        "r1",
		ProjectID: "p1",
		Trigger:   rule.Trigger{Kind: rule.TriggerScheduledInterval, Schedule: &rule.Schedule{IntervalMinutes: 60}},
		Filters:   []rule.Filter{{Kind: rule.FilterIsOverdue}},
		Action:    rule.Action{Kind: rule.ActionMoveToBottom, SectionID: "sec-b"},
	})

	affected, err := f.engine.FireRule(r)
	require.NoError(t, err)
	assert.Equal(t, 1, affected)
	assert.Equal(t, "sec-b", f.task(t, "t1").SectionID)
	assert.Equal(t, "sec-a", f.task(t, "t2").SectionID)
	assert.Equal(t, "sec-a", f.task(t, "other").SectionID, "scoped to the rule's project")
}

func TestFireRuleCreateCardRunsOnce(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "a"})
	f.seedTask(t, &board.Task{ID: "t2", SectionID: "sec-a", Title: "b"})
	r := f.seedRule(t, &rule.Rule{
		ID:        "r1",
		ProjectID: "p1",
		Trigger:   rule.Trigger{Kind: rule.TriggerScheduledInterval, Schedule: &rule.Schedule{IntervalMinutes: 60}},
		Action:    rule.Action{Kind: rule.ActionCreateCard, SectionID: "sec-b", CardTitle: "Standup"},
	})

	affected, err := f.engine.FireRule(r)
	require.NoError(t, err)
	assert.Equal(t, 1, affected)

	created, err := f.tasks.FindBySectionID("sec-b")
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestFireRuleDispatchesCascade(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, &board.Task{ID: "t1", SectionID: "sec-a", Title: "a", DueDate: msPtr(matchNow - 2*dayMs)})
	scheduled := f.seedRule(t, &rule.Rule{
		ID:        "r-sched",
		ProjectID: "p1",
		Trigger:   rule.Trigger{Kind: rule.TriggerScheduledInterval, Schedule: &rule.Schedule{IntervalMinutes: 60}},
		Filters:   []rule.Filter{{Kind: rule.FilterIsOverdue}},
		Action:    rule.Action{Kind: rule.ActionMoveToBottom, SectionID: "sec-b"},
	})
	f.seedRule(t, &rule.Rule{
		ID:      "r-chain",
		Trigger: rule.Trigger{Kind: rule.TriggerCardMovedIntoSection, SectionID: "sec-b"},
		Action:  rule.Action{Kind: rule.ActionMarkComplete},
	})

	_, err := f.engine.FireRule(scheduled)
	require.NoError(t, err)

	task := f.task(t, "t1")
	assert.Equal(t, "sec-b", task.SectionID)
	assert.True(t, task.Completed, "event rule chained off the scheduled firing")
}
