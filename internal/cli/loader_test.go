package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardflow/internal/dates"
	"boardflow/internal/rule"
)

func writeRuleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validRuleFile = `
rules:
  - id: r-archive
    project: p1
    name: Archive completed cards
    order: 1
    when:
      trigger: card_marked_complete
    if:
      - filter: in_section
        section: sec-doing
    then:
      action: move_card_to_bottom_of_section
      section: sec-done
  - project: p1
    name: Weekly review card
    order: 2
    when:
      trigger: scheduled_cron
      schedule:
        cron: "0 9 * * 1"
    then:
      action: create_card
      section: sec-inbox
      card_title: Weekly review
      card_date_option: tomorrow
`

func TestLoadRulesValidFile(t *testing.T) {
	rules, errs := LoadRules(writeRuleFile(t, validRuleFile))
	require.Empty(t, errs)
	require.Len(t, rules, 2)

	archive := rules[0]
	assert.Equal(t, "r-archive", archive.ID)
	assert.Equal(t, "p1", archive.ProjectID)
	assert.True(t, archive.Enabled)
	assert.Equal(t, rule.TriggerCardMarkedComplete, archive.Trigger.Kind)
	require.Len(t, archive.Filters, 1)
	assert.Equal(t, rule.FilterInSection, archive.Filters[0].Kind)
	assert.Equal(t, rule.ActionMoveToBottom, archive.Action.Kind)

	weekly := rules[1]
	assert.NotEmpty(t, weekly.ID, "missing ids are generated")
	assert.Equal(t, rule.TriggerScheduledCron, weekly.Trigger.Kind)
	require.NotNil(t, weekly.Trigger.Schedule.Cron)
	assert.Equal(t, "0 9 * * 1", weekly.Trigger.Schedule.Cron.String())
	assert.Equal(t, dates.OptionTomorrow, weekly.Action.CardDateOption)
}

func TestLoadRulesCollectsAllErrors(t *testing.T) {
	path := writeRuleFile(t, `
rules:
  - project: p1
    name: bad trigger
    when:
      trigger: card_levitated
    then:
      action: mark_card_complete
  - project: p1
    name: bad cron
    when:
      trigger: scheduled_cron
      schedule:
        cron: "not a cron"
    then:
      action: mark_card_complete
  - project: p1
    name: fine
    when:
      trigger: card_marked_complete
    then:
      action: remove_due_date
`)
	rules, errs := LoadRules(path)
	assert.Len(t, errs, 2, "both broken rules reported")
	require.Len(t, rules, 1)
	assert.Equal(t, "fine", rules[0].Name)
}

func TestLoadRulesRejectsEventTriggerWithSchedule(t *testing.T) {
	path := writeRuleFile(t, `
rules:
  - project: p1
    name: contradictory
    when:
      trigger: card_marked_complete
      schedule:
        interval_minutes: 5
    then:
      action: remove_due_date
`)
	_, errs := LoadRules(path)
	assert.Len(t, errs, 1)
}

func TestLoadRulesEmptyFile(t *testing.T) {
	_, errs := LoadRules(writeRuleFile(t, "rules: []\n"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no rules")
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, errs := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Len(t, errs, 1)
}
