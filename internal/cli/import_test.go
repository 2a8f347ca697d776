package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardflow/internal/store"
)

func TestImportCommandWritesRules(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	rulePath := writeRuleFile(t, validRuleFile)

	out, err := execute(t, "import", "--db", dbPath, rulePath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 rule(s) imported")

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	rules, err := db.Rules().FindAll()
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestImportCommandIsAllOrNothing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	rulePath := writeRuleFile(t, `
rules:
  - project: p1
    name: fine
    when:
      trigger: card_marked_complete
    then:
      action: remove_due_date
  - project: p1
    name: broken
    when:
      trigger: card_levitated
    then:
      action: remove_due_date
`)

	_, err := execute(t, "import", "--db", dbPath, rulePath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	rules, err := db.Rules().FindAll()
	require.NoError(t, err)
	assert.Empty(t, rules, "nothing written when any rule is invalid")
}

func TestRulesListCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	rulePath := writeRuleFile(t, validRuleFile)
	_, err := execute(t, "import", "--db", dbPath, rulePath)
	require.NoError(t, err)

	out, err := execute(t, "rules", "list", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Archive completed cards")
	assert.Contains(t, out, "Every Monday at 09:00")
	assert.Contains(t, out, "enabled")
}
