package engine

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"boardflow/internal/rule"
)

// defaultDedupLookbackMs is the duplicate-suppression window for rules
// without an interval schedule.
const defaultDedupLookbackMs = 24 * 60 * 60 * 1000

// isDuplicateCard reports whether the rule's create_card action would
// produce a card equivalent to one it already created inside the lookback
// window. Equivalence is same section plus canonically equal title;
// without it an interval rule would pile up identical cards every tick.
func (e *Engine) isDuplicateCard(r *rule.Rule, sectionID string, now int64) (bool, error) {
	lookback := int64(defaultDedupLookbackMs)
	if r.Trigger.Kind == rule.TriggerScheduledInterval && r.Trigger.Schedule != nil && r.Trigger.Schedule.IntervalMinutes > 0 {
		lookback = int64(r.Trigger.Schedule.IntervalMinutes) * 60_000
	}
	want := canonicalTitle(r.Action.CardTitle)

	tasks, err := e.tasks.FindBySectionID(sectionID)
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if now-t.CreatedAt > lookback {
			continue
		}
		if canonicalTitle(t.Title) == want {
			return true, nil
		}
	}
	return false, nil
}

// canonicalTitle folds a title to its comparison form: NFC so composed and
// decomposed accents compare equal, trimmed, case-insensitive.
func canonicalTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}
