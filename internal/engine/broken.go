package engine

import (
	"fmt"
	"log/slog"

	"boardflow/internal/rule"
	"boardflow/internal/store"
)

// DisableRulesForDeletedSection disables every rule whose trigger, filters,
// or action reference the deleted section, marking it broken so the UI can
// explain why it stopped. Returns the disabled rules.
//
// Hosts call this from their section-deletion path before removing the
// section row.
func (e *Engine) DisableRulesForDeletedSection(sectionID string) ([]*rule.Rule, error) {
	rules, err := e.rules.FindAll()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	now := e.clock.Now()
	var disabled []*rule.Rule
	for _, r := range rules {
		if !r.ReferencesSection(sectionID) {
			continue
		}
		enabled := false
		reason := rule.BrokenReasonSectionDeleted
		patch := store.RulePatch{
			Enabled:      &enabled,
			BrokenReason: &reason,
			UpdatedAt:    &now,
		}
		if err := e.rules.Update(r.ID, patch); err != nil {
			return disabled, fmt.Errorf("disable rule %s: %w", r.ID, err)
		}
		r.Enabled = false
		r.BrokenReason = reason
		disabled = append(disabled, r)
		slog.Info("rule disabled, referenced section deleted",
			"rule_id", r.ID,
			"rule_name", r.Name,
			"section_id", sectionID,
		)
	}
	return disabled, nil
}
