package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"boardflow/internal/cronspec"
	"boardflow/internal/dates"
	"boardflow/internal/rule"
)

// ruleFile is the YAML rule-file schema: a list of when/if/then blocks.
type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	ID      string     `yaml:"id"`
	Project string     `yaml:"project"`
	Name    string     `yaml:"name"`
	Order   int        `yaml:"order"`
	Enabled *bool      `yaml:"enabled"`
	When    whenSpec   `yaml:"when"`
	If      []ifSpec   `yaml:"if"`
	Then    thenSpec   `yaml:"then"`
}

type whenSpec struct {
	Trigger  string        `yaml:"trigger"`
	Section  string        `yaml:"section"`
	Schedule *scheduleSpec `yaml:"schedule"`
}

type scheduleSpec struct {
	IntervalMinutes int    `yaml:"interval_minutes"`
	Cron            string `yaml:"cron"`
	OffsetDays      int    `yaml:"offset_days"`
	At              int64  `yaml:"at"`
}

type ifSpec struct {
	Filter  string `yaml:"filter"`
	Section string `yaml:"section"`
	Value   int    `yaml:"value"`
	Min     int    `yaml:"min"`
	Max     int    `yaml:"max"`
	Unit    string `yaml:"unit"`
}

type thenSpec struct {
	Action         string         `yaml:"action"`
	Section        string         `yaml:"section"`
	DateOption     string         `yaml:"date_option"`
	DateParams     dateParamsSpec `yaml:"date_params"`
	CardTitle      string         `yaml:"card_title"`
	CardDateOption string         `yaml:"card_date_option"`
}

type dateParamsSpec struct {
	Day         int    `yaml:"day"`
	Month       int    `yaml:"month"`
	MonthTarget string `yaml:"month_target"`
}

// LoadRules reads a YAML rule file and converts every entry, collecting
// per-rule errors so a validate run reports them all at once. Returned
// rules are already validated.
func LoadRules(path string) ([]*rule.Rule, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("read rule file: %w", err)}
	}
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, []error{fmt.Errorf("parse rule file: %w", err)}
	}
	if len(file.Rules) == 0 {
		return nil, []error{fmt.Errorf("rule file %s contains no rules", path)}
	}

	var rules []*rule.Rule
	var errs []error
	for i, spec := range file.Rules {
		r, err := spec.toRule()
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d (%s): %w", i, spec.Name, err))
			continue
		}
		rules = append(rules, r)
	}
	return rules, errs
}

func (s ruleSpec) toRule() (*rule.Rule, error) {
	r := &rule.Rule{
		ID:        s.ID,
		ProjectID: s.Project,
		Name:      s.Name,
		Order:     s.Order,
		Enabled:   true,
	}
	if r.ID == "" {
		r.ID = uuid.Must(uuid.NewV7()).String()
	}
	if s.Enabled != nil {
		r.Enabled = *s.Enabled
	}

	trigger := rule.Trigger{
		Kind:      rule.TriggerKind(s.When.Trigger),
		SectionID: s.When.Section,
	}
	if s.When.Schedule != nil {
		sched := &rule.Schedule{
			IntervalMinutes: s.When.Schedule.IntervalMinutes,
			OffsetDays:      s.When.Schedule.OffsetDays,
			At:              s.When.Schedule.At,
		}
		if s.When.Schedule.Cron != "" {
			cron, err := cronspec.Parse(s.When.Schedule.Cron)
			if err != nil {
				return nil, fmt.Errorf("schedule: %w", err)
			}
			sched.Cron = &cron
		}
		trigger.Schedule = sched
	}
	r.Trigger = trigger

	for _, f := range s.If {
		r.Filters = append(r.Filters, rule.Filter{
			Kind:      rule.FilterKind(f.Filter),
			SectionID: f.Section,
			Value:     f.Value,
			MinValue:  f.Min,
			MaxValue:  f.Max,
			Unit:      rule.Unit(f.Unit),
		})
	}

	r.Action = rule.Action{
		Kind:       rule.ActionKind(s.Then.Action),
		SectionID:  s.Then.Section,
		DateOption: dates.Option(s.Then.DateOption),
		DateParams: rule.DateParams{
			Day:         s.Then.DateParams.Day,
			Month:       s.Then.DateParams.Month,
			MonthTarget: s.Then.DateParams.MonthTarget,
		},
		CardTitle:      s.Then.CardTitle,
		CardDateOption: dates.Option(s.Then.CardDateOption),
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
