package rule

import "fmt"

// FilterKind discriminates the filter variant.
type FilterKind string

const (
	FilterInSection    FilterKind = "in_section"
	FilterNotInSection FilterKind = "not_in_section"

	FilterHasDueDate FilterKind = "has_due_date"
	FilterNoDueDate  FilterKind = "no_due_date"
	FilterIsOverdue  FilterKind = "is_overdue"

	FilterDueToday        FilterKind = "due_today"
	FilterNotDueToday     FilterKind = "not_due_today"
	FilterDueTomorrow     FilterKind = "due_tomorrow"
	FilterNotDueTomorrow  FilterKind = "not_due_tomorrow"
	FilterDueThisWeek     FilterKind = "due_this_week"
	FilterNotDueThisWeek  FilterKind = "not_due_this_week"
	FilterDueNextWeek     FilterKind = "due_next_week"
	FilterNotDueNextWeek  FilterKind = "not_due_next_week"
	FilterDueThisMonth    FilterKind = "due_this_month"
	FilterNotDueThisMonth FilterKind = "not_due_this_month"
	FilterDueNextMonth    FilterKind = "due_next_month"
	FilterNotDueNextMonth FilterKind = "not_due_next_month"

	FilterDueInLessThan FilterKind = "due_in_less_than"
	FilterDueInMoreThan FilterKind = "due_in_more_than"
	FilterDueInExactly  FilterKind = "due_in_exactly"
	FilterDueInBetween  FilterKind = "due_in_between"

	FilterIsComplete   FilterKind = "is_complete"
	FilterIsIncomplete FilterKind = "is_incomplete"

	FilterCreatedMoreThan      FilterKind = "created_more_than"
	FilterCompletedMoreThan    FilterKind = "completed_more_than"
	FilterLastUpdatedMoreThan  FilterKind = "last_updated_more_than"
	FilterNotModifiedIn        FilterKind = "not_modified_in"
	FilterOverdueByMoreThan    FilterKind = "overdue_by_more_than"
	FilterInSectionForMoreThan FilterKind = "in_section_for_more_than"
)

// KnownFilterKinds is the closed filter set.
var KnownFilterKinds = map[FilterKind]bool{
	FilterInSection: true, FilterNotInSection: true,
	FilterHasDueDate: true, FilterNoDueDate: true, FilterIsOverdue: true,
	FilterDueToday: true, FilterNotDueToday: true,
	FilterDueTomorrow: true, FilterNotDueTomorrow: true,
	FilterDueThisWeek: true, FilterNotDueThisWeek: true,
	FilterDueNextWeek: true, FilterNotDueNextWeek: true,
	FilterDueThisMonth: true, FilterNotDueThisMonth: true,
	FilterDueNextMonth: true, FilterNotDueNextMonth: true,
	FilterDueInLessThan: true, FilterDueInMoreThan: true,
	FilterDueInExactly: true, FilterDueInBetween: true,
	FilterIsComplete: true, FilterIsIncomplete: true,
	FilterCreatedMoreThan: true, FilterCompletedMoreThan: true,
	FilterLastUpdatedMoreThan: true, FilterNotModifiedIn: true,
	FilterOverdueByMoreThan: true, FilterInSectionForMoreThan: true,
}

// Unit qualifies numeric filter values.
type Unit string

const (
	UnitDays        Unit = "days"
	UnitWorkingDays Unit = "working_days"
)

// Filter is one AND-ed predicate over a card. Only the fields relevant to the
// kind are populated.
type Filter struct {
	Kind FilterKind `json:"kind"`

	// SectionID is required for the section membership kinds and
	// in_section_for_more_than does not use it (it reads the card's own
	// section history).
	SectionID string `json:"sectionId,omitempty"`

	// Value is the threshold for comparison and age kinds.
	Value int `json:"value,omitempty"`

	// MinValue/MaxValue bound due_in_between, inclusive on both ends.
	MinValue int `json:"minValue,omitempty"`
	MaxValue int `json:"maxValue,omitempty"`

	// Unit is days or working_days for comparison and age kinds.
	Unit Unit `json:"unit,omitempty"`
}

// SectionScoped reports whether the filter references a section id, which
// makes it eligible for broken-rule detection.
func (f Filter) SectionScoped() bool {
	return f.Kind == FilterInSection || f.Kind == FilterNotInSection
}

// Validate checks discriminant and field requirements.
func (f Filter) Validate() error {
	if !KnownFilterKinds[f.Kind] {
		return fmt.Errorf("unknown filter kind %q", f.Kind)
	}
	switch f.Kind {
	case FilterInSection, FilterNotInSection:
		if f.SectionID == "" {
			return fmt.Errorf("filter %s requires a section id", f.Kind)
		}
	case FilterDueInLessThan, FilterDueInMoreThan, FilterDueInExactly,
		FilterCreatedMoreThan, FilterCompletedMoreThan,
		FilterLastUpdatedMoreThan, FilterNotModifiedIn,
		FilterOverdueByMoreThan, FilterInSectionForMoreThan:
		if f.Value < 0 {
			return fmt.Errorf("filter %s requires a non-negative value", f.Kind)
		}
		if err := f.validateUnit(); err != nil {
			return err
		}
	case FilterDueInBetween:
		if f.MinValue > f.MaxValue {
			return fmt.Errorf("filter %s requires minValue <= maxValue", f.Kind)
		}
		if err := f.validateUnit(); err != nil {
			return err
		}
	}
	return nil
}

func (f Filter) validateUnit() error {
	switch f.Unit {
	case UnitDays, UnitWorkingDays:
		return nil
	}
	return fmt.Errorf("filter %s requires unit days or working_days, got %q", f.Kind, f.Unit)
}
