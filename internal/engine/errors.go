package engine

import (
	"errors"
	"fmt"
)

// RuleError represents a programming-invariant violation detected during
// rule evaluation: an unrecognized action, filter, or date option, or a
// cascade exceeding its depth cap.
//
// The variant sets are closed, so an unknown discriminant means a
// code/schema mismatch, not a data-level edge case. Missing entities and
// malformed params are silent skips instead, never RuleErrors.
type RuleError struct {
	// Code identifies the error category.
	Code RuleErrorCode

	// Message is a human-readable description.
	Message string

	// RuleID identifies the affected rule, when known.
	RuleID string
}

// RuleErrorCode categorizes rule errors.
type RuleErrorCode string

const (
	// ErrCodeUnknownAction indicates an action kind outside the closed set.
	ErrCodeUnknownAction RuleErrorCode = "UNKNOWN_ACTION"

	// ErrCodeUnknownFilter indicates a filter kind outside the closed set.
	ErrCodeUnknownFilter RuleErrorCode = "UNKNOWN_FILTER"

	// ErrCodeUnknownDateOption indicates a date option outside the closed set.
	ErrCodeUnknownDateOption RuleErrorCode = "UNKNOWN_DATE_OPTION"

	// ErrCodeDepthExceeded indicates a cascade ran past the depth cap.
	ErrCodeDepthExceeded RuleErrorCode = "DEPTH_EXCEEDED"
)

// Error implements the error interface.
func (e *RuleError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.RuleID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownDiscriminant reports whether err is a closed-set violation.
// Uses errors.As to handle wrapped errors.
func IsUnknownDiscriminant(err error) bool {
	var re *RuleError
	if errors.As(err, &re) {
		switch re.Code {
		case ErrCodeUnknownAction, ErrCodeUnknownFilter, ErrCodeUnknownDateOption:
			return true
		}
	}
	return false
}

func newUnknownActionError(ruleID, kind string) *RuleError {
	return &RuleError{
		Code:    ErrCodeUnknownAction,
		Message: fmt.Sprintf("unrecognized action kind %q", kind),
		RuleID:  ruleID,
	}
}

func newUnknownFilterError(ruleID, kind string) *RuleError {
	return &RuleError{
		Code:    ErrCodeUnknownFilter,
		Message: fmt.Sprintf("unrecognized filter kind %q", kind),
		RuleID:  ruleID,
	}
}

func newUnknownDateOptionError(ruleID, option string) *RuleError {
	return &RuleError{
		Code:    ErrCodeUnknownDateOption,
		Message: fmt.Sprintf("unrecognized date option %q", option),
		RuleID:  ruleID,
	}
}

func newDepthExceededError(ruleID string, depth int) *RuleError {
	return &RuleError{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("cascade reached depth %d, event dropped", depth),
		RuleID:  ruleID,
	}
}
