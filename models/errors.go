package models

import (
	"fmt"

	"ledgerly/backend/common"
)

// ValidationError reports malformed input rejected at the creation boundary.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Decision is the result of a capacity check. A denied decision carries a
// human-readable reason the UI can render next to an upgrade prompt.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow is the permissive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a negative decision with reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CapacityError is returned when a write is refused because a ceiling was hit.
// It unwraps to common.ErrGuestCapacity or common.ErrPlanLimit.
type CapacityError struct {
	Decision Decision
	Kind     error
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Decision.Reason)
}

func (e *CapacityError) Unwrap() error {
	return e.Kind
}

// NewGuestCapacityError builds the error for a full guest store.
func NewGuestCapacityError(limit int) *CapacityError {
	return &CapacityError{
		Kind:     common.ErrGuestCapacity,
		Decision: Deny(fmt.Sprintf("Guest mode is limited to %d transactions. Create an account to keep going.", limit)),
	}
}

// NewPlanLimitError wraps a denied plan decision.
func NewPlanLimitError(d Decision) *CapacityError {
	return &CapacityError{Kind: common.ErrPlanLimit, Decision: d}
}
