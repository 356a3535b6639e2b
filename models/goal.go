package models

import (
	"strings"
	"time"
)

// Goal is a savings target. CurrentAmount only grows, through AddMoney.
type Goal struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	Title         string    `json:"title"`
	TargetAmount  float64   `json:"targetAmount"`
	CurrentAmount float64   `json:"currentAmount"`
	Deadline      Date      `json:"deadline"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GoalInput holds the user-editable fields of a goal.
type GoalInput struct {
	Title        string  `json:"title"`
	TargetAmount float64 `json:"targetAmount"`
	Deadline     Date    `json:"deadline"`
	Description  string  `json:"description,omitempty"`
}

// Validate rejects malformed goal input.
func (in GoalInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "is required")
	}
	if in.TargetAmount <= 0 {
		return invalid("targetAmount", "must be greater than zero")
	}
	if in.Deadline.IsZero() {
		return invalid("deadline", "is required")
	}
	return nil
}

// AddMoneyRequest adds a manual contribution to a goal. When FromBalance is set,
// an offsetting expense transaction is recorded as well, dated OccurredOn. OccurredOn
// is the caller's calendar date; the handler fills it from its clock when omitted.
type AddMoneyRequest struct {
	Amount      float64 `json:"amount"`
	FromBalance bool    `json:"fromBalance"`
	OccurredOn  Date    `json:"occurredOn,omitempty"`
}

// Validate rejects non-positive contributions.
func (r AddMoneyRequest) Validate() error {
	if r.Amount <= 0 {
		return invalid("amount", "must be greater than zero")
	}
	return nil
}

// GoalProgress is the derived state of a goal. It is never stored.
type GoalProgress struct {
	IncomeContribution float64 `json:"incomeContribution"`
	EffectiveAmount    float64 `json:"effectiveAmount"`
	Percentage         float64 `json:"percentage"`
	Remaining          float64 `json:"remaining"`
	IsCompleted        bool    `json:"isCompleted"`
}
