package models

import (
	"strings"
	"time"
)

// GuestOwnerID is the owner sentinel for transactions recorded in guest mode.
const GuestOwnerID = "guest"

// Kind is the direction of a cash movement.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is income or expense.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Transaction is one recorded cash movement.
type Transaction struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Kind        Kind      `json:"kind"`
	Category    Category  `json:"category"`
	CustomLabel string    `json:"customLabel,omitempty"`
	Amount      float64   `json:"amount"`
	OccurredOn  Date      `json:"occurredOn"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TransactionInput holds the user-editable fields of a transaction.
type TransactionInput struct {
	Kind        Kind     `json:"kind"`
	Category    Category `json:"category"`
	CustomLabel string   `json:"customLabel,omitempty"`
	Amount      float64  `json:"amount"`
	OccurredOn  Date     `json:"occurredOn"`
}

// Normalize trims the custom label and drops it for categories other than Other.
func (in *TransactionInput) Normalize() {
	in.CustomLabel = strings.TrimSpace(in.CustomLabel)
	if in.Category != CategoryOther {
		in.CustomLabel = ""
	}
}

// Validate rejects input that would break the transaction invariants. Nothing is coerced.
func (in TransactionInput) Validate() error {
	if !in.Kind.Valid() {
		return invalid("kind", "must be income or expense")
	}
	if !in.Category.Valid() {
		return invalid("category", "unknown category %q", in.Category)
	}
	if in.Amount <= 0 {
		return invalid("amount", "must be greater than zero")
	}
	label := strings.TrimSpace(in.CustomLabel)
	if in.Category == CategoryOther && label == "" {
		return invalid("customLabel", "is required when category is Other")
	}
	if in.OccurredOn.IsZero() {
		return invalid("occurredOn", "is required")
	}
	return nil
}

// Apply copies the editable fields onto t. ID, OwnerID and CreatedAt are untouched.
func (in TransactionInput) Apply(t *Transaction) {
	t.Kind = in.Kind
	t.Category = in.Category
	t.CustomLabel = in.CustomLabel
	t.Amount = in.Amount
	t.OccurredOn = in.OccurredOn
}

// Input returns the editable subset of t.
func (t Transaction) Input() TransactionInput {
	return TransactionInput{
		Kind:        t.Kind,
		Category:    t.Category,
		CustomLabel: t.CustomLabel,
		Amount:      t.Amount,
		OccurredOn:  t.OccurredOn,
	}
}

// TransactionFilter narrows a transaction listing. Zero values mean no filter.
type TransactionFilter struct {
	Kind     Kind
	Category Category
	From     Date
	To       Date
}

// Matches reports whether t passes the filter.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && t.OccurredOn.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.OccurredOn.After(f.To) {
		return false
	}
	return true
}
