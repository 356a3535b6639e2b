package models

import "time"

// Dead-letter states.
const (
	DeadLetterPending   = "pending"
	DeadLetterResolved  = "resolved"
	DeadLetterAbandoned = "abandoned"
)

// DeadLetter is a billing event whose processing failed and awaits redelivery.
type DeadLetter struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Payload   []byte    `json:"-"`
	LastError string    `json:"lastError"`
	Attempts  int       `json:"attempts"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
