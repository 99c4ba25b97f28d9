package models

import "time"

// DeadLetterReason explains why an order event could not be evaluated
type DeadLetterReason string

const (
	DeadLetterMalformed        DeadLetterReason = "malformed"
	DeadLetterRejected         DeadLetterReason = "rejected"
	DeadLetterRetriesExhausted DeadLetterReason = "retries_exhausted"
)

// DeadLetter is an order event parked for operator inspection and replay.
type DeadLetter struct {
	ID           string           `json:"id"`
	ShopID       string           `json:"shop_id,omitempty"`
	OrderID      string           `json:"order_id,omitempty"`
	Topic        string           `json:"topic"`
	Partition    int              `json:"partition"`
	Offset       int64            `json:"offset"`
	Key          string           `json:"key"`
	Payload      string           `json:"payload"`
	Reason       DeadLetterReason `json:"reason"`
	ErrorMessage string           `json:"error_message"`
	Attempts     int              `json:"attempts"`
	CreatedAt    time.Time        `json:"created_at"`
	TraceID      string           `json:"trace_id,omitempty"`
}
