package models

import "time"

// MatchResult is the engine's verdict for a new order against its best-matching prior order.
type MatchResult struct {
	Confidence     int      `json:"confidence"`
	Reasons        []string `json:"reasons"`
	Reason         string   `json:"reason"`
	MatchedOrderID string   `json:"matched_order_id"`
}

// DuplicateFlag statuses
const (
	FlagStatusFlagged   = "flagged"
	FlagStatusDismissed = "dismissed"
	FlagStatusCleared   = "cleared"
)

// DuplicateFlag is the persisted projection of a MatchResult onto a flagged order.
// One row exists per (shop_id, order_id).
type DuplicateFlag struct {
	ID             string     `json:"id" db:"id"`
	ShopID         string     `json:"shop_id" db:"shop_id"`
	OrderID        string     `json:"order_id" db:"order_id"`
	MatchedOrderID string     `json:"matched_order_id" db:"matched_order_id"`
	Confidence     int        `json:"confidence" db:"confidence"`
	Reason         string     `json:"reason" db:"reason"`
	Status         string     `json:"status" db:"status"`
	Notified       bool       `json:"notified" db:"notified"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	DismissedAt    *time.Time `json:"dismissed_at,omitempty" db:"dismissed_at"`
}

// IsActive reports whether the flag is currently visible for review.
func (f *DuplicateFlag) IsActive() bool {
	return f != nil && f.Status == FlagStatusFlagged
}

// DuplicateAlert is the outbound notification payload.
type DuplicateAlert struct {
	ShopID         string    `json:"shop_id"`
	OrderID        string    `json:"order_id"`
	MatchedOrderID string    `json:"matched_order_id"`
	Confidence     int       `json:"confidence"`
	Reason         string    `json:"reason"`
	DetectedAt     time.Time `json:"detected_at"`
}
