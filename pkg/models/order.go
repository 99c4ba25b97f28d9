package models

import (
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

// Order is an immutable snapshot of an order at evaluation time.
type Order struct {
	ID              string    `json:"id" db:"id"`
	ShopID          string    `json:"shop_id" db:"shop_id"`
	CustomerEmail   *string   `json:"customer_email,omitempty" db:"customer_email"`
	CustomerPhone   *string   `json:"customer_phone,omitempty" db:"customer_phone"`
	CustomerName    *string   `json:"customer_name,omitempty" db:"customer_name"`
	ShippingAddress *Address  `json:"shipping_address,omitempty" db:"-"`
	LineItems       LineItems `json:"line_items" db:"-"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	Dismissed       bool      `json:"dismissed" db:"dismissed"`
}

// Address is a shipping address as received from the commerce platform.
type Address struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
}

// LineItem is one line of an order. Only the SKU participates in matching.
type LineItem struct {
	SKU      *string `json:"sku"`
	Quantity int     `json:"quantity"`
}

type LineItems []LineItem

// SKUs returns the distinct non-empty SKUs of the line items.
func (l LineItems) SKUs() map[string]struct{} {
	skus := make(map[string]struct{}, len(l))
	for _, item := range l {
		if item.SKU == nil {
			continue
		}
		if sku := strings.TrimSpace(*item.SKU); sku != "" {
			skus[sku] = struct{}{}
		}
	}
	return skus
}

// OrderRow is the database projection of an Order. Nested values are stored as JSONB.
type OrderRow struct {
	ID              string                      `db:"id"`
	ShopID          string                      `db:"shop_id"`
	CustomerEmail   *string                     `db:"customer_email"`
	CustomerPhone   *string                     `db:"customer_phone"`
	CustomerName    *string                     `db:"customer_name"`
	ShippingAddress database.NullJSONB[Address] `db:"shipping_address"`
	LineItems       database.JSONB[LineItems]   `db:"line_items"`
	CreatedAt       time.Time                   `db:"created_at"`
	Dismissed       bool                        `db:"dismissed"`
}

// ToOrder converts a row into an Order.
func (r OrderRow) ToOrder() Order {
	return Order{
		ID:              r.ID,
		ShopID:          r.ShopID,
		CustomerEmail:   r.CustomerEmail,
		CustomerPhone:   r.CustomerPhone,
		CustomerName:    r.CustomerName,
		ShippingAddress: r.ShippingAddress.Ptr(),
		LineItems:       r.LineItems.GetValue(),
		CreatedAt:       r.CreatedAt,
		Dismissed:       r.Dismissed,
	}
}

// OrderEventType identifies the upstream event that triggered an evaluation.
type OrderEventType string

const (
	OrderEventCreated OrderEventType = "orders/create"
	OrderEventUpdated OrderEventType = "orders/updated"
)

// OrderEvent is the ingestion envelope for an order-created or order-updated event.
type OrderEvent struct {
	EventType OrderEventType `json:"event_type" validate:"required,oneof=orders/create orders/updated"`
	ShopID    string         `json:"shop_id" validate:"required"`
	Order     Order          `json:"order"`
}
