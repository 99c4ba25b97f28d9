package matching

import (
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
)

var baseTime = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string {
	return &s
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type orderOption func(*models.Order)

func withEmail(email string) orderOption {
	return func(o *models.Order) { o.CustomerEmail = strPtr(email) }
}

func withPhone(phone string) orderOption {
	return func(o *models.Order) { o.CustomerPhone = strPtr(phone) }
}

func withName(name string) orderOption {
	return func(o *models.Order) { o.CustomerName = strPtr(name) }
}

func withAddress(address1, city, zip string) orderOption {
	return func(o *models.Order) {
		o.ShippingAddress = &models.Address{Address1: address1, City: city, Zip: zip, Country: "US"}
	}
}

func withSKUs(skus ...string) orderOption {
	return func(o *models.Order) {
		for _, sku := range skus {
			o.LineItems = append(o.LineItems, models.LineItem{SKU: strPtr(sku), Quantity: 1})
		}
	}
}

func withCreatedAt(t time.Time) orderOption {
	return func(o *models.Order) { o.CreatedAt = t }
}

func dismissed() orderOption {
	return func(o *models.Order) { o.Dismissed = true }
}

func newOrder(id string, opts ...orderOption) models.Order {
	o := models.Order{ID: id, ShopID: "shop-1", CreatedAt: baseTime}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func onlySKU() models.DetectionSettings {
	s := models.DefaultSettings("shop-1")
	s.MatchEmail = false
	s.MatchPhone = false
	s.MatchAddress = false
	return s
}
