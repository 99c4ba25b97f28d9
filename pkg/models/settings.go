package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AddressSensitivity controls how strictly address fields must agree to count as a match.
type AddressSensitivity string

const (
	AddressSensitivityLow    AddressSensitivity = "low"
	AddressSensitivityMedium AddressSensitivity = "medium"
	AddressSensitivityHigh   AddressSensitivity = "high"
)

const (
	MinTimeWindowHours       = 1
	MaxTimeWindowHours       = 72
	MinNotificationThreshold = 50
	MaxNotificationThreshold = 100
)

// DetectionSettings is the per-shop detection configuration. The engine assumes it has passed Validate.
type DetectionSettings struct {
	ShopID                string             `json:"shop_id" db:"shop_id" validate:"required"`
	TimeWindowHours       int                `json:"time_window_hours" db:"time_window_hours" validate:"min=1,max=72"`
	MatchEmail            bool               `json:"match_email" db:"match_email"`
	MatchPhone            bool               `json:"match_phone" db:"match_phone"`
	MatchAddress          bool               `json:"match_address" db:"match_address"`
	MatchSKU              bool               `json:"match_sku" db:"match_sku"`
	AddressSensitivity    AddressSensitivity `json:"address_sensitivity" db:"address_sensitivity" validate:"required,oneof=low medium high"`
	NotificationThreshold int                `json:"notification_threshold" db:"notification_threshold" validate:"min=50,max=100"`
	UpdatedAt             time.Time          `json:"updated_at" db:"updated_at"`
}

// UpdateSettingsRequest is the request body for replacing a shop's settings.
type UpdateSettingsRequest struct {
	TimeWindowHours       int                `json:"time_window_hours" validate:"min=1,max=72"`
	MatchEmail            bool               `json:"match_email"`
	MatchPhone            bool               `json:"match_phone"`
	MatchAddress          bool               `json:"match_address"`
	MatchSKU              bool               `json:"match_sku"`
	AddressSensitivity    AddressSensitivity `json:"address_sensitivity" validate:"required,oneof=low medium high"`
	NotificationThreshold int                `json:"notification_threshold" validate:"min=50,max=100"`
}

var validate = validator.New()

// DefaultSettings returns the settings a shop starts with.
func DefaultSettings(shopID string) DetectionSettings {
	return DetectionSettings{
		ShopID:                shopID,
		TimeWindowHours:       24,
		MatchEmail:            true,
		MatchPhone:            true,
		MatchAddress:          true,
		MatchSKU:              true,
		AddressSensitivity:    AddressSensitivityMedium,
		NotificationThreshold: 80,
	}
}

// Validate rejects settings outside the supported ranges or with an unknown sensitivity.
func (s DetectionSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid detection settings: %s", describeValidation(err))
	}
	return nil
}

// ToSettings builds settings for a shop from the request.
func (r UpdateSettingsRequest) ToSettings(shopID string) DetectionSettings {
	return DetectionSettings{
		ShopID:                shopID,
		TimeWindowHours:       r.TimeWindowHours,
		MatchEmail:            r.MatchEmail,
		MatchPhone:            r.MatchPhone,
		MatchAddress:          r.MatchAddress,
		MatchSKU:              r.MatchSKU,
		AddressSensitivity:    r.AddressSensitivity,
		NotificationThreshold: r.NotificationThreshold,
	}
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
