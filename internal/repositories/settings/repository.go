package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{"shop_id", "time_window_hours", "match_email", "match_phone", "match_address", "match_sku", "address_sensitivity", "notification_threshold", "updated_at"}

// Repository handles detection settings persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new detection settings repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get loads a shop's settings. A stored record that fails validation is an error, never silently defaulted.
func (r *Repository) Get(ctx context.Context, shopID string) (*models.DetectionSettings, error) {
	ctx, span := tracing.StartSpan(ctx, "settings.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("detection_settings")
	sb.Where(sb.Equal("shop_id", shopID))

	query, args := sb.Build()
	var s models.DetectionSettings
	if err := r.db.GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("settings for shop %s not found", shopID))
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"shop_id": shopID}).Error("Failed to get detection settings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get detection settings")
	}

	if err := s.Validate(); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"shop_id": shopID}).Error("Stored detection settings are invalid")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return &s, nil
}

// Upsert validates and stores a shop's settings.
func (r *Repository) Upsert(ctx context.Context, s models.DetectionSettings) (*models.DetectionSettings, error) {
	ctx, span := tracing.StartSpan(ctx, "settings.Repository.Upsert")
	defer span.End()

	if err := s.Validate(); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.UpdatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("detection_settings")
	sb.Cols(columns...)
	sb.Values(s.ShopID, s.TimeWindowHours, s.MatchEmail, s.MatchPhone, s.MatchAddress, s.MatchSKU, s.AddressSensitivity, s.NotificationThreshold, s.UpdatedAt)

	query, args := sb.Build()
	query += ` ON CONFLICT (shop_id) DO UPDATE SET
		time_window_hours = EXCLUDED.time_window_hours,
		match_email = EXCLUDED.match_email,
		match_phone = EXCLUDED.match_phone,
		match_address = EXCLUDED.match_address,
		match_sku = EXCLUDED.match_sku,
		address_sensitivity = EXCLUDED.address_sensitivity,
		notification_threshold = EXCLUDED.notification_threshold,
		updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"shop_id": s.ShopID}).Error("Failed to upsert detection settings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert detection settings")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"shop_id": s.ShopID}).Info("Updated detection settings")
	return &s, nil
}
