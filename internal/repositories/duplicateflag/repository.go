package duplicateflag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var columns = []string{"id", "shop_id", "order_id", "matched_order_id", "confidence", "reason", "status", "notified", "created_at", "updated_at", "dismissed_at"}

var returning = " RETURNING " + strings.Join(columns, ", ")

// Repository handles duplicate flag persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new duplicate flag repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get returns the flag for an order, or nil when the order has never been flagged.
func (r *Repository) Get(ctx context.Context, shopID, orderID string) (*models.DuplicateFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicateflag.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("duplicate_flags")
	sb.Where(
		sb.Equal("shop_id", shopID),
		sb.Equal("order_id", orderID),
	)

	query, args := sb.Build()
	var flag models.DuplicateFlag
	if err := r.db.GetContext(ctx, &flag, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get duplicate flag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get duplicate flag")
	}

	return &flag, nil
}

// Apply upserts an active flag for the order. A dismissed flag is left untouched and reported as a conflict.
func (r *Repository) Apply(ctx context.Context, shopID, orderID string, result models.MatchResult) (*models.DuplicateFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicateflag.Repository.Apply")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":           "Apply",
		"shop_id":          shopID,
		"order_id":         orderID,
		"matched_order_id": result.MatchedOrderID,
		"confidence":       result.Confidence,
	})

	now := time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("duplicate_flags")
	sb.Cols("id", "shop_id", "order_id", "matched_order_id", "confidence", "reason", "status", "notified", "created_at", "updated_at")
	sb.Values(uuid.New().String(), shopID, orderID, result.MatchedOrderID, result.Confidence, result.Reason, models.FlagStatusFlagged, false, now, now)

	query, args := sb.Build()
	// a changed match needs its own notification
	query += ` ON CONFLICT (shop_id, order_id) DO UPDATE SET
		matched_order_id = EXCLUDED.matched_order_id,
		confidence = EXCLUDED.confidence,
		reason = EXCLUDED.reason,
		status = EXCLUDED.status,
		notified = CASE
			WHEN duplicate_flags.matched_order_id = EXCLUDED.matched_order_id AND duplicate_flags.status = 'flagged'
			THEN duplicate_flags.notified
			ELSE FALSE
		END,
		updated_at = EXCLUDED.updated_at
		WHERE duplicate_flags.status <> 'dismissed'`
	query += returning

	var flag models.DuplicateFlag
	if err := r.db.GetContext(ctx, &flag, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("Flag is dismissed, not overwriting")
			return nil, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("flag for order %s is dismissed", orderID))
		}
		log.WithError(err).Error("Failed to apply duplicate flag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to apply duplicate flag")
	}

	log.WithFields(map[string]any{"id": flag.ID}).Info("Applied duplicate flag")
	return &flag, nil
}

// Clear marks an active flag cleared after re-evaluation stops matching. Dismissed flags are untouched.
func (r *Repository) Clear(ctx context.Context, shopID, orderID string) error {
	ctx, span := tracing.StartSpan(ctx, "duplicateflag.Repository.Clear")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("duplicate_flags")
	ub.Set(
		ub.Assign("status", models.FlagStatusCleared),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("shop_id", shopID),
		ub.Equal("order_id", orderID),
		ub.Equal("status", models.FlagStatusFlagged),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"shop_id":  shopID,
			"order_id": orderID,
		}).Error("Failed to clear duplicate flag")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear duplicate flag")
	}

	return nil
}

// MarkNotified records that the alert for the flag's current match was dispatched.
func (r *Repository) MarkNotified(ctx context.Context, shopID, orderID string) error {
	ctx, span := tracing.StartSpan(ctx, "duplicateflag.Repository.MarkNotified")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("duplicate_flags")
	ub.Set(
		ub.Assign("notified", true),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("shop_id", shopID),
		ub.Equal("order_id", orderID),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark duplicate flag notified")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark duplicate flag notified")
	}

	return nil
}

// List returns a shop's flags, most recently updated first. An empty status lists every status.
func (r *Repository) List(ctx context.Context, shopID, status string, limit int) ([]models.DuplicateFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicateflag.Repository.List")
	defer span.End()

	if limit < 1 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("duplicate_flags")
	where := []string{sb.Equal("shop_id", shopID)}
	if status != "" {
		where = append(where, sb.Equal("status", status))
	}
	sb.Where(where...)
	sb.OrderBy("updated_at DESC", "order_id ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	flags := []models.DuplicateFlag{}
	if err := r.db.SelectContext(ctx, &flags, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"shop_id": shopID}).Error("Failed to list duplicate flags")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list duplicate flags")
	}

	return flags, nil
}

// Dismiss marks the flag dismissed and the flagged order dismissed in one transaction, so the order
// drops out of every future candidate window. Dismissing twice is a no-op.
func (r *Repository) Dismiss(ctx context.Context, shopID, orderID string) (*models.DuplicateFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicateflag.Repository.Dismiss")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":   "Dismiss",
		"shop_id":  shopID,
		"order_id": orderID,
	})

	var flag models.DuplicateFlag
	err := r.db.RunInTx(ctx, func(ctx context.Context, tx database.Tx) error {
		now := time.Now().UTC()

		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update("duplicate_flags")
		ub.Set(
			ub.Assign("status", models.FlagStatusDismissed),
			ub.Assign("updated_at", now),
			"dismissed_at = COALESCE(dismissed_at, "+ub.Var(now)+")",
		)
		ub.Where(
			ub.Equal("shop_id", shopID),
			ub.Equal("order_id", orderID),
		)

		query, args := ub.Build()
		query += returning
		if err := tx.GetContext(ctx, &flag, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("flag for order %s not found", orderID))
			}
			log.WithError(err).Error("Failed to dismiss duplicate flag")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to dismiss duplicate flag")
		}

		ob := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ob.Update("orders")
		ob.Set(
			ob.Assign("dismissed", true),
			ob.Assign("updated_at", now),
		)
		ob.Where(
			ob.Equal("shop_id", shopID),
			ob.Equal("id", orderID),
		)

		query, args = ob.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to mark order dismissed")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark order dismissed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Dismissed duplicate flag")
	return &flag, nil
}
