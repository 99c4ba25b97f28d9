package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{"id", "shop_id", "customer_email", "customer_phone", "customer_name", "shipping_address", "line_items", "created_at", "dismissed"}

// Repository handles order snapshot persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new order repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert stores the latest snapshot of an order. The dismissed marker is owned by dismissal and never reset here.
func (r *Repository) Upsert(ctx context.Context, order models.Order) error {
	ctx, span := tracing.StartSpan(ctx, "order.Repository.Upsert")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("orders")
	sb.Cols("id", "shop_id", "customer_email", "customer_phone", "customer_name", "shipping_address", "line_items", "created_at", "updated_at")
	sb.Values(
		order.ID,
		order.ShopID,
		order.CustomerEmail,
		order.CustomerPhone,
		order.CustomerName,
		database.NewNullJSONB(order.ShippingAddress),
		database.NewJSONB(lineItems(order.LineItems)),
		order.CreatedAt,
		time.Now().UTC(),
	)

	query, args := sb.Build()
	query += ` ON CONFLICT (shop_id, id) DO UPDATE SET
		customer_email = EXCLUDED.customer_email,
		customer_phone = EXCLUDED.customer_phone,
		customer_name = EXCLUDED.customer_name,
		shipping_address = EXCLUDED.shipping_address,
		line_items = EXCLUDED.line_items,
		updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"shop_id":  order.ShopID,
			"order_id": order.ID,
		}).Error("Failed to upsert order")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert order")
	}

	return nil
}

// Get retrieves a stored order snapshot
func (r *Repository) Get(ctx context.Context, shopID, id string) (*models.Order, error) {
	ctx, span := tracing.StartSpan(ctx, "order.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("orders")
	sb.Where(
		sb.Equal("shop_id", shopID),
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	var row models.OrderRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("order %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get order")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get order")
	}

	order := row.ToOrder()
	return &order, nil
}

// ListRecent returns the shop's non-dismissed orders created at or after since, oldest first.
func (r *Repository) ListRecent(ctx context.Context, shopID string, since time.Time) ([]models.Order, error) {
	ctx, span := tracing.StartSpan(ctx, "order.Repository.ListRecent")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("orders")
	sb.Where(
		sb.Equal("shop_id", shopID),
		sb.GreaterEqualThan("created_at", since),
		sb.Equal("dismissed", false),
	)
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()
	var rows []models.OrderRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"shop_id": shopID}).Error("Failed to list recent orders")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list recent orders")
	}

	return ectolinq.Map(rows, models.OrderRow.ToOrder), nil
}

// lineItems stores an empty array rather than null.
func lineItems(items models.LineItems) models.LineItems {
	if items == nil {
		return models.LineItems{}
	}
	return items
}
