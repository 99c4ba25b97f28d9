package flags

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// Reader reads persisted duplicate flags
type Reader interface {
	Get(ctx context.Context, shopID, orderID string) (*models.DuplicateFlag, error)
	List(ctx context.Context, shopID, status string, limit int) ([]models.DuplicateFlag, error)
}

// Dismisser dismisses a flag under the order's evaluation lock
type Dismisser interface {
	Dismiss(ctx context.Context, shopID, orderID string) (*models.DuplicateFlag, error)
}

// Handler serves the review queue
type Handler struct {
	flags     Reader
	dismisser Dismisser
}

func NewHandler(flags Reader, dismisser Dismisser) *Handler {
	return &Handler{flags: flags, dismisser: dismisser}
}

// Register registers the flag routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:orderId", h.Get)
	g.POST("/:orderId/dismiss", h.Dismiss)
}

// ListResponse is the response for GET /flags
type ListResponse struct {
	Flags []models.DuplicateFlag `json:"flags"`
	Count int                    `json:"count"`
}

// List handles GET /flags?status=&limit=
func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "FlagsHandler.List")
	defer span.End()

	status := c.QueryParam("status")
	switch status {
	case "", models.FlagStatusFlagged, models.FlagStatusDismissed, models.FlagStatusCleared:
	default:
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown status %q", status)
	}

	limit, err := utils.QueryInt(c, "limit", 0)
	if err != nil {
		return err
	}

	flags, err := h.flags.List(ctx, appctx.GetShopID(ctx), status, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ListResponse{Flags: flags, Count: len(flags)})
}

// Get handles GET /flags/:orderId
func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "FlagsHandler.Get")
	defer span.End()

	orderID := c.Param("orderId")
	flag, err := h.flags.Get(ctx, appctx.GetShopID(ctx), orderID)
	if err != nil {
		return err
	}
	if flag == nil {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("flag for order %s not found", orderID))
	}

	return c.JSON(http.StatusOK, flag)
}

// Dismiss handles POST /flags/:orderId/dismiss
func (h *Handler) Dismiss(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "FlagsHandler.Dismiss")
	defer span.End()

	flag, err := h.dismisser.Dismiss(ctx, appctx.GetShopID(ctx), c.Param("orderId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, flag)
}
