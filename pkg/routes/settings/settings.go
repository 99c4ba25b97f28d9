package settings

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// Store reads and replaces a shop's detection settings
type Store interface {
	Get(ctx context.Context, shopID string) (*models.DetectionSettings, error)
	Upsert(ctx context.Context, s models.DetectionSettings) (*models.DetectionSettings, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Register registers the settings routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.Get)
	g.PUT("", h.Put)
}

// Get handles GET /settings. A shop with no stored settings is a 404.
func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SettingsHandler.Get")
	defer span.End()

	settings, err := h.store.Get(ctx, appctx.GetShopID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}

// Put handles PUT /settings
func (h *Handler) Put(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SettingsHandler.Put")
	defer span.End()

	req, err := utils.BindRequest[models.UpdateSettingsRequest](c)
	if err != nil {
		return err
	}

	settings, err := h.store.Upsert(ctx, req.ToSettings(appctx.GetShopID(ctx)))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}
