package evaluate

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// Evaluator runs the same evaluation path as the Kafka consumer
type Evaluator interface {
	ProcessOrder(ctx context.Context, event models.OrderEvent) (*processor.Outcome, error)
	Preview(ctx context.Context, order models.Order) (*matching.Decision, error)
}

type Handler struct {
	evaluator Evaluator
}

func NewHandler(evaluator Evaluator) *Handler {
	return &Handler{evaluator: evaluator}
}

// Register registers the evaluation route
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Evaluate)
}

// Evaluate handles POST /evaluate. The body is an order event; ?dry_run=true scores it against the
// stored window without persisting or alerting.
func (h *Handler) Evaluate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "EvaluateHandler.Evaluate")
	defer span.End()

	dryRun, err := utils.QueryBool(c, "dry_run")
	if err != nil {
		return err
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httperror.WrapError(http.StatusBadRequest, err)
	}

	event, err := kafka.ParseOrderEvent(body)
	if err != nil {
		return httperror.WrapError(http.StatusBadRequest, err)
	}
	if event.ShopID != appctx.GetShopID(ctx) {
		return httperror.NewHTTPError(http.StatusBadRequest, "shop_id does not match the X-Shop-ID header")
	}

	if dryRun {
		decision, err := h.evaluator.Preview(ctx, event.Order)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, decision)
	}

	outcome, err := h.evaluator.ProcessOrder(ctx, *event)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, outcome)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, processor.ErrEvaluationInProgress):
		return httperror.WrapError(http.StatusConflict, err)
	case processor.IsRetryable(err):
		return httperror.WrapError(http.StatusServiceUnavailable, err)
	default:
		return err
	}
}
