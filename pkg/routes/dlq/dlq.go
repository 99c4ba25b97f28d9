package dlq

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// Queue is the dead letter store
type Queue interface {
	List(ctx context.Context, count int64) ([]redis.DLQMessage, error)
	Get(ctx context.Context, messageID string) (*models.DeadLetter, error)
	Delete(ctx context.Context, messageID string) error
	Count(ctx context.Context) (int64, error)
}

// Replayer re-evaluates a parked order event
type Replayer interface {
	Replay(ctx context.Context, entry *models.DeadLetter) (*processor.Outcome, error)
}

// Handler exposes the dead letter queue to operators. It is mounted outside the shop scope.
type Handler struct {
	queue    Queue
	replayer Replayer
	logger   ectologger.Logger
}

func NewHandler(queue Queue, replayer Replayer, logger ectologger.Logger) *Handler {
	return &Handler{queue: queue, replayer: replayer, logger: logger}
}

// Register registers the DLQ routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.GET("/:id", h.Get)
	g.POST("/:id/replay", h.Replay)
	g.DELETE("/:id", h.Delete)
}

// ListResponse represents the response for listing DLQ entries
type ListResponse struct {
	Entries []redis.DLQMessage `json:"entries"`
	Count   int                `json:"count"`
	Total   int64              `json:"total"`
}

// List handles GET /dlq?count=
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := utils.QueryInt(c, "count", 100)
	if err != nil {
		return err
	}

	entries, err := h.queue.List(ctx, int64(count))
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list DLQ entries")
		return err
	}

	total, _ := h.queue.Count(ctx)

	return c.JSON(http.StatusOK, ListResponse{
		Entries: entries,
		Count:   len(entries),
		Total:   total,
	})
}

// Get handles GET /dlq/:id
func (h *Handler) Get(c echo.Context) error {
	entry, err := h.get(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

// Replay handles POST /dlq/:id/replay. The entry is removed once the event evaluates cleanly.
func (h *Handler) Replay(c echo.Context) error {
	ctx := c.Request().Context()
	messageID := c.Param("id")

	entry, err := h.get(c)
	if err != nil {
		return err
	}

	outcome, err := h.replayer.Replay(ctx, entry)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).WithField("message_id", messageID).Warn("Failed to replay DLQ entry")
		if processor.IsRetryable(err) {
			return httperror.WrapError(http.StatusServiceUnavailable, err)
		}
		return err
	}

	if err := h.queue.Delete(ctx, messageID); err != nil {
		h.logger.WithContext(ctx).WithError(err).WithField("message_id", messageID).Warn("Replayed DLQ entry could not be removed")
	}

	return c.JSON(http.StatusOK, outcome)
}

// Delete handles DELETE /dlq/:id
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.queue.Delete(ctx, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats handles GET /dlq/stats
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.queue.Count(ctx)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to get DLQ stats")
		return err
	}

	return c.JSON(http.StatusOK, map[string]int64{"total_entries": count})
}

func (h *Handler) get(c echo.Context) (*models.DeadLetter, error) {
	ctx := c.Request().Context()
	messageID := c.Param("id")

	entry, err := h.queue.Get(ctx, messageID)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to get DLQ entry")
		return nil, err
	}
	if entry == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("DLQ entry %s not found", messageID))
	}
	return entry, nil
}
