// Package processor applies duplicate detection to incoming order events. It owns every side
// effect of an evaluation: the order lock, persistence, flag state and alerts.
package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	clovercontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Action is what an evaluation did to the order's flag
type Action string

const (
	ActionNone             Action = "none"
	ActionFlagged          Action = "flagged"
	ActionUnchanged        Action = "unchanged"
	ActionCleared          Action = "cleared"
	ActionSkippedDismissed Action = "skipped_dismissed"
)

// SettingsLoader loads a shop's validated settings
type SettingsLoader interface {
	Get(ctx context.Context, shopID string) (*models.DetectionSettings, error)
}

// OrderStore persists order snapshots and serves candidate windows
type OrderStore interface {
	Upsert(ctx context.Context, order models.Order) error
	ListRecent(ctx context.Context, shopID string, since time.Time) ([]models.Order, error)
}

// FlagStore persists duplicate flags
type FlagStore interface {
	Get(ctx context.Context, shopID, orderID string) (*models.DuplicateFlag, error)
	Apply(ctx context.Context, shopID, orderID string, result models.MatchResult) (*models.DuplicateFlag, error)
	Clear(ctx context.Context, shopID, orderID string) error
	MarkNotified(ctx context.Context, shopID, orderID string) error
	Dismiss(ctx context.Context, shopID, orderID string) (*models.DuplicateFlag, error)
}

// Notifier dispatches duplicate alerts
type Notifier interface {
	PublishAlert(ctx context.Context, alert models.DuplicateAlert) error
}

// Locker serializes work per key
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// Config contains processor configuration
type Config struct {
	LockTTL time.Duration // Upper bound on one evaluation (default: 30s)
	// UseDefaultSettings evaluates shops with no stored settings using models.DefaultSettings.
	// Invalid stored settings still fail closed.
	UseDefaultSettings bool
}

// Outcome is the result of one evaluation
type Outcome struct {
	ShopID   string                `json:"shop_id"`
	OrderID  string                `json:"order_id"`
	Action   Action                `json:"action"`
	Decision matching.Decision     `json:"decision"`
	Flag     *models.DuplicateFlag `json:"flag,omitempty"`
	Notified bool                  `json:"notified"`
}

// Processor orchestrates order evaluations
type Processor struct {
	logger   ectologger.Logger
	engine   *matching.Engine
	settings SettingsLoader
	orders   OrderStore
	flags    FlagStore
	notifier Notifier
	locker   Locker
	config   Config
}

// NewProcessor creates a new order processor. notifier may be nil, in which case no alerts are sent.
func NewProcessor(
	logger ectologger.Logger,
	engine *matching.Engine,
	settings SettingsLoader,
	orders OrderStore,
	flags FlagStore,
	notifier Notifier,
	locker Locker,
	config Config,
) *Processor {
	if config.LockTTL <= 0 {
		config.LockTTL = 30 * time.Second
	}
	return &Processor{
		logger:   logger,
		engine:   engine,
		settings: settings,
		orders:   orders,
		flags:    flags,
		notifier: notifier,
		locker:   locker,
		config:   config,
	}
}

// HandleMessage is the Kafka entry point
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	event := msg.Event
	if event == nil {
		var err error
		if event, err = msg.ParseOrderEvent(); err != nil {
			return err
		}
	}

	_, err := p.ProcessOrder(ctx, *event)
	return err
}

// ProcessOrder evaluates one order event and applies the result idempotently. Evaluations of the same
// (shop, order) are serialized; a concurrent attempt fails with ErrEvaluationInProgress.
func (p *Processor) ProcessOrder(ctx context.Context, event models.OrderEvent) (*Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessOrder")
	defer span.End()

	order := event.Order
	if order.ShopID == "" {
		order.ShopID = event.ShopID
	}
	ctx = clovercontext.SetOrderID(clovercontext.SetShopID(ctx, order.ShopID), order.ID)

	start := time.Now()
	var outcome *Outcome
	err := p.withOrderLock(ctx, order.ShopID, order.ID, func(ctx context.Context) error {
		var err error
		outcome, err = p.evaluate(ctx, order)
		return err
	})
	if err != nil {
		tracing.RecordError(span, err)
		fields := clovercontext.LogFields(ctx)
		fields["event_type"] = event.EventType
		fields["retryable"] = IsRetryable(err)
		p.logger.WithContext(ctx).WithError(err).WithFields(fields).Warn("Order evaluation failed")
		return nil, err
	}

	metrics.RecordEvaluation(string(outcome.Action), outcome.Decision.Candidates, time.Since(start).Seconds())
	return outcome, nil
}

// Replay re-evaluates a dead-lettered order event. The entry is left for the caller to delete.
func (p *Processor) Replay(ctx context.Context, entry *models.DeadLetter) (*Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Replay")
	defer span.End()

	event, err := kafka.ParseOrderEvent([]byte(entry.Payload))
	if err != nil {
		return nil, httperror.WrapError(http.StatusUnprocessableEntity, err)
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"shop_id":  event.ShopID,
		"order_id": event.Order.ID,
		"reason":   entry.Reason,
	}).Info("Replaying dead-lettered order event")

	return p.ProcessOrder(ctx, *event)
}

// Preview evaluates an order against the stored window without persisting anything.
func (p *Processor) Preview(ctx context.Context, order models.Order) (*matching.Decision, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Preview")
	defer span.End()

	settings, err := p.loadSettings(ctx, order.ShopID)
	if err != nil {
		return nil, err
	}

	recent, err := p.loadRecentOrders(ctx, order, *settings)
	if err != nil {
		return nil, err
	}

	decision := p.engine.Evaluate(ctx, order, recent, *settings)
	return &decision, nil
}

// Dismiss marks the order's flag dismissed and excludes the order from future candidate windows.
func (p *Processor) Dismiss(ctx context.Context, shopID, orderID string) (*models.DuplicateFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Dismiss")
	defer span.End()

	var flag *models.DuplicateFlag
	err := p.withOrderLock(ctx, shopID, orderID, func(ctx context.Context) error {
		var err error
		flag, err = p.flags.Dismiss(ctx, shopID, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.DismissalsTotal.Inc()
	return flag, nil
}

func (p *Processor) withOrderLock(ctx context.Context, shopID, orderID string, fn func(ctx context.Context) error) error {
	err := p.locker.WithLock(ctx, redis.OrderKey(shopID, orderID), p.config.LockTTL, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.ErrLockNotAcquired):
		metrics.LockContention.Inc()
		metrics.RecordEvaluationError("lock_contention")
		return fmt.Errorf("%w: order %s/%s", ErrEvaluationInProgress, shopID, orderID)
	case errors.Is(err, redis.ErrLockNotHeld):
		metrics.RecordEvaluationError("lock_lost")
		return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	case IsRetryable(err), httperror.IsHTTPError(err):
		return err
	default:
		metrics.RecordEvaluationError("lock_unavailable")
		return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
}

func (p *Processor) evaluate(ctx context.Context, order models.Order) (*Outcome, error) {
	log := p.logger.WithContext(ctx).WithFields(clovercontext.LogFields(ctx))

	// the snapshot is stored first so later orders see it even if this evaluation fails
	if err := p.orders.Upsert(ctx, order); err != nil {
		metrics.RecordEvaluationError("persistence")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	settings, err := p.loadSettings(ctx, order.ShopID)
	if err != nil {
		return nil, err
	}

	recent, err := p.loadRecentOrders(ctx, order, *settings)
	if err != nil {
		return nil, err
	}

	decision := p.engine.Evaluate(ctx, order, recent, *settings)

	existing, err := p.flags.Get(ctx, order.ShopID, order.ID)
	if err != nil {
		metrics.RecordEvaluationError("persistence")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	outcome := &Outcome{
		ShopID:   order.ShopID,
		OrderID:  order.ID,
		Action:   ActionNone,
		Decision: decision,
		Flag:     existing,
	}

	switch {
	case existing != nil && existing.Status == models.FlagStatusDismissed:
		outcome.Action = ActionSkippedDismissed

	case decision.Flagged && existing.IsActive() && existing.MatchedOrderID == decision.Result.MatchedOrderID:
		outcome.Action = ActionUnchanged
		// a previous alert for this match failed to send
		if decision.Notify && !existing.Notified {
			outcome.Notified = p.notify(ctx, order, *decision.Result)
		}

	case decision.Flagged:
		flag, err := p.flags.Apply(ctx, order.ShopID, order.ID, *decision.Result)
		if err != nil {
			if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusConflict {
				outcome.Action = ActionSkippedDismissed
				break
			}
			metrics.RecordEvaluationError("persistence")
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		outcome.Action = ActionFlagged
		outcome.Flag = flag
		metrics.RecordFlag(decision.Result.Confidence)

		if decision.Notify {
			outcome.Notified = p.notify(ctx, order, *decision.Result)
		}

	case existing.IsActive():
		if err := p.flags.Clear(ctx, order.ShopID, order.ID); err != nil {
			metrics.RecordEvaluationError("persistence")
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		outcome.Action = ActionCleared
	}

	fields := map[string]any{
		"action":     outcome.Action,
		"candidates": decision.Candidates,
		"notified":   outcome.Notified,
	}
	if decision.Result != nil {
		fields["matched_order_id"] = decision.Result.MatchedOrderID
		fields["confidence"] = decision.Result.Confidence
		fields["reason"] = decision.Result.Reason
	}
	log.WithFields(fields).Info("Evaluated order")

	return outcome, nil
}

func (p *Processor) loadSettings(ctx context.Context, shopID string) (*models.DetectionSettings, error) {
	settings, err := p.settings.Get(ctx, shopID)
	if err != nil {
		if p.config.UseDefaultSettings && httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			defaults := models.DefaultSettings(shopID)
			return &defaults, nil
		}
		metrics.RecordEvaluationError("settings")
		return nil, fmt.Errorf("%w: shop %s: %v", ErrSettingsUnavailable, shopID, err)
	}

	if err := settings.Validate(); err != nil {
		metrics.RecordEvaluationError("settings")
		return nil, fmt.Errorf("%w: shop %s: %v", ErrSettingsUnavailable, shopID, err)
	}
	return settings, nil
}

func (p *Processor) loadRecentOrders(ctx context.Context, order models.Order, settings models.DetectionSettings) ([]models.Order, error) {
	recent, err := p.orders.ListRecent(ctx, order.ShopID, matching.WindowStart(order, settings.TimeWindowHours))
	if err != nil {
		metrics.RecordEvaluationError("order_load")
		return nil, fmt.Errorf("%w: shop %s: %v", ErrOrderLoad, order.ShopID, err)
	}
	return recent, nil
}

// notify dispatches the alert. Failures are logged and counted; the flag stands either way.
// A failed MarkNotified leaves the flag unnotified, so the next evaluation with the same match
// sends the alert again.
func (p *Processor) notify(ctx context.Context, order models.Order, result models.MatchResult) bool {
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"shop_id":          order.ShopID,
		"order_id":         order.ID,
		"matched_order_id": result.MatchedOrderID,
	})

	if p.notifier == nil {
		log.Debug("No notifier configured, skipping duplicate alert")
		return false
	}
	if err := ctx.Err(); err != nil {
		// the order lock was lost or the caller gave up; the next holder sends the alert
		log.WithError(context.Cause(ctx)).Warn("Skipping duplicate alert, evaluation cancelled")
		return false
	}

	alert := models.DuplicateAlert{
		ShopID:         order.ShopID,
		OrderID:        order.ID,
		MatchedOrderID: result.MatchedOrderID,
		Confidence:     result.Confidence,
		Reason:         result.Reason,
		DetectedAt:     time.Now().UTC(),
	}
	if err := p.notifier.PublishAlert(ctx, alert); err != nil {
		log.WithError(err).Error("Failed to dispatch duplicate alert")
		metrics.RecordNotification("failed")
		return false
	}
	metrics.RecordNotification("sent")

	if err := p.flags.MarkNotified(ctx, order.ShopID, order.ID); err != nil {
		log.WithError(err).Warn("Failed to record duplicate alert")
	}
	return true
}
