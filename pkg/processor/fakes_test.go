package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
)

type fakeSettings struct {
	settings map[string]models.DetectionSettings
	err      error
}

func (f *fakeSettings) Get(_ context.Context, shopID string) (*models.DetectionSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.settings[shopID]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "settings not found")
	}
	return &s, nil
}

type fakeOrders struct {
	mu        sync.Mutex
	orders    map[string]models.Order
	upsertErr error
	listErr   error
}

func newFakeOrders(orders ...models.Order) *fakeOrders {
	f := &fakeOrders{orders: map[string]models.Order{}}
	for _, o := range orders {
		f.orders[o.ShopID+"/"+o.ID] = o
	}
	return f
}

func (f *fakeOrders) Upsert(_ context.Context, order models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	key := order.ShopID + "/" + order.ID
	if prev, ok := f.orders[key]; ok {
		order.Dismissed = prev.Dismissed
	}
	f.orders[key] = order
	return nil
}

func (f *fakeOrders) ListRecent(_ context.Context, shopID string, since time.Time) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Order
	for _, o := range f.orders {
		if o.ShopID == shopID && !o.CreatedAt.Before(since) && !o.Dismissed {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeFlags struct {
	mu       sync.Mutex
	flags    map[string]*models.DuplicateFlag
	orders   *fakeOrders
	applyErr error
	markErr  error
	applies  int
}

func newFakeFlags(orders *fakeOrders) *fakeFlags {
	return &fakeFlags{flags: map[string]*models.DuplicateFlag{}, orders: orders}
}

func (f *fakeFlags) Get(_ context.Context, shopID, orderID string) (*models.DuplicateFlag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	flag, ok := f.flags[shopID+"/"+orderID]
	if !ok {
		return nil, nil
	}
	cp := *flag
	return &cp, nil
}

func (f *fakeFlags) Apply(_ context.Context, shopID, orderID string, result models.MatchResult) (*models.DuplicateFlag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	key := shopID + "/" + orderID
	flag, ok := f.flags[key]
	if ok && flag.Status == models.FlagStatusDismissed {
		return nil, httperror.NewHTTPError(http.StatusConflict, "dismissed")
	}
	if !ok {
		flag = &models.DuplicateFlag{ID: key, ShopID: shopID, OrderID: orderID}
		f.flags[key] = flag
	}
	if flag.MatchedOrderID != result.MatchedOrderID || flag.Status != models.FlagStatusFlagged {
		flag.Notified = false
	}
	flag.MatchedOrderID = result.MatchedOrderID
	flag.Confidence = result.Confidence
	flag.Reason = result.Reason
	flag.Status = models.FlagStatusFlagged
	f.applies++
	cp := *flag
	return &cp, nil
}

func (f *fakeFlags) Clear(_ context.Context, shopID, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if flag, ok := f.flags[shopID+"/"+orderID]; ok && flag.Status == models.FlagStatusFlagged {
		flag.Status = models.FlagStatusCleared
	}
	return nil
}

func (f *fakeFlags) MarkNotified(_ context.Context, shopID, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	if flag, ok := f.flags[shopID+"/"+orderID]; ok {
		flag.Notified = true
	}
	return nil
}

func (f *fakeFlags) Dismiss(ctx context.Context, shopID, orderID string) (*models.DuplicateFlag, error) {
	f.mu.Lock()
	flag, ok := f.flags[shopID+"/"+orderID]
	if !ok {
		f.mu.Unlock()
		return nil, httperror.NewHTTPError(http.StatusNotFound, "flag not found")
	}
	flag.Status = models.FlagStatusDismissed
	now := time.Now().UTC()
	flag.DismissedAt = &now
	cp := *flag
	f.mu.Unlock()

	f.orders.mu.Lock()
	defer f.orders.mu.Unlock()
	key := shopID + "/" + orderID
	if o, ok := f.orders.orders[key]; ok {
		o.Dismissed = true
		f.orders.orders[key] = o
	}
	return &cp, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []models.DuplicateAlert
	err    error
}

func (f *fakeNotifier) PublishAlert(_ context.Context, alert models.DuplicateAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

// fakeLocker mimics SET NX semantics in memory. With lose set, the lock is lost as soon as fn
// starts: fn sees a cancelled context and WithLock reports ErrLockNotHeld, like a failed renewal.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
	lose bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, _ time.Duration, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return redis.ErrLockNotAcquired
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	if l.lose {
		lost := fmt.Errorf("%w: %s", redis.ErrLockNotHeld, key)
		ctx, cancel := context.WithCancelCause(ctx)
		cancel(lost)
		_ = fn(ctx)
		return lost
	}
	return fn(ctx)
}

var errDatabaseDown = errors.New("database down")
