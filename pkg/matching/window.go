package matching

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// WindowStart returns the inclusive lower bound of the candidate window for an order.
func WindowStart(order models.Order, timeWindowHours int) time.Time {
	return order.CreatedAt.Add(-time.Duration(timeWindowHours) * time.Hour)
}

// SelectCandidates returns the stored orders eligible for comparison: same shop, created in
// [order.CreatedAt - window, order.CreatedAt), not the order itself and not dismissed.
func SelectCandidates(order models.Order, stored []models.Order, timeWindowHours int) []models.Order {
	start := WindowStart(order, timeWindowHours)

	candidates := make([]models.Order, 0, len(stored))
	for _, c := range stored {
		switch {
		case c.ShopID != order.ShopID:
			continue
		case c.ID == order.ID:
			continue
		case c.Dismissed:
			continue
		case c.CreatedAt.Before(start), !c.CreatedAt.Before(order.CreatedAt):
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}
