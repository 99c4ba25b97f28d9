package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestSelectCandidates(t *testing.T) {
	order := newOrder("new")

	atLowerBound := newOrder("lower", withCreatedAt(baseTime.Add(-24*time.Hour)))
	justOutside := newOrder("outside", withCreatedAt(baseTime.Add(-24*time.Hour-time.Second)))
	inside := newOrder("inside", withCreatedAt(baseTime.Add(-time.Hour)))
	sameInstant := newOrder("same-instant", withCreatedAt(baseTime))
	later := newOrder("later", withCreatedAt(baseTime.Add(time.Minute)))
	wasDismissed := newOrder("dismissed", withCreatedAt(baseTime.Add(-time.Hour)), dismissed())
	otherShop := newOrder("other-shop", withCreatedAt(baseTime.Add(-time.Hour)))
	otherShop.ShopID = "shop-2"
	self := newOrder("new", withCreatedAt(baseTime.Add(-time.Hour)))

	stored := []models.Order{atLowerBound, justOutside, inside, sameInstant, later, wasDismissed, otherShop, self}

	got := SelectCandidates(order, stored, 24)

	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"lower", "inside"}, ids)
}

func TestSelectCandidates_Empty(t *testing.T) {
	assert.Empty(t, SelectCandidates(newOrder("new"), nil, 24))
}

func TestWindowStart(t *testing.T) {
	assert.Equal(t, baseTime.Add(-72*time.Hour), WindowStart(newOrder("new"), 72))
}
