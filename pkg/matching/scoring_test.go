package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestScorer_Score(t *testing.T) {
	scorer := NewScorer()
	settings := models.DefaultSettings("shop-1")

	t.Run("every criterion clamps to 100", func(t *testing.T) {
		opts := []orderOption{
			withEmail("jane@example.com"),
			withPhone("2125551234"),
			withAddress("1 Main St", "Springfield", "97477"),
			withSKUs("MUG"),
			withName("Jane Doe"),
		}
		a := NewProfile(newOrder("a", opts...))
		b := NewProfile(newOrder("b", opts...))

		score, ok := scorer.Score(a, b, settings)
		require.True(t, ok)
		assert.Equal(t, 220, score.RawScore)
		assert.Equal(t, 100, score.Confidence)
		assert.Equal(t, "Same email, Same phone, Same address, Same SKU, Same name", score.Reason())
	})

	t.Run("reasons follow evaluation order", func(t *testing.T) {
		a := NewProfile(newOrder("a", withName("Jane Doe"), withSKUs("MUG"), withEmail("jane@example.com")))
		b := NewProfile(newOrder("b", withName("jane doe"), withSKUs("MUG"), withEmail("JANE@example.com")))

		score, ok := scorer.Score(a, b, settings)
		require.True(t, ok)
		assert.Equal(t, []string{"Same email", "Same SKU", "Same name"}, score.Reasons())
	})

	t.Run("no criterion drops the pair", func(t *testing.T) {
		a := NewProfile(newOrder("a", withEmail("a@example.com")))
		b := NewProfile(newOrder("b", withEmail("b@example.com")))

		_, ok := scorer.Score(a, b, settings)
		assert.False(t, ok)
	})

	t.Run("candidate identity carried", func(t *testing.T) {
		created := baseTime.Add(-time.Hour)
		a := NewProfile(newOrder("a", withName("Jane")))
		b := NewProfile(newOrder("b", withName("Jane"), withCreatedAt(created)))

		score, ok := scorer.Score(a, b, settings)
		require.True(t, ok)
		assert.Equal(t, "b", score.CandidateID)
		assert.Equal(t, created, score.CandidateCreatedAt)
		assert.Equal(t, 20, score.Confidence)
	})
}

func TestPairScore_ToMatchResult(t *testing.T) {
	p := PairScore{CandidateID: "b", Confidence: 70, Matched: []Criterion{CriterionSKU, CriterionName}}
	assert.Equal(t, &models.MatchResult{
		Confidence:     70,
		Reasons:        []string{"Same SKU", "Same name"},
		Reason:         "Same SKU, Same name",
		MatchedOrderID: "b",
	}, p.ToMatchResult())
}
