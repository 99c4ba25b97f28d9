package matching

import (
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/clover/pkg/models"
)

// MaxConfidence is the ceiling of the confidence scale.
const MaxConfidence = 100

// PairScore is the score of a new order against one candidate.
type PairScore struct {
	CandidateID        string      `json:"candidate_id"`
	CandidateCreatedAt time.Time   `json:"candidate_created_at"`
	RawScore           int         `json:"raw_score"`
	Confidence         int         `json:"confidence"`
	Matched            []Criterion `json:"-"`
}

// Reasons returns the labels of the contributing criteria in evaluation order.
func (p PairScore) Reasons() []string {
	return ectolinq.Map(p.Matched, Criterion.Label)
}

// Reason joins the reasons for display, e.g. "Same email, Same SKU".
func (p PairScore) Reason() string {
	return strings.Join(p.Reasons(), ", ")
}

// ToMatchResult projects the pair score into the engine's public result.
func (p PairScore) ToMatchResult() *models.MatchResult {
	return &models.MatchResult{
		Confidence:     p.Confidence,
		Reasons:        p.Reasons(),
		Reason:         p.Reason(),
		MatchedOrderID: p.CandidateID,
	}
}

// Scorer combines criterion matchers into a confidence score.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score sums the points of every criterion that holds and clamps the sum to [0, 100].
// It returns false when no criterion contributed; such pairs are not matches at all.
func (s *Scorer) Score(order, candidate Profile, settings models.DetectionSettings) (PairScore, bool) {
	score := PairScore{
		CandidateID:        candidate.OrderID,
		CandidateCreatedAt: candidate.CreatedAt,
	}

	for _, c := range evaluationOrder {
		points := matcherFor(c)(settings, order, candidate)
		if points <= 0 {
			continue
		}
		score.RawScore += points
		score.Matched = append(score.Matched, c)
	}

	if len(score.Matched) == 0 {
		return PairScore{}, false
	}

	score.Confidence = clamp(score.RawScore, 0, MaxConfidence)
	return score, true
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
