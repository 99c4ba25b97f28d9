package matching

import (
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
)

// FlagThreshold is the fixed confidence at or above which an order is flagged.
const FlagThreshold = 70

// Decision is the outcome of evaluating one order against its candidate window.
type Decision struct {
	Flagged    bool                `json:"flagged"`
	Notify     bool                `json:"notify"`
	Result     *models.MatchResult `json:"result,omitempty"`
	Candidates int                 `json:"candidates"`
	Matches    []PairScore         `json:"matches,omitempty"`
}

// Decide picks the winning pair and applies the flag and notification thresholds.
// The winner has the highest confidence; ties go to the earliest-created candidate, then the lowest ID.
func Decide(pairs []PairScore, settings models.DetectionSettings) Decision {
	decision := Decision{Matches: pairs}

	eligible := make([]PairScore, 0, len(pairs))
	for _, p := range pairs {
		if p.Confidence >= FlagThreshold {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return decision
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.CandidateCreatedAt.Equal(b.CandidateCreatedAt) {
			return a.CandidateCreatedAt.Before(b.CandidateCreatedAt)
		}
		return a.CandidateID < b.CandidateID
	})

	best := eligible[0]
	decision.Flagged = true
	decision.Result = best.ToMatchResult()
	decision.Notify = best.Confidence >= settings.NotificationThreshold
	return decision
}
