// Package matching implements duplicate order scoring
package matching

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Engine evaluates a new order against the merchant's recent orders. It performs no I/O.
type Engine struct {
	logger ectologger.Logger
	scorer *Scorer
	config EngineConfig
}

// EngineConfig contains configuration for the match engine
type EngineConfig struct {
	ParallelThreshold int // Candidate count above which scoring fans out (default: 64)
	Workers           int // Number of scoring goroutines when fanned out (default: 4)
}

// DefaultConfig returns default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		ParallelThreshold: 64,
		Workers:           4,
	}
}

// NewEngine creates a new match engine
func NewEngine(logger ectologger.Logger, config EngineConfig) *Engine {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Engine{
		logger: logger,
		scorer: NewScorer(),
		config: config,
	}
}

// Evaluate selects candidates for the order from stored, scores every candidate and applies the decision policy.
// An empty candidate window is a normal "no match" outcome.
func (e *Engine) Evaluate(ctx context.Context, order models.Order, stored []models.Order, settings models.DetectionSettings) Decision {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Evaluate")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"shop_id":  order.ShopID,
		"order_id": order.ID,
	})

	candidates := SelectCandidates(order, stored, settings.TimeWindowHours)
	if len(candidates) == 0 {
		log.Debug("No candidates in window")
		return Decision{}
	}

	pairs := e.scoreAll(NewProfile(order), candidates, settings)

	decision := Decide(pairs, settings)
	decision.Candidates = len(candidates)

	log.WithFields(map[string]any{
		"candidates": len(candidates),
		"matches":    len(pairs),
		"flagged":    decision.Flagged,
	}).Debug("Evaluated order")

	return decision
}

func (e *Engine) scoreAll(order Profile, candidates []models.Order, settings models.DetectionSettings) []PairScore {
	slots := make([]*PairScore, len(candidates))

	score := func(i int) {
		if pair, ok := e.scorer.Score(order, NewProfile(candidates[i]), settings); ok {
			slots[i] = &pair
		}
	}

	if len(candidates) <= e.config.ParallelThreshold || e.config.Workers == 1 {
		for i := range candidates {
			score(i)
		}
	} else {
		// each worker owns a disjoint set of slot indexes
		var wg sync.WaitGroup
		for w := 0; w < e.config.Workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := w; i < len(candidates); i += e.config.Workers {
					score(i)
				}
			}(w)
		}
		wg.Wait()
	}

	pairs := make([]PairScore, 0, len(candidates))
	for _, p := range slots {
		if p != nil {
			pairs = append(pairs, *p)
		}
	}
	return pairs
}
