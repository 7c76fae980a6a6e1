// Package ranking provides the pure scoring algorithm for ordering feasible
// containers. This is part of the Functional Core - all functions are pure
// with no I/O.
package ranking

import (
	"sort"

	"github.com/freightworks/stowage/internal/core/domain"
)

// =============================================================================
// Policy Constants
// =============================================================================

// Fixed policy weights. These are not configurable at call time; changing
// them changes every ranking the engine produces.
const (
	weightReliability = 0.6
	weightCost        = 0.3
	weightCapacity    = 0.1

	// costScale normalizes cost into a score. A cost above costScale drives
	// the cost score negative rather than flooring at zero; the negative
	// contribution is intentional and must not be clamped.
	costScale = 2000.0
)

// =============================================================================
// Candidates
// =============================================================================

// Candidate pairs a feasible container with its oracle-predicted reliability.
type Candidate struct {
	Container   domain.Container
	Reliability float64
}

// Ranked is a candidate with its computed final score.
type Ranked struct {
	Container   domain.Container
	Reliability float64
	FinalScore  float64
}

// =============================================================================
// Scoring Algorithm
// =============================================================================

// Score combines reliability, cost and residual capacity into a single
// ordering key:
//
//	costScore     = 1 - cost/2000        (unclamped)
//	capacityScore = available/total
//	finalScore    = 0.6*reliability + 0.3*costScore + 0.1*capacityScore
func Score(c domain.Container, reliability float64) float64 {
	costScore := 1 - c.Cost/costScale
	capacityScore := c.Available() / c.TotalCapacity
	return weightReliability*reliability + weightCost*costScore + weightCapacity*capacityScore
}

// Rank scores each candidate and returns them ordered by final score
// descending. Order among exact score ties is unspecified.
func Rank(candidates []Candidate) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))
	for _, cand := range candidates {
		ranked = append(ranked, Ranked{
			Container:   cand.Container,
			Reliability: cand.Reliability,
			FinalScore:  Score(cand.Container, cand.Reliability),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})

	return ranked
}
