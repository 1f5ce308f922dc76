package optimizer

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Evaluator scores candidate solutions. Lower is better; math.Inf(1) marks a
// solution that must never win (empty teams, non-finite strengths). The score
// is fully deterministic given the solution: every solver compares candidates
// only through this function.
type Evaluator struct {
	VarianceWeight        float64
	PositionBalanceWeight float64
}

// NewEvaluator builds an evaluator with the given soft-constraint weights.
func NewEvaluator(varianceWeight, positionBalanceWeight float64) *Evaluator {
	return &Evaluator{
		VarianceWeight:        varianceWeight,
		PositionBalanceWeight: positionBalanceWeight,
	}
}

// Evaluate computes balance + sqrt(variance)*varianceWeight +
// positionImbalance*positionBalanceWeight over the team strengths.
func (e *Evaluator) Evaluate(s *Solution) float64 {
	if s == nil || len(s.Teams) < 1 {
		return math.Inf(1)
	}

	strengths := make([]float64, len(s.Teams))
	for i, team := range s.Teams {
		if len(team) == 0 {
			return math.Inf(1)
		}
		total := 0.0
		for _, p := range team {
			total += p.PositionRating
		}
		if math.IsNaN(total) || math.IsInf(total, 0) {
			return math.Inf(1)
		}
		strengths[i] = total
	}

	balance := floats.Max(strengths) - floats.Min(strengths)
	variance := stat.PopVariance(strengths, nil)

	score := balance + math.Sqrt(variance)*e.VarianceWeight
	score += e.positionImbalance(s) * e.PositionBalanceWeight

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return math.Inf(1)
	}
	return score
}

// positionImbalance sums, across positions fielded by more than one team,
// the max-min spread of per-team rating totals restricted to that position.
func (e *Evaluator) positionImbalance(s *Solution) float64 {
	perPosition := make(map[string][]float64)
	for i, team := range s.Teams {
		for _, p := range team {
			totals, ok := perPosition[p.AssignedPosition]
			if !ok {
				totals = make([]float64, len(s.Teams))
				perPosition[p.AssignedPosition] = totals
			}
			totals[i] += p.PositionRating
		}
	}

	imbalance := 0.0
	for _, totals := range perPosition {
		nonZero := 0
		min, max := math.Inf(1), math.Inf(-1)
		for _, t := range totals {
			if t > 0 {
				nonZero++
			}
			if t < min {
				min = t
			}
			if t > max {
				max = t
			}
		}
		if nonZero > 1 {
			imbalance += max - min
		}
	}
	return imbalance
}
