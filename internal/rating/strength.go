// Package rating computes team strength aggregates and the balance report
// returned alongside optimization results. The optimizer keeps its own
// lighter strength sums in the hot path and calls into this package once on
// the final winner.
package rating

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/teamforge/balance-service/internal/types"
)

// PositionWeights biases the weighted strength aggregate toward roles with
// outsized influence on match outcomes. Tunable; total strength and balance
// evaluation use the unweighted sum.
var PositionWeights = map[string]float64{
	types.PositionSetter:        1.15,
	types.PositionOutsideHitter: 1.05,
	types.PositionMiddleBlocker: 1.0,
	types.PositionOpposite:      1.05,
	types.PositionLibero:        0.9,
}

// TeamStrength aggregates rating strength for one team.
func TeamStrength(players []types.AssignedPlayer) types.TeamStrength {
	strength := types.TeamStrength{PlayerCount: len(players)}
	if len(players) == 0 {
		return strength
	}

	for _, p := range players {
		strength.TotalRating += p.PositionRating
		weight, ok := PositionWeights[p.AssignedPosition]
		if !ok {
			weight = 1.0
		}
		strength.WeightedRating += p.PositionRating * weight
	}
	strength.AverageRating = strength.TotalRating / float64(len(players))

	return strength
}

// EvaluateBalance compares team strengths and reports the spread. A set of
// teams counts as balanced when the strongest and weakest differ by no more
// than threshold rating points.
func EvaluateBalance(teams [][]types.AssignedPlayer, threshold float64) types.BalanceReport {
	report := types.BalanceReport{
		Teams: make([]types.TeamStrength, 0, len(teams)),
	}

	totals := make([]float64, 0, len(teams))
	for _, team := range teams {
		strength := TeamStrength(team)
		report.Teams = append(report.Teams, strength)
		totals = append(totals, strength.TotalRating)
	}

	if len(totals) < 2 {
		report.IsBalanced = true
		return report
	}

	report.MaxDifference = floats.Max(totals) - floats.Min(totals)
	report.IsBalanced = report.MaxDifference <= threshold

	return report
}

// Spread returns the population standard deviation of team total ratings.
// Used for reporting only.
func Spread(teams [][]types.AssignedPlayer) float64 {
	if len(teams) == 0 {
		return 0
	}
	totals := make([]float64, 0, len(teams))
	for _, team := range teams {
		totals = append(totals, TeamStrength(team).TotalRating)
	}
	variance := stat.PopVariance(totals, nil)
	if math.IsNaN(variance) {
		return 0
	}
	return math.Sqrt(variance)
}
