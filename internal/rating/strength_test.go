package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamforge/balance-service/internal/types"
)

func assigned(id, pos string, r float64) types.AssignedPlayer {
	return types.AssignedPlayer{
		Player:           types.Player{ID: id, Positions: []string{pos}},
		AssignedPosition: pos,
		PositionRating:   r,
	}
}

func TestTeamStrength_Aggregates(t *testing.T) {
	team := []types.AssignedPlayer{
		assigned("s1", types.PositionSetter, 1600),
		assigned("o1", types.PositionOutsideHitter, 1400),
	}

	s := TeamStrength(team)
	assert.Equal(t, 2, s.PlayerCount)
	assert.InDelta(t, 3000.0, s.TotalRating, 1e-9)
	assert.InDelta(t, 1500.0, s.AverageRating, 1e-9)
	assert.InDelta(t, 1600*1.15+1400*1.05, s.WeightedRating, 1e-9)
}

func TestTeamStrength_UnknownPositionWeightsOne(t *testing.T) {
	team := []types.AssignedPlayer{assigned("x", "DS", 1500)}
	s := TeamStrength(team)
	assert.InDelta(t, 1500.0, s.WeightedRating, 1e-9)
}

func TestTeamStrength_EmptyTeam(t *testing.T) {
	s := TeamStrength(nil)
	assert.Equal(t, 0, s.PlayerCount)
	assert.Zero(t, s.TotalRating)
	assert.Zero(t, s.AverageRating)
}

func TestEvaluateBalance_WithinThreshold(t *testing.T) {
	teams := [][]types.AssignedPlayer{
		{assigned("a", types.PositionOutsideHitter, 1550)},
		{assigned("b", types.PositionOutsideHitter, 1470)},
	}

	report := EvaluateBalance(teams, 100)
	require.Len(t, report.Teams, 2)
	assert.InDelta(t, 80.0, report.MaxDifference, 1e-9)
	assert.True(t, report.IsBalanced)

	report = EvaluateBalance(teams, 50)
	assert.False(t, report.IsBalanced)
}

func TestEvaluateBalance_SingleTeamIsTriviallyBalanced(t *testing.T) {
	teams := [][]types.AssignedPlayer{
		{assigned("a", types.PositionOutsideHitter, 1550)},
	}
	report := EvaluateBalance(teams, 0)
	assert.True(t, report.IsBalanced)
	assert.Zero(t, report.MaxDifference)
}

func TestSpread(t *testing.T) {
	teams := [][]types.AssignedPlayer{
		{assigned("a", types.PositionOutsideHitter, 1600)},
		{assigned("b", types.PositionOutsideHitter, 1400)},
	}
	// Population stddev of {1600, 1400} is 100.
	assert.InDelta(t, 100.0, Spread(teams), 1e-9)
	assert.Zero(t, Spread(nil))
}
