package optimizer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamforge/balance-service/internal/types"
)

func testOptimizer() *Optimizer {
	cfg := DefaultSolverConfig()
	cfg.Seed = 42
	l := testLog()
	return New(cfg, l.Logger)
}

func TestOptimize_TrivialTwoTeams(t *testing.T) {
	// Two identical outside hitters across two one-player teams: the only
	// assignment is perfectly balanced.
	composition := types.Composition{types.PositionOutsideHitter: 1}
	players := []types.Player{
		{ID: "o1", Name: "One", Positions: []string{types.PositionOutsideHitter}, Ratings: map[string]float64{types.PositionOutsideHitter: 1500}},
		{ID: "o2", Name: "Two", Positions: []string{types.PositionOutsideHitter}, Ratings: map[string]float64{types.PositionOutsideHitter: 1500}},
	}

	result, err := testOptimizer().Optimize(context.Background(), composition, 2, players, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Teams, 2)

	assert.InDelta(t, 0.0, result.Balance.MaxDifference, 1e-9)
	assert.InDelta(t, 0.0, result.FinalScore, 1e-9)
	assert.Empty(t, result.UnusedPlayers)
	assert.True(t, result.Validation.Valid)
	assert.NotEmpty(t, result.Algorithm)
}

func TestOptimize_FullRoster(t *testing.T) {
	players := testRoster(3)
	result, err := testOptimizer().Optimize(context.Background(), testComposition(), 3, players, nil, nil)
	require.NoError(t, err)

	require.Len(t, result.Teams, 3)
	for _, team := range result.Teams {
		assert.Len(t, team.Players, testComposition().TotalSlots())
		assert.Greater(t, team.TotalRating, 0.0)
		assert.InDelta(t, team.TotalRating/float64(len(team.Players)), team.AverageRating, 1e-9)
	}

	// Teams come back strongest first.
	for i := 1; i < len(result.Teams); i++ {
		assert.GreaterOrEqual(t, result.Teams[i-1].TotalRating, result.Teams[i].TotalRating)
	}

	// Players within a team follow the canonical position order.
	rank := make(map[string]int)
	for i, pos := range types.PositionOrder {
		rank[pos] = i
	}
	for _, team := range result.Teams {
		for i := 1; i < len(team.Players); i++ {
			assert.LessOrEqual(t, rank[team.Players[i-1].AssignedPosition], rank[team.Players[i].AssignedPosition])
		}
	}

	assert.Empty(t, result.UnusedPlayers)
	assert.NotEmpty(t, result.Statistics)
	assert.GreaterOrEqual(t, result.OptimizationTimeMs, int64(0))
}

func TestOptimize_SurplusPlayersGoUnused(t *testing.T) {
	players := testRoster(2)
	// Three extra hitters beyond what two teams need.
	for i := 0; i < 3; i++ {
		players = append(players, types.Player{
			ID:        "extra" + string(rune('1'+i)),
			Positions: []string{types.PositionOutsideHitter},
			Ratings:   map[string]float64{types.PositionOutsideHitter: 1000},
		})
	}

	result, err := testOptimizer().Optimize(context.Background(), testComposition(), 2, players, nil, nil)
	require.NoError(t, err)

	totalPlaced := 0
	for _, team := range result.Teams {
		totalPlaced += len(team.Players)
	}
	assert.Equal(t, testComposition().TotalSlots()*2, totalPlaced)
	assert.Len(t, result.UnusedPlayers, 3)
}

func TestOptimize_InfeasibleRosterFailsValidation(t *testing.T) {
	composition := types.Composition{types.PositionSetter: 1}
	players := []types.Player{
		{ID: "s1", Positions: []string{types.PositionSetter}},
		{ID: "s2", Positions: []string{types.PositionSetter}},
	}

	_, err := testOptimizer().Optimize(context.Background(), composition, 3, players, nil, nil)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Report.Violations, 2)
	assert.Equal(t, types.PositionSetter, verr.Report.Violations[0].Position)
}

func TestOptimize_SettingsOverrideSolverSet(t *testing.T) {
	settings := &types.OptimizeSettings{
		EnabledSolvers: []string{SolverTabu},
		Seed:           7,
	}

	result, err := testOptimizer().Optimize(context.Background(), testComposition(), 2, testRoster(2), settings, nil)
	require.NoError(t, err)
	assert.Equal(t, SolverTabu, result.Algorithm)
	require.Len(t, result.Statistics, 1)
	assert.Contains(t, result.Statistics, SolverTabu)
}

func TestOptimize_UnknownSolversFallBackToDefaults(t *testing.T) {
	settings := &types.OptimizeSettings{
		EnabledSolvers: []string{"quantum"},
		Seed:           3,
	}

	result, err := testOptimizer().Optimize(context.Background(), testComposition(), 2, testRoster(2), settings, nil)
	require.NoError(t, err)
	assert.Contains(t, []string{SolverGenetic, SolverTabu}, result.Algorithm)
}

func TestOptimize_DeterministicWithSeed(t *testing.T) {
	settings := &types.OptimizeSettings{Seed: 4242}

	first, err := testOptimizer().Optimize(context.Background(), testComposition(), 2, testRoster(2), settings, nil)
	require.NoError(t, err)
	second, err := testOptimizer().Optimize(context.Background(), testComposition(), 2, testRoster(2), settings, nil)
	require.NoError(t, err)

	assert.Equal(t, first.FinalScore, second.FinalScore)
	assert.Equal(t, first.Algorithm, second.Algorithm)
}

func TestOptimize_ProgressUpdatesArrive(t *testing.T) {
	progress := make(chan types.ProgressUpdate, 64)

	_, err := testOptimizer().Optimize(context.Background(), testComposition(), 2, testRoster(2), nil, progress)
	require.NoError(t, err)
	close(progress)

	var steps []string
	for update := range progress {
		steps = append(steps, update.CurrentStep)
	}
	require.NotEmpty(t, steps)
	assert.Equal(t, "validation", steps[0])
	assert.Equal(t, "completed", steps[len(steps)-1])
}

func TestOptimize_ValidateOnly(t *testing.T) {
	o := testOptimizer()

	report := o.Validate(testComposition(), 2, testRoster(2))
	assert.True(t, report.Valid)

	report = o.Validate(testComposition(), 5, testRoster(2))
	assert.False(t, report.Valid)
}

func TestSelectWinner_PrefersFiniteScores(t *testing.T) {
	o := testOptimizer()
	log := testLog()

	good := NewSolution(1)
	good.Teams[0] = []types.AssignedPlayer{{PositionRating: 1500}}

	outcomes := []solverOutcome{
		{name: "a", solution: nil, err: errors.New("boom")},
		{name: "b", solution: &Solution{}, score: math.Inf(1)},
		{name: "c", solution: good, score: 10},
		{name: "d", solution: good, score: 5},
	}

	winner, stats, err := o.selectWinner(outcomes, log)
	require.NoError(t, err)
	assert.Equal(t, "d", winner.name)
	assert.Len(t, stats, 4)
	assert.True(t, stats["a"].Failed)
}

func TestSelectWinner_AllFailedIsError(t *testing.T) {
	o := testOptimizer()
	outcomes := []solverOutcome{
		{name: "a", err: errors.New("x")},
		{name: "b", err: errors.New("y")},
	}
	_, _, err := o.selectWinner(outcomes, testLog())
	assert.Error(t, err)
}

func TestSelectWinner_AllDegenerateReturnsLeastBad(t *testing.T) {
	o := testOptimizer()
	s := NewSolution(1)
	outcomes := []solverOutcome{
		{name: "a", solution: s, score: math.Inf(1)},
		{name: "b", solution: s, score: math.Inf(1)},
	}
	winner, _, err := o.selectWinner(outcomes, testLog())
	require.NoError(t, err)
	assert.Equal(t, "a", winner.name)
}
