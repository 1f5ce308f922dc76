package optimizer

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamforge/balance-service/internal/types"
)

func allSolvers(seed int64) []Solver {
	return []Solver{
		NewGeneticSolver(seed),
		NewTabuSolver(seed),
		NewAnnealingSolver(seed),
		NewAntColonySolver(seed),
		NewConstraintSolver(seed),
	}
}

func TestSolvers_ProduceValidSolutions(t *testing.T) {
	pc := testContext(3, testRoster(3))

	for _, solver := range allSolvers(42) {
		t.Run(solver.Name(), func(t *testing.T) {
			solution, err := solver.Solve(context.Background(), pc)
			require.NoError(t, err)
			require.NotNil(t, solution)

			assertValidAssignment(t, solution, pc)

			score := pc.Evaluator.Evaluate(solution)
			assert.False(t, math.IsInf(score, 1), "solver must not win with a degenerate score")

			stats := solver.Stats()
			assert.Equal(t, solver.Name(), stats.Solver)
		})
	}
}

func TestSolvers_UseAllRequiredPlayers(t *testing.T) {
	// With an exact-fit roster every player must be placed.
	pc := testContext(2, testRoster(2))
	totalSlots := pc.Composition.TotalSlots() * pc.TeamCount

	for _, solver := range allSolvers(7) {
		t.Run(solver.Name(), func(t *testing.T) {
			solution, err := solver.Solve(context.Background(), pc)
			require.NoError(t, err)
			assert.Len(t, solution.PlayerIDs(), totalSlots)
		})
	}
}

func TestSolvers_DeterministicWithFixedSeed(t *testing.T) {
	run := func(seed int64) map[string]uint64 {
		pc := testContext(2, testRoster(2))
		hashes := make(map[string]uint64)
		for _, solver := range allSolvers(seed) {
			solution, err := solver.Solve(context.Background(), pc)
			require.NoError(t, err)
			hashes[solver.Name()] = solution.Hash()
		}
		return hashes
	}

	first := run(1234)
	second := run(1234)
	assert.Equal(t, first, second)
}

func TestSolvers_RespectCancellation(t *testing.T) {
	// A large problem with a cancelled context must still return promptly
	// with whatever the solver has so far, not an error.
	players := testRoster(8)
	pc := testContext(8, players)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, solver := range allSolvers(99) {
		t.Run(solver.Name(), func(t *testing.T) {
			start := time.Now()
			solution, err := solver.Solve(ctx, pc)
			require.NoError(t, err)
			require.NotNil(t, solution)
			assert.Less(t, time.Since(start), 5*time.Second)
		})
	}
}

func TestTabuList_FIFOEviction(t *testing.T) {
	list := newTabuList(3)
	list.Add(1)
	list.Add(2)
	list.Add(3)
	require.True(t, list.Contains(1))

	list.Add(4)
	assert.False(t, list.Contains(1), "oldest entry must be evicted at capacity")
	assert.True(t, list.Contains(2))
	assert.True(t, list.Contains(4))
}

func TestTabuList_AddIsIdempotent(t *testing.T) {
	list := newTabuList(2)
	list.Add(7)
	list.Add(7)
	list.Add(8)
	// Re-adding 7 must not have consumed a slot.
	assert.True(t, list.Contains(7))
	assert.True(t, list.Contains(8))
}

func TestTabuList_ClearKeepsRecentHalf(t *testing.T) {
	list := newTabuList(10)
	for h := uint64(1); h <= 6; h++ {
		list.Add(h)
	}
	list.Clear()

	assert.False(t, list.Contains(1))
	assert.False(t, list.Contains(3))
	assert.True(t, list.Contains(4))
	assert.True(t, list.Contains(6))
}

func TestGeneticSolver_ImprovesOnPoolBest(t *testing.T) {
	pc := testContext(3, testRoster(3))

	poolBest := math.Inf(1)
	for _, s := range pc.Pool {
		if score := pc.Evaluator.Evaluate(s); score < poolBest {
			poolBest = score
		}
	}

	solver := NewGeneticSolver(42)
	solution, err := solver.Solve(context.Background(), pc)
	require.NoError(t, err)

	// The GA seeds its population from the pool; its result can never be
	// worse than the best pool candidate.
	assert.LessOrEqual(t, pc.Evaluator.Evaluate(solution), poolBest)
}

func TestGeneticCrossover_ChildrenAlwaysConform(t *testing.T) {
	// Dual-position players push the refill through its fallback paths, so
	// every bred child must still meet the composition exactly.
	players := testRoster(2)
	alternate := map[string]string{
		types.PositionSetter:        types.PositionOpposite,
		types.PositionOutsideHitter: types.PositionMiddleBlocker,
		types.PositionMiddleBlocker: types.PositionOutsideHitter,
		types.PositionOpposite:      types.PositionSetter,
	}
	for i := range players {
		players[i].Positions = append(players[i].Positions, alternate[players[i].Positions[0]])
	}

	pc := testContext(2, players)
	solver := NewGeneticSolver(21)

	for i := 0; i < 200; i++ {
		p1 := pc.Pool[i%len(pc.Pool)]
		p2 := pc.Pool[(i+1)%len(pc.Pool)]
		child := solver.crossover(pc, p1, p2)
		assertValidAssignment(t, child, pc)
	}
}

func TestTabuSolver_MultiStartStillValid(t *testing.T) {
	pc := testContext(2, testRoster(2))
	pc.Config.MultiStartTabu = true
	pc.Config.MultiStartCount = 3

	solver := NewTabuSolver(5)
	solution, err := solver.Solve(context.Background(), pc)
	require.NoError(t, err)
	assertValidAssignment(t, solution, pc)
	assert.Greater(t, solver.Stats().Iterations, pc.Config.TabuIterations,
		"multi-start should run more than one pass of iterations")
}

func TestAnnealingSolver_SpendsFullBudgetAndReheats(t *testing.T) {
	// A flat roster (one position, identical ratings) scores 0 for every
	// valid assignment, so the best solution can never improve and
	// stagnation accumulates on every iteration.
	composition := types.Composition{types.PositionOutsideHitter: 2}
	var players []types.Player
	for i := 0; i < 4; i++ {
		id := "oh" + string(rune('a'+i))
		players = append(players, types.Player{
			ID:        id,
			Name:      id,
			Positions: []string{types.PositionOutsideHitter},
			Ratings:   map[string]float64{types.PositionOutsideHitter: 1500},
		})
	}

	cfg := DefaultSolverConfig()
	cfg.Seed = 11
	cfg.SAIterations = 300
	cfg.ReheatThreshold = 50

	byPosition := GroupByPosition(players)
	rng := rand.New(rand.NewSource(11))
	log := testLog()
	pc := &ProblemContext{
		Composition:       composition,
		TeamCount:         2,
		Players:           players,
		PlayersByPosition: byPosition,
		Positions:         PositionPriority(composition, byPosition, 2),
		Pool:              GeneratePool(composition, 2, byPosition, rng, 3, log),
		Evaluator:         NewEvaluator(cfg.VarianceWeight, cfg.PositionBalanceWeight),
		Config:            cfg,
		Log:               log,
	}

	solver := NewAnnealingSolver(11)
	solution, err := solver.Solve(context.Background(), pc)
	require.NoError(t, err)
	assertValidAssignment(t, solution, pc)

	stats := solver.Stats()
	assert.Equal(t, cfg.SAIterations, stats.Iterations,
		"cooling to the floor must not end the run early")
	assert.GreaterOrEqual(t, stats.Restarts, 1,
		"sustained stagnation must trigger a reheat")
}

func TestConstraintSolver_ExactFitAssignsEveryone(t *testing.T) {
	pc := testContext(2, testRoster(2))

	solver := NewConstraintSolver(13)
	solution, err := solver.Solve(context.Background(), pc)
	require.NoError(t, err)

	assertValidAssignment(t, solution, pc)
	assert.Len(t, solution.PlayerIDs(), pc.Composition.TotalSlots()*pc.TeamCount)
}
