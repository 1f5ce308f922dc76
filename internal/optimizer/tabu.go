package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/teamforge/balance-service/internal/types"
)

// tabuList is a bounded FIFO of recently visited solution hashes with an
// O(1) membership set. Oldest entries fall out at tenure capacity.
type tabuList struct {
	order    []uint64
	members  map[uint64]bool
	capacity int
}

func newTabuList(capacity int) *tabuList {
	return &tabuList{
		order:    make([]uint64, 0, capacity),
		members:  make(map[uint64]bool, capacity),
		capacity: capacity,
	}
}

func (t *tabuList) Add(hash uint64) {
	if t.members[hash] {
		return
	}
	if len(t.order) >= t.capacity {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.members, oldest)
	}
	t.order = append(t.order, hash)
	t.members[hash] = true
}

func (t *tabuList) Contains(hash uint64) bool {
	return t.members[hash]
}

// Clear drops the oldest half of the list, keeping recent memory intact.
func (t *tabuList) Clear() {
	keep := len(t.order) / 2
	for _, hash := range t.order[:len(t.order)-keep] {
		delete(t.members, hash)
	}
	t.order = t.order[len(t.order)-keep:]
}

// TabuSolver walks the neighborhood greedily while forbidding recently
// visited assignments, with aspiration, periodic diversification, and a
// restart jump after long stagnation. Optionally multi-start.
type TabuSolver struct {
	rng   *rand.Rand
	stats types.SolverStats
}

func NewTabuSolver(seed int64) *TabuSolver {
	return &TabuSolver{
		rng:   rand.New(rand.NewSource(seed)),
		stats: types.SolverStats{Solver: SolverTabu},
	}
}

func (t *TabuSolver) Name() string { return SolverTabu }

func (t *TabuSolver) Stats() types.SolverStats { return t.stats }

func (t *TabuSolver) Solve(ctx context.Context, pc *ProblemContext) (*Solution, error) {
	starts := 1
	if pc.Config.MultiStartTabu {
		starts = pc.Config.MultiStartCount
	}

	var best *Solution
	bestScore := math.Inf(1)
	for run := 0; run < starts; run++ {
		candidate, score, err := t.run(ctx, pc)
		if err != nil {
			return nil, err
		}
		if score < bestScore {
			bestScore = score
			best = candidate
		}
		if ctx.Err() != nil {
			break
		}
	}
	if best == nil {
		return nil, fmt.Errorf("tabu search produced no candidate")
	}
	t.stats.BestScore = bestScore
	return best, nil
}

func (t *TabuSolver) run(ctx context.Context, pc *ProblemContext) (*Solution, float64, error) {
	cfg := pc.Config
	current := pc.SeedSolution(t.rng)
	if current == nil {
		current = GenerateRandom(pc.Composition, pc.TeamCount, pc.PlayersByPosition, t.rng, pc.Log)
	}
	currentScore := pc.Evaluator.Evaluate(current)

	best := current.Clone()
	bestScore := currentScore

	tabu := newTabuList(cfg.TabuTenure)
	tabu.Add(current.Hash())
	sinceImprovement := 0

	for iter := 0; iter < cfg.TabuIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return best, bestScore, nil
		}
		t.stats.Iterations++

		var bestNeighbor, bestTabuNeighbor *Solution
		bestNeighborScore := math.Inf(1)
		bestTabuScore := math.Inf(1)

		for n := 0; n < cfg.NeighborhoodSize; n++ {
			neighbor := Neighbor(t.rng, current, &cfg)
			score := pc.Evaluator.Evaluate(neighbor)
			hash := neighbor.Hash()

			if tabu.Contains(hash) {
				// Aspiration: a tabu move that beats the global best is
				// accepted regardless.
				if score < bestScore && score < bestNeighborScore {
					bestNeighbor, bestNeighborScore = neighbor, score
				} else if score < bestTabuScore {
					bestTabuNeighbor, bestTabuScore = neighbor, score
				}
				continue
			}
			if score < bestNeighborScore {
				bestNeighbor, bestNeighborScore = neighbor, score
			}
		}

		if bestNeighbor == nil {
			// Entire neighborhood tabu and nothing aspirated: take the best
			// tabu neighbor anyway rather than deadlocking.
			bestNeighbor, bestNeighborScore = bestTabuNeighbor, bestTabuScore
		}
		if bestNeighbor == nil {
			continue
		}

		current, currentScore = bestNeighbor, bestNeighborScore
		tabu.Add(current.Hash())

		if currentScore < bestScore {
			bestScore = currentScore
			best = current.Clone()
			sinceImprovement = 0
			t.stats.Improvements++
		} else {
			sinceImprovement++
		}

		if sinceImprovement > 0 && sinceImprovement%cfg.DiversifyInterval == 0 {
			current = t.diversify(best, pc)
			currentScore = pc.Evaluator.Evaluate(current)
			tabu.Clear()
		}

		if sinceImprovement >= cfg.TabuRestartThreshold {
			current = t.restart(best, pc)
			currentScore = pc.Evaluator.Evaluate(current)
			sinceImprovement = 0
			t.stats.Restarts++
		}
	}

	return best, bestScore, nil
}

// diversify applies a large multi-swap perturbation from the best solution.
func (t *TabuSolver) diversify(best *Solution, pc *ProblemContext) *Solution {
	s := best.Clone()
	swaps := 3 + t.rng.Intn(4)
	for i := 0; i < swaps; i++ {
		RandomSwap(t.rng, s, &pc.Config)
	}
	return s
}

// restart jumps back to the best solution plus a few swaps.
func (t *TabuSolver) restart(best *Solution, pc *ProblemContext) *Solution {
	s := best.Clone()
	for i := 0; i < 2; i++ {
		RandomSwap(t.rng, s, &pc.Config)
	}
	return s
}
