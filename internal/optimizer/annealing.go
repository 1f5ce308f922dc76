package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/teamforge/balance-service/internal/types"
)

// AnnealingSolver runs Metropolis-criterion simulated annealing with
// geometric cooling, optional adaptive cooling keyed to the recent
// acceptance ratio, and reheating after sustained stagnation.
type AnnealingSolver struct {
	rng   *rand.Rand
	stats types.SolverStats
}

func NewAnnealingSolver(seed int64) *AnnealingSolver {
	return &AnnealingSolver{
		rng:   rand.New(rand.NewSource(seed)),
		stats: types.SolverStats{Solver: SolverAnnealing},
	}
}

func (a *AnnealingSolver) Name() string { return SolverAnnealing }

func (a *AnnealingSolver) Stats() types.SolverStats { return a.stats }

func (a *AnnealingSolver) Solve(ctx context.Context, pc *ProblemContext) (*Solution, error) {
	cfg := pc.Config

	current := pc.SeedSolution(a.rng)
	if current == nil {
		current = GenerateRandom(pc.Composition, pc.TeamCount, pc.PlayersByPosition, a.rng, pc.Log)
	}
	currentScore := pc.Evaluator.Evaluate(current)
	if math.IsInf(currentScore, 1) {
		return nil, fmt.Errorf("annealing could not score its initial solution")
	}

	best := current.Clone()
	bestScore := currentScore

	temperature := cfg.InitialTemperature
	coolingRate := cfg.CoolingRate
	stagnation := 0
	blockAccepted, blockTried := 0, 0

	for iter := 0; iter < cfg.SAIterations; iter++ {
		if err := ctx.Err(); err != nil {
			break
		}
		a.stats.Iterations++

		neighbor := Neighbor(a.rng, current, &cfg)
		score := pc.Evaluator.Evaluate(neighbor)
		delta := score - currentScore
		blockTried++

		if delta < 0 || a.rng.Float64() < math.Exp(-delta/temperature) {
			current, currentScore = neighbor, score
			blockAccepted++
		}

		if currentScore < bestScore {
			bestScore = currentScore
			best = current.Clone()
			stagnation = 0
			a.stats.Improvements++
		} else {
			stagnation++
		}

		if cfg.AdaptiveCooling && blockTried >= cfg.EquilibriumBlock {
			// Cool faster when almost everything is accepted (still too
			// hot), slower when almost nothing is (freezing).
			ratio := float64(blockAccepted) / float64(blockTried)
			switch {
			case ratio > 0.6:
				coolingRate = math.Max(cfg.CoolingRate-0.03, 0.85)
			case ratio < 0.1:
				coolingRate = math.Min(cfg.CoolingRate+0.03, 0.995)
			default:
				coolingRate = cfg.CoolingRate
			}
			blockAccepted, blockTried = 0, 0
			temperature *= coolingRate
		} else if !cfg.AdaptiveCooling {
			temperature *= coolingRate
		}
		// Clamp at the floor instead of terminating so the run spends its
		// whole iteration budget and the reheat escape stays reachable.
		if temperature < cfg.FinalTemperature {
			temperature = cfg.FinalTemperature
		}

		if stagnation >= cfg.ReheatThreshold {
			temperature = cfg.ReheatTemperature
			current = best.Clone()
			currentScore = bestScore
			stagnation = 0
			a.stats.Restarts++
		}
	}

	a.stats.BestScore = bestScore
	return best, nil
}
