package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/teamforge/balance-service/internal/types"
)

// AntColonySolver builds complete assignments probabilistically, biased by a
// pheromone matrix (player -> per-team weights) that evaporates and receives
// deposits proportional to solution quality every iteration, with an extra
// elitist deposit along the global best.
type AntColonySolver struct {
	rng   *rand.Rand
	stats types.SolverStats
}

func NewAntColonySolver(seed int64) *AntColonySolver {
	return &AntColonySolver{
		rng:   rand.New(rand.NewSource(seed)),
		stats: types.SolverStats{Solver: SolverAntColony},
	}
}

func (a *AntColonySolver) Name() string { return SolverAntColony }

func (a *AntColonySolver) Stats() types.SolverStats { return a.stats }

func (a *AntColonySolver) Solve(ctx context.Context, pc *ProblemContext) (*Solution, error) {
	cfg := pc.Config

	// Uniform pheromone start; the matrix lives only for this call.
	pheromone := make(map[string][]float64, len(pc.Players))
	for _, p := range pc.Players {
		weights := make([]float64, pc.TeamCount)
		for i := range weights {
			weights[i] = 1.0
		}
		pheromone[p.ID] = weights
	}

	var best *Solution
	bestScore := math.Inf(1)

	for iter := 0; iter < cfg.ACOIterations; iter++ {
		if err := ctx.Err(); err != nil {
			break
		}
		a.stats.Iterations++

		solutions := make([]*Solution, 0, cfg.AntCount)
		scores := make([]float64, 0, cfg.AntCount)
		for ant := 0; ant < cfg.AntCount; ant++ {
			s := a.construct(pc, pheromone)
			score := pc.Evaluator.Evaluate(s)
			solutions = append(solutions, s)
			scores = append(scores, score)
			if score < bestScore {
				bestScore = score
				best = s.Clone()
				a.stats.Improvements++
			}
		}

		// Evaporate, then deposit along every ant's trail.
		for _, weights := range pheromone {
			for i := range weights {
				weights[i] *= 1 - cfg.EvaporationRate
			}
		}
		for i, s := range solutions {
			deposit := cfg.DepositConstant / (1 + scores[i])
			a.deposit(pheromone, s, deposit)
		}
		if best != nil {
			a.deposit(pheromone, best, cfg.ElitistWeight*cfg.DepositConstant/(1+bestScore))
		}
	}

	if best == nil {
		// Cancelled before the first ant finished; fall back to a pool seed.
		best = pc.SeedSolution(a.rng)
		if best == nil {
			return nil, fmt.Errorf("ant colony produced no candidate")
		}
		bestScore = pc.Evaluator.Evaluate(best)
	}
	a.stats.BestScore = bestScore
	return best, nil
}

func (a *AntColonySolver) deposit(pheromone map[string][]float64, s *Solution, amount float64) {
	for t, team := range s.Teams {
		for _, p := range team {
			if weights, ok := pheromone[p.ID]; ok {
				weights[t] += amount
			}
		}
	}
}

// construct builds one complete solution: for each position scarcest-first
// and each team slot, sample a remaining eligible player with probability
// proportional to pheromone^alpha * (rating/1500)^beta.
func (a *AntColonySolver) construct(pc *ProblemContext, pheromone map[string][]float64) *Solution {
	cfg := pc.Config
	s := NewSolution(pc.TeamCount)
	used := make(map[string]bool)

	for _, pos := range pc.Positions {
		count := pc.Composition[pos]
		for slot := 0; slot < count; slot++ {
			for team := 0; team < pc.TeamCount; team++ {
				candidates := make([]types.Player, 0)
				for _, p := range pc.PlayersByPosition[pos] {
					if !used[p.ID] {
						candidates = append(candidates, p)
					}
				}
				if len(candidates) == 0 {
					pc.Log.WithField("position", pos).Warn("Ant ran out of eligible players for position")
					continue
				}

				probs := make([]float64, len(candidates))
				total := 0.0
				for i, p := range candidates {
					tau := 1.0
					if weights, ok := pheromone[p.ID]; ok {
						tau = weights[team]
					}
					eta := p.RatingFor(pos) / types.DefaultRating
					probs[i] = math.Pow(tau, cfg.PheromoneAlpha) * math.Pow(eta, cfg.RatingBeta)
					total += probs[i]
				}

				chosen := candidates[a.roulette(probs, total)]
				assign(s, team, chosen, pos)
				used[chosen.ID] = true
			}
		}
	}

	return s
}

// roulette samples an index proportionally to the given weights.
func (a *AntColonySolver) roulette(probs []float64, total float64) int {
	if total <= 0 {
		return a.rng.Intn(len(probs))
	}
	r := a.rng.Float64() * total
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r <= acc {
			return i
		}
	}
	return len(probs) - 1
}
