package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/teamforge/balance-service/internal/types"
)

// GeneticSolver evolves a population of assignments through elitism,
// tournament selection, team-split crossover and swap mutation. An optional
// diversity guard rejects offspring nearly identical to sampled population
// members to delay premature convergence.
type GeneticSolver struct {
	rng   *rand.Rand
	stats types.SolverStats
}

func NewGeneticSolver(seed int64) *GeneticSolver {
	return &GeneticSolver{
		rng:   rand.New(rand.NewSource(seed)),
		stats: types.SolverStats{Solver: SolverGenetic},
	}
}

func (g *GeneticSolver) Name() string { return SolverGenetic }

func (g *GeneticSolver) Stats() types.SolverStats { return g.stats }

type scoredSolution struct {
	solution *Solution
	score    float64
}

func (g *GeneticSolver) Solve(ctx context.Context, pc *ProblemContext) (*Solution, error) {
	cfg := pc.Config
	population := g.initialPopulation(pc)
	if len(population) == 0 {
		return nil, fmt.Errorf("genetic solver could not build an initial population")
	}

	best := population[0].solution.Clone()
	bestScore := population[0].score
	stagnation := 0

	for gen := 0; gen < cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return best, nil
		}

		sort.Slice(population, func(i, j int) bool {
			return population[i].score < population[j].score
		})

		if population[0].score < bestScore {
			bestScore = population[0].score
			best = population[0].solution.Clone()
			stagnation = 0
			g.stats.Improvements++
		} else {
			stagnation++
		}

		mutationRate := cfg.MutationRate
		if stagnation > cfg.GAStagnationLimit/2 {
			mutationRate *= 2
		}

		next := make([]scoredSolution, 0, len(population))
		// Elites carry over untouched.
		for e := 0; e < cfg.EliteCount && e < len(population); e++ {
			next = append(next, scoredSolution{
				solution: population[e].solution.Clone(),
				score:    population[e].score,
			})
		}

		for len(next) < len(population) {
			p1 := g.tournament(population, cfg.TournamentSize)
			p2 := g.tournament(population, cfg.TournamentSize)

			var child *Solution
			if g.rng.Float64() < cfg.CrossoverRate {
				child = g.crossover(pc, p1.solution, p2.solution)
			} else {
				child = p1.solution.Clone()
			}

			if cfg.DiversityGuard && g.tooSimilar(child, population, cfg.DiversityThreshold) {
				child = GenerateRandom(pc.Composition, pc.TeamCount, pc.PlayersByPosition, g.rng, pc.Log)
			}

			if g.rng.Float64() < mutationRate {
				RandomSwap(g.rng, child, &cfg)
			}

			next = append(next, scoredSolution{
				solution: child,
				score:    pc.Evaluator.Evaluate(child),
			})
		}

		// Sustained stagnation: refresh the worst half with new material.
		if stagnation >= cfg.GAStagnationLimit {
			sort.Slice(next, func(i, j int) bool {
				return next[i].score < next[j].score
			})
			for i := len(next) / 2; i < len(next); i++ {
				fresh := g.freshSolution(pc)
				next[i] = scoredSolution{
					solution: fresh,
					score:    pc.Evaluator.Evaluate(fresh),
				}
			}
			stagnation = 0
			g.stats.Restarts++
		}

		population = next
		g.stats.Iterations = gen + 1
	}

	for _, member := range population {
		if member.score < bestScore {
			bestScore = member.score
			best = member.solution.Clone()
		}
	}

	g.stats.BestScore = bestScore
	return best, nil
}

func (g *GeneticSolver) initialPopulation(pc *ProblemContext) []scoredSolution {
	population := make([]scoredSolution, 0, pc.Config.PopulationSize)
	for _, seed := range pc.Pool {
		if len(population) >= pc.Config.PopulationSize {
			break
		}
		clone := seed.Clone()
		population = append(population, scoredSolution{
			solution: clone,
			score:    pc.Evaluator.Evaluate(clone),
		})
	}
	for len(population) < pc.Config.PopulationSize {
		s := GenerateRandom(pc.Composition, pc.TeamCount, pc.PlayersByPosition, g.rng, pc.Log)
		population = append(population, scoredSolution{
			solution: s,
			score:    pc.Evaluator.Evaluate(s),
		})
	}
	return population
}

func (g *GeneticSolver) freshSolution(pc *ProblemContext) *Solution {
	// Mostly random blood, occasionally a generator candidate.
	if g.rng.Float64() < 0.25 {
		if seed := pc.SeedSolution(g.rng); seed != nil {
			return seed
		}
	}
	return GenerateRandom(pc.Composition, pc.TeamCount, pc.PlayersByPosition, g.rng, pc.Log)
}

func (g *GeneticSolver) tournament(population []scoredSolution, size int) scoredSolution {
	best := population[g.rng.Intn(len(population))]
	for i := 1; i < size; i++ {
		candidate := population[g.rng.Intn(len(population))]
		if candidate.score < best.score {
			best = candidate
		}
	}
	return best
}

// crossover copies parent1's teams below a random split point verbatim, then
// refills the remaining teams slot-by-slot from parent2's players, keeping
// composition conformance by construction. Any slot left open (because all
// of parent2's candidates were already used) is filled from the input roster;
// if even the roster cannot cover it, the child is discarded for a clone of
// parent1 so an under-quota solution never enters the population.
func (g *GeneticSolver) crossover(pc *ProblemContext, parent1, parent2 *Solution) *Solution {
	teamCount := pc.TeamCount
	split := 1
	if teamCount > 1 {
		split = 1 + g.rng.Intn(teamCount-1)
	}

	child := NewSolution(teamCount)
	used := make(map[string]bool)
	for t := 0; t < split; t++ {
		child.Teams[t] = make([]types.AssignedPlayer, len(parent1.Teams[t]))
		copy(child.Teams[t], parent1.Teams[t])
		for _, p := range child.Teams[t] {
			used[p.ID] = true
		}
	}

	// Remaining per-team quotas for the open teams.
	need := make([]map[string]int, teamCount)
	for t := split; t < teamCount; t++ {
		need[t] = make(map[string]int, len(pc.Composition))
		for pos, count := range pc.Composition {
			if count > 0 {
				need[t][pos] = count
			}
		}
	}

	place := func(player types.AssignedPlayer) bool {
		// Prefer a team needing the player's current position; fall back to
		// the smallest open team with any slot the player can cover.
		for t := split; t < teamCount; t++ {
			if need[t][player.AssignedPosition] > 0 {
				need[t][player.AssignedPosition]--
				child.Teams[t] = append(child.Teams[t], player)
				used[player.ID] = true
				return true
			}
		}
		smallest, smallestPos := -1, ""
		for t := split; t < teamCount; t++ {
			for pos, count := range need[t] {
				if count > 0 && player.CanPlay(pos) {
					if smallest < 0 || len(child.Teams[t]) < len(child.Teams[smallest]) {
						smallest, smallestPos = t, pos
					}
				}
			}
		}
		if smallest < 0 {
			return false
		}
		need[smallest][smallestPos]--
		player.AssignedPosition = smallestPos
		player.PositionRating = player.RatingFor(smallestPos)
		child.Teams[smallest] = append(child.Teams[smallest], player)
		used[player.ID] = true
		return true
	}

	for _, team := range parent2.Teams {
		for _, player := range team {
			if used[player.ID] {
				continue
			}
			place(player)
		}
	}

	// Fill any leftover slots from the roster, top-rated first. An under-quota
	// child would score as if smaller teams were fine, so when the roster is
	// exhausted the breed is abandoned for a clone of the first parent.
	for t := split; t < teamCount; t++ {
		for pos, count := range need[t] {
			for i := 0; i < count; i++ {
				pool := sortedPoolFor(pc, pos, used)
				if len(pool) == 0 {
					pc.Log.WithField("position", pos).Warn("Crossover could not fill a slot, keeping first parent")
					return parent1.Clone()
				}
				candidate := pool[0]
				assign(child, t, candidate, pos)
				used[candidate.ID] = true
			}
		}
	}

	return child
}

func sortedPoolFor(pc *ProblemContext, position string, used map[string]bool) []types.Player {
	return sortedPool(position, pc.PlayersByPosition, used)
}

// tooSimilar samples a few population members and reports whether the child
// shares nearly all player-team placements with any of them.
func (g *GeneticSolver) tooSimilar(child *Solution, population []scoredSolution, threshold float64) bool {
	childKeys := placementKeys(child)
	if len(childKeys) == 0 {
		return false
	}
	samples := 3
	if samples > len(population) {
		samples = len(population)
	}
	for i := 0; i < samples; i++ {
		other := population[g.rng.Intn(len(population))].solution
		overlap := 0
		for key := range placementKeys(other) {
			if childKeys[key] {
				overlap++
			}
		}
		if float64(overlap)/float64(len(childKeys)) >= threshold {
			return true
		}
	}
	return false
}

func placementKeys(s *Solution) map[string]bool {
	keys := make(map[string]bool)
	for t, team := range s.Teams {
		for _, p := range team {
			keys[fmt.Sprintf("%d/%s", t, p.ID)] = true
		}
	}
	return keys
}
