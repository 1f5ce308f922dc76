package optimizer

import (
	"math/rand"

	"github.com/sirupsen/logrus"
)

// LocalSearch is the hill-climbing polish applied to the portfolio winner.
// Best-improvement strategy: each pass scores a full neighborhood and keeps
// the single best strict improvement. The refined score never exceeds the
// input score. Not used inside the metaheuristics' own loops.
type LocalSearch struct {
	rng *rand.Rand
}

func NewLocalSearch(seed int64) *LocalSearch {
	return &LocalSearch{rng: rand.New(rand.NewSource(seed))}
}

// Refine returns the improved solution and its score.
func (l *LocalSearch) Refine(s *Solution, pc *ProblemContext, log *logrus.Entry) (*Solution, float64) {
	cfg := pc.Config
	best := s.Clone()
	bestScore := pc.Evaluator.Evaluate(best)

	stuck := 0
	improvements := 0
	for iter := 0; iter < cfg.RefineIterations; iter++ {
		var passBest *Solution
		passBestScore := bestScore

		for n := 0; n < cfg.RefineNeighborhood; n++ {
			neighbor := Neighbor(l.rng, best, &cfg)
			if score := pc.Evaluator.Evaluate(neighbor); score < passBestScore {
				passBest, passBestScore = neighbor, score
			}
		}

		if passBest == nil {
			// No improving neighbor in a full pass.
			if !cfg.RefinePerturbation || stuck >= cfg.RefineStuckAttempts {
				break
			}
			stuck++
			// Perturb a clone and continue; keep best untouched so the
			// monotonic guarantee holds.
			perturbed := best.Clone()
			for i := 0; i < 3; i++ {
				RandomSwap(l.rng, perturbed, &cfg)
			}
			if score := pc.Evaluator.Evaluate(perturbed); score < bestScore {
				best, bestScore = perturbed, score
			}
			continue
		}

		best, bestScore = passBest, passBestScore
		improvements++
		stuck = 0
	}

	log.WithFields(logrus.Fields{
		"refine_improvements": improvements,
		"final_score":         bestScore,
	}).Debug("Local search refinement finished")

	return best, bestScore
}
