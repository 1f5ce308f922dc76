package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/teamforge/balance-service/internal/types"
)

// ConstraintSolver is the one systematic solver in the portfolio: it models
// each (team, position, slot) triple as a variable over eligible player ids
// and solves by backtracking with most-constrained-first variable selection
// and least-constraining-first value ordering. A soft balance preference
// breaks value ties toward the team average. Exhausting the backtrack budget
// falls back to the best pool candidate.
type ConstraintSolver struct {
	rng   *rand.Rand
	stats types.SolverStats
}

func NewConstraintSolver(seed int64) *ConstraintSolver {
	return &ConstraintSolver{
		rng:   rand.New(rand.NewSource(seed)),
		stats: types.SolverStats{Solver: SolverConstraint},
	}
}

func (c *ConstraintSolver) Name() string { return SolverConstraint }

func (c *ConstraintSolver) Stats() types.SolverStats { return c.stats }

type cpVariable struct {
	team     int
	position string
	domain   map[string]bool
	assigned string // player id, empty while unassigned
}

type cpState struct {
	pc         *ProblemContext
	variables  []*cpVariable
	players    map[string]types.Player
	backtracks int
	budget     int
}

func (c *ConstraintSolver) Solve(ctx context.Context, pc *ProblemContext) (*Solution, error) {
	state := &cpState{
		pc:      pc,
		players: make(map[string]types.Player, len(pc.Players)),
		budget:  pc.Config.BacktrackBudget,
	}
	for _, p := range pc.Players {
		state.players[p.ID] = p
	}

	for _, pos := range pc.Positions {
		for slot := 0; slot < pc.Composition[pos]; slot++ {
			for team := 0; team < pc.TeamCount; team++ {
				domain := make(map[string]bool, len(pc.PlayersByPosition[pos]))
				for _, p := range pc.PlayersByPosition[pos] {
					domain[p.ID] = true
				}
				state.variables = append(state.variables, &cpVariable{
					team:     team,
					position: pos,
					domain:   domain,
				})
			}
		}
	}

	solved := c.backtrack(ctx, state)
	c.stats.Iterations = state.backtracks

	if !solved {
		pc.Log.WithField("backtracks", state.backtracks).Warn("Constraint solver budget exhausted, falling back to generator pool")
		fallback := c.bestPoolCandidate(pc)
		if fallback == nil {
			return nil, fmt.Errorf("constraint solver failed and no pool fallback is available")
		}
		c.stats.BestScore = pc.Evaluator.Evaluate(fallback)
		return fallback, nil
	}

	solution := NewSolution(pc.TeamCount)
	for _, v := range state.variables {
		player := state.players[v.assigned]
		assign(solution, v.team, player, v.position)
	}
	c.stats.Improvements = 1
	c.stats.BestScore = pc.Evaluator.Evaluate(solution)
	return solution, nil
}

func (c *ConstraintSolver) backtrack(ctx context.Context, state *cpState) bool {
	if state.backtracks >= state.budget || ctx.Err() != nil {
		return false
	}

	v := c.selectVariable(state)
	if v == nil {
		return true // all assigned
	}
	if len(v.domain) == 0 {
		return false
	}

	for _, id := range c.orderValues(state, v) {
		v.assigned = id

		// Propagate: the chosen player disappears from every other domain.
		removed := make([]*cpVariable, 0)
		for _, other := range state.variables {
			if other != v && other.assigned == "" && other.domain[id] {
				delete(other.domain, id)
				removed = append(removed, other)
			}
		}

		if c.backtrack(ctx, state) {
			return true
		}

		// Restore domains and try the next value.
		state.backtracks++
		v.assigned = ""
		for _, other := range removed {
			other.domain[id] = true
		}
		if state.backtracks >= state.budget {
			return false
		}
	}

	return false
}

// selectVariable picks the unassigned variable with the smallest remaining
// domain (most constrained first).
func (c *ConstraintSolver) selectVariable(state *cpState) *cpVariable {
	var best *cpVariable
	for _, v := range state.variables {
		if v.assigned != "" {
			continue
		}
		if best == nil || len(v.domain) < len(best.domain) {
			best = v
		}
	}
	return best
}

// orderValues sorts candidate player ids least-constraining-first: ids that
// appear in fewer other unassigned domains leave the most options open.
// Among equally constraining ids, prefer the player whose rating pulls the
// team total toward the cross-team average (the soft balance preference).
func (c *ConstraintSolver) orderValues(state *cpState, v *cpVariable) []string {
	usage := make(map[string]int, len(v.domain))
	for id := range v.domain {
		usage[id] = 0
	}
	for _, other := range state.variables {
		if other == v || other.assigned != "" {
			continue
		}
		for id := range v.domain {
			if other.domain[id] {
				usage[id]++
			}
		}
	}

	teamTotals := make([]float64, state.pc.TeamCount)
	assignedCount := 0
	for _, other := range state.variables {
		if other.assigned != "" {
			teamTotals[other.team] += state.players[other.assigned].RatingFor(other.position)
			assignedCount++
		}
	}
	average := 0.0
	if assignedCount > 0 {
		grand := 0.0
		for _, t := range teamTotals {
			grand += t
		}
		average = grand / float64(state.pc.TeamCount)
	}

	ids := make([]string, 0, len(v.domain))
	for id := range v.domain {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if usage[ids[i]] != usage[ids[j]] {
			return usage[ids[i]] < usage[ids[j]]
		}
		di := math.Abs(teamTotals[v.team] + state.players[ids[i]].RatingFor(v.position) - average)
		dj := math.Abs(teamTotals[v.team] + state.players[ids[j]].RatingFor(v.position) - average)
		if di != dj {
			return di < dj
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (c *ConstraintSolver) bestPoolCandidate(pc *ProblemContext) *Solution {
	var best *Solution
	bestScore := math.Inf(1)
	for _, s := range pc.Pool {
		if score := pc.Evaluator.Evaluate(s); score < bestScore {
			bestScore = score
			best = s
		}
	}
	if best == nil {
		return nil
	}
	return best.Clone()
}
