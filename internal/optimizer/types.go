package optimizer

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/teamforge/balance-service/internal/types"
)

// Solution is one candidate assignment of players to teams. Teams hold
// copies of the input players, so solvers can mutate assigned positions and
// ratings freely without touching shared data.
type Solution struct {
	Teams [][]types.AssignedPlayer
}

// NewSolution creates an empty solution with the given team count.
func NewSolution(teamCount int) *Solution {
	return &Solution{Teams: make([][]types.AssignedPlayer, teamCount)}
}

// Clone deep-copies the solution. Team slices are copied; the embedded
// player data is value-copied, which is enough because solvers only ever
// rewrite AssignedPosition and PositionRating.
func (s *Solution) Clone() *Solution {
	clone := &Solution{Teams: make([][]types.AssignedPlayer, len(s.Teams))}
	for i, team := range s.Teams {
		clone.Teams[i] = make([]types.AssignedPlayer, len(team))
		copy(clone.Teams[i], team)
	}
	return clone
}

// TeamStrength returns the unweighted rating sum of one team.
func (s *Solution) TeamStrength(team int) float64 {
	total := 0.0
	for _, p := range s.Teams[team] {
		total += p.PositionRating
	}
	return total
}

// PlayerIDs returns the set of player ids used anywhere in the solution.
func (s *Solution) PlayerIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, team := range s.Teams {
		for _, p := range team {
			ids[p.ID] = true
		}
	}
	return ids
}

// PositionCount returns how many players on a team hold the given position.
func (s *Solution) PositionCount(team int, position string) int {
	count := 0
	for _, p := range s.Teams[team] {
		if p.AssignedPosition == position {
			count++
		}
	}
	return count
}

// Hash produces a stable identity for the assignment, used by tabu search.
// Player order within a team does not affect the hash; team order does.
func (s *Solution) Hash() uint64 {
	h := fnv.New64a()
	for i, team := range s.Teams {
		ids := make([]string, 0, len(team))
		for _, p := range team {
			ids = append(ids, p.ID+":"+p.AssignedPosition)
		}
		sort.Strings(ids)
		fmt.Fprintf(h, "t%d|", i)
		for _, id := range ids {
			h.Write([]byte(id))
			h.Write([]byte{','})
		}
	}
	return h.Sum64()
}

// ProblemContext carries the read-only inputs each solver works from. The
// pool and grouped players are shared; solvers must only mutate their own
// cloned solutions.
type ProblemContext struct {
	Composition       types.Composition
	TeamCount         int
	Players           []types.Player
	PlayersByPosition map[string][]types.Player
	Positions         []string // scarcest-first ordering
	Pool              []*Solution
	Evaluator         *Evaluator
	Config            SolverConfig
	Log               *logrus.Entry
}

// SeedSolution returns a clone of one of the pool candidates, or nil when
// the pool is empty.
func (pc *ProblemContext) SeedSolution(rng *rand.Rand) *Solution {
	if len(pc.Pool) == 0 {
		return nil
	}
	return pc.Pool[rng.Intn(len(pc.Pool))].Clone()
}

// Solver is the common contract all metaheuristics implement. Solve must
// respect ctx cancellation at iteration boundaries and return its best
// candidate. Stats are informational and never feed back into solving.
type Solver interface {
	Name() string
	Solve(ctx context.Context, pc *ProblemContext) (*Solution, error)
	Stats() types.SolverStats
}
