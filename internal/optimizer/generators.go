package optimizer

import (
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/teamforge/balance-service/internal/types"
)

// GroupByPosition buckets players under every position they are eligible
// for. A multi-position player appears in several buckets; generators guard
// against double use through the shared used-id set.
func GroupByPosition(players []types.Player) map[string][]types.Player {
	byPosition := make(map[string][]types.Player)
	for _, player := range players {
		for _, pos := range player.Positions {
			byPosition[pos] = append(byPosition[pos], player)
		}
	}
	return byPosition
}

// PositionPriority orders the composition's positions scarcest-first: the
// smaller the ratio of eligible players to requested slots, the earlier the
// position is filled. Ties fall back to the canonical position order so the
// ordering stays deterministic.
func PositionPriority(composition types.Composition, byPosition map[string][]types.Player, teamCount int) []string {
	positions := make([]string, 0, len(composition))
	for pos, count := range composition {
		if count > 0 {
			positions = append(positions, pos)
		}
	}

	canonical := make(map[string]int, len(types.PositionOrder))
	for i, pos := range types.PositionOrder {
		canonical[pos] = i
	}

	ratio := func(pos string) float64 {
		needed := composition[pos] * teamCount
		if needed == 0 {
			return 1e9
		}
		return float64(len(byPosition[pos])) / float64(needed)
	}

	sort.Slice(positions, func(i, j int) bool {
		ri, rj := ratio(positions[i]), ratio(positions[j])
		if ri != rj {
			return ri < rj
		}
		return canonical[positions[i]] < canonical[positions[j]]
	})

	return positions
}

// sortedPool returns the eligible, unused players for a position ordered for
// drafting: single-position specialists first, then descending rating.
func sortedPool(position string, byPosition map[string][]types.Player, used map[string]bool) []types.Player {
	pool := make([]types.Player, 0, len(byPosition[position]))
	for _, p := range byPosition[position] {
		if !used[p.ID] {
			pool = append(pool, p)
		}
	}
	sort.Slice(pool, func(i, j int) bool {
		si, sj := pool[i].IsSpecialist(), pool[j].IsSpecialist()
		if si != sj {
			return si
		}
		return pool[i].RatingFor(position) > pool[j].RatingFor(position)
	})
	return pool
}

func assign(s *Solution, team int, player types.Player, position string) {
	s.Teams[team] = append(s.Teams[team], types.AssignedPlayer{
		Player:           player,
		AssignedPosition: position,
		PositionRating:   player.RatingFor(position),
	})
}

// GenerateBalanced drafts each position scarcest-first, round-robin across
// teams in order, from a specialist-first descending-rating pool.
func GenerateBalanced(composition types.Composition, teamCount int, byPosition map[string][]types.Player, log *logrus.Entry) *Solution {
	s := NewSolution(teamCount)
	used := make(map[string]bool)

	for _, pos := range PositionPriority(composition, byPosition, teamCount) {
		pool := sortedPool(pos, byPosition, used)
		needed := composition[pos] * teamCount
		if len(pool) < needed {
			log.WithFields(logrus.Fields{
				"position":  pos,
				"needed":    needed,
				"available": len(pool),
			}).Warn("Not enough players for position, leaving slots unfilled")
			needed = len(pool)
		}
		for i := 0; i < needed; i++ {
			player := pool[i]
			assign(s, i%teamCount, player, pos)
			used[player.ID] = true
		}
	}

	return s
}

// GenerateSnakeDraft drafts like GenerateBalanced but alternates direction
// every round to cancel the first-team bias of plain round-robin.
func GenerateSnakeDraft(composition types.Composition, teamCount int, byPosition map[string][]types.Player, log *logrus.Entry) *Solution {
	s := NewSolution(teamCount)
	used := make(map[string]bool)

	round := 0
	for _, pos := range PositionPriority(composition, byPosition, teamCount) {
		pool := sortedPool(pos, byPosition, used)
		needed := composition[pos] * teamCount
		if len(pool) < needed {
			log.WithFields(logrus.Fields{
				"position":  pos,
				"needed":    needed,
				"available": len(pool),
			}).Warn("Not enough players for position, leaving slots unfilled")
			needed = len(pool)
		}
		for i := 0; i < needed; i++ {
			team := i % teamCount
			if (round+i/teamCount)%2 == 1 {
				team = teamCount - 1 - team
			}
			player := pool[i]
			assign(s, team, player, pos)
			used[player.ID] = true
		}
		round += composition[pos]
	}

	return s
}

// GenerateRandom shuffles each position pool before round-robin assignment.
// The only generator with randomness; callers pass a fresh rng per call.
func GenerateRandom(composition types.Composition, teamCount int, byPosition map[string][]types.Player, rng *rand.Rand, log *logrus.Entry) *Solution {
	s := NewSolution(teamCount)
	used := make(map[string]bool)

	for _, pos := range PositionPriority(composition, byPosition, teamCount) {
		pool := sortedPool(pos, byPosition, used)
		rng.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})
		needed := composition[pos] * teamCount
		if len(pool) < needed {
			log.WithFields(logrus.Fields{
				"position":  pos,
				"needed":    needed,
				"available": len(pool),
			}).Warn("Not enough players for position, leaving slots unfilled")
			needed = len(pool)
		}
		for i := 0; i < needed; i++ {
			player := pool[i]
			assign(s, i%teamCount, player, pos)
			used[player.ID] = true
		}
	}

	return s
}

// GeneratePositionFocused walks the priority list one full cross-team round
// per position at a time, always taking the current top-rated remaining
// eligible player. Compared to GenerateBalanced it interleaves rounds across
// positions, which spreads top talent differently.
func GeneratePositionFocused(composition types.Composition, teamCount int, byPosition map[string][]types.Player, log *logrus.Entry) *Solution {
	s := NewSolution(teamCount)
	used := make(map[string]bool)
	priority := PositionPriority(composition, byPosition, teamCount)

	remaining := make(map[string]int, len(priority))
	for _, pos := range priority {
		remaining[pos] = composition[pos]
	}

	for anyLeft := true; anyLeft; {
		anyLeft = false
		for _, pos := range priority {
			if remaining[pos] == 0 {
				continue
			}
			remaining[pos]--
			anyLeft = anyLeft || remaining[pos] > 0

			pool := make([]types.Player, 0)
			for _, p := range byPosition[pos] {
				if !used[p.ID] {
					pool = append(pool, p)
				}
			}
			sort.Slice(pool, func(i, j int) bool {
				return pool[i].RatingFor(pos) > pool[j].RatingFor(pos)
			})

			if len(pool) < teamCount {
				log.WithFields(logrus.Fields{
					"position":  pos,
					"needed":    teamCount,
					"available": len(pool),
				}).Warn("Not enough players for position round, leaving slots unfilled")
			}
			for team := 0; team < teamCount && team < len(pool); team++ {
				assign(s, team, pool[team], pos)
				used[pool[team].ID] = true
			}
		}
	}

	return s
}

// GeneratePool builds the initial candidate pool all solvers seed from: the
// deterministic generators once each plus several random candidates.
func GeneratePool(composition types.Composition, teamCount int, byPosition map[string][]types.Player, rng *rand.Rand, randomCount int, log *logrus.Entry) []*Solution {
	pool := []*Solution{
		GenerateBalanced(composition, teamCount, byPosition, log),
		GenerateSnakeDraft(composition, teamCount, byPosition, log),
		GeneratePositionFocused(composition, teamCount, byPosition, log),
	}
	for i := 0; i < randomCount; i++ {
		pool = append(pool, GenerateRandom(composition, teamCount, byPosition, rng, log))
	}
	return pool
}
