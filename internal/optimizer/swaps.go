package optimizer

import (
	"math/rand"

	"github.com/teamforge/balance-service/internal/types"
)

// Perturbation operators. Every metaheuristic generates neighbors through
// RandomSwap, which dispatches over the operators below with configured
// weights. All operators mutate the solution in place and report whether a
// move was actually applied, so callers can retry on a no-op.

// SwapSamePosition swaps one random player holding a shared position between
// two distinct teams.
func SwapSamePosition(rng *rand.Rand, s *Solution) bool {
	if len(s.Teams) < 2 {
		return false
	}
	a := rng.Intn(len(s.Teams))
	b := rng.Intn(len(s.Teams))
	for b == a {
		b = rng.Intn(len(s.Teams))
	}

	shared := sharedPositions(s, a, b)
	if len(shared) == 0 {
		return false
	}
	pos := shared[rng.Intn(len(shared))]

	ia := randomIndexAtPosition(rng, s.Teams[a], pos)
	ib := randomIndexAtPosition(rng, s.Teams[b], pos)
	if ia < 0 || ib < 0 {
		return false
	}

	s.Teams[a][ia], s.Teams[b][ib] = s.Teams[b][ib], s.Teams[a][ia]
	return true
}

// SwapInTeamPositions picks two players on one team whose eligible positions
// are mutually compatible and exchanges their assigned positions.
func SwapInTeamPositions(rng *rand.Rand, s *Solution) bool {
	team := rng.Intn(len(s.Teams))
	players := s.Teams[team]
	if len(players) < 2 {
		return false
	}

	// Bounded random probing; a full pair scan is wasteful for a move that
	// frequently has no legal target.
	for attempt := 0; attempt < 8; attempt++ {
		i := rng.Intn(len(players))
		j := rng.Intn(len(players))
		if i == j {
			continue
		}
		if players[i].AssignedPosition == players[j].AssignedPosition {
			continue
		}
		if !players[i].CanPlay(players[j].AssignedPosition) || !players[j].CanPlay(players[i].AssignedPosition) {
			continue
		}
		swapAssignedPositions(&players[i], &players[j])
		return true
	}
	return false
}

// SwapCrossTeamPositions exchanges assigned positions between two players on
// different teams, where each can legally take the other's slot. The players
// themselves move teams so per-team position counts are preserved.
func SwapCrossTeamPositions(rng *rand.Rand, s *Solution) bool {
	if len(s.Teams) < 2 {
		return false
	}
	a := rng.Intn(len(s.Teams))
	b := rng.Intn(len(s.Teams))
	for b == a {
		b = rng.Intn(len(s.Teams))
	}
	if len(s.Teams[a]) == 0 || len(s.Teams[b]) == 0 {
		return false
	}

	for attempt := 0; attempt < 8; attempt++ {
		ia := rng.Intn(len(s.Teams[a]))
		ib := rng.Intn(len(s.Teams[b]))
		pa := s.Teams[a][ia]
		pb := s.Teams[b][ib]
		if !pa.CanPlay(pb.AssignedPosition) || !pb.CanPlay(pa.AssignedPosition) {
			continue
		}
		pa.AssignedPosition, pb.AssignedPosition = pb.AssignedPosition, pa.AssignedPosition
		pa.PositionRating = pa.RatingFor(pa.AssignedPosition)
		pb.PositionRating = pb.RatingFor(pb.AssignedPosition)
		s.Teams[a][ia] = pb
		s.Teams[b][ib] = pa
		return true
	}
	return false
}

// SwapAdaptive targets the strength gap directly: with the configured
// probability it swaps the weakest player of the strongest team against the
// strongest player of the weakest team at a shared position, and only when
// the move narrows the gap. Otherwise it falls back to a plain swap.
func SwapAdaptive(rng *rand.Rand, s *Solution, adaptiveProb float64) bool {
	if len(s.Teams) < 2 || rng.Float64() >= adaptiveProb {
		return SwapSamePosition(rng, s)
	}

	strongest, weakest := 0, 0
	for i := range s.Teams {
		if s.TeamStrength(i) > s.TeamStrength(strongest) {
			strongest = i
		}
		if s.TeamStrength(i) < s.TeamStrength(weakest) {
			weakest = i
		}
	}
	if strongest == weakest {
		return SwapSamePosition(rng, s)
	}

	// Best shared-position pairing that narrows the gap.
	bestStrong, bestWeak := -1, -1
	for is, ps := range s.Teams[strongest] {
		for iw, pw := range s.Teams[weakest] {
			if ps.AssignedPosition != pw.AssignedPosition {
				continue
			}
			if pw.PositionRating >= ps.PositionRating {
				continue
			}
			if bestStrong < 0 ||
				ps.PositionRating-pw.PositionRating >
					s.Teams[strongest][bestStrong].PositionRating-s.Teams[weakest][bestWeak].PositionRating {
				bestStrong, bestWeak = is, iw
			}
		}
	}
	if bestStrong < 0 {
		return SwapSamePosition(rng, s)
	}

	s.Teams[strongest][bestStrong], s.Teams[weakest][bestWeak] =
		s.Teams[weakest][bestWeak], s.Teams[strongest][bestStrong]
	return true
}

// RandomSwap is the universal neighbor move: it picks one operator according
// to the configured mixture weights.
func RandomSwap(rng *rand.Rand, s *Solution, cfg *SolverConfig) bool {
	total := cfg.PlainSwapWeight + cfg.AdaptiveSwapWeight + cfg.CrossPosSwapWeight + cfg.InTeamSwapWeight
	if total <= 0 {
		return SwapSamePosition(rng, s)
	}
	r := rng.Float64() * total

	switch {
	case r < cfg.PlainSwapWeight:
		return SwapSamePosition(rng, s)
	case r < cfg.PlainSwapWeight+cfg.AdaptiveSwapWeight:
		return SwapAdaptive(rng, s, cfg.AdaptiveSwapProb)
	case r < cfg.PlainSwapWeight+cfg.AdaptiveSwapWeight+cfg.CrossPosSwapWeight:
		return SwapCrossTeamPositions(rng, s)
	default:
		return SwapInTeamPositions(rng, s)
	}
}

// Neighbor clones the solution and applies one universal swap, retrying a
// few times if the first pick is a no-op.
func Neighbor(rng *rand.Rand, s *Solution, cfg *SolverConfig) *Solution {
	n := s.Clone()
	for attempt := 0; attempt < 4; attempt++ {
		if RandomSwap(rng, n, cfg) {
			break
		}
	}
	return n
}

func sharedPositions(s *Solution, a, b int) []string {
	inA := make(map[string]bool)
	for _, p := range s.Teams[a] {
		inA[p.AssignedPosition] = true
	}
	var shared []string
	seen := make(map[string]bool)
	for _, p := range s.Teams[b] {
		if inA[p.AssignedPosition] && !seen[p.AssignedPosition] {
			shared = append(shared, p.AssignedPosition)
			seen[p.AssignedPosition] = true
		}
	}
	return shared
}

func randomIndexAtPosition(rng *rand.Rand, team []types.AssignedPlayer, position string) int {
	indices := make([]int, 0, len(team))
	for i, p := range team {
		if p.AssignedPosition == position {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return -1
	}
	return indices[rng.Intn(len(indices))]
}

func swapAssignedPositions(a, b *types.AssignedPlayer) {
	a.AssignedPosition, b.AssignedPosition = b.AssignedPosition, a.AssignedPosition
	a.PositionRating = a.RatingFor(a.AssignedPosition)
	b.PositionRating = b.RatingFor(b.AssignedPosition)
}
