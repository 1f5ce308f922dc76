package optimizer

import (
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/teamforge/balance-service/internal/types"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// testComposition is a standard volleyball lineup: 1 setter, 2 outside
// hitters, 2 middle blockers, 1 opposite.
func testComposition() types.Composition {
	return types.Composition{
		types.PositionSetter:        1,
		types.PositionOutsideHitter: 2,
		types.PositionMiddleBlocker: 2,
		types.PositionOpposite:      1,
	}
}

// testRoster builds exactly enough single-position players for the standard
// composition across the given number of teams, with ratings spread so teams
// are distinguishable.
func testRoster(teamCount int) []types.Player {
	var players []types.Player
	add := func(pos string, count int, base float64) {
		for i := 0; i < count*teamCount; i++ {
			id := pos + string(rune('a'+i))
			players = append(players, types.Player{
				ID:        id,
				Name:      id,
				Positions: []string{pos},
				Ratings:   map[string]float64{pos: base + float64(i)*37},
			})
		}
	}
	add(types.PositionSetter, 1, 1400)
	add(types.PositionOutsideHitter, 2, 1500)
	add(types.PositionMiddleBlocker, 2, 1350)
	add(types.PositionOpposite, 1, 1550)
	return players
}

// testContext assembles a full ProblemContext the way the orchestrator does,
// with a fixed seed and a small but real candidate pool.
func testContext(teamCount int, players []types.Player) *ProblemContext {
	composition := testComposition()
	cfg := DefaultSolverConfig()
	cfg.Seed = 42
	cfg.AdaptToProblemSize(teamCount, len(players))

	byPosition := GroupByPosition(players)
	rng := rand.New(rand.NewSource(42))
	log := testLog()

	return &ProblemContext{
		Composition:       composition,
		TeamCount:         teamCount,
		Players:           players,
		PlayersByPosition: byPosition,
		Positions:         PositionPriority(composition, byPosition, teamCount),
		Pool:              GeneratePool(composition, teamCount, byPosition, rng, 3, log),
		Evaluator:         NewEvaluator(cfg.VarianceWeight, cfg.PositionBalanceWeight),
		Config:            cfg,
		Log:               log,
	}
}

// assertValidAssignment checks the structural invariants every solver must
// uphold: composition conformance per team, no duplicate players, every
// assigned position actually playable, and all players drawn from the roster.
func assertValidAssignment(t *testing.T, s *Solution, pc *ProblemContext) {
	t.Helper()

	roster := make(map[string]types.Player, len(pc.Players))
	for _, p := range pc.Players {
		roster[p.ID] = p
	}

	seen := make(map[string]bool)
	for ti, team := range s.Teams {
		for pos, needed := range pc.Composition {
			if got := s.PositionCount(ti, pos); got != needed {
				t.Errorf("team %d has %d players at %s, want %d", ti, got, pos, needed)
			}
		}
		for _, p := range team {
			if seen[p.ID] {
				t.Errorf("player %s assigned more than once", p.ID)
			}
			seen[p.ID] = true

			original, ok := roster[p.ID]
			if !ok {
				t.Errorf("player %s not in roster", p.ID)
				continue
			}
			if !original.CanPlay(p.AssignedPosition) {
				t.Errorf("player %s assigned to %s but cannot play it", p.ID, p.AssignedPosition)
			}
		}
	}
}
