package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teamforge/balance-service/internal/types"
)

func TestRequestKey_PlayerOrderDoesNotMatter(t *testing.T) {
	composition := types.Composition{types.PositionOutsideHitter: 1}
	a := types.Player{ID: "a", Positions: []string{types.PositionOutsideHitter}}
	b := types.Player{ID: "b", Positions: []string{types.PositionOutsideHitter}}

	k1 := RequestKey(composition, 2, []types.Player{a, b}, nil)
	k2 := RequestKey(composition, 2, []types.Player{b, a}, nil)
	assert.Equal(t, k1, k2)
}

func TestRequestKey_SensitiveToRequestShape(t *testing.T) {
	composition := types.Composition{types.PositionOutsideHitter: 1}
	players := []types.Player{
		{ID: "a", Positions: []string{types.PositionOutsideHitter}},
		{ID: "b", Positions: []string{types.PositionOutsideHitter}},
	}

	base := RequestKey(composition, 2, players, nil)

	assert.NotEqual(t, base, RequestKey(composition, 1, players, nil), "team count")
	assert.NotEqual(t, base,
		RequestKey(types.Composition{types.PositionOutsideHitter: 2}, 2, players, nil), "composition")
	assert.NotEqual(t, base,
		RequestKey(composition, 2, players, &types.OptimizeSettings{Seed: 9}), "settings")

	changed := []types.Player{
		{ID: "a", Positions: []string{types.PositionOutsideHitter}, Ratings: map[string]float64{types.PositionOutsideHitter: 1700}},
		players[1],
	}
	assert.NotEqual(t, base, RequestKey(composition, 2, changed, nil), "player ratings")
}
