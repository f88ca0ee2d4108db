package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojtekolesinski/onchain-battleships/models"
)

const (
	alice = "0xA11CE00000000000000000000000000000000001"
	bob   = "0xB0B0000000000000000000000000000000000002"
	carol = "0xCA40100000000000000000000000000000000003"
)

var (
	aliceShips = []models.ShipConfig{
		{ID: 0, Position: models.Position{X: 0, Y: 0}, Length: 3},
		{ID: 1, Position: models.Position{X: 5, Y: 5}, Length: 2, IsVertical: true},
	}
	bobShips = []models.ShipConfig{
		{ID: 0, Position: models.Position{X: 2, Y: 2}, Length: 3, IsVertical: true},
		{ID: 1, Position: models.Position{X: 7, Y: 0}, Length: 2},
	}
)

func cloudGame(status models.GameState, updateCount int64) *models.CloudGame {
	return &models.CloudGame{
		Schema:      models.CurrentSchema,
		ID:          1,
		Chain:       "31337",
		BoardLength: 10,
		TotalRounds: 4,
		Player1:     alice,
		Player2:     bob,
		Status:      status,
		Created:     time.Unix(1700000000, 0),
		UpdateCount: updateCount,
		Players: map[int]*models.PublicPlayerData{
			1: {Moves: []models.Position{}, Hits: []bool{}},
			2: {Moves: []models.Position{}, Hits: []bool{}},
		},
	}
}

func contractGame(status models.GameState) *models.ContractGame {
	return &models.ContractGame{
		ID:          1,
		BoardLength: 10,
		TotalRounds: 4,
		ShipLengths: []int{3, 2},
		Player1:     alice,
		Player2:     bob,
		Status:      status,
		Players: map[int]*models.PlayerData{
			1: {Player: alice},
			2: {Player: bob},
		},
	}
}

func privateData(ships []models.ShipConfig, moves ...models.Position) *models.CloudPlayerData {
	return &models.CloudPlayerData{
		Schema:      models.CurrentSchema,
		GameID:      "1",
		Player:      alice,
		Ships:       ships,
		Moves:       moves,
		UpdateCount: int64(len(moves) + 1),
	}
}

func TestMerge_NeedsBothProjections(t *testing.T) {
	assert.Nil(t, Merge(nil, nil, contractGame(models.StateUnknown), alice))
	assert.Nil(t, Merge(cloudGame(models.Playing, 1), nil, nil, alice))
	assert.NotNil(t, Merge(cloudGame(models.Playing, 1), nil, contractGame(models.StateUnknown), alice))
}

func TestMerge_ContractIsAuthoritative(t *testing.T) {
	tests := []struct {
		name     string
		cloud    models.GameState
		contract models.GameState
		want     models.GameState
	}{
		{"unknown defers to cloud", models.Playing, models.StateUnknown, models.Playing},
		{"contract ahead", models.Playing, models.RevealMoves, models.RevealMoves},
		{"contract behind", models.RevealBoard, models.RevealMoves, models.RevealMoves},
		{"ended", models.RevealBoard, models.Ended, models.Ended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Merge(cloudGame(tt.cloud, 3), nil, contractGame(tt.contract), alice)
			require.NotNil(t, g)
			assert.Equal(t, tt.want, g.Status)
		})
	}

	cg := cloudGame(models.Playing, 3)
	cg.TotalRounds = 99
	cg.Player2 = ""
	chain := contractGame(models.Ended)
	chain.Winner = bob

	g := Merge(cg, nil, chain, alice)
	assert.Equal(t, 4, g.TotalRounds)
	assert.Equal(t, bob, g.Player2)
	assert.Equal(t, bob, g.Winner)
	assert.Equal(t, []int{3, 2}, g.ShipLengths)
	assert.Equal(t, "31337", g.Chain)
	assert.EqualValues(t, 3, g.UpdateCount)
}

func TestMerge_CurrentUser(t *testing.T) {
	cg, chain := cloudGame(models.Playing, 1), contractGame(models.StateUnknown)
	assert.Equal(t, 1, Merge(cg, nil, chain, alice).CurrentUserIsPlayer)
	assert.Equal(t, 2, Merge(cg, nil, chain, bob).CurrentUserIsPlayer)
	assert.Equal(t, 0, Merge(cg, nil, chain, carol).CurrentUserIsPlayer)
}

func TestMerge_PrivateOverlay(t *testing.T) {
	pd := privateData(aliceShips, models.Position{X: 1, Y: 1})
	cg := cloudGame(models.Playing, 2)
	cg.Players[1].Moves = []models.Position{{X: 1, Y: 1}}

	g := Merge(cg, pd, contractGame(models.StateUnknown), alice)
	own := g.Players[1]
	require.Len(t, own.Ships, 2)
	assert.Equal(t, models.ShipColor(3), own.Ships[0].Color)
	assert.Equal(t, []models.Position{{X: 1, Y: 1}}, own.Moves)

	// inputs are untouched
	assert.Empty(t, pd.Ships[0].Color)
	assert.Empty(t, g.Players[2].Ships)

	// a spectator never sees someone else's private data
	g = Merge(cg, pd, contractGame(models.StateUnknown), carol)
	assert.Empty(t, g.Players[1].Ships)
}

func TestMerge_RevealedShipsWin(t *testing.T) {
	chain := contractGame(models.Ended)
	chain.Players[1].Ships = models.ApplyColors(bobShips)
	chain.Players[1].RevealedBoard = true

	g := Merge(cloudGame(models.RevealBoard, 9), privateData(aliceShips), chain, alice)
	assert.Equal(t, bobShips[0].Position, g.Players[1].Ships[0].Position)
	assert.True(t, g.Players[1].RevealedBoard)
}

func TestMerge_PublicFallback(t *testing.T) {
	cg := cloudGame(models.Playing, 5)
	cg.Players[2].Moves = []models.Position{{X: 0, Y: 0}, {X: 9, Y: 9}}
	cg.Players[2].Hits = []bool{true}
	cg.Players[1].RevealedMoves = true

	g := Merge(cg, nil, contractGame(models.StateUnknown), alice)
	opp := g.Players[2]
	assert.Equal(t, cg.Players[2].Moves, opp.Moves)
	assert.Equal(t, []bool{true}, opp.Hits)
	assert.True(t, g.Players[1].RevealedMoves)

	// the cloud copy is not shared
	opp.Moves[0] = models.Position{X: 4, Y: 4}
	assert.Equal(t, models.Position{X: 0, Y: 0}, cg.Players[2].Moves[0])
}

func TestMerge_AlignsHitsToContractOrder(t *testing.T) {
	cg := cloudGame(models.RevealMoves, 8)
	cg.Players[2].Moves = []models.Position{{X: 5, Y: 5}, {X: 0, Y: 0}, {X: 9, Y: 9}}
	cg.Players[2].Hits = []bool{true, false, false}

	chain := contractGame(models.RevealBoard)
	chain.Players[2].Moves = []models.Position{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 9, Y: 9}}
	chain.Players[2].RevealedMoves = true

	g := Merge(cg, nil, chain, alice)
	assert.Equal(t, chain.Players[2].Moves, g.Players[2].Moves)
	assert.Equal(t, []bool{false, true, false}, g.Players[2].Hits)
}

func TestAlignHits_StopsAtFirstUnknown(t *testing.T) {
	pub := []models.Position{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	assert.Equal(t, []bool{true}, alignHits(pub, pub, []bool{true}))
	assert.Equal(t, []bool{}, alignHits([]models.Position{{X: 3, Y: 3}}, pub, []bool{true}))
	assert.Equal(t, []bool{}, alignHits(nil, nil, nil))
}

func TestOpponentHits(t *testing.T) {
	pd := privateData(aliceShips)
	cg := cloudGame(models.Playing, 4)
	cg.Players[2].Moves = []models.Position{{X: 0, Y: 0}, {X: 9, Y: 9}, {X: 5, Y: 6}}
	cg.Players[2].Hits = []bool{true}

	g := Merge(cg, pd, contractGame(models.StateUnknown), alice)
	hits, ok := OpponentHits(g, cg)
	require.True(t, ok)
	assert.Equal(t, []bool{true, false, true}, hits)

	// up to date
	cg.Players[2].Hits = hits
	_, ok = OpponentHits(g, cg)
	assert.False(t, ok)
}

func TestOpponentHits_NothingToDo(t *testing.T) {
	cg := cloudGame(models.Playing, 4)
	cg.Players[2].Moves = []models.Position{{X: 0, Y: 0}}

	// own ships unknown
	g := Merge(cg, nil, contractGame(models.StateUnknown), alice)
	_, ok := OpponentHits(g, cg)
	assert.False(t, ok)

	// spectator
	g = Merge(cg, privateData(aliceShips), contractGame(models.StateUnknown), carol)
	_, ok = OpponentHits(g, cg)
	assert.False(t, ok)

	// no opponent yet
	waiting := cloudGame(models.NeedOpponent, 1)
	g = Merge(waiting, privateData(aliceShips), contractGame(models.NeedOpponent), alice)
	_, ok = OpponentHits(g, waiting)
	assert.False(t, ok)

	_, ok = OpponentHits(nil, cg)
	assert.False(t, ok)
}
