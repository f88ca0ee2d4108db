package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameState_Text(t *testing.T) {
	b, err := json.Marshal(map[string]GameState{"status": RevealMoves})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"REVEAL_MOVES"}`, string(b))

	var s GameState
	require.NoError(t, s.UnmarshalText([]byte("ENDED")))
	assert.Equal(t, Ended, s)

	assert.Error(t, s.UnmarshalText([]byte("SINKING")))
	_, err = GameState(42).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "GameState(42)", GameState(42).String())
}

func TestGameState_Max(t *testing.T) {
	assert.Equal(t, Playing, NeedOpponent.Max(Playing))
	assert.Equal(t, RevealBoard, RevealBoard.Max(Playing))
	assert.Equal(t, NeedOpponent, NeedOpponent.Max(StateUnknown))
	assert.Equal(t, Ended, StateUnknown.Max(Ended))
}

func TestSlot(t *testing.T) {
	g := &CloudGame{Player1: "0xAbC", Player2: "0xdef"}
	assert.Equal(t, 1, g.Slot("0xabc"))
	assert.Equal(t, 2, g.Slot("0xDEF"))
	assert.Equal(t, 0, g.Slot("0x123"))
	assert.Equal(t, 0, g.Slot(""))

	g.Player2 = ""
	assert.Equal(t, 0, g.Slot(""), "empty seat is nobody's")
}

func TestOpponent(t *testing.T) {
	assert.Equal(t, 2, Opponent(1))
	assert.Equal(t, 1, Opponent(2))
	assert.Equal(t, 0, Opponent(0))
}

func TestGameData_CloneIsDeep(t *testing.T) {
	g := &GameData{
		ShipLengths: []int{3, 2},
		Players: map[int]*PlayerData{
			1: {
				Ships: []ShipConfig{{Length: 3}},
				Moves: []Position{{X: 1, Y: 1}},
				Hits:  []bool{true},
			},
		},
	}
	c := g.Clone()
	c.ShipLengths[0] = 9
	c.Players[1].Ships[0].Length = 9
	c.Players[1].Moves[0].X = 9
	c.Players[1].Hits[0] = false
	c.Players[2] = &PlayerData{}

	assert.Equal(t, 3, g.ShipLengths[0])
	assert.Equal(t, 3, g.Players[1].Ships[0].Length)
	assert.Equal(t, 1, g.Players[1].Moves[0].X)
	assert.True(t, g.Players[1].Hits[0])
	assert.NotContains(t, g.Players, 2)
}

func TestCloudGame_Public(t *testing.T) {
	g := &CloudGame{}
	p := g.Public(2)
	require.NotNil(t, p)
	assert.Empty(t, p.Moves)
	p.Moves = append(p.Moves, Position{X: 1})
	assert.Len(t, g.Public(2).Moves, 1)

	c := g.Clone()
	c.Public(2).Moves[0].X = 7
	assert.Equal(t, 1, g.Players[2].Moves[0].X)
}

func TestApplyColors(t *testing.T) {
	ships := []ShipConfig{{Length: 5}, {Length: 2}, {Length: 7}}
	colored := ApplyColors(ships)
	assert.Equal(t, "#AAE875", colored[0].Color)
	assert.Equal(t, "#FDFB8A", colored[1].Color)
	assert.Equal(t, "#FFBD80", colored[2].Color)
	assert.Empty(t, ships[0].Color)
}
