package app

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojtekolesinski/onchain-battleships/models"
)

func TestBot_SkipsPlayedCells(t *testing.T) {
	b := newBot(rand.New(rand.NewSource(1)))

	var moves []models.Position
	var hits []bool
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			if x == 2 && y == 3 {
				continue
			}
			moves = append(moves, models.Position{X: x, Y: y})
			hits = append(hits, false)
		}
	}
	pos, ok := b.recommend(4, []int{1}, moves, hits)
	require.True(t, ok)
	assert.Equal(t, models.Position{X: 2, Y: 3}, pos)
}

func TestBot_BoardExhausted(t *testing.T) {
	b := newBot(rand.New(rand.NewSource(1)))
	moves := []models.Position{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: 1}}

	_, ok := b.recommend(2, []int{2}, moves, []bool{true, true, false, false})
	assert.False(t, ok)

	// shots still waiting for a verdict are not fired again
	_, ok = b.recommend(2, []int{2}, moves, nil)
	assert.False(t, ok)
}

func TestBot_FinishesHitShips(t *testing.T) {
	b := newBot(rand.New(rand.NewSource(3)))
	moves := []models.Position{{X: 5, Y: 5}, {X: 0, Y: 0}}
	hits := []bool{true, false}

	for i := 0; i < 20; i++ {
		pos, ok := b.recommend(10, []int{5, 4, 3, 3, 2}, moves, hits)
		require.True(t, ok)
		dx, dy := pos.X-5, pos.Y-5
		assert.Equal(t, 1, dx*dx+dy*dy, "shot %v is not next to the hit", pos)
	}
}

func TestBot_PrefersLikelyCells(t *testing.T) {
	b := newBot(rand.New(rand.NewSource(5)))

	// a ship as long as the board fits through every cell once each way
	probs := generateProbs(grid(5, nil, nil), []int{5})
	assert.Equal(t, 2, probs[0][0])
	assert.Equal(t, 2, probs[2][2])

	probs = generateProbs(grid(5, nil, nil), []int{3})
	assert.Greater(t, probs[2][2], probs[0][0])

	pos, ok := b.recommend(5, []int{3}, nil, nil)
	require.True(t, ok)
	assert.Equal(t, models.Position{X: 2, Y: 2}, pos)
}

func TestFits(t *testing.T) {
	g := grid(4, []models.Position{{X: 1, Y: 0}, {X: 2, Y: 0}}, []bool{true, false})

	hits, ok := fits(g, 0, 0, 2, false)
	assert.True(t, ok)
	assert.Equal(t, 1, hits)

	_, ok = fits(g, 0, 0, 3, false)
	assert.False(t, ok, "covers a miss")

	_, ok = fits(g, 0, 2, 3, true)
	assert.False(t, ok, "runs off the board")
}
