package app

import (
	"math/rand"
	"sync"

	"github.com/wojtekolesinski/onchain-battleships/models"
)

type cell int

const (
	unknown cell = iota
	pending
	miss
	hit
)

var neighbours = []models.Position{
	{X: 0, Y: 1},
	{X: 1, Y: 0},
	{X: 0, Y: -1},
	{X: -1, Y: 0},
}

// bot picks shots from a heat map of every ship placement still possible
// on the opponent's board.
type bot struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newBot(rng *rand.Rand) *bot {
	return &bot{rng: rng}
}

// grid marks the cells already fired at. Cells without a verdict yet are
// pending.
func grid(boardLength int, moves []models.Position, hits []bool) [][]cell {
	g := make([][]cell, boardLength)
	for i := range g {
		g[i] = make([]cell, boardLength)
	}
	for i, m := range moves {
		if m.X < 0 || m.Y < 0 || m.X >= boardLength || m.Y >= boardLength {
			continue
		}
		switch {
		case i >= len(hits):
			g[m.X][m.Y] = pending
		case hits[i]:
			g[m.X][m.Y] = hit
		default:
			g[m.X][m.Y] = miss
		}
	}
	return g
}

// recommend returns the next cell to fire at, or false when every cell has
// been played.
func (b *bot) recommend(boardLength int, shipLengths []int, moves []models.Position, hits []bool) (models.Position, bool) {
	g := grid(boardLength, moves, hits)
	probs := generateProbs(g, shipLengths)

	// finish off a hit ship before searching
	var targets []models.Position
	for x := range g {
		for y := range g[x] {
			if g[x][y] != hit {
				continue
			}
			for _, off := range neighbours {
				n := models.Position{X: x + off.X, Y: y + off.Y}
				if inside(boardLength, n) && g[n.X][n.Y] == unknown {
					targets = append(targets, n)
				}
			}
		}
	}
	if len(targets) > 0 {
		return b.best(targets, probs), true
	}

	var open []models.Position
	for x := range g {
		for y := range g[x] {
			if g[x][y] == unknown {
				open = append(open, models.Position{X: x, Y: y})
			}
		}
	}
	if len(open) == 0 {
		return models.Position{}, false
	}
	return b.best(open, probs), true
}

// best picks the most likely candidate, breaking ties at random.
func (b *bot) best(candidates []models.Position, probs [][]int) models.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	top, ties := -1, 0
	var pick models.Position
	for _, c := range candidates {
		p := probs[c.X][c.Y]
		switch {
		case p > top:
			top, ties, pick = p, 1, c
		case p == top:
			ties++
			if b.rng.Intn(ties) == 0 {
				pick = c
			}
		}
	}
	return pick
}

func generateProbs(g [][]cell, shipLengths []int) [][]int {
	n := len(g)
	probs := make([][]int, n)
	for i := range probs {
		probs[i] = make([]int, n)
	}

	for _, length := range shipLengths {
		for x := 0; x < n; x++ {
			for y := 0; y < n; y++ {
				for _, vertical := range []bool{false, true} {
					hits, ok := fits(g, x, y, length, vertical)
					if !ok {
						continue
					}
					weight := 1 + 4*hits
					for i := 0; i < length; i++ {
						cx, cy := x, y
						if vertical {
							cy += i
						} else {
							cx += i
						}
						if g[cx][cy] == unknown {
							probs[cx][cy] += weight
						}
					}
				}
			}
		}
	}
	return probs
}

// fits reports whether a ship can lie at (x, y) given the known misses, and
// how many known hits it would cover.
func fits(g [][]cell, x, y, length int, vertical bool) (int, bool) {
	hits := 0
	for i := 0; i < length; i++ {
		cx, cy := x, y
		if vertical {
			cy += i
		} else {
			cx += i
		}
		if cx >= len(g) || cy >= len(g) {
			return 0, false
		}
		switch g[cx][cy] {
		case miss:
			return 0, false
		case hit:
			hits++
		}
	}
	return hits, true
}

func inside(boardLength int, p models.Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < boardLength && p.Y < boardLength
}
