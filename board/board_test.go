package board

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojtekolesinski/onchain-battleships/models"
)

func ship(id, x, y, length int, vertical bool) models.ShipConfig {
	return models.ShipConfig{ID: id, Position: models.Position{X: x, Y: y}, Length: length, IsVertical: vertical}
}

func TestCalculateShipEndPoint(t *testing.T) {
	assert.Equal(t, models.Position{X: 4, Y: 2}, CalculateShipEndPoint(ship(0, 2, 2, 3, false)))
	assert.Equal(t, models.Position{X: 2, Y: 4}, CalculateShipEndPoint(ship(0, 2, 2, 3, true)))
	assert.Equal(t, models.Position{X: 5, Y: 5}, CalculateShipEndPoint(ship(0, 5, 5, 1, true)))
}

func TestShipSitsOn(t *testing.T) {
	s := ship(0, 1, 1, 3, true)
	assert.True(t, ShipSitsOn(s, models.Position{X: 1, Y: 1}))
	assert.True(t, ShipSitsOn(s, models.Position{X: 1, Y: 3}))
	assert.False(t, ShipSitsOn(s, models.Position{X: 1, Y: 4}))
	assert.False(t, ShipSitsOn(s, models.Position{X: 2, Y: 1}))
	assert.False(t, ShipSitsOn(s, models.Position{X: 0, Y: 1}))
}

func TestShipsSitOn(t *testing.T) {
	ships := []models.ShipConfig{ship(0, 0, 0, 2, false), ship(1, 5, 5, 2, true)}
	assert.True(t, ShipsSitOn(ships, models.Position{X: 1, Y: 0}))
	assert.True(t, ShipsSitOn(ships, models.Position{X: 5, Y: 6}))
	assert.False(t, ShipsSitOn(ships, models.Position{X: 9, Y: 9}))
	assert.False(t, ShipsSitOn(nil, models.Position{}))
}

func TestShipCanBePlaced_OutOfBounds(t *testing.T) {
	assert.False(t, ShipCanBePlaced(10, nil, ship(0, 7, 0, 5, false)))
	assert.False(t, ShipCanBePlaced(10, nil, ship(0, 0, 7, 5, true)))
	assert.False(t, ShipCanBePlaced(10, nil, ship(0, -1, 0, 2, false)))
	assert.True(t, ShipCanBePlaced(10, nil, ship(0, 5, 0, 5, false)))
}

func TestShipCanBePlaced_Overlap(t *testing.T) {
	existing := []models.ShipConfig{ship(0, 0, 0, 3, false)}

	assert.False(t, ShipCanBePlaced(10, existing, ship(1, 1, 0, 3, false)))
	assert.True(t, ShipCanBePlaced(10, existing, ship(1, 0, 1, 3, false)))
}

func TestShipCanBePlaced_Crossing(t *testing.T) {
	existing := []models.ShipConfig{ship(0, 2, 4, 5, false)}

	tests := []struct {
		name      string
		candidate models.ShipConfig
		want      bool
	}{
		{"crosses middle", ship(1, 4, 2, 4, true), false},
		{"touches start", ship(1, 2, 1, 4, true), false},
		{"ends on last cell", ship(1, 6, 0, 5, true), false},
		{"passes beside", ship(1, 7, 2, 4, true), true},
		{"stops above", ship(1, 4, 0, 4, true), true},
		{"single cell inside", ship(1, 3, 4, 1, false), false},
		{"single cell outside", ship(1, 3, 5, 1, false), true},
		{"collinear after", ship(1, 7, 4, 2, false), true},
		{"collinear overlapping", ship(1, 6, 4, 3, false), false},
		{"parallel neighbour row", ship(1, 2, 5, 5, false), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShipCanBePlaced(10, existing, tt.candidate))
		})
	}
}

func TestShipCanBePlaced_AgreesWithCells(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		a := ship(0, rng.Intn(8), rng.Intn(8), 1+rng.Intn(3), rng.Intn(2) == 0)
		b := ship(1, rng.Intn(8), rng.Intn(8), 1+rng.Intn(3), rng.Intn(2) == 0)

		overlap := false
		for _, c := range Cells(b) {
			if ShipSitsOn(a, c) {
				overlap = true
			}
		}
		require.Equal(t, !overlap, ShipCanBePlaced(10, []models.ShipConfig{a}, b), "a=%+v b=%+v", a, b)
	}
}

func TestCalculateHits(t *testing.T) {
	ships := []models.ShipConfig{ship(0, 0, 0, 3, false), ship(1, 4, 4, 2, true)}
	moves := []models.Position{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 4, Y: 5}, {X: 9, Y: 9}}

	hits := CalculateHits(ships, moves)
	require.Len(t, hits, len(moves))
	assert.Equal(t, []bool{true, false, true, false}, hits)
	for i, m := range moves {
		assert.Equal(t, ShipsSitOn(ships, m), hits[i])
	}
	assert.Equal(t, 2, CountHits(hits))
	assert.Empty(t, CalculateHits(ships, nil))
}

func TestSunk(t *testing.T) {
	s := ship(0, 2, 2, 2, true)
	assert.False(t, Sunk(s, []models.Position{{X: 2, Y: 2}}))
	assert.True(t, Sunk(s, []models.Position{{X: 2, Y: 3}, {X: 0, Y: 0}, {X: 2, Y: 2}}))
}

func TestValidateLayout(t *testing.T) {
	lengths := []int{5, 4, 3, 3, 2}
	ships := []models.ShipConfig{
		ship(0, 0, 0, 5, false),
		ship(1, 0, 2, 4, false),
		ship(2, 0, 4, 3, false),
		ship(3, 9, 0, 3, true),
		ship(4, 5, 9, 2, false),
	}
	require.NoError(t, ValidateLayout(10, lengths, ships))

	assert.ErrorIs(t, ValidateLayout(10, lengths, ships[:4]), ErrInvalidLayout)

	bad := append([]models.ShipConfig(nil), ships...)
	bad[1] = ship(1, 2, 0, 4, true)
	assert.ErrorIs(t, ValidateLayout(10, lengths, bad), ErrInvalidLayout)

	wrongLength := append([]models.ShipConfig(nil), ships...)
	wrongLength[4].Length = 3
	assert.ErrorIs(t, ValidateLayout(10, lengths, wrongLength), ErrInvalidLayout)
}

func TestRandomLayout(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	lengths := []int{5, 4, 3, 3, 2}
	for i := 0; i < 20; i++ {
		ships, err := RandomLayout(rng, 10, lengths)
		require.NoError(t, err)
		require.NoError(t, ValidateLayout(10, lengths, ships))
	}

	_, err := RandomLayout(rng, 2, []int{5})
	assert.ErrorIs(t, err, ErrInvalidLayout)
}
