package board

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/wojtekolesinski/onchain-battleships/models"
)

var ErrInvalidLayout = errors.New("invalid ship layout")

// ValidateLayout checks that ships holds exactly one ship per entry of
// shipLengths (ship i having length shipLengths[i]) and that the ships fit on
// the board without touching.
func ValidateLayout(boardLength int, shipLengths []int, ships []models.ShipConfig) error {
	if len(ships) != len(shipLengths) {
		return fmt.Errorf("%w: %d ships placed, %d expected", ErrInvalidLayout, len(ships), len(shipLengths))
	}

	placed := make([]models.ShipConfig, 0, len(ships))
	for i, s := range ships {
		if s.ID != i {
			return fmt.Errorf("%w: ship at index %d has id %d", ErrInvalidLayout, i, s.ID)
		}
		if s.Length != shipLengths[i] {
			return fmt.Errorf("%w: ship %d has length %d, expected %d", ErrInvalidLayout, i, s.Length, shipLengths[i])
		}
		if !ShipCanBePlaced(boardLength, placed, s) {
			return fmt.Errorf("%w: ship %d at (%d,%d) does not fit", ErrInvalidLayout, i, s.Position.X, s.Position.Y)
		}
		placed = append(placed, s)
	}
	return nil
}

const maxPlacementAttempts = 1000

// RandomLayout places one ship per length at random valid positions.
func RandomLayout(rng *rand.Rand, boardLength int, shipLengths []int) ([]models.ShipConfig, error) {
	ships := make([]models.ShipConfig, 0, len(shipLengths))
	for id, length := range shipLengths {
		placed := false
		for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
			candidate := models.ShipConfig{
				ID:         id,
				Length:     length,
				IsVertical: rng.Intn(2) == 1,
				Position:   models.Position{X: rng.Intn(boardLength), Y: rng.Intn(boardLength)},
			}
			if ShipCanBePlaced(boardLength, ships, candidate) {
				ships = append(ships, candidate)
				placed = true
				break
			}
		}
		if !placed {
			return nil, fmt.Errorf("%w: no room for ship %d of length %d", ErrInvalidLayout, id, length)
		}
	}
	return ships, nil
}
