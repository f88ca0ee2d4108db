// Package board holds the pure geometry of ship layouts: where a ship ends,
// which cells it covers, whether a new ship fits, and which shots hit.
package board

import "github.com/wojtekolesinski/onchain-battleships/models"

// CalculateShipEndPoint returns the last cell covered by the ship. Horizontal
// ships grow along x, vertical ships along y.
func CalculateShipEndPoint(ship models.ShipConfig) models.Position {
	end := ship.Position
	if ship.IsVertical {
		end.Y += ship.Length - 1
	} else {
		end.X += ship.Length - 1
	}
	return end
}

func ShipSitsOn(ship models.ShipConfig, pos models.Position) bool {
	end := CalculateShipEndPoint(ship)
	return ship.Position.X <= pos.X && pos.X <= end.X &&
		ship.Position.Y <= pos.Y && pos.Y <= end.Y
}

func ShipsSitOn(ships []models.ShipConfig, pos models.Position) bool {
	for _, s := range ships {
		if ShipSitsOn(s, pos) {
			return true
		}
	}
	return false
}

// ShipCanBePlaced reports whether candidate lies fully on the board and does
// not touch any cell of the existing ships.
func ShipCanBePlaced(boardLength int, existing []models.ShipConfig, candidate models.ShipConfig) bool {
	end := CalculateShipEndPoint(candidate)
	if !onBoard(boardLength, candidate.Position) || !onBoard(boardLength, end) {
		return false
	}

	c := segment{candidate.Position, end}
	for _, s := range existing {
		if c.intersects(segment{s.Position, CalculateShipEndPoint(s)}) {
			return false
		}
	}
	return true
}

// CalculateHits returns, for each move in order, whether it landed on a ship.
func CalculateHits(ships []models.ShipConfig, moves []models.Position) []bool {
	hits := make([]bool, len(moves))
	for i, m := range moves {
		hits[i] = ShipsSitOn(ships, m)
	}
	return hits
}

// CountHits returns the number of true entries.
func CountHits(hits []bool) int {
	n := 0
	for _, h := range hits {
		if h {
			n++
		}
	}
	return n
}

// Sunk reports whether every cell of the ship appears in moves.
func Sunk(ship models.ShipConfig, moves []models.Position) bool {
	played := make(map[models.Position]bool, len(moves))
	for _, m := range moves {
		played[m] = true
	}
	for _, cell := range Cells(ship) {
		if !played[cell] {
			return false
		}
	}
	return true
}

// Cells lists every cell the ship covers, from its origin to its end point.
func Cells(ship models.ShipConfig) []models.Position {
	cells := make([]models.Position, 0, ship.Length)
	for i := 0; i < ship.Length; i++ {
		p := ship.Position
		if ship.IsVertical {
			p.Y += i
		} else {
			p.X += i
		}
		cells = append(cells, p)
	}
	return cells
}

func onBoard(boardLength int, p models.Position) bool {
	return p.X >= 0 && p.X < boardLength && p.Y >= 0 && p.Y < boardLength
}
