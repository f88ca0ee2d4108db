// Package codec converts ship layouts, ship lengths and move histories to and
// from the compact byte forms the battleship contract stores.
package codec

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/wojtekolesinski/onchain-battleships/models"
)

var ErrInvalidData = errors.New("invalid encoded data")

const (
	shipWidth = 3
	moveWidth = 2
)

// ShipsToBytes packs each ship as (x, y, isVertical). Lengths are not stored;
// the ship id is its index.
func ShipsToBytes(ships []models.ShipConfig) []byte {
	out := make([]byte, 0, len(ships)*shipWidth)
	for _, s := range ships {
		vertical := byte(0)
		if s.IsVertical {
			vertical = 1
		}
		out = append(out, byte(s.Position.X), byte(s.Position.Y), vertical)
	}
	return out
}

// BytesToShips unpacks ships, taking lengths from shipLengths by index.
func BytesToShips(data []byte, shipLengths []int) ([]models.ShipConfig, error) {
	if len(data)%shipWidth != 0 {
		return nil, fmt.Errorf("%w: ship data length %d not a multiple of %d", ErrInvalidData, len(data), shipWidth)
	}
	ships := make([]models.ShipConfig, 0, len(data)/shipWidth)
	for off := 0; off < len(data); off += shipWidth {
		id := off / shipWidth
		if id >= len(shipLengths) {
			return nil, fmt.Errorf("%w: ship %d has no length", ErrInvalidData, id)
		}
		ships = append(ships, models.ShipConfig{
			ID:         id,
			Position:   models.Position{X: int(data[off]), Y: int(data[off+1])},
			Length:     shipLengths[id],
			IsVertical: data[off+2] == 1,
		})
	}
	return ships, nil
}

func ShipsToHex(ships []models.ShipConfig) string {
	return hexutil.Encode(ShipsToBytes(ships))
}

func HexToShips(s string, shipLengths []int) ([]models.ShipConfig, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	return BytesToShips(b, shipLengths)
}

// ShipLengthsToBytes stores one byte per ship. Lengths must be 1..255.
func ShipLengthsToBytes(lengths []int) ([]byte, error) {
	out := make([]byte, len(lengths))
	for i, l := range lengths {
		if l < 1 || l > 255 {
			return nil, fmt.Errorf("%w: ship length %d out of range", ErrInvalidData, l)
		}
		out[i] = byte(l)
	}
	return out, nil
}

func BytesToShipLengths(data []byte) []int {
	lengths := make([]int, len(data))
	for i, b := range data {
		lengths[i] = int(b)
	}
	return lengths
}

func ShipLengthsToHex(lengths []int) (string, error) {
	b, err := ShipLengthsToBytes(lengths)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}

func HexToShipLengths(s string) ([]int, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	return BytesToShipLengths(b), nil
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return b, nil
}
