package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/wojtekolesinski/onchain-battleships/models"
)

// MoveEncoding selects how a contract generation stores move histories.
type MoveEncoding int

const (
	// EncodingPairs stores two bytes (x, y) per move, in play order.
	EncodingPairs MoveEncoding = iota
	// EncodingBitmask stores one 256-bit word with bit x*boardLength+y set
	// for every cell played. Play order is not kept.
	EncodingBitmask
)

// MaxBitmaskCells is the number of cells a single bitmask word can address.
const MaxBitmaskCells = 256

func (e MoveEncoding) String() string {
	switch e {
	case EncodingPairs:
		return "pairs"
	case EncodingBitmask:
		return "bitmask"
	}
	return fmt.Sprintf("MoveEncoding(%d)", int(e))
}

func ParseMoveEncoding(s string) (MoveEncoding, error) {
	switch s {
	case "pairs":
		return EncodingPairs, nil
	case "bitmask", "":
		return EncodingBitmask, nil
	}
	return 0, fmt.Errorf("unknown move encoding %q", s)
}

func MovesToBytes(moves []models.Position) []byte {
	out := make([]byte, 0, len(moves)*moveWidth)
	for _, m := range moves {
		out = append(out, byte(m.X), byte(m.Y))
	}
	return out
}

func BytesToMoves(data []byte) ([]models.Position, error) {
	if len(data)%moveWidth != 0 {
		return nil, fmt.Errorf("%w: move data length %d is odd", ErrInvalidData, len(data))
	}
	moves := make([]models.Position, 0, len(data)/moveWidth)
	for off := 0; off < len(data); off += moveWidth {
		moves = append(moves, models.Position{X: int(data[off]), Y: int(data[off+1])})
	}
	return moves, nil
}

func MovesToHex(moves []models.Position) string {
	return hexutil.Encode(MovesToBytes(moves))
}

func HexToMoves(s string) ([]models.Position, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	return BytesToMoves(b)
}

// MovesToBitmask sets one bit per move. It fails when a move is off the board
// or the board has more cells than the word can hold.
func MovesToBitmask(boardLength int, moves []models.Position) (*uint256.Int, error) {
	if boardLength*boardLength > MaxBitmaskCells {
		return nil, fmt.Errorf("%w: board length %d exceeds bitmask capacity", ErrInvalidData, boardLength)
	}
	mask := new(uint256.Int)
	one := uint256.NewInt(1)
	for _, m := range moves {
		if m.X < 0 || m.X >= boardLength || m.Y < 0 || m.Y >= boardLength {
			return nil, fmt.Errorf("%w: move (%d,%d) off the board", ErrInvalidData, m.X, m.Y)
		}
		bit := new(uint256.Int).Lsh(one, uint(m.X*boardLength+m.Y))
		mask.Or(mask, bit)
	}
	return mask, nil
}

// BitmaskToMoves lists the set cells in ascending bit order.
func BitmaskToMoves(boardLength int, mask *uint256.Int) []models.Position {
	moves := []models.Position{}
	if mask == nil || boardLength <= 0 {
		return moves
	}
	cells := boardLength * boardLength
	if cells > MaxBitmaskCells {
		cells = MaxBitmaskCells
	}
	bit := new(uint256.Int)
	for i := 0; i < cells; i++ {
		bit.Rsh(mask, uint(i))
		if bit.Uint64()&1 == 1 {
			moves = append(moves, models.Position{X: i / boardLength, Y: i % boardLength})
		}
	}
	return moves
}

// BigToMoves decodes a bitmask word as returned by the chain client.
func BigToMoves(boardLength int, word *big.Int) ([]models.Position, error) {
	if word == nil {
		return []models.Position{}, nil
	}
	mask, overflow := uint256.FromBig(word)
	if overflow || word.Sign() < 0 {
		return nil, fmt.Errorf("%w: move word does not fit 256 bits", ErrInvalidData)
	}
	return BitmaskToMoves(boardLength, mask), nil
}
