// Package contract reads and writes the authoritative on-chain game record.
package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wojtekolesinski/onchain-battleships/codec"
)

// Contract method names.
const (
	MethodGames              = "games"
	MethodPlayers            = "players"
	MethodCalculateShipsHash = "calculateShipsHash"
	MethodNewGame            = "newGame"
	MethodJoin               = "join"
	MethodPlayMove           = "playMove"
	MethodSubmitMoves        = "submitMoves"
	MethodRevealMoves        = "revealMoves"
	MethodRevealBoard        = "revealBoard"

	EventNewGame = "NewGame"
)

// Contract state codes.
const (
	StateNeedOpponent uint8 = iota
	StatePlaying
	StateRevealMoves
	StateRevealBoard
	StateEnded
)

// GameRecord is the raw result of games(id).
type GameRecord struct {
	ShipSizes []byte
	BoardSize *big.Int
	NumRounds *big.Int
	Player1   common.Address
	Player2   common.Address
	State     uint8
	Winner    common.Address
}

// PlayerRecord is the raw result of players(id, address). Moves is set by
// pair-encoded contracts, MovesWord by bitmask ones.
type PlayerRecord struct {
	Ships     []byte
	Moves     []byte
	MovesWord *big.Int
}

type Receipt struct {
	TxHash  string
	Success bool
	// NewGameID is the id from a NewGame event, nil when there was none.
	NewGameID *big.Int
}

type Tx interface {
	Hash() string
	// Wait blocks until the transaction is mined.
	Wait(ctx context.Context) (*Receipt, error)
}

// Backend is the contract boundary. Argument types of Submit follow the
// contract ABI: *big.Int for uint256, uint8, []byte, [32]byte.
type Backend interface {
	Encoding() codec.MoveEncoding
	Games(ctx context.Context, id *big.Int) (*GameRecord, error)
	Players(ctx context.Context, id *big.Int, player common.Address) (*PlayerRecord, error)
	CalculateShipsHash(ctx context.Context, shipSizes []byte, boardSize *big.Int, ships []byte) ([32]byte, error)
	Submit(ctx context.Context, method string, args ...any) (Tx, error)
}
