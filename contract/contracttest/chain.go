// Package contracttest provides an in-memory battleships contract.
package contracttest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/wojtekolesinski/onchain-battleships/board"
	"github.com/wojtekolesinski/onchain-battleships/codec"
	"github.com/wojtekolesinski/onchain-battleships/contract"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

var ErrRevert = errors.New("execution reverted")

type player struct {
	commit        [32]byte
	played        []models.Position
	submitted     *big.Int
	revealedMoves []byte
	revealedWord  *big.Int
	ships         []byte
}

type game struct {
	rec     contract.GameRecord
	players map[common.Address]*player
}

// Chain is a contract with the same rules for either move encoding. Moves
// stay hidden until revealed; the winner is whoever hit more cells, player 1
// on a tie.
type Chain struct {
	mu       sync.Mutex
	encoding codec.MoveEncoding
	nextID   uint64
	games    map[uint64]*game
	txs      int
}

func NewChain(enc codec.MoveEncoding) *Chain {
	return &Chain{encoding: enc, games: make(map[uint64]*game)}
}

// As returns a backend whose transactions are sent from address.
func (c *Chain) As(address string) contract.Backend {
	return &account{chain: c, from: common.HexToAddress(address)}
}

// ShipsHash is the layout commitment the chain checks at revealBoard.
func ShipsHash(shipSizes []byte, boardSize *big.Int, ships []byte) [32]byte {
	return crypto.Keccak256Hash(shipSizes, common.LeftPadBytes(boardSize.Bytes(), 32), ships)
}

type account struct {
	chain *Chain
	from  common.Address
}

func (a *account) Encoding() codec.MoveEncoding { return a.chain.encoding }

func (a *account) Games(_ context.Context, id *big.Int) (*contract.GameRecord, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	g, ok := a.chain.games[id.Uint64()]
	if !ok {
		// unknown ids read as the zero record, like a solidity mapping
		return &contract.GameRecord{BoardSize: new(big.Int), NumRounds: new(big.Int)}, nil
	}
	rec := g.rec
	return &rec, nil
}

func (a *account) Players(_ context.Context, id *big.Int, addr common.Address) (*contract.PlayerRecord, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()
	rec := &contract.PlayerRecord{}
	g, ok := a.chain.games[id.Uint64()]
	if !ok {
		return rec, nil
	}
	p, ok := g.players[addr]
	if !ok {
		return rec, nil
	}
	rec.Ships = p.ships
	if a.chain.encoding == codec.EncodingBitmask {
		rec.MovesWord = p.revealedWord
	} else {
		rec.Moves = p.revealedMoves
	}
	return rec, nil
}

func (a *account) CalculateShipsHash(_ context.Context, shipSizes []byte, boardSize *big.Int, ships []byte) ([32]byte, error) {
	return ShipsHash(shipSizes, boardSize, ships), nil
}

func (a *account) Submit(_ context.Context, method string, args ...any) (contract.Tx, error) {
	a.chain.mu.Lock()
	defer a.chain.mu.Unlock()

	rcpt, err := a.chain.apply(a.from, method, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	a.chain.txs++
	rcpt.TxHash = common.BigToHash(big.NewInt(int64(a.chain.txs))).Hex()
	rcpt.Success = true
	return &tx{rcpt: rcpt}, nil
}

type tx struct {
	rcpt *contract.Receipt
}

func (t *tx) Hash() string { return t.rcpt.TxHash }

func (t *tx) Wait(ctx context.Context) (*contract.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.rcpt, nil
}

func revert(msg string) error {
	return fmt.Errorf("%w: %s", ErrRevert, msg)
}

func (c *Chain) apply(from common.Address, method string, args []any) (*contract.Receipt, error) {
	if method == contract.MethodNewGame {
		return c.newGame(from, args)
	}

	if len(args) == 0 {
		return nil, revert("missing game id")
	}
	id, ok := args[0].(*big.Int)
	if !ok {
		return nil, revert("bad game id")
	}
	g, ok := c.games[id.Uint64()]
	if !ok {
		return nil, revert("no such game")
	}

	if method == contract.MethodJoin {
		return c.join(g, from, args[1:])
	}

	p, ok := g.players[from]
	if !ok {
		return nil, revert("must be a player")
	}

	switch method {
	case contract.MethodPlayMove:
		return c.playMove(g, p, args[1:])
	case contract.MethodSubmitMoves:
		return c.submitMoves(g, p, args[1:])
	case contract.MethodRevealMoves:
		return c.revealMoves(g, p, args[1:])
	case contract.MethodRevealBoard:
		return c.revealBoard(g, p, args[1:])
	}
	return nil, revert("unknown method " + method)
}

func (c *Chain) newGame(from common.Address, args []any) (*contract.Receipt, error) {
	if len(args) != 4 {
		return nil, revert("bad arguments")
	}
	sizes, ok1 := args[0].([]byte)
	boardSize, ok2 := args[1].(*big.Int)
	rounds, ok3 := args[2].(*big.Int)
	hash, ok4 := args[3].([32]byte)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, revert("bad arguments")
	}
	if len(sizes) == 0 || boardSize.Sign() <= 0 || rounds.Sign() <= 0 {
		return nil, revert("invalid game parameters")
	}
	if c.encoding == codec.EncodingBitmask && boardSize.Int64()*boardSize.Int64() > codec.MaxBitmaskCells {
		return nil, revert("board too large")
	}

	c.nextID++
	id := c.nextID
	c.games[id] = &game{
		rec: contract.GameRecord{
			ShipSizes: bytes.Clone(sizes),
			BoardSize: new(big.Int).Set(boardSize),
			NumRounds: new(big.Int).Set(rounds),
			Player1:   from,
			State:     contract.StateNeedOpponent,
		},
		players: map[common.Address]*player{from: {commit: hash}},
	}
	return &contract.Receipt{NewGameID: new(big.Int).SetUint64(id)}, nil
}

func (c *Chain) join(g *game, from common.Address, args []any) (*contract.Receipt, error) {
	if g.rec.State != contract.StateNeedOpponent {
		return nil, revert("game already joined")
	}
	if from == g.rec.Player1 {
		return nil, revert("cannot join own game")
	}
	if len(args) != 1 {
		return nil, revert("bad arguments")
	}
	hash, ok := args[0].([32]byte)
	if !ok {
		return nil, revert("bad arguments")
	}
	g.rec.Player2 = from
	g.rec.State = contract.StatePlaying
	g.players[from] = &player{commit: hash}
	return &contract.Receipt{}, nil
}

func (c *Chain) rounds(g *game) int { return int(g.rec.NumRounds.Int64()) }

func (c *Chain) both(g *game, done func(*player) bool) bool {
	p1, p2 := g.players[g.rec.Player1], g.players[g.rec.Player2]
	return p1 != nil && p2 != nil && done(p1) && done(p2)
}

func (c *Chain) playMove(g *game, p *player, args []any) (*contract.Receipt, error) {
	if c.encoding != codec.EncodingPairs {
		return nil, revert("playMove not supported")
	}
	if g.rec.State != contract.StatePlaying {
		return nil, revert("not playing")
	}
	if len(args) != 2 {
		return nil, revert("bad arguments")
	}
	x, ok1 := args[0].(uint8)
	y, ok2 := args[1].(uint8)
	if !ok1 || !ok2 {
		return nil, revert("bad arguments")
	}
	n := int(g.rec.BoardSize.Int64())
	if int(x) >= n || int(y) >= n {
		return nil, revert("move off board")
	}
	if len(p.played) >= c.rounds(g) {
		return nil, revert("too many moves")
	}
	p.played = append(p.played, models.Position{X: int(x), Y: int(y)})

	if c.both(g, func(p *player) bool { return len(p.played) == c.rounds(g) }) {
		g.rec.State = contract.StateRevealMoves
	}
	return &contract.Receipt{}, nil
}

func (c *Chain) submitMoves(g *game, p *player, args []any) (*contract.Receipt, error) {
	if c.encoding != codec.EncodingBitmask {
		return nil, revert("submitMoves not supported")
	}
	if g.rec.State != contract.StatePlaying {
		return nil, revert("not playing")
	}
	if p.submitted != nil {
		return nil, revert("moves already submitted")
	}
	if len(args) != 1 {
		return nil, revert("bad arguments")
	}
	word, ok := args[0].(*big.Int)
	if !ok {
		return nil, revert("bad arguments")
	}
	moves, err := codec.BigToMoves(int(g.rec.BoardSize.Int64()), word)
	if err != nil || len(moves) > c.rounds(g) {
		return nil, revert("invalid moves")
	}
	p.submitted = new(big.Int).Set(word)

	if c.both(g, func(p *player) bool { return p.submitted != nil }) {
		g.rec.State = contract.StateRevealMoves
	}
	return &contract.Receipt{}, nil
}

func (c *Chain) revealMoves(g *game, p *player, args []any) (*contract.Receipt, error) {
	if g.rec.State != contract.StateRevealMoves {
		return nil, revert("not revealing moves")
	}
	if len(args) != 1 {
		return nil, revert("bad arguments")
	}
	switch data := args[0].(type) {
	case []byte:
		if c.encoding != codec.EncodingPairs || !bytes.Equal(data, codec.MovesToBytes(p.played)) {
			return nil, revert("moves do not match")
		}
		p.revealedMoves = bytes.Clone(data)
	case *big.Int:
		if c.encoding != codec.EncodingBitmask || p.submitted == nil || data.Cmp(p.submitted) != 0 {
			return nil, revert("moves do not match")
		}
		p.revealedWord = new(big.Int).Set(data)
	default:
		return nil, revert("bad arguments")
	}

	if c.both(g, func(p *player) bool { return p.revealedMoves != nil || p.revealedWord != nil }) {
		g.rec.State = contract.StateRevealBoard
	}
	return &contract.Receipt{}, nil
}

func (c *Chain) revealBoard(g *game, p *player, args []any) (*contract.Receipt, error) {
	if g.rec.State != contract.StateRevealBoard {
		return nil, revert("not revealing board")
	}
	if len(args) != 1 {
		return nil, revert("bad arguments")
	}
	ships, ok := args[0].([]byte)
	if !ok {
		return nil, revert("bad arguments")
	}
	if ShipsHash(g.rec.ShipSizes, g.rec.BoardSize, ships) != p.commit {
		return nil, revert("ships do not match commitment")
	}
	p.ships = bytes.Clone(ships)

	if c.both(g, func(p *player) bool { return p.ships != nil }) {
		c.finish(g)
	}
	return &contract.Receipt{}, nil
}

func (c *Chain) finish(g *game) {
	g.rec.State = contract.StateEnded
	p1, p2 := g.players[g.rec.Player1], g.players[g.rec.Player2]
	if c.hits(g, p1, p2) >= c.hits(g, p2, p1) {
		g.rec.Winner = g.rec.Player1
	} else {
		g.rec.Winner = g.rec.Player2
	}
}

// hits counts the cells shooter hit on target's board.
func (c *Chain) hits(g *game, shooter, target *player) int {
	lengths := codec.BytesToShipLengths(g.rec.ShipSizes)
	ships, err := codec.BytesToShips(target.ships, lengths)
	if err != nil {
		return 0
	}
	var moves []models.Position
	if c.encoding == codec.EncodingBitmask {
		moves, _ = codec.BigToMoves(int(g.rec.BoardSize.Int64()), shooter.revealedWord)
	} else {
		moves, _ = codec.BytesToMoves(shooter.revealedMoves)
	}
	return board.CountHits(board.CalculateHits(ships, moves))
}
