package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"

	"github.com/wojtekolesinski/onchain-battleships/board"
	"github.com/wojtekolesinski/onchain-battleships/codec"
	"github.com/wojtekolesinski/onchain-battleships/flow"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

var (
	ErrGameNotFound = errors.New("game not found on chain")
	ErrReverted     = errors.New("transaction reverted")
	ErrNoGameEvent  = errors.New("NewGame event not found in tx receipt")
	ErrWrongMethod  = errors.New("method not supported by this contract generation")
)

// Transaction lifecycle steps reported to a flow.Progress.
const (
	StepSending = "sending"
	StepMining  = "mining"
)

type Adapter struct {
	backend Backend
	logger  *log.Logger
}

func NewAdapter(backend Backend, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{backend: backend, logger: logger.WithPrefix("contract")}
}

func (a *Adapter) Encoding() codec.MoveEncoding {
	return a.backend.Encoding()
}

func stateFromCode(code uint8) models.GameState {
	switch code {
	case StateNeedOpponent:
		return models.NeedOpponent
	case StateRevealMoves:
		return models.RevealMoves
	case StateRevealBoard:
		return models.RevealBoard
	case StateEnded:
		return models.Ended
	}
	// StatePlaying cannot tell whose turn it is
	return models.StateUnknown
}

// LoadGame reads and decodes the on-chain record of a game.
func (a *Adapter) LoadGame(ctx context.Context, id uint64) (*models.ContractGame, error) {
	bid := new(big.Int).SetUint64(id)
	rec, err := a.backend.Games(ctx, bid)
	if err != nil {
		return nil, fmt.Errorf("contract.LoadGame: %w", err)
	}
	if rec.Player1 == (common.Address{}) {
		return nil, fmt.Errorf("contract.LoadGame: %w: %d", ErrGameNotFound, id)
	}

	g := &models.ContractGame{
		ID:          id,
		BoardLength: int(rec.BoardSize.Int64()),
		TotalRounds: int(rec.NumRounds.Int64()),
		ShipLengths: codec.BytesToShipLengths(rec.ShipSizes),
		Player1:     rec.Player1.Hex(),
		Status:      stateFromCode(rec.State),
		Players:     map[int]*models.PlayerData{},
	}
	if rec.Player2 != (common.Address{}) {
		g.Player2 = rec.Player2.Hex()
	}
	if g.Status == models.Ended && rec.Winner != (common.Address{}) {
		g.Winner = rec.Winner.Hex()
	}

	addrs := map[int]common.Address{1: rec.Player1}
	if g.Player2 != "" {
		addrs[2] = rec.Player2
	}
	for slot, addr := range addrs {
		p, err := a.loadPlayer(ctx, bid, addr, g)
		if err != nil {
			return nil, fmt.Errorf("contract.LoadGame: player %d: %w", slot, err)
		}
		g.Players[slot] = p
	}

	for slot, p := range g.Players {
		opp := g.Players[models.Opponent(slot)]
		if opp != nil && len(opp.Ships) > 0 {
			p.Hits = board.CalculateHits(opp.Ships, p.Moves)
		}
	}

	a.logger.Debug("LoadGame", "game", id, "status", g.Status)
	return g, nil
}

func (a *Adapter) loadPlayer(ctx context.Context, id *big.Int, addr common.Address, g *models.ContractGame) (*models.PlayerData, error) {
	rec, err := a.backend.Players(ctx, id, addr)
	if err != nil {
		return nil, err
	}

	var moves []models.Position
	switch a.backend.Encoding() {
	case codec.EncodingBitmask:
		moves, err = codec.BigToMoves(g.BoardLength, rec.MovesWord)
	default:
		moves, err = codec.BytesToMoves(rec.Moves)
	}
	if err != nil {
		return nil, err
	}
	ships, err := codec.BytesToShips(rec.Ships, g.ShipLengths)
	if err != nil {
		return nil, err
	}

	return &models.PlayerData{
		Player:        addr.Hex(),
		Ships:         models.ApplyColors(ships),
		Moves:         moves,
		RevealedMoves: len(moves) > 0,
		RevealedBoard: len(ships) > 0,
	}, nil
}

// ShipsHash is the commitment to a layout the contract checks at reveal.
func (a *Adapter) ShipsHash(ctx context.Context, shipLengths []int, boardLength int, ships []models.ShipConfig) ([32]byte, error) {
	sizes, err := codec.ShipLengthsToBytes(shipLengths)
	if err != nil {
		return [32]byte{}, fmt.Errorf("contract.ShipsHash: %w", err)
	}
	h, err := a.backend.CalculateShipsHash(ctx, sizes, big.NewInt(int64(boardLength)), codec.ShipsToBytes(ships))
	if err != nil {
		return [32]byte{}, fmt.Errorf("contract.ShipsHash: %w", err)
	}
	return h, nil
}

// NewGame creates a game and returns its id.
func (a *Adapter) NewGame(ctx context.Context, p *flow.Progress, shipLengths []int, boardLength, totalRounds int, shipsHash [32]byte) (uint64, error) {
	sizes, err := codec.ShipLengthsToBytes(shipLengths)
	if err != nil {
		return 0, fmt.Errorf("contract.NewGame: %w", err)
	}
	rcpt, err := a.transact(ctx, p, MethodNewGame, sizes, big.NewInt(int64(boardLength)), big.NewInt(int64(totalRounds)), shipsHash)
	if err != nil {
		return 0, fmt.Errorf("contract.NewGame: %w", err)
	}
	if rcpt.NewGameID == nil {
		return 0, fmt.Errorf("contract.NewGame: %w", ErrNoGameEvent)
	}
	return rcpt.NewGameID.Uint64(), nil
}

func (a *Adapter) Join(ctx context.Context, p *flow.Progress, id uint64, shipsHash [32]byte) error {
	if _, err := a.transact(ctx, p, MethodJoin, new(big.Int).SetUint64(id), shipsHash); err != nil {
		return fmt.Errorf("contract.Join: %w", err)
	}
	return nil
}

// PlayMove submits one move to a pair-encoded contract.
func (a *Adapter) PlayMove(ctx context.Context, p *flow.Progress, id uint64, pos models.Position) error {
	if a.Encoding() != codec.EncodingPairs {
		return fmt.Errorf("contract.PlayMove: %w", ErrWrongMethod)
	}
	if _, err := a.transact(ctx, p, MethodPlayMove, new(big.Int).SetUint64(id), uint8(pos.X), uint8(pos.Y)); err != nil {
		return fmt.Errorf("contract.PlayMove: %w", err)
	}
	return nil
}

// SubmitMoves submits all moves at once to a bitmask-encoded contract.
func (a *Adapter) SubmitMoves(ctx context.Context, p *flow.Progress, id uint64, boardLength int, moves []models.Position) error {
	if a.Encoding() != codec.EncodingBitmask {
		return fmt.Errorf("contract.SubmitMoves: %w", ErrWrongMethod)
	}
	word, err := codec.MovesToBitmask(boardLength, moves)
	if err != nil {
		return fmt.Errorf("contract.SubmitMoves: %w", err)
	}
	if _, err := a.transact(ctx, p, MethodSubmitMoves, new(big.Int).SetUint64(id), word.ToBig()); err != nil {
		return fmt.Errorf("contract.SubmitMoves: %w", err)
	}
	return nil
}

func (a *Adapter) RevealMoves(ctx context.Context, p *flow.Progress, id uint64, boardLength int, moves []models.Position) error {
	var data any
	switch a.Encoding() {
	case codec.EncodingBitmask:
		word, err := codec.MovesToBitmask(boardLength, moves)
		if err != nil {
			return fmt.Errorf("contract.RevealMoves: %w", err)
		}
		data = word.ToBig()
	default:
		data = codec.MovesToBytes(moves)
	}
	if _, err := a.transact(ctx, p, MethodRevealMoves, new(big.Int).SetUint64(id), data); err != nil {
		return fmt.Errorf("contract.RevealMoves: %w", err)
	}
	return nil
}

func (a *Adapter) RevealBoard(ctx context.Context, p *flow.Progress, id uint64, ships []models.ShipConfig) error {
	if _, err := a.transact(ctx, p, MethodRevealBoard, new(big.Int).SetUint64(id), codec.ShipsToBytes(ships)); err != nil {
		return fmt.Errorf("contract.RevealBoard: %w", err)
	}
	return nil
}

// transact sends a transaction and waits for it, reporting
// sending, mining and then success or error to p.
func (a *Adapter) transact(ctx context.Context, p *flow.Progress, method string, args ...any) (*Receipt, error) {
	p.Reset()
	p.SetActiveStep(StepSending)
	tx, err := a.backend.Submit(ctx, method, args...)
	if err != nil {
		p.SetError(err)
		return nil, err
	}

	p.SetActiveStep(StepMining)
	a.logger.Info("transact", "method", method, "tx", tx.Hash())
	rcpt, err := tx.Wait(ctx)
	if err != nil {
		p.SetError(err)
		return nil, err
	}
	if !rcpt.Success {
		err := fmt.Errorf("%w: %s", ErrReverted, rcpt.TxHash)
		p.SetError(err)
		return nil, err
	}

	p.SetCompleted()
	return rcpt, nil
}
