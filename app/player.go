package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/wojtekolesinski/onchain-battleships/board"
	"github.com/wojtekolesinski/onchain-battleships/cloud"
	"github.com/wojtekolesinski/onchain-battleships/codec"
	"github.com/wojtekolesinski/onchain-battleships/contract"
	"github.com/wojtekolesinski/onchain-battleships/flow"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

var (
	ErrNotPlayer     = errors.New("not a player in this game")
	ErrNotJoinable   = errors.New("game is not waiting for an opponent")
	ErrAlreadyPlayed = errors.New("cell already played")
	ErrNoRoundsLeft  = errors.New("no rounds left")
	ErrOffBoard      = errors.New("cell is off the board")
	ErrWrongPhase    = errors.New("game is not in this phase")
)

// Player runs a player's actions against the relay and the chain. Each
// action is a flow.Flow reporting to the given progress; transactions report
// their sending and mining stages as sub-steps.
type Player struct {
	cloud    *cloud.Client
	contract *contract.Adapter
	logger   *log.Logger
}

func NewPlayer(c *cloud.Client, a *contract.Adapter, logger *log.Logger) *Player {
	if logger == nil {
		logger = log.Default()
	}
	return &Player{cloud: c, contract: a, logger: logger.WithPrefix("player")}
}

func (p *Player) Address() string { return p.cloud.Address() }

// Rules returns the board size and ship lengths of game id as recorded on
// chain.
func (p *Player) Rules(ctx context.Context, id uint64) (int, []int, error) {
	g, err := p.contract.LoadGame(ctx, id)
	if err != nil {
		return 0, nil, fmt.Errorf("app.Rules: %w", err)
	}
	return g.BoardLength, g.ShipLengths, nil
}

// GameParams describes a game to create.
type GameParams struct {
	BoardLength int
	TotalRounds int
	ShipLengths []int
	Ships       []models.ShipConfig
}

// CreateGame commits the layout on chain and records the game on the relay.
func (p *Player) CreateGame(ctx context.Context, progress *flow.Progress, params GameParams) (uint64, error) {
	var (
		hash [32]byte
		id   uint64
	)

	f := flow.New(progress)
	f.Add("validate", func(context.Context) error {
		if params.TotalRounds < 1 {
			return errors.New("total rounds must be positive")
		}
		return board.ValidateLayout(params.BoardLength, params.ShipLengths, params.Ships)
	})
	f.Add("hash", func(ctx context.Context) (err error) {
		hash, err = p.contract.ShipsHash(ctx, params.ShipLengths, params.BoardLength, params.Ships)
		return err
	})
	f.Add("create on chain", func(ctx context.Context) (err error) {
		id, err = p.contract.NewGame(ctx, progress.Sub("create on chain"), params.ShipLengths, params.BoardLength, params.TotalRounds, hash)
		return err
	})
	f.Add("save to relay", func(ctx context.Context) error {
		return p.cloud.AddNewGame(ctx, id, params.BoardLength, params.TotalRounds, params.Ships)
	})

	if err := f.Run(ctx); err != nil {
		return 0, fmt.Errorf("app.CreateGame: %w", err)
	}
	p.logger.Info("app [CreateGame]", "game", id)
	return id, nil
}

// JoinGame joins id with ships. The chain decides who got the seat; the
// relay record follows it.
func (p *Player) JoinGame(ctx context.Context, progress *flow.Progress, id uint64, ships []models.ShipConfig) error {
	var (
		g    *models.ContractGame
		hash [32]byte
	)

	f := flow.New(progress)
	f.Add("load game", func(ctx context.Context) (err error) {
		g, err = p.contract.LoadGame(ctx, id)
		if err != nil {
			return err
		}
		if g.Status != models.NeedOpponent {
			return ErrNotJoinable
		}
		return nil
	})
	f.Add("validate", func(context.Context) error {
		return board.ValidateLayout(g.BoardLength, g.ShipLengths, ships)
	})
	f.Add("hash", func(ctx context.Context) (err error) {
		hash, err = p.contract.ShipsHash(ctx, g.ShipLengths, g.BoardLength, ships)
		return err
	})
	f.Add("join on chain", func(ctx context.Context) error {
		return p.contract.Join(ctx, progress.Sub("join on chain"), id, hash)
	})
	f.Add("save to relay", func(ctx context.Context) error {
		return p.cloud.JoinGame(ctx, id, ships)
	})

	if err := f.Run(ctx); err != nil {
		return fmt.Errorf("app.JoinGame: %w", err)
	}
	p.logger.Info("app [JoinGame]", "game", id)
	return nil
}

func ownSlot(g *models.GameData) (*models.PlayerData, error) {
	own := g.Players[g.CurrentUserIsPlayer]
	if g.CurrentUserIsPlayer == 0 || own == nil {
		return nil, ErrNotPlayer
	}
	return own, nil
}

// PlayMove fires at pos. With pair encoding every move is a transaction;
// with bitmask encoding the whole set is submitted after the last round.
func (p *Player) PlayMove(ctx context.Context, progress *flow.Progress, g *models.GameData, pos models.Position) error {
	var own *models.PlayerData

	f := flow.New(progress)
	f.Add("check", func(context.Context) (err error) {
		if own, err = ownSlot(g); err != nil {
			return err
		}
		switch {
		case g.Status != models.Playing:
			return fmt.Errorf("%w: %s", ErrWrongPhase, g.Status)
		case pos.X < 0 || pos.Y < 0 || pos.X >= g.BoardLength || pos.Y >= g.BoardLength:
			return fmt.Errorf("%w: %v", ErrOffBoard, pos)
		case slices.Contains(own.Moves, pos):
			return fmt.Errorf("%w: %v", ErrAlreadyPlayed, pos)
		case len(own.Moves) >= g.TotalRounds:
			return ErrNoRoundsLeft
		}
		return nil
	})

	switch p.contract.Encoding() {
	case codec.EncodingPairs:
		f.Add("send move", func(ctx context.Context) error {
			return p.contract.PlayMove(ctx, progress.Sub("send move"), g.ID, pos)
		})
		f.Add("save move", func(ctx context.Context) error {
			return p.cloud.PlayMove(ctx, g.ID, pos)
		})
	case codec.EncodingBitmask:
		f.Add("save move", func(ctx context.Context) error {
			return p.cloud.PlayMove(ctx, g.ID, pos)
		})
		f.Add("submit moves", func(ctx context.Context) error {
			if len(own.Moves)+1 < g.TotalRounds {
				return nil
			}
			moves := append(slices.Clone(own.Moves), pos)
			return p.contract.SubmitMoves(ctx, progress.Sub("submit moves"), g.ID, g.BoardLength, moves)
		})
	}

	if err := f.Run(ctx); err != nil {
		return fmt.Errorf("app.PlayMove: %w", err)
	}
	return nil
}

// RevealMoves opens the caller's moves on chain and flags it on the relay.
func (p *Player) RevealMoves(ctx context.Context, progress *flow.Progress, g *models.GameData) error {
	var own *models.PlayerData

	f := flow.New(progress)
	f.Add("check", func(context.Context) (err error) {
		if own, err = ownSlot(g); err != nil {
			return err
		}
		if g.Status != models.RevealMoves {
			return fmt.Errorf("%w: %s", ErrWrongPhase, g.Status)
		}
		return nil
	})
	f.Add("reveal moves on chain", func(ctx context.Context) error {
		return p.contract.RevealMoves(ctx, progress.Sub("reveal moves on chain"), g.ID, g.BoardLength, own.Moves)
	})
	f.Add("update relay", func(ctx context.Context) error {
		return p.cloud.Reveal(ctx, g.ID)
	})

	if err := f.Run(ctx); err != nil {
		return fmt.Errorf("app.RevealMoves: %w", err)
	}
	return nil
}

// RevealBoard opens the caller's layout on chain and flags it on the relay.
func (p *Player) RevealBoard(ctx context.Context, progress *flow.Progress, g *models.GameData) error {
	var own *models.PlayerData

	f := flow.New(progress)
	f.Add("check", func(context.Context) (err error) {
		if own, err = ownSlot(g); err != nil {
			return err
		}
		if g.Status != models.RevealBoard {
			return fmt.Errorf("%w: %s", ErrWrongPhase, g.Status)
		}
		return nil
	})
	f.Add("reveal board on chain", func(ctx context.Context) error {
		return p.contract.RevealBoard(ctx, progress.Sub("reveal board on chain"), g.ID, own.Ships)
	})
	f.Add("update relay", func(ctx context.Context) error {
		return p.cloud.Reveal(ctx, g.ID)
	})

	if err := f.Run(ctx); err != nil {
		return fmt.Errorf("app.RevealBoard: %w", err)
	}
	return nil
}
