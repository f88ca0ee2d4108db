package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wojtekolesinski/onchain-battleships/cloud"
	"github.com/wojtekolesinski/onchain-battleships/config"
	"github.com/wojtekolesinski/onchain-battleships/flow"
	"github.com/wojtekolesinski/onchain-battleships/game"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

type App struct {
	player  *Player
	cloud   *cloud.Client
	tracker *game.Tracker
	params  config.Game
	rng     *rand.Rand
	bot     *bot
	logger  *log.Logger

	progress *flow.Progress
	busy     atomic.Bool
	// moves the viewer is known to have made; older snapshots are not acted on
	moves atomic.Int64
	// last reveal phase completed by the viewer
	revealed atomic.Int64
}

func New(p *Player, c *cloud.Client, t *game.Tracker, params config.Game, logger *log.Logger) *App {
	if logger == nil {
		logger = log.Default()
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &App{
		player:  p,
		cloud:   c,
		tracker: t,
		params:  params,
		rng:     rng,
		bot:     newBot(rng),
		logger:  logger.WithPrefix("app"),
	}
}

// Run shows the menu and then the chosen game until ctx is done or the
// window is closed.
func (a *App) Run(ctx context.Context) error {
	id, err := a.displayMenu(ctx)
	if err != nil {
		return fmt.Errorf("app.displayMenu: %w", err)
	}
	a.tracker.Watch(id)
	return a.playGame(ctx)
}

func (a *App) playGame(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	u := newUi()
	a.progress = flow.NewProgress(u.renderProgress)

	updates := make(chan *models.GameData, 1)
	unsub := a.tracker.Subscribe(func(g *models.GameData) {
		// keep only the latest snapshot
		for {
			select {
			case updates <- g:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	defer unsub()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case g := <-updates:
				u.render(g, a.tracker.Err())
				a.advance(ctx, g)
			}
		}
	}()

	if !a.params.AutoPlay {
		go a.listenForShots(ctx, u)
	}

	u.gui.Start(ctx, nil)
	return nil
}

// listenForShots fires at every cell clicked on the opponent's board.
func (a *App) listenForShots(ctx context.Context, u *ui) {
	for {
		coords := u.opponent.Listen(ctx)
		if ctx.Err() != nil {
			return
		}
		pos, err := parseCoords(coords)
		if err != nil {
			a.logger.Warn("app [listenForShots]", "coords", coords, "err", err)
			continue
		}
		if g := a.tracker.Current(); g != nil {
			a.shoot(ctx, g, pos)
		}
	}
}

func (a *App) shoot(ctx context.Context, g *models.GameData, pos models.Position) {
	own := g.Players[g.CurrentUserIsPlayer]
	if own == nil || int64(len(own.Moves)) < a.moves.Load() {
		return
	}
	n := len(own.Moves) + 1
	a.runAction(ctx, func() error {
		if err := a.player.PlayMove(ctx, a.progress, g, pos); err != nil {
			return err
		}
		a.moves.Store(int64(n))
		return nil
	})
}

// advance takes the action the current phase expects from the viewer: the
// reveals always, shots only when playing automatically.
func (a *App) advance(ctx context.Context, g *models.GameData) {
	own := g.Players[g.CurrentUserIsPlayer]
	if g.CurrentUserIsPlayer == 0 || own == nil {
		return
	}

	switch g.Status {
	case models.Playing:
		if !a.params.AutoPlay || len(own.Moves) >= g.TotalRounds {
			return
		}
		pos, ok := a.bot.recommend(g.BoardLength, g.ShipLengths, own.Moves, own.Hits)
		if !ok {
			return
		}
		a.logger.Debug("app [advance] bot shot", "game", g.ID, "pos", formatCoords(pos))
		a.shoot(ctx, g, pos)
	case models.RevealMoves:
		if own.RevealedMoves {
			return
		}
		a.reveal(ctx, g, a.player.RevealMoves)
	case models.RevealBoard:
		if own.RevealedBoard {
			return
		}
		a.reveal(ctx, g, a.player.RevealBoard)
	}
}

func (a *App) reveal(ctx context.Context, g *models.GameData, action func(context.Context, *flow.Progress, *models.GameData) error) {
	phase := int64(g.Status)
	if a.revealed.Load() >= phase {
		return
	}
	a.runAction(ctx, func() error {
		if err := action(ctx, a.progress, g); err != nil {
			return err
		}
		a.revealed.Store(phase)
		return nil
	})
}

// runAction runs one action at a time in the background. When it finishes
// the latest snapshot is looked at again, since updates that arrived
// meanwhile were skipped.
func (a *App) runAction(ctx context.Context, action func() error) {
	if !a.busy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		err := action()
		a.busy.Store(false)
		if err != nil {
			a.logger.Error("app [runAction]", "err", err)
			return
		}
		if g := a.tracker.Current(); g != nil && ctx.Err() == nil {
			a.advance(ctx, g)
		}
	}()
}
