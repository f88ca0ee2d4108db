package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/wojtekolesinski/onchain-battleships/board"
	"github.com/wojtekolesinski/onchain-battleships/flow"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

var ErrNoGames = errors.New("no games to choose from")

// displayMenu returns the id of the game to open.
func (a *App) displayMenu(ctx context.Context) (uint64, error) {
	for {
		choices := []string{
			"Create a game",
			"Join a game",
			"Open one of your games",
			"Watch a game",
		}

		choice := promptList(choices, 1, func(a string) string { return a })
		log.Debug("app [displayMenu]", "choice", choice)

		var (
			id  uint64
			err error
		)
		switch choice {
		case 1:
			id, err = a.createGame(ctx)
		case 2:
			id, err = a.joinGame(ctx)
		case 3:
			id, err = a.chooseGame(ctx, func(g *models.CloudGame) bool { return g.Slot(a.player.Address()) != 0 })
		case 4:
			id, err = a.chooseGame(ctx, func(*models.CloudGame) bool { return true })
		}
		if errors.Is(err, ErrNoGames) {
			fmt.Println("\nNo games found")
			continue
		}
		if err != nil {
			fmt.Printf("\n%s\n\n", err)
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			continue
		}
		return id, nil
	}
}

func printProgress(s flow.ProgressState) {
	switch {
	case s.Err != nil:
		fmt.Println("  failed")
	case s.Completed:
		fmt.Println("  done")
	case s.InProgress:
		fmt.Printf("  %s...\n", s.ActiveStep)
	}
}

func (a *App) createGame(ctx context.Context) (uint64, error) {
	ships, err := a.chooseLayout(a.params.BoardLength, a.params.ShipLengths)
	if err != nil {
		return 0, err
	}
	fmt.Println("Creating game")
	return a.player.CreateGame(ctx, flow.NewProgress(printProgress), GameParams{
		BoardLength: a.params.BoardLength,
		TotalRounds: a.params.TotalRounds,
		ShipLengths: a.params.ShipLengths,
		Ships:       ships,
	})
}

func (a *App) joinGame(ctx context.Context) (uint64, error) {
	id, err := a.chooseGame(ctx, func(g *models.CloudGame) bool {
		return g.Status == models.NeedOpponent && !models.SameAddress(g.Player1, a.player.Address())
	})
	if err != nil {
		return 0, err
	}

	boardLength, shipLengths, err := a.player.Rules(ctx, id)
	if err != nil {
		return 0, err
	}
	ships, err := a.chooseLayout(boardLength, shipLengths)
	if err != nil {
		return 0, err
	}
	fmt.Printf("Joining game %d\n", id)
	if err := a.player.JoinGame(ctx, flow.NewProgress(printProgress), id, ships); err != nil {
		return 0, err
	}
	return id, nil
}

func (a *App) chooseGame(ctx context.Context, keep func(*models.CloudGame) bool) (uint64, error) {
	var games []*models.CloudGame
	fmt.Println("Fetching list of games")
	err := makeRequest(func() (err error) {
		games, err = a.cloud.ListGames(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cloud.ListGames: %w", err)
	}

	filtered := games[:0]
	for _, g := range games {
		if keep(g) {
			filtered = append(filtered, g)
		}
	}
	if len(filtered) == 0 {
		return 0, ErrNoGames
	}

	choice := promptList(filtered, 0, func(g *models.CloudGame) string {
		opponent := "open"
		if g.Player2 != "" {
			opponent = shortAddress(g.Player2)
		}
		return fmt.Sprintf("#%-4d %-14s %dx%d, %d rounds  %s vs %s",
			g.ID, g.Status, g.BoardLength, g.BoardLength, g.TotalRounds, shortAddress(g.Player1), opponent)
	})
	return filtered[choice].ID, nil
}

// chooseLayout shows random layouts until one is accepted.
func (a *App) chooseLayout(boardLength int, shipLengths []int) ([]models.ShipConfig, error) {
	if boardLength > len(Board{}) {
		return nil, fmt.Errorf("app.chooseLayout: boards larger than %d cannot be shown", len(Board{}))
	}
	for {
		ships, err := board.RandomLayout(a.rng, boardLength, shipLengths)
		if err != nil {
			return nil, err
		}
		fmt.Println()
		fmt.Print(drawLayout(boardLength, ships))
		if a.params.AutoPlay || promptPlayer("Use this layout?") {
			return ships, nil
		}
	}
}

func drawLayout(boardLength int, ships []models.ShipConfig) string {
	var sb strings.Builder
	sb.WriteString("   ")
	for x := 0; x < boardLength; x++ {
		sb.WriteByte(byte('A' + x))
		sb.WriteByte(' ')
	}
	sb.WriteByte('\n')
	for y := 0; y < boardLength; y++ {
		fmt.Fprintf(&sb, "%2d ", y+1)
		for x := 0; x < boardLength; x++ {
			if board.ShipsSitOn(ships, models.Position{X: x, Y: y}) {
				sb.WriteString("# ")
			} else {
				sb.WriteString(". ")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
