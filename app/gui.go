package app

import (
	"fmt"
	"strings"

	gui "github.com/grupawp/warships-gui/v2"
	"github.com/mitchellh/go-wordwrap"

	"github.com/wojtekolesinski/onchain-battleships/board"
	"github.com/wojtekolesinski/onchain-battleships/flow"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

// Board is what one gui board shows, indexed [x][y].
type Board [10][10]gui.State

const (
	messageLines = 4
	messageWidth = 100
)

type ui struct {
	gui          *gui.GUI
	own          *gui.Board
	opponent     *gui.Board
	infoText     *gui.Text
	exitText     *gui.Text
	roundText    *gui.Text
	statsInfo    *gui.Text
	progressText *gui.Text
	ownLabel     *gui.Text
	oppLabel     *gui.Text
	messages     []*gui.Text
}

func newUi() *ui {
	g := gui.NewGUI(true)
	own := gui.NewBoard(2, 6, nil)
	opponent := gui.NewBoard(60, 6, nil)
	exitText := gui.NewText(2, 2, "Press Ctrl+C to exit", nil)
	infoText := gui.NewText(2, 4, "Loading game...", nil)
	roundText := gui.NewText(50, 15, " round 0 ", &gui.TextConfig{
		FgColor: gui.NewColor(10, 10, 10),
		BgColor: gui.NewColor(255, 0, 255),
	})
	statsInfo := gui.NewText(50, 20, "0.00%", &gui.TextConfig{FgColor: gui.White, BgColor: gui.Black})
	progressText := gui.NewText(2, 30, "", nil)
	ownLabel := gui.NewText(2, 28, "", nil)
	oppLabel := gui.NewText(60, 28, "", nil)

	u := &ui{
		gui:          g,
		own:          own,
		opponent:     opponent,
		infoText:     infoText,
		exitText:     exitText,
		roundText:    roundText,
		statsInfo:    statsInfo,
		progressText: progressText,
		ownLabel:     ownLabel,
		oppLabel:     oppLabel,
	}
	for i := 0; i < messageLines; i++ {
		t := gui.NewText(2, 32+i, "", nil)
		u.messages = append(u.messages, t)
		g.Draw(t)
	}

	g.Draw(own)
	g.Draw(opponent)
	g.Draw(exitText)
	g.Draw(infoText)
	g.Draw(roundText)
	g.Draw(statsInfo)
	g.Draw(progressText)
	g.Draw(ownLabel)
	g.Draw(oppLabel)
	g.Draw(gui.NewText(48, 19, "Accuracy:", nil))
	return u
}

// render draws a merged game. The left board is the viewer's own (player 1
// for spectators), the right one the opponent's.
func (u *ui) render(g *models.GameData, errMsg string) {
	slot := g.CurrentUserIsPlayer
	if slot == 0 {
		slot = 1
	}
	opp := models.Opponent(slot)

	u.own.SetStates(ownBoard(g, slot))
	u.opponent.SetStates(opponentBoard(g, slot))
	u.ownLabel.SetText(playerLabel(g, slot))
	u.oppLabel.SetText(playerLabel(g, opp))

	mine := g.Players[slot]
	if mine != nil {
		u.roundText.SetText(fmt.Sprintf(" round %d/%d ", len(mine.Moves), g.TotalRounds))
		u.updateAccuracy(accuracy(mine.Hits))
	}

	u.setInfoText(statusText(g))
	if g.Status == models.Ended {
		u.renderGameResult(g)
	}
	u.setMessage(errMsg)
}

func playerLabel(g *models.GameData, slot int) string {
	addr := g.Player1
	if slot == 2 {
		addr = g.Player2
	}
	if addr == "" {
		return fmt.Sprintf("Player %d: waiting", slot)
	}
	label := fmt.Sprintf("Player %d: %s", slot, shortAddress(addr))
	if slot == g.CurrentUserIsPlayer {
		label += " (you)"
	}
	return label
}

func statusText(g *models.GameData) string {
	switch g.Status {
	case models.NeedOpponent:
		return fmt.Sprintf("Game %d: waiting for an opponent", g.ID)
	case models.Playing:
		return fmt.Sprintf("Game %d: playing", g.ID)
	case models.RevealMoves:
		return fmt.Sprintf("Game %d: revealing moves", g.ID)
	case models.RevealBoard:
		return fmt.Sprintf("Game %d: revealing boards", g.ID)
	case models.Ended:
		return fmt.Sprintf("Game %d: over", g.ID)
	}
	return fmt.Sprintf("Game %d", g.ID)
}

// ownBoard shows slot's ships and the opponent's shots at them.
func ownBoard(g *models.GameData, slot int) Board {
	var b Board
	if p := g.Players[slot]; p != nil {
		for _, s := range p.Ships {
			for _, c := range board.Cells(s) {
				set(&b, c, gui.Ship)
			}
		}
	}
	if opp := g.Players[models.Opponent(slot)]; opp != nil {
		markShots(&b, opp.Moves, opp.Hits)
	}
	return b
}

// opponentBoard shows slot's shots and, once revealed, the opponent's ships.
func opponentBoard(g *models.GameData, slot int) Board {
	var b Board
	if opp := g.Players[models.Opponent(slot)]; opp != nil {
		for _, s := range opp.Ships {
			for _, c := range board.Cells(s) {
				set(&b, c, gui.Ship)
			}
		}
	}
	if p := g.Players[slot]; p != nil {
		markShots(&b, p.Moves, p.Hits)
	}
	return b
}

// markShots marks every move with a verdict. Moves still waiting for one
// are left as they are.
func markShots(b *Board, moves []models.Position, hits []bool) {
	for i, m := range moves {
		if i >= len(hits) {
			continue
		}
		if hits[i] {
			set(b, m, gui.Hit)
		} else {
			set(b, m, gui.Miss)
		}
	}
}

func set(b *Board, p models.Position, s gui.State) {
	if p.X < 0 || p.Y < 0 || p.X >= len(b) || p.Y >= len(b[0]) {
		return
	}
	b[p.X][p.Y] = s
}

func accuracy(hits []bool) float32 {
	if len(hits) == 0 {
		return 0
	}
	return float32(board.CountHits(hits)) * 100 / float32(len(hits))
}

func (u *ui) renderProgress(s flow.ProgressState) {
	switch {
	case s.Err != nil:
		u.progressText.SetText("Failed")
		u.setMessage(s.Err.Error())
	case s.Completed:
		u.progressText.SetText("Done")
	case s.InProgress:
		u.progressText.SetText(fmt.Sprintf("Working: %s", s.ActiveStep))
	}
}

// setMessage wraps text over the message lines, dropping what does not fit.
func (u *ui) setMessage(text string) {
	fragments := strings.Split(wordwrap.WrapString(text, messageWidth), "\n")
	for i, line := range u.messages {
		if i < len(fragments) {
			line.SetText(fragments[i])
		} else {
			line.SetText("")
		}
	}
}

func (u *ui) setInfoText(text string) {
	u.infoText.SetText(text)
}

func (u *ui) renderGameResult(g *models.GameData) {
	switch {
	case g.CurrentUserIsPlayer == 0:
		u.setInfoText(fmt.Sprintf("Game %d: %s won", g.ID, shortAddress(g.Winner)))
	case models.SameAddress(g.Winner, g.Players[g.CurrentUserIsPlayer].Player):
		u.infoText.SetBgColor(gui.Green)
		u.infoText.SetFgColor(gui.White)
		u.setInfoText("You win")
	default:
		u.infoText.SetBgColor(gui.Red)
		u.infoText.SetFgColor(gui.White)
		u.setInfoText("You lose")
	}
}

func (u *ui) updateAccuracy(accuracy float32) {
	u.statsInfo.SetText(fmt.Sprintf("%.2f%%", accuracy))
}
