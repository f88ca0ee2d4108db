// Package game reconciles the relay and on-chain views of a game into one
// GameData and keeps it current while a game is observed.
package game

import (
	"github.com/wojtekolesinski/onchain-battleships/board"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

// Merge combines the relay projection, the caller's private relay data and
// the contract projection. It returns nil while either projection is
// missing. Inputs are never modified.
//
// The contract wins on every field it knows; an Unknown contract status
// defers to the relay status. The caller's own empty ships and moves are
// filled from the private data, and any slot still without moves falls back
// to the public relay lists.
func Merge(cg *models.CloudGame, pd *models.CloudPlayerData, chain *models.ContractGame, account string) *models.GameData {
	if cg == nil || chain == nil {
		return nil
	}

	g := &models.GameData{
		ID:          cg.ID,
		Chain:       cg.Chain,
		BoardLength: cg.BoardLength,
		TotalRounds: cg.TotalRounds,
		Player1:     cg.Player1,
		Player2:     cg.Player2,
		Status:      cg.Status,
		Created:     cg.Created,
		UpdateCount: cg.UpdateCount,
		Players:     map[int]*models.PlayerData{},
	}

	g.ID = chain.ID
	if chain.BoardLength > 0 {
		g.BoardLength = chain.BoardLength
	}
	if chain.TotalRounds > 0 {
		g.TotalRounds = chain.TotalRounds
	}
	g.ShipLengths = append([]int(nil), chain.ShipLengths...)
	if chain.Player1 != "" {
		g.Player1 = chain.Player1
	}
	if chain.Player2 != "" {
		g.Player2 = chain.Player2
	}
	g.Winner = chain.Winner
	if chain.Status != models.StateUnknown {
		g.Status = chain.Status
	}
	for slot, p := range chain.Players {
		g.Players[slot] = p.Clone()
	}

	addrs := map[int]string{1: g.Player1, 2: g.Player2}
	for slot, addr := range addrs {
		if addr == "" {
			continue
		}
		if g.Players[slot] == nil {
			g.Players[slot] = &models.PlayerData{Player: addr}
		}
	}

	g.CurrentUserIsPlayer = g.Slot(account)

	if own := g.Players[g.CurrentUserIsPlayer]; own != nil && pd != nil {
		if len(own.Ships) == 0 {
			own.Ships = models.ApplyColors(pd.Ships)
		}
		if len(own.Moves) == 0 {
			own.Moves = append([]models.Position(nil), pd.Moves...)
		}
	}

	for slot, p := range g.Players {
		pub := cg.Players[slot]
		if pub == nil {
			pub = &models.PublicPlayerData{}
		}
		if len(p.Moves) == 0 {
			p.Moves = append([]models.Position{}, pub.Moves...)
		}
		if p.Hits == nil {
			p.Hits = alignHits(p.Moves, pub.Moves, pub.Hits)
		}
		p.RevealedMoves = p.RevealedMoves || pub.RevealedMoves
		p.RevealedBoard = p.RevealedBoard || pub.RevealedBoard
	}

	return g
}

// alignHits orders the published verdicts by moves, which may list the same
// cells in a different order than pubMoves. It stops at the first move that
// has no verdict yet.
func alignHits(moves, pubMoves []models.Position, pubHits []bool) []bool {
	index := make(map[models.Position]int, len(pubMoves))
	for i, m := range pubMoves {
		index[m] = i
	}
	hits := []bool{}
	for _, m := range moves {
		i, ok := index[m]
		if !ok || i >= len(pubHits) {
			break
		}
		hits = append(hits, pubHits[i])
	}
	return hits
}

// OpponentHits computes the verdicts for the opponent's published moves
// that have none yet, against the caller's own ships. ok is false when there
// is nothing to publish.
func OpponentHits(g *models.GameData, cg *models.CloudGame) (hits []bool, ok bool) {
	if g == nil || cg == nil || g.CurrentUserIsPlayer == 0 || g.Status == models.NeedOpponent {
		return nil, false
	}
	own := g.Players[g.CurrentUserIsPlayer]
	opp := cg.Players[models.Opponent(g.CurrentUserIsPlayer)]
	if own == nil || len(own.Ships) == 0 || opp == nil {
		return nil, false
	}
	if len(opp.Moves) <= len(opp.Hits) {
		return nil, false
	}

	hits = append([]bool{}, opp.Hits...)
	for _, m := range opp.Moves[len(hits):] {
		hits = append(hits, board.ShipsSitOn(own.Ships, m))
	}
	return hits, true
}
