package models

import "time"

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type ShipConfig struct {
	ID         int      `json:"id"`
	Position   Position `json:"position"`
	Length     int      `json:"length"`
	IsVertical bool     `json:"isVertical"`
	Color      string   `json:"color,omitempty"`
}

// PlayerData is one player slot of a game. Hits[i] is the verdict for Moves[i]
// against the opponent's ships.
type PlayerData struct {
	Player        string       `json:"player"`
	Ships         []ShipConfig `json:"ships"`
	Moves         []Position   `json:"moves"`
	Hits          []bool       `json:"hits,omitempty"`
	RevealedMoves bool         `json:"revealedMoves,omitempty"`
	RevealedBoard bool         `json:"revealedBoard,omitempty"`
}

// PublicPlayerData is what a player exposes in the shared cloud game document.
type PublicPlayerData struct {
	Moves         []Position `json:"moves"`
	Hits          []bool     `json:"hits"`
	RevealedMoves bool       `json:"revealedMoves"`
	RevealedBoard bool       `json:"revealedBoard"`
}

// CloudGame is the relay store's view of a game, normalized from whichever
// schema version the document was written with.
type CloudGame struct {
	Schema      SchemaVersion
	ID          uint64
	Chain       string
	BoardLength int
	TotalRounds int
	Player1     string
	Player2     string
	Status      GameState
	Created     time.Time
	UpdateCount int64
	Players     map[int]*PublicPlayerData
}

// CloudPlayerData is a player's private document after decryption.
type CloudPlayerData struct {
	Schema      SchemaVersion
	GameID      string
	Player      string
	Ships       []ShipConfig
	Moves       []Position
	UpdateCount int64
}

// ContractGame is the decoded on-chain record.
type ContractGame struct {
	ID          uint64
	BoardLength int
	TotalRounds int
	ShipLengths []int
	Player1     string
	Player2     string
	Status      GameState
	Winner      string
	Players     map[int]*PlayerData
}

// GameData is the merged view handed to consumers. It is rebuilt on every
// change and never mutated afterwards.
type GameData struct {
	ID                  uint64
	Chain               string
	BoardLength         int
	TotalRounds         int
	ShipLengths         []int
	Player1             string
	Player2             string
	Status              GameState
	Winner              string
	Created             time.Time
	UpdateCount         int64
	CurrentUserIsPlayer int
	Players             map[int]*PlayerData
}

// Opponent returns the other player slot, or 0 for spectators.
func Opponent(slot int) int {
	switch slot {
	case 1:
		return 2
	case 2:
		return 1
	}
	return 0
}

func (p *PlayerData) Clone() *PlayerData {
	if p == nil {
		return nil
	}
	c := *p
	c.Ships = cloneShips(p.Ships)
	c.Moves = clonePositions(p.Moves)
	c.Hits = cloneBools(p.Hits)
	return &c
}

func (p *PublicPlayerData) Clone() *PublicPlayerData {
	if p == nil {
		return nil
	}
	c := *p
	c.Moves = clonePositions(p.Moves)
	c.Hits = cloneBools(p.Hits)
	return &c
}

func (g *CloudGame) Clone() *CloudGame {
	if g == nil {
		return nil
	}
	c := *g
	c.Players = make(map[int]*PublicPlayerData, len(g.Players))
	for slot, p := range g.Players {
		c.Players[slot] = p.Clone()
	}
	return &c
}

// Public returns the public data of a slot, allocating it when missing.
func (g *CloudGame) Public(slot int) *PublicPlayerData {
	if g.Players == nil {
		g.Players = map[int]*PublicPlayerData{}
	}
	p, ok := g.Players[slot]
	if !ok || p == nil {
		p = &PublicPlayerData{Moves: []Position{}, Hits: []bool{}}
		g.Players[slot] = p
	}
	return p
}

// Slot reports which player slot an address occupies.
func (g *CloudGame) Slot(address string) int {
	return slotOf(address, g.Player1, g.Player2)
}

func (d *CloudPlayerData) Clone() *CloudPlayerData {
	if d == nil {
		return nil
	}
	c := *d
	c.Ships = cloneShips(d.Ships)
	c.Moves = clonePositions(d.Moves)
	return &c
}

func (g *ContractGame) Clone() *ContractGame {
	if g == nil {
		return nil
	}
	c := *g
	c.ShipLengths = append([]int(nil), g.ShipLengths...)
	c.Players = make(map[int]*PlayerData, len(g.Players))
	for slot, p := range g.Players {
		c.Players[slot] = p.Clone()
	}
	return &c
}

func (g *GameData) Clone() *GameData {
	if g == nil {
		return nil
	}
	c := *g
	c.ShipLengths = append([]int(nil), g.ShipLengths...)
	c.Players = make(map[int]*PlayerData, len(g.Players))
	for slot, p := range g.Players {
		c.Players[slot] = p.Clone()
	}
	return &c
}

// Slot reports which player slot an address occupies.
func (g *GameData) Slot(address string) int {
	return slotOf(address, g.Player1, g.Player2)
}

func cloneShips(in []ShipConfig) []ShipConfig {
	if in == nil {
		return nil
	}
	return append(make([]ShipConfig, 0, len(in)), in...)
}

func clonePositions(in []Position) []Position {
	if in == nil {
		return nil
	}
	return append(make([]Position, 0, len(in)), in...)
}

func cloneBools(in []bool) []bool {
	if in == nil {
		return nil
	}
	return append(make([]bool, 0, len(in)), in...)
}
