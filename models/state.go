package models

import (
	"fmt"
	"strings"
)

type GameState int

const (
	// StateUnknown means the contract has not disambiguated the phase yet and
	// the cloud status should be used instead.
	StateUnknown GameState = iota - 1
	NeedOpponent
	Playing
	RevealMoves
	RevealBoard
	Ended
)

var stateNames = map[GameState]string{
	StateUnknown: "UNKNOWN",
	NeedOpponent: "NEED_OPPONENT",
	Playing:      "PLAYING",
	RevealMoves:  "REVEAL_MOVES",
	RevealBoard:  "REVEAL_BOARD",
	Ended:        "ENDED",
}

func (s GameState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("GameState(%d)", int(s))
}

func (s GameState) MarshalText() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown game state %d", int(s))
	}
	return []byte(name), nil
}

func (s *GameState) UnmarshalText(b []byte) error {
	for state, name := range stateNames {
		if name == string(b) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown game state %q", string(b))
}

// Max returns the later of two lifecycle states. StateUnknown never wins.
func (s GameState) Max(o GameState) GameState {
	if o > s {
		return o
	}
	return s
}

// SchemaVersion tags every persisted cloud document with its wire shape.
type SchemaVersion int

const (
	// SchemaFlat stores public moves and reveal flags as player1*/player2*
	// fields and private payloads in plaintext.
	SchemaFlat SchemaVersion = 1
	// SchemaNested stores public data under players.{1,2} and encrypts the
	// private payload.
	SchemaNested SchemaVersion = 2

	CurrentSchema = SchemaNested
)

// SameAddress compares two account addresses ignoring hex case.
func SameAddress(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}

func slotOf(address, player1, player2 string) int {
	switch {
	case SameAddress(address, player1):
		return 1
	case SameAddress(address, player2):
		return 2
	}
	return 0
}

// ShipColor returns the display colour for a ship of the given length.
func ShipColor(length int) string {
	switch length {
	case 5:
		return "#AAE875"
	case 4:
		return "#FFB3B3"
	case 3:
		return "#FF5E78"
	case 2:
		return "#FDFB8A"
	default:
		return "#FFBD80"
	}
}

// ApplyColors returns a copy of ships with colours set from their lengths.
func ApplyColors(ships []ShipConfig) []ShipConfig {
	out := cloneShips(ships)
	for i := range out {
		out[i].Color = ShipColor(out[i].Length)
	}
	return out
}
