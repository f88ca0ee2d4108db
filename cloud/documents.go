package cloud

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wojtekolesinski/onchain-battleships/docstore"
	"github.com/wojtekolesinski/onchain-battleships/models"
	"github.com/wojtekolesinski/onchain-battleships/secret"
)

const (
	GamesCollection      = "games"
	PlayerDataCollection = "playerData"
)

var ErrUnknownSchema = errors.New("unknown document schema")

// GameDocID is the games document id of a contract game on a chain.
func GameDocID(id uint64, chainKey string) string {
	return fmt.Sprintf("%d-%s", id, chainKey)
}

// PlayerDataDocID keys a player's private document by their auth signature,
// so only the holder of the signature can find it.
func PlayerDataDocID(authSig string, id uint64) string {
	mac := hmac.New(sha256.New, []byte(authSig))
	mac.Write([]byte(strconv.FormatUint(id, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

type gameHeader struct {
	Schema      models.SchemaVersion `json:"schema,omitempty"`
	ID          uint64               `json:"id"`
	Chain       string               `json:"chain"`
	BoardLength int                  `json:"boardLength"`
	TotalRounds int                  `json:"totalRounds"`
	Player1     string               `json:"player1"`
	Player2     string               `json:"player2,omitempty"`
	Status      models.GameState     `json:"status"`
	Created     int64                `json:"created"`
	UpdateCount int64                `json:"updateCount"`
}

// nestedGameDoc is models.SchemaNested.
type nestedGameDoc struct {
	gameHeader
	Players map[string]*models.PublicPlayerData `json:"players,omitempty"`
}

// flatGameDoc is models.SchemaFlat, also assumed for untagged documents.
type flatGameDoc struct {
	gameHeader
	Player1Moves         []models.Position `json:"player1Moves,omitempty"`
	Player2Moves         []models.Position `json:"player2Moves,omitempty"`
	Player1Hits          []bool            `json:"player1Hits,omitempty"`
	Player2Hits          []bool            `json:"player2Hits,omitempty"`
	Player1RevealedMoves bool              `json:"player1RevealedMoves,omitempty"`
	Player2RevealedMoves bool              `json:"player2RevealedMoves,omitempty"`
	Player1RevealedBoard bool              `json:"player1RevealedBoard,omitempty"`
	Player2RevealedBoard bool              `json:"player2RevealedBoard,omitempty"`
}

type privatePayload struct {
	Ships []models.ShipConfig `json:"ships"`
	Moves []models.Position   `json:"moves"`
}

type playerDataDoc struct {
	Schema      models.SchemaVersion `json:"schema,omitempty"`
	GameID      string               `json:"gameId"`
	Player      string               `json:"player"`
	UpdateCount int64                `json:"updateCount"`

	// models.SchemaFlat
	Ships []models.ShipConfig `json:"ships,omitempty"`
	Moves []models.Position   `json:"moves,omitempty"`

	// models.SchemaNested: Payload when encrypted, Data otherwise.
	Payload *secret.Envelope `json:"payload,omitempty"`
	Data    *privatePayload  `json:"data,omitempty"`
}

func schemaOf(doc docstore.Doc) (models.SchemaVersion, error) {
	var tag struct {
		Schema models.SchemaVersion `json:"schema"`
	}
	if err := docstore.Decode(doc, &tag); err != nil {
		return 0, err
	}
	if tag.Schema == 0 {
		return models.SchemaFlat, nil
	}
	return tag.Schema, nil
}

func (h gameHeader) cloudGame(schema models.SchemaVersion) *models.CloudGame {
	g := &models.CloudGame{
		Schema:      schema,
		ID:          h.ID,
		Chain:       h.Chain,
		BoardLength: h.BoardLength,
		TotalRounds: h.TotalRounds,
		Player1:     h.Player1,
		Player2:     h.Player2,
		Status:      h.Status,
		UpdateCount: h.UpdateCount,
		Players:     map[int]*models.PublicPlayerData{},
	}
	if h.Created > 0 {
		g.Created = time.UnixMilli(h.Created)
	}
	return g
}

// DecodeGame normalizes a games document of any known schema.
func DecodeGame(doc docstore.Doc) (*models.CloudGame, error) {
	schema, err := schemaOf(doc)
	if err != nil {
		return nil, fmt.Errorf("cloud.DecodeGame: %w", err)
	}

	switch schema {
	case models.SchemaFlat:
		var d flatGameDoc
		if err := docstore.Decode(doc, &d); err != nil {
			return nil, fmt.Errorf("cloud.DecodeGame: %w", err)
		}
		g := d.cloudGame(schema)
		p1, p2 := g.Public(1), g.Public(2)
		p1.Moves, p1.Hits = orEmpty(d.Player1Moves), orEmptyBools(d.Player1Hits)
		p2.Moves, p2.Hits = orEmpty(d.Player2Moves), orEmptyBools(d.Player2Hits)
		p1.RevealedMoves, p2.RevealedMoves = d.Player1RevealedMoves, d.Player2RevealedMoves
		p1.RevealedBoard, p2.RevealedBoard = d.Player1RevealedBoard, d.Player2RevealedBoard
		return g, nil

	case models.SchemaNested:
		var d nestedGameDoc
		if err := docstore.Decode(doc, &d); err != nil {
			return nil, fmt.Errorf("cloud.DecodeGame: %w", err)
		}
		g := d.cloudGame(schema)
		for key, p := range d.Players {
			slot, err := strconv.Atoi(key)
			if err != nil || (slot != 1 && slot != 2) || p == nil {
				continue
			}
			p.Moves, p.Hits = orEmpty(p.Moves), orEmptyBools(p.Hits)
			g.Players[slot] = p
		}
		return g, nil
	}
	return nil, fmt.Errorf("cloud.DecodeGame: %w: %d", ErrUnknownSchema, schema)
}

// EncodeGame writes g in the current schema.
func EncodeGame(g *models.CloudGame) (docstore.Doc, error) {
	d := nestedGameDoc{
		gameHeader: gameHeader{
			Schema:      models.CurrentSchema,
			ID:          g.ID,
			Chain:       g.Chain,
			BoardLength: g.BoardLength,
			TotalRounds: g.TotalRounds,
			Player1:     g.Player1,
			Player2:     g.Player2,
			Status:      g.Status,
			Created:     g.Created.UnixMilli(),
			UpdateCount: g.UpdateCount,
		},
		Players: make(map[string]*models.PublicPlayerData, len(g.Players)),
	}
	for slot, p := range g.Players {
		d.Players[strconv.Itoa(slot)] = p
	}
	return docstore.Encode(d)
}

// publicPatch is a merge write of one slot's public fields in the document's
// own schema. It bumps the update counter in the store, so concurrent writers
// never publish the same counter twice.
func publicPatch(schema models.SchemaVersion, slot int, fields map[string]any) docstore.Doc {
	patch := docstore.Doc{"updateCount": docstore.Increment(1)}
	if schema == models.SchemaFlat {
		for k, v := range fields {
			patch[fmt.Sprintf("player%d%s%s", slot, strings.ToUpper(k[:1]), k[1:])] = v
		}
		return patch
	}
	patch["players"] = map[string]any{strconv.Itoa(slot): fields}
	return patch
}

// decodePlayerData normalizes a private document, decrypting with password
// when the payload is encrypted.
func decodePlayerData(doc docstore.Doc, password string) (*models.CloudPlayerData, error) {
	schema, err := schemaOf(doc)
	if err != nil {
		return nil, fmt.Errorf("cloud.decodePlayerData: %w", err)
	}
	var d playerDataDoc
	if err := docstore.Decode(doc, &d); err != nil {
		return nil, fmt.Errorf("cloud.decodePlayerData: %w", err)
	}

	pd := &models.CloudPlayerData{
		Schema:      schema,
		GameID:      d.GameID,
		Player:      d.Player,
		UpdateCount: d.UpdateCount,
	}
	switch schema {
	case models.SchemaFlat:
		pd.Ships, pd.Moves = d.Ships, d.Moves
	case models.SchemaNested:
		payload := d.Data
		if d.Payload != nil {
			payload = &privatePayload{}
			if err := secret.Decrypt(password, d.Payload, payload); err != nil {
				return nil, fmt.Errorf("cloud.decodePlayerData: %w", err)
			}
		}
		if payload != nil {
			pd.Ships, pd.Moves = payload.Ships, payload.Moves
		}
	default:
		return nil, fmt.Errorf("cloud.decodePlayerData: %w: %d", ErrUnknownSchema, schema)
	}
	pd.Ships = models.ApplyColors(pd.Ships)
	pd.Moves = orEmpty(pd.Moves)
	return pd, nil
}

func encodePlayerData(pd *models.CloudPlayerData, password string, encrypt bool) (docstore.Doc, error) {
	d := playerDataDoc{
		Schema:      models.CurrentSchema,
		GameID:      pd.GameID,
		Player:      pd.Player,
		UpdateCount: pd.UpdateCount,
	}
	payload := &privatePayload{Ships: pd.Ships, Moves: orEmpty(pd.Moves)}
	if encrypt {
		env, err := secret.Encrypt(password, payload)
		if err != nil {
			return nil, fmt.Errorf("cloud.encodePlayerData: %w", err)
		}
		d.Payload = env
	} else {
		d.Data = payload
	}
	doc, err := docstore.Encode(d)
	if err != nil {
		return nil, fmt.Errorf("cloud.encodePlayerData: %w", err)
	}
	return doc, nil
}

func orEmpty(p []models.Position) []models.Position {
	if p == nil {
		return []models.Position{}
	}
	return p
}

func orEmptyBools(b []bool) []bool {
	if b == nil {
		return []bool{}
	}
	return b
}
