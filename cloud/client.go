// Package cloud keeps the fast, non-authoritative copy of a game in the relay
// document store: the shared game document and each player's private one.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/wojtekolesinski/onchain-battleships/docstore"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

var (
	ErrMustBePlayer  = errors.New("must be a player")
	ErrNotPlayState  = errors.New("game not in play state")
	ErrWrongState    = errors.New("game not in correct state")
	ErrTooManyMoves  = errors.New("too many moves")
	ErrInvalidMove   = errors.New("invalid move")
	ErrHitsMismatch  = errors.New("hits array length mismatch")
	ErrMovesMismatch = errors.New("moves array length mismatch")
	ErrAlreadyJoined = errors.New("game already has a second player")
	ErrGameNotFound  = errors.New("game not found")
)

const (
	DefaultHitsDebounce = 2 * time.Second
	listLimit           = 50
	flushTimeout        = 15 * time.Second
)

// Identity is the connected wallet. AuthSig is its signature over the auth
// message; it keys and encrypts the private documents.
type Identity struct {
	Address string
	AuthSig string
}

type Option func(*Client)

// WithHitsDebounce sets how long UpdateOpponentHits waits for more hits
// before writing. Zero or less writes immediately.
func WithHitsDebounce(d time.Duration) Option {
	return func(c *Client) { c.debounce = d }
}

// WithEncryption toggles encryption of the private payload.
func WithEncryption(on bool) Option {
	return func(c *Client) { c.encrypt = on }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

type pendingHits struct {
	timer *time.Timer
	hits  []bool
}

type Client struct {
	store    docstore.Store
	chainKey string
	identity Identity

	debounce time.Duration
	encrypt  bool
	logger   *log.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[uint64]*pendingHits
	closed  bool
	flushes sync.WaitGroup
}

func New(store docstore.Store, chainKey string, identity Identity, opts ...Option) *Client {
	c := &Client{
		store:    store,
		chainKey: chainKey,
		identity: identity,
		debounce: DefaultHitsDebounce,
		encrypt:  true,
		logger:   log.Default(),
		now:      time.Now,
		pending:  make(map[uint64]*pendingHits),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithPrefix("cloud")
	return c
}

func (c *Client) Address() string { return c.identity.Address }

func (c *Client) gameRef(id uint64) string { return GameDocID(id, c.chainKey) }

func (c *Client) playerDataRef(id uint64) string {
	return PlayerDataDocID(c.identity.AuthSig, id)
}

// LoadGame reads the shared game document.
func (c *Client) LoadGame(ctx context.Context, id uint64) (*models.CloudGame, error) {
	doc, err := c.store.Get(ctx, GamesCollection, c.gameRef(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("cloud.LoadGame: %w", ErrGameNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cloud.LoadGame: %w", err)
	}
	return DecodeGame(doc)
}

// LoadPlayerData reads and decrypts the caller's private document.
func (c *Client) LoadPlayerData(ctx context.Context, id uint64) (*models.CloudPlayerData, error) {
	doc, err := c.store.Get(ctx, PlayerDataCollection, c.playerDataRef(id))
	if err != nil {
		return nil, fmt.Errorf("cloud.LoadPlayerData: %w", err)
	}
	return decodePlayerData(doc, c.identity.AuthSig)
}

func (c *Client) AddNewGame(ctx context.Context, id uint64, boardLength, totalRounds int, ships []models.ShipConfig) error {
	g := &models.CloudGame{
		Schema:      models.CurrentSchema,
		ID:          id,
		Chain:       c.chainKey,
		BoardLength: boardLength,
		TotalRounds: totalRounds,
		Player1:     c.identity.Address,
		Status:      models.NeedOpponent,
		Created:     c.now(),
		UpdateCount: 1,
	}
	g.Public(1)

	pd := &models.CloudPlayerData{
		GameID:      c.gameRef(id),
		Player:      c.identity.Address,
		Ships:       ships,
		Moves:       []models.Position{},
		UpdateCount: 1,
	}

	doc, err := EncodeGame(g)
	if err != nil {
		return fmt.Errorf("cloud.AddNewGame: %w", err)
	}
	if err := c.writeBoth(ctx, id, doc, false, pd); err != nil {
		return fmt.Errorf("cloud.AddNewGame: %w", err)
	}
	c.logger.Info("AddNewGame", "game", id, "board", boardLength, "rounds", totalRounds)
	return nil
}

// JoinGame records the caller as player 2. Rejoining by the same address is
// allowed; a different second player is not.
func (c *Client) JoinGame(ctx context.Context, id uint64, ships []models.ShipConfig) error {
	g, err := c.LoadGame(ctx, id)
	if err != nil {
		return fmt.Errorf("cloud.JoinGame: %w", err)
	}
	if g.Player2 != "" && !models.SameAddress(g.Player2, c.identity.Address) {
		return fmt.Errorf("cloud.JoinGame: %w", ErrAlreadyJoined)
	}

	fields := map[string]any{}
	if g.Players[2] == nil {
		fields["moves"] = []models.Position{}
		fields["hits"] = []bool{}
	}
	patch := publicPatch(g.Schema, 2, fields)
	patch["player2"] = c.identity.Address
	if g.Status == models.NeedOpponent {
		patch["status"] = models.Playing.String()
	}

	pd := &models.CloudPlayerData{
		GameID:      c.gameRef(id),
		Player:      c.identity.Address,
		Ships:       ships,
		Moves:       []models.Position{},
		UpdateCount: 1,
	}

	if err := c.writeBoth(ctx, id, patch, true, pd); err != nil {
		return fmt.Errorf("cloud.JoinGame: %w", err)
	}
	c.logger.Info("JoinGame", "game", id)
	return nil
}

// UpdateOpponentHits publishes the caller's verdicts for the opponent's
// moves. Calls within the debounce window for the same game collapse into
// one write of the latest hits; errors of delayed writes are logged.
func (c *Client) UpdateOpponentHits(ctx context.Context, id uint64, hits []bool) error {
	if c.debounce <= 0 {
		return c.writeOpponentHits(ctx, id, hits)
	}

	hits = append([]bool(nil), hits...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if p, ok := c.pending[id]; ok {
		p.hits = hits
		// a fired timer whose flush has not run yet picks up the new hits
		if p.timer.Stop() {
			p.timer.Reset(c.debounce)
		}
		return nil
	}
	p := &pendingHits{hits: hits}
	c.flushes.Add(1)
	p.timer = time.AfterFunc(c.debounce, func() { c.flushHits(id, p) })
	c.pending[id] = p
	return nil
}

func (c *Client) flushHits(id uint64, p *pendingHits) {
	defer c.flushes.Done()

	c.mu.Lock()
	if c.pending[id] != p {
		c.mu.Unlock()
		return
	}
	delete(c.pending, id)
	hits := p.hits
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := c.writeOpponentHits(ctx, id, hits); err != nil {
		c.logger.Warn("UpdateOpponentHits", "game", id, "err", err)
	}
}

func (c *Client) writeOpponentHits(ctx context.Context, id uint64, hits []bool) error {
	g, err := c.LoadGame(ctx, id)
	if err != nil {
		return fmt.Errorf("cloud.UpdateOpponentHits: %w", err)
	}
	slot := g.Slot(c.identity.Address)
	if slot == 0 {
		return fmt.Errorf("cloud.UpdateOpponentHits: %w", ErrMustBePlayer)
	}
	oppSlot := models.Opponent(slot)
	opp := g.Public(oppSlot)
	if len(hits) != len(opp.Moves) {
		return fmt.Errorf("cloud.UpdateOpponentHits: %w: %d != %d", ErrHitsMismatch, len(hits), len(opp.Moves))
	}

	patch := publicPatch(g.Schema, oppSlot, map[string]any{"hits": hits})
	if err := c.patchGame(ctx, id, patch); err != nil {
		return fmt.Errorf("cloud.UpdateOpponentHits: %w", err)
	}
	c.logger.Debug("UpdateOpponentHits", "game", id, "hits", len(hits))
	return nil
}

// Reveal sets the caller's reveal flag for the current reveal phase and
// advances the phase once both players have set theirs. Only the caller's
// own flag is written.
func (c *Client) Reveal(ctx context.Context, id uint64) error {
	g, err := c.LoadGame(ctx, id)
	if err != nil {
		return fmt.Errorf("cloud.Reveal: %w", err)
	}
	slot := g.Slot(c.identity.Address)
	if slot == 0 {
		return fmt.Errorf("cloud.Reveal: %w", ErrMustBePlayer)
	}

	var (
		field string
		next  models.GameState
		done  func(*models.PublicPlayerData) bool
	)
	switch g.Status {
	case models.RevealMoves:
		field, next = "revealedMoves", models.RevealBoard
		done = func(p *models.PublicPlayerData) bool { return p.RevealedMoves }
	case models.RevealBoard:
		field, next = "revealedBoard", models.Ended
		done = func(p *models.PublicPlayerData) bool { return p.RevealedBoard }
	default:
		return fmt.Errorf("cloud.Reveal: %w: %s", ErrWrongState, g.Status)
	}

	patch := publicPatch(g.Schema, slot, map[string]any{field: true})
	status := g.Status
	if done(g.Public(models.Opponent(slot))) {
		patch["status"] = next.String()
		status = next
	}
	if err := c.patchGame(ctx, id, patch); err != nil {
		return fmt.Errorf("cloud.Reveal: %w", err)
	}

	// the opponent may have revealed after our read
	if status != next {
		advanced, err := c.advance(ctx, id, g.Status, next, func(g *models.CloudGame) bool {
			return done(g.Public(1)) && done(g.Public(2))
		})
		if err != nil {
			return fmt.Errorf("cloud.Reveal: %w", err)
		}
		if advanced {
			status = next
		}
	}
	c.logger.Info("Reveal", "game", id, "status", status)
	return nil
}

// PlayMove appends pos to the caller's private and public move lists.
func (c *Client) PlayMove(ctx context.Context, id uint64, pos models.Position) error {
	g, err := c.LoadGame(ctx, id)
	if err != nil {
		return fmt.Errorf("cloud.PlayMove: %w", err)
	}
	slot := g.Slot(c.identity.Address)
	if slot == 0 {
		return fmt.Errorf("cloud.PlayMove: %w", ErrMustBePlayer)
	}
	if g.Status != models.Playing {
		return fmt.Errorf("cloud.PlayMove: %w", ErrNotPlayState)
	}
	if pos.X < 0 || pos.Y < 0 || pos.X >= g.BoardLength || pos.Y >= g.BoardLength {
		return fmt.Errorf("cloud.PlayMove: %w: %+v off board", ErrInvalidMove, pos)
	}

	pd, err := c.LoadPlayerData(ctx, id)
	if err != nil {
		return fmt.Errorf("cloud.PlayMove: %w", err)
	}
	own := g.Public(slot)
	if len(pd.Moves) != len(own.Moves) {
		return fmt.Errorf("cloud.PlayMove: %w: %d != %d", ErrMovesMismatch, len(pd.Moves), len(own.Moves))
	}
	for _, m := range pd.Moves {
		if m == pos {
			return fmt.Errorf("cloud.PlayMove: %w: %+v already played", ErrInvalidMove, pos)
		}
	}
	if len(pd.Moves)+1 > g.TotalRounds {
		return fmt.Errorf("cloud.PlayMove: %w", ErrTooManyMoves)
	}

	pd.Moves = append(pd.Moves, pos)
	pd.UpdateCount++

	// only the caller's own moves are written; the opponent's fields stay
	// whatever the store holds by now
	moves := append(slices.Clone(own.Moves), pos)
	patch := publicPatch(g.Schema, slot, map[string]any{"moves": moves})
	last := len(moves) == g.TotalRounds
	advanced := last && len(g.Public(models.Opponent(slot)).Moves) == g.TotalRounds
	if advanced {
		patch["status"] = models.RevealMoves.String()
	}

	if err := c.writeBoth(ctx, id, patch, true, pd); err != nil {
		return fmt.Errorf("cloud.PlayMove: %w", err)
	}
	// the opponent may have played their last move after our read
	if last && !advanced {
		bothDone := func(g *models.CloudGame) bool {
			return len(g.Public(1).Moves) == g.TotalRounds && len(g.Public(2).Moves) == g.TotalRounds
		}
		if _, err := c.advance(ctx, id, models.Playing, models.RevealMoves, bothDone); err != nil {
			return fmt.Errorf("cloud.PlayMove: %w", err)
		}
	}
	c.logger.Debug("PlayMove", "game", id, "pos", pos, "round", len(pd.Moves))
	return nil
}

// ListGames returns the unfinished games on this chain, newest first.
func (c *Client) ListGames(ctx context.Context) ([]*models.CloudGame, error) {
	docs, err := c.store.Query(ctx, GamesCollection, docstore.Query{
		Where: []docstore.Filter{
			{Field: "chain", Op: docstore.OpEq, Value: c.chainKey},
			{Field: "status", Op: docstore.OpNe, Value: models.Ended.String()},
		},
		OrderBy: "created",
		Desc:    true,
		Limit:   listLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("cloud.ListGames: %w", err)
	}
	games := make([]*models.CloudGame, 0, len(docs))
	for _, d := range docs {
		g, err := DecodeGame(d)
		if err != nil {
			c.logger.Warn("ListGames skipping document", "err", err)
			continue
		}
		games = append(games, g)
	}
	return games, nil
}

// Close cancels pending debounced writes.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	for id, p := range c.pending {
		if p.timer.Stop() {
			c.flushes.Done()
		}
		delete(c.pending, id)
	}
	c.mu.Unlock()
	c.flushes.Wait()
}

func (c *Client) patchGame(ctx context.Context, id uint64, patch docstore.Doc) error {
	return c.store.Set(ctx, GamesCollection, c.gameRef(id), patch, true)
}

// advance moves the game from one phase to the next when ready holds on a
// fresh read. It reports whether it wrote the new status.
func (c *Client) advance(ctx context.Context, id uint64, from, to models.GameState, ready func(*models.CloudGame) bool) (bool, error) {
	g, err := c.LoadGame(ctx, id)
	if err != nil {
		return false, err
	}
	if g.Status != from || !ready(g) {
		return false, nil
	}
	patch := docstore.Doc{
		"status":      to.String(),
		"updateCount": docstore.Increment(1),
	}
	if err := c.patchGame(ctx, id, patch); err != nil {
		return false, err
	}
	c.logger.Debug("advance", "game", id, "status", to)
	return true, nil
}

func (c *Client) writePlayerData(ctx context.Context, id uint64, pd *models.CloudPlayerData) error {
	doc, err := encodePlayerData(pd, c.identity.AuthSig, c.encrypt)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, PlayerDataCollection, c.playerDataRef(id), doc, false)
}

// writeBoth writes the game document and the private one concurrently.
func (c *Client) writeBoth(ctx context.Context, id uint64, game docstore.Doc, merge bool, pd *models.CloudPlayerData) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return c.store.Set(ctx, GamesCollection, c.gameRef(id), game, merge)
	})
	eg.Go(func() error {
		return c.writePlayerData(ctx, id, pd)
	})
	return eg.Wait()
}
