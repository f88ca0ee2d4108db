package game

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wojtekolesinski/onchain-battleships/cloud"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

const DefaultPollInterval = 5 * time.Second

// CloudSource is the part of the relay client the tracker needs.
type CloudSource interface {
	Address() string
	WatchGame(ctx context.Context, id uint64, fn func(*models.CloudGame)) (*cloud.Watcher, error)
	WatchPlayerData(ctx context.Context, id uint64, fn func(*models.CloudPlayerData)) (*cloud.Watcher, error)
	UpdateOpponentHits(ctx context.Context, id uint64, hits []bool) error
}

// ContractSource loads the on-chain projection of a game.
type ContractSource interface {
	LoadGame(ctx context.Context, id uint64) (*models.ContractGame, error)
}

type event any

type watchEvent struct{ id uint64 }

type cloudGameEvent struct {
	id uint64
	g  *models.CloudGame
}

type playerDataEvent struct {
	id uint64
	pd *models.CloudPlayerData
}

type contractEvent struct {
	id  uint64
	g   *models.ContractGame
	err error
}

// inbox never blocks the sender. Relay callbacks may fire while the loop is
// itself inside Watch.
type inbox struct {
	mu     sync.Mutex
	items  []event
	signal chan struct{}
}

func (b *inbox) push(e event) {
	b.mu.Lock()
	b.items = append(b.items, e)
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *inbox) drain() []event {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}

// Tracker observes one game at a time and publishes a merged GameData on
// every change. All events are handled by a single goroutine.
type Tracker struct {
	cloud    CloudSource
	contract ContractSource
	account  string
	poll     time.Duration
	logger   *log.Logger

	in     *inbox
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.RWMutex
	current *models.GameData
	err     string
	subs    map[int]func(*models.GameData)
	nextSub int

	// owned by the loop goroutine
	id          uint64
	active      bool
	gameW       *cloud.Watcher
	pdW         *cloud.Watcher
	gameGate    cloud.Gate
	pdGate      cloud.Gate
	cloudGame   *models.CloudGame
	playerData  *models.CloudPlayerData
	chainGame   *models.ContractGame
	floor       models.GameState
	loading     bool
	reloadAgain bool
	sentHits    []bool
}

// NewTracker starts the tracker loop. Nothing is observed until Watch.
func NewTracker(cs CloudSource, contract ContractSource, poll time.Duration, logger *log.Logger) *Tracker {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		cloud:    cs,
		contract: contract,
		account:  cs.Address(),
		poll:     poll,
		logger:   logger.WithPrefix("tracker"),
		in:       &inbox{signal: make(chan struct{}, 1)},
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		subs:     make(map[int]func(*models.GameData)),
		floor:    models.StateUnknown,
	}
	go t.loop()
	return t
}

// Watch switches the tracker to game id. Events still in flight for the
// previous game are discarded.
func (t *Tracker) Watch(id uint64) {
	t.in.push(watchEvent{id: id})
}

// Subscribe registers fn for every published GameData. Snapshots are shared
// between subscribers and must not be modified.
func (t *Tracker) Subscribe(fn func(*models.GameData)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextSub++
	key := t.nextSub
	t.subs[key] = fn
	return func() {
		t.mu.Lock()
		delete(t.subs, key)
		t.mu.Unlock()
	}
}

// Current returns the last published snapshot, or nil while loading.
func (t *Tracker) Current() *models.GameData {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Err returns the last contract load failure, cleared by the next success.
func (t *Tracker) Err() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Stop ends the loop and releases the relay subscriptions.
func (t *Tracker) Stop() {
	t.cancel()
	<-t.done
}

func (t *Tracker) loop() {
	defer close(t.done)
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()
	defer t.unwatch()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.in.signal:
			for _, e := range t.in.drain() {
				t.handle(e)
			}
		case <-ticker.C:
			if t.active {
				t.reload()
			}
		}
	}
}

func (t *Tracker) handle(e event) {
	switch e := e.(type) {
	case watchEvent:
		t.watch(e.id)
	case cloudGameEvent:
		t.onCloudGame(e)
	case playerDataEvent:
		t.onPlayerData(e)
	case contractEvent:
		t.onContract(e)
	}
}

func (t *Tracker) unwatch() {
	t.gameW.Unsub()
	t.pdW.Unsub()
	t.gameW, t.pdW = nil, nil
}

func (t *Tracker) watch(id uint64) {
	t.unwatch()
	t.id = id
	t.active = true
	t.gameGate.Reset()
	t.pdGate.Reset()
	t.cloudGame, t.playerData, t.chainGame = nil, nil, nil
	t.floor = models.StateUnknown
	t.sentHits = nil
	t.setErr("")
	t.publish(nil)

	t.logger.Debug("game [watch]", "game", id)

	gw, err := t.cloud.WatchGame(t.ctx, id, func(g *models.CloudGame) {
		t.in.push(cloudGameEvent{id: id, g: g})
	})
	if err != nil {
		t.logger.Error("game [watch]", "game", id, "err", err)
	}
	t.gameW = gw

	pw, err := t.cloud.WatchPlayerData(t.ctx, id, func(pd *models.CloudPlayerData) {
		t.in.push(playerDataEvent{id: id, pd: pd})
	})
	if err != nil {
		t.logger.Error("game [watch]", "game", id, "err", err)
	}
	t.pdW = pw

	t.reload()
}

// reload fetches the contract projection off the loop. At most one load is
// in flight; a request during a load schedules one more.
func (t *Tracker) reload() {
	if t.loading {
		t.reloadAgain = true
		return
	}
	t.loading = true
	id := t.id
	go func() {
		g, err := t.contract.LoadGame(t.ctx, id)
		t.in.push(contractEvent{id: id, g: g, err: err})
	}()
}

func (t *Tracker) onCloudGame(e cloudGameEvent) {
	if e.id != t.id {
		return
	}
	if !t.gameGate.Admit(e.g.UpdateCount) {
		t.logger.Debug("game [onCloudGame] stale snapshot", "game", e.id, "updateCount", e.g.UpdateCount)
		return
	}

	prev := models.StateUnknown
	if t.cloudGame != nil {
		prev = t.cloudGame.Status
	}
	t.cloudGame = e.g

	gotOpponent := prev == models.NeedOpponent && e.g.Status == models.Playing
	playingOver := e.g.Status >= models.RevealMoves && e.g.Status != prev
	if gotOpponent || playingOver {
		t.reload()
	}
	t.recompute()
}

func (t *Tracker) onPlayerData(e playerDataEvent) {
	if e.id != t.id {
		return
	}
	if !t.pdGate.Admit(e.pd.UpdateCount) {
		return
	}
	t.playerData = e.pd
	t.recompute()
}

func (t *Tracker) onContract(e contractEvent) {
	t.loading = false
	defer func() {
		if t.reloadAgain {
			t.reloadAgain = false
			t.reload()
		}
	}()
	if e.id != t.id {
		return
	}
	if e.err != nil {
		t.logger.Warn("game [onContract]", "game", e.id, "err", e.err)
		t.setErr(fmt.Sprintf("Error loading game info from contract: %v", e.err))
		return
	}
	t.chainGame = e.g
	t.setErr("")
	t.recompute()
}

func (t *Tracker) recompute() {
	merged := Merge(t.cloudGame, t.playerData, t.chainGame, t.account)
	if merged == nil {
		return
	}
	t.floor = t.floor.Max(merged.Status)
	merged.Status = t.floor
	t.publish(merged)

	hits, ok := OpponentHits(merged, t.cloudGame)
	if !ok || slices.Equal(hits, t.sentHits) {
		return
	}
	t.sentHits = hits
	id := t.id
	go func() {
		if err := t.cloud.UpdateOpponentHits(t.ctx, id, hits); err != nil {
			t.logger.Warn("game [UpdateOpponentHits]", "game", id, "err", err)
		}
	}()
}

func (t *Tracker) setErr(msg string) {
	t.mu.Lock()
	t.err = msg
	t.mu.Unlock()
}

func (t *Tracker) publish(g *models.GameData) {
	t.mu.Lock()
	t.current = g
	subs := make([]func(*models.GameData), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	if g == nil {
		return
	}
	for _, fn := range subs {
		fn(g)
	}
}
