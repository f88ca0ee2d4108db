package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojtekolesinski/onchain-battleships/cloud"
	"github.com/wojtekolesinski/onchain-battleships/docstore"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

type fakeContract struct {
	mu    sync.Mutex
	games map[uint64]*models.ContractGame
	err   error
	loads int
}

func (f *fakeContract) set(g *models.ContractGame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.games == nil {
		f.games = make(map[uint64]*models.ContractGame)
	}
	f.games[g.ID] = g
}

func (f *fakeContract) LoadGame(_ context.Context, id uint64) (*models.ContractGame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	g, ok := f.games[id]
	if !ok {
		return nil, errors.New("no such game")
	}
	return g.Clone(), nil
}

type sentHits struct {
	id   uint64
	hits []bool
}

type fakeCloud struct {
	mu   sync.Mutex
	sent []sentHits
}

func (f *fakeCloud) Address() string { return alice }

func (f *fakeCloud) WatchGame(context.Context, uint64, func(*models.CloudGame)) (*cloud.Watcher, error) {
	return nil, nil
}

func (f *fakeCloud) WatchPlayerData(context.Context, uint64, func(*models.CloudPlayerData)) (*cloud.Watcher, error) {
	return nil, nil
}

func (f *fakeCloud) UpdateOpponentHits(_ context.Context, id uint64, hits []bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentHits{id: id, hits: hits})
	return nil
}

func (f *fakeCloud) calls() []sentHits {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentHits(nil), f.sent...)
}

// newIdleTracker builds a tracker without its loop so handlers can be driven
// directly.
func newIdleTracker(cs CloudSource, cc ContractSource) *Tracker {
	return &Tracker{
		cloud:    cs,
		contract: cc,
		account:  cs.Address(),
		poll:     time.Hour,
		logger:   log.Default(),
		in:       &inbox{signal: make(chan struct{}, 1)},
		ctx:      context.Background(),
		cancel:   func() {},
		done:     make(chan struct{}),
		subs:     make(map[int]func(*models.GameData)),
		floor:    models.StateUnknown,
		id:       1,
		active:   true,
	}
}

func TestTracker_GatesStaleSnapshots(t *testing.T) {
	fc := &fakeContract{}
	tr := newIdleTracker(&fakeCloud{}, fc)

	var published []models.GameState
	tr.Subscribe(func(g *models.GameData) { published = append(published, g.Status) })

	tr.onContract(contractEvent{id: 1, g: contractGame(models.StateUnknown)})
	assert.Nil(t, tr.Current())

	tr.onCloudGame(cloudGameEvent{id: 1, g: cloudGame(models.Playing, 3)})
	require.NotNil(t, tr.Current())
	assert.Equal(t, models.Playing, tr.Current().Status)

	tr.onCloudGame(cloudGameEvent{id: 1, g: cloudGame(models.NeedOpponent, 2)})
	tr.onCloudGame(cloudGameEvent{id: 1, g: cloudGame(models.NeedOpponent, 3)})
	assert.Equal(t, models.Playing, tr.Current().Status)
	assert.EqualValues(t, 3, tr.Current().UpdateCount)

	tr.onCloudGame(cloudGameEvent{id: 1, g: cloudGame(models.Playing, 4)})
	assert.EqualValues(t, 4, tr.Current().UpdateCount)
	assert.Equal(t, []models.GameState{models.Playing, models.Playing}, published)
}

func TestTracker_DiscardsOtherGames(t *testing.T) {
	tr := newIdleTracker(&fakeCloud{}, &fakeContract{})
	tr.onContract(contractEvent{id: 1, g: contractGame(models.StateUnknown)})
	tr.onCloudGame(cloudGameEvent{id: 1, g: cloudGame(models.Playing, 1)})

	other := contractGame(models.Ended)
	other.ID = 2
	tr.onContract(contractEvent{id: 2, g: other})
	tr.onCloudGame(cloudGameEvent{id: 2, g: cloudGame(models.Ended, 50)})
	tr.onPlayerData(playerDataEvent{id: 2, pd: privateData(bobShips)})

	g := tr.Current()
	assert.Equal(t, models.Playing, g.Status)
	assert.Empty(t, g.Players[1].Ships)
}

func TestTracker_StatusNeverRegresses(t *testing.T) {
	tr := newIdleTracker(&fakeCloud{}, &fakeContract{})
	tr.onCloudGame(cloudGameEvent{id: 1, g: cloudGame(models.Playing, 1)})
	tr.onContract(contractEvent{id: 1, g: contractGame(models.RevealMoves)})
	assert.Equal(t, models.RevealMoves, tr.Current().Status)

	// a lagging node answers with the older phase
	tr.onContract(contractEvent{id: 1, g: contractGame(models.StateUnknown)})
	assert.Equal(t, models.RevealMoves, tr.Current().Status)
}

func TestTracker_ContractError(t *testing.T) {
	tr := newIdleTracker(&fakeCloud{}, &fakeContract{})
	tr.onCloudGame(cloudGameEvent{id: 1, g: cloudGame(models.Playing, 1)})

	tr.onContract(contractEvent{id: 1, err: errors.New("connection refused")})
	assert.Contains(t, tr.Err(), "Error loading game info from contract")
	assert.Nil(t, tr.Current())

	tr.onContract(contractEvent{id: 1, g: contractGame(models.StateUnknown)})
	assert.Empty(t, tr.Err())
	assert.NotNil(t, tr.Current())
}

func TestTracker_PublishesOpponentHits(t *testing.T) {
	fc := &fakeCloud{}
	tr := newIdleTracker(fc, &fakeContract{})
	tr.onContract(contractEvent{id: 1, g: contractGame(models.StateUnknown)})
	tr.onPlayerData(playerDataEvent{id: 1, pd: privateData(aliceShips)})

	cg := cloudGame(models.Playing, 2)
	cg.Players[2].Moves = []models.Position{{X: 1, Y: 0}}
	tr.onCloudGame(cloudGameEvent{id: 1, g: cg})

	require.Eventually(t, func() bool { return len(fc.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, sentHits{id: 1, hits: []bool{true}}, fc.calls()[0])

	// same verdicts are not sent twice
	tr.onPlayerData(playerDataEvent{id: 1, pd: privateData(aliceShips, models.Position{X: 3, Y: 3})})
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, fc.calls(), 1)
}

func TestTracker_Live(t *testing.T) {
	hub := docstore.NewMemory()
	ctx := context.Background()
	a := cloud.New(hub, "31337", cloud.Identity{Address: alice, AuthSig: "sig-a"}, cloud.WithHitsDebounce(0))
	b := cloud.New(hub, "31337", cloud.Identity{Address: bob, AuthSig: "sig-b"}, cloud.WithHitsDebounce(0))
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.AddNewGame(ctx, 1, 10, 4, aliceShips))
	chain := contractGame(models.NeedOpponent)
	chain.Player2 = ""
	delete(chain.Players, 2)
	fc := &fakeContract{}
	fc.set(chain)

	tr := NewTracker(a, fc, 10*time.Millisecond, nil)
	defer tr.Stop()

	updates := make(chan *models.GameData, 64)
	unsub := tr.Subscribe(func(g *models.GameData) {
		select {
		case updates <- g:
		default:
		}
	})
	defer unsub()

	tr.Watch(1)
	require.Eventually(t, func() bool {
		g := tr.Current()
		return g != nil && g.Status == models.NeedOpponent && len(g.Players[1].Ships) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, tr.Current().CurrentUserIsPlayer)
	assert.NotEmpty(t, updates)

	fc.set(contractGame(models.StateUnknown))
	require.NoError(t, b.JoinGame(ctx, 1, bobShips))
	require.NoError(t, b.PlayMove(ctx, 1, models.Position{X: 5, Y: 6}))

	require.Eventually(t, func() bool {
		g, err := b.LoadGame(ctx, 1)
		return err == nil && len(g.Players[2].Hits) == 1
	}, 2*time.Second, 5*time.Millisecond)
	g, err := b.LoadGame(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, g.Players[2].Hits)

	require.Eventually(t, func() bool {
		g := tr.Current()
		return g != nil && g.Status == models.Playing && len(g.Players[2].Hits) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, bob, tr.Current().Player2)
}
