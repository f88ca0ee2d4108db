package cloud

import (
	"context"
	"fmt"
	"sync"

	"github.com/wojtekolesinski/onchain-battleships/docstore"
	"github.com/wojtekolesinski/onchain-battleships/models"
)

// Accept is the update-counter rule: a snapshot is applied only when its
// counter is strictly greater than the last applied one.
func Accept(lastApplied, incoming int64) bool {
	return incoming > lastApplied
}

// Gate applies Accept to a stream of snapshots of one document.
type Gate struct {
	mu   sync.Mutex
	last int64
}

// Admit reports whether a snapshot with updateCount n should be applied and
// records it if so.
func (g *Gate) Admit(n int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !Accept(g.last, n) {
		return false
	}
	g.last = n
	return true
}

func (g *Gate) Reset() {
	g.mu.Lock()
	g.last = 0
	g.mu.Unlock()
}

// Watcher is a live subscription to one game's document.
type Watcher struct {
	InputID uint64
	once    sync.Once
	unsub   func()
}

// Unsub stops delivery. Safe to call more than once.
func (w *Watcher) Unsub() {
	if w == nil {
		return
	}
	w.once.Do(w.unsub)
}

// WatchGame delivers every decodable version of the game document.
func (c *Client) WatchGame(ctx context.Context, id uint64, fn func(*models.CloudGame)) (*Watcher, error) {
	unsub, err := c.store.Watch(ctx, GamesCollection, c.gameRef(id), func(doc docstore.Doc) {
		g, err := DecodeGame(doc)
		if err != nil {
			c.logger.Warn("WatchGame", "game", id, "err", err)
			return
		}
		fn(g)
	})
	if err != nil {
		return nil, fmt.Errorf("cloud.WatchGame: %w", err)
	}
	return &Watcher{InputID: id, unsub: unsub}, nil
}

// WatchPlayerData delivers every decryptable version of the caller's private
// document.
func (c *Client) WatchPlayerData(ctx context.Context, id uint64, fn func(*models.CloudPlayerData)) (*Watcher, error) {
	unsub, err := c.store.Watch(ctx, PlayerDataCollection, c.playerDataRef(id), func(doc docstore.Doc) {
		pd, err := decodePlayerData(doc, c.identity.AuthSig)
		if err != nil {
			c.logger.Warn("WatchPlayerData", "game", id, "err", err)
			return
		}
		fn(pd)
	})
	if err != nil {
		return nil, fmt.Errorf("cloud.WatchPlayerData: %w", err)
	}
	return &Watcher{InputID: id, unsub: unsub}, nil
}
