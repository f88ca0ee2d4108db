package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojtekolesinski/onchain-battleships/docstore"
)

func startRelay(t *testing.T) (*docstore.Hub, *docstore.Remote) {
	t.Helper()
	hub := docstore.NewMemory()
	srv := httptest.NewServer(NewServer(hub, nil).Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	remote, err := docstore.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	require.NoError(t, err)
	t.Cleanup(func() { remote.Close() })
	return hub, remote
}

func TestRelay_GetSetQuery(t *testing.T) {
	_, remote := startRelay(t)
	ctx := context.Background()

	_, err := remote.Get(ctx, "games", "1-31337")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, remote.Set(ctx, "games", "1-31337", docstore.Doc{"id": 1, "chain": "31337", "players": map[string]any{"1": map[string]any{"moves": []any{}}}}, false))
	require.NoError(t, remote.Set(ctx, "games", "1-31337", docstore.Doc{"players": map[string]any{"2": map[string]any{"moves": []any{}}}}, true))
	require.NoError(t, remote.Set(ctx, "games", "2-31337", docstore.Doc{"id": 2, "chain": "31337"}, false))
	require.NoError(t, remote.Set(ctx, "games", "1-1", docstore.Doc{"id": 1, "chain": "1"}, false))

	doc, err := remote.Get(ctx, "games", "1-31337")
	require.NoError(t, err)
	players := doc["players"].(map[string]any)
	assert.Contains(t, players, "1")
	assert.Contains(t, players, "2")

	docs, err := remote.Query(ctx, "games", docstore.Query{
		Where:   []docstore.Filter{{Field: "chain", Op: docstore.OpEq, Value: "31337"}},
		OrderBy: "id",
		Desc:    true,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.EqualValues(t, 2, docs[0]["id"])
	assert.EqualValues(t, 1, docs[1]["id"])
}

func TestRelay_Watch(t *testing.T) {
	hub, remote := startRelay(t)
	ctx := context.Background()

	require.NoError(t, hub.Set(ctx, "games", "g", docstore.Doc{"updateCount": 1}, false))

	got := make(chan docstore.Doc, 8)
	unsub, err := remote.Watch(ctx, "games", "g", func(d docstore.Doc) { got <- d })
	require.NoError(t, err)

	first := <-got
	assert.EqualValues(t, 1, first["updateCount"])

	require.NoError(t, hub.Set(ctx, "games", "g", docstore.Doc{"updateCount": 2}, true))
	select {
	case d := <-got:
		assert.EqualValues(t, 2, d["updateCount"])
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot after write")
	}

	unsub()
	require.Eventually(t, func() bool { return hub.Watchers() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestRelay_Health(t *testing.T) {
	srv := httptest.NewServer(NewServer(docstore.NewMemory(), nil).Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestScheduler_Cleanup(t *testing.T) {
	hub := docstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, hub.Set(ctx, "games", "old", docstore.Doc{"id": 1}, false))
	require.NoError(t, hub.Set(ctx, "playerData", "old", docstore.Doc{"id": 1}, false))

	kept := NewScheduler(hub, time.Hour, nil)
	n, err := kept.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	purged := NewScheduler(hub, -time.Hour, nil)
	n, err = purged.Cleanup(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = hub.Get(ctx, "games", "old")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
