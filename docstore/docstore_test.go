package docstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_Nested(t *testing.T) {
	dst := Doc{
		"status":  "PLAYING",
		"players": map[string]any{"1": map[string]any{"moves": []any{1}, "hits": []any{true}}},
	}
	src := Doc{
		"updateCount": 3,
		"players":     map[string]any{"1": map[string]any{"moves": []any{1, 2}}, "2": map[string]any{"moves": []any{}}},
	}

	out := Merge(dst, src)
	assert.Equal(t, "PLAYING", out["status"])
	assert.Equal(t, 3, out["updateCount"])
	p1 := out["players"].(map[string]any)["1"].(map[string]any)
	assert.Equal(t, []any{1, 2}, p1["moves"])
	assert.Equal(t, []any{true}, p1["hits"])
	assert.Contains(t, out["players"], "2")
}

func TestMerge_Increment(t *testing.T) {
	out := Merge(Doc{"updateCount": 4.0}, Doc{
		"updateCount": Increment(1),
		"fresh":       Increment(2),
		"players":     map[string]any{"1": map[string]any{"n": Increment(3)}},
	})
	assert.Equal(t, 5.0, out["updateCount"])
	assert.Equal(t, 2.0, out["fresh"])
	assert.Equal(t, 3.0, out["players"].(map[string]any)["1"].(map[string]any)["n"])

	// a map that merely contains the marker is a plain value
	out = Merge(Doc{}, Doc{"m": map[string]any{IncrementKey: 1, "x": 2}})
	assert.Len(t, out["m"], 2)
}

func TestHub_ConcurrentIncrements(t *testing.T) {
	hub := NewMemory()
	ctx := context.Background()
	require.NoError(t, hub.Set(ctx, "c", "id", Doc{"updateCount": 1}, false))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, hub.Set(ctx, "c", "id", Doc{"updateCount": Increment(1)}, true))
		}()
	}
	wg.Wait()

	doc, err := hub.Get(ctx, "c", "id")
	require.NoError(t, err)
	assert.Equal(t, 21.0, doc["updateCount"])

	// replace writes count from zero
	require.NoError(t, hub.Set(ctx, "c", "id", Doc{"updateCount": Increment(1)}, false))
	doc, err = hub.Get(ctx, "c", "id")
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc["updateCount"])
}

func TestQuery_Apply(t *testing.T) {
	docs := []Doc{
		{"id": 1.0, "chain": "a", "status": "ENDED"},
		{"id": 2.0, "chain": "a", "status": "PLAYING"},
		{"id": 3.0, "chain": "b", "status": "PLAYING"},
		{"id": 4.0, "chain": "a", "status": "NEED_OPPONENT"},
	}
	q := Query{
		Where: []Filter{
			{Field: "chain", Op: OpEq, Value: "a"},
			{Field: "status", Op: OpNe, Value: "ENDED"},
		},
		OrderBy: "id",
		Desc:    true,
		Limit:   5,
	}
	out := q.Apply(docs)
	require.Len(t, out, 2)
	assert.Equal(t, 4.0, out[0]["id"])
	assert.Equal(t, 2.0, out[1]["id"])

	q.Limit = 1
	assert.Len(t, q.Apply(docs), 1)
}

func TestEncodeDecode(t *testing.T) {
	type game struct {
		ID    int    `json:"id"`
		Chain string `json:"chain"`
	}
	d, err := Encode(game{ID: 7, Chain: "x"})
	require.NoError(t, err)
	assert.Equal(t, 7.0, d["id"])

	var g game
	require.NoError(t, Decode(d, &g))
	assert.Equal(t, game{ID: 7, Chain: "x"}, g)
}

func testHub(t *testing.T, hub *Hub) {
	ctx := context.Background()

	_, err := hub.Get(ctx, "games", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	var mu sync.Mutex
	var seen []Doc
	unsub, err := hub.Watch(ctx, "games", "g1", func(d Doc) {
		mu.Lock()
		seen = append(seen, d)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, hub.Set(ctx, "games", "g1", Doc{"a": 1, "nested": map[string]any{"x": 1}}, false))
	require.NoError(t, hub.Set(ctx, "games", "g1", Doc{"b": 2, "nested": map[string]any{"y": 2}}, true))

	got, err := hub.Get(ctx, "games", "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got["a"])
	assert.EqualValues(t, 2, got["b"])
	assert.EqualValues(t, 1, got["nested"].(map[string]any)["x"])
	assert.EqualValues(t, 2, got["nested"].(map[string]any)["y"])

	require.NoError(t, hub.Set(ctx, "games", "g1", Doc{"c": 3}, false))
	got, err = hub.Get(ctx, "games", "g1")
	require.NoError(t, err)
	assert.NotContains(t, got, "a")

	mu.Lock()
	assert.Len(t, seen, 3)
	mu.Unlock()

	unsub()
	unsub()
	require.NoError(t, hub.Set(ctx, "games", "g1", Doc{"d": 4}, true))
	mu.Lock()
	assert.Len(t, seen, 3)
	mu.Unlock()
	assert.Zero(t, hub.Watchers())

	// existing document is delivered on subscribe
	delivered := 0
	unsub, err = hub.Watch(ctx, "games", "g1", func(Doc) { delivered++ })
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	unsub()

	require.NoError(t, hub.Set(ctx, "games", "g2", Doc{"n": 2}, false))
	docs, err := hub.Query(ctx, "games", Query{OrderBy: "n"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	n, err := hub.Purge(ctx, "games", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = hub.Purge(ctx, "games", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	docs, err = hub.Query(ctx, "games", Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestHub_Memory(t *testing.T) {
	hub := NewMemory()
	defer hub.Close()
	testHub(t, hub)
}

func TestHub_SQLite(t *testing.T) {
	backend, err := OpenSQLite(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	hub := NewHub(backend)
	defer hub.Close()
	testHub(t, hub)
}

func TestHub_WatcherSeesEveryWrite(t *testing.T) {
	hub := NewMemory()
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	unsub, err := hub.Watch(ctx, "c", "id", func(Doc) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer unsub()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, hub.Set(ctx, "c", "id", Doc{"n": i}, true))
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}
