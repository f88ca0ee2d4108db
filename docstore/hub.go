package docstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Backend persists documents. It does not notify anyone; Hub does.
type Backend interface {
	Load(ctx context.Context, collection, id string) (Doc, error)
	Save(ctx context.Context, collection, id string, doc Doc) error
	List(ctx context.Context, collection string) ([]Doc, error)
	// Purge removes documents last written before the given time.
	Purge(ctx context.Context, collection string, before time.Time) (int64, error)
	Close() error
}

type docKey struct {
	collection string
	id         string
}

// Hub is a Store over a Backend. Writes are read-merge-write under one lock,
// so concurrent Increment writes all count. Every stored version is fanned
// out to the watchers of that document.
type Hub struct {
	backend Backend

	writeMu sync.Mutex

	subsMu sync.RWMutex
	subs   map[docKey]map[uint64]func(Doc)
	nextID uint64
}

func NewHub(backend Backend) *Hub {
	return &Hub{
		backend: backend,
		subs:    make(map[docKey]map[uint64]func(Doc)),
	}
}

// NewMemory returns a Hub over an in-process backend.
func NewMemory() *Hub {
	return NewHub(newMemBackend())
}

func (h *Hub) Get(ctx context.Context, collection, id string) (Doc, error) {
	return h.backend.Load(ctx, collection, id)
}

func (h *Hub) Set(ctx context.Context, collection, id string, doc Doc, merge bool) error {
	h.writeMu.Lock()
	next := doc.Clone()
	if merge {
		current, err := h.backend.Load(ctx, collection, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			h.writeMu.Unlock()
			return err
		}
		next = Merge(current, next)
	} else {
		next = Merge(Doc{}, next)
	}
	if err := h.backend.Save(ctx, collection, id, next); err != nil {
		h.writeMu.Unlock()
		return err
	}
	h.writeMu.Unlock()

	h.notify(docKey{collection, id}, next)
	return nil
}

func (h *Hub) Watch(ctx context.Context, collection, id string, fn func(Doc)) (func(), error) {
	key := docKey{collection, id}

	h.subsMu.Lock()
	h.nextID++
	subID := h.nextID
	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]func(Doc))
	}
	h.subs[key][subID] = fn
	h.subsMu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.subsMu.Lock()
			delete(h.subs[key], subID)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			h.subsMu.Unlock()
		})
	}

	current, err := h.backend.Load(ctx, collection, id)
	switch {
	case err == nil:
		fn(current.Clone())
	case !errors.Is(err, ErrNotFound):
		unsub()
		return nil, err
	}
	return unsub, nil
}

func (h *Hub) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	docs, err := h.backend.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return q.Apply(docs), nil
}

func (h *Hub) Purge(ctx context.Context, collection string, before time.Time) (int64, error) {
	return h.backend.Purge(ctx, collection, before)
}

// Watchers returns the number of live subscriptions.
func (h *Hub) Watchers() int {
	h.subsMu.RLock()
	defer h.subsMu.RUnlock()
	n := 0
	for _, s := range h.subs {
		n += len(s)
	}
	return n
}

func (h *Hub) Close() error {
	return h.backend.Close()
}

func (h *Hub) notify(key docKey, doc Doc) {
	h.subsMu.RLock()
	fns := make([]func(Doc), 0, len(h.subs[key]))
	for _, fn := range h.subs[key] {
		fns = append(fns, fn)
	}
	h.subsMu.RUnlock()

	log.Debug("docstore [notify]", "collection", key.collection, "id", key.id, "watchers", len(fns))
	for _, fn := range fns {
		fn(doc.Clone())
	}
}
