package docstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	doc       Doc
	updatedAt time.Time
}

type memBackend struct {
	mu   sync.RWMutex
	docs map[docKey]memEntry
}

func newMemBackend() *memBackend {
	return &memBackend{docs: make(map[docKey]memEntry)}
}

func (m *memBackend) Load(_ context.Context, collection, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.docs[docKey{collection, id}]
	if !ok {
		return nil, ErrNotFound
	}
	return e.doc.Clone(), nil
}

func (m *memBackend) Save(_ context.Context, collection, id string, doc Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[docKey{collection, id}] = memEntry{doc: doc.Clone(), updatedAt: time.Now()}
	return nil
}

func (m *memBackend) List(_ context.Context, collection string) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0)
	for k := range m.docs {
		if k.collection == collection {
			ids = append(ids, k.id)
		}
	}
	sort.Strings(ids)

	docs := make([]Doc, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, m.docs[docKey{collection, id}].doc.Clone())
	}
	return docs, nil
}

func (m *memBackend) Purge(_ context.Context, collection string, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.docs {
		if k.collection == collection && e.updatedAt.Before(before) {
			delete(m.docs, k)
			n++
		}
	}
	return n, nil
}

func (m *memBackend) Close() error {
	return nil
}
