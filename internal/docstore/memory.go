package docstore

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Live watches are driven directly by
// writes, so it doubles as the backend for tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	watchers    map[string]map[*memoryWatcher]struct{}
}

type memoryWatcher struct {
	w          *watch
	query      *Query
	docID      string
	onSnapshot SnapshotFunc
	onDocument DocumentFunc
	onError    ErrorFunc
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		watchers:    make(map[string]map[*memoryWatcher]struct{}),
	}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc := m.getLocked(collection, id)
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (m *MemoryStore) Add(_ context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectionLocked(collection)[id] = cloneMap(data)
	m.notifyLocked(collection, id)
	return id, nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, data map[string]any, merge bool) error {
	if id == "" {
		return errors.New("docstore: empty document id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.collectionLocked(collection)
	existing, ok := col[id]
	if merge && ok {
		mergeMaps(existing, data)
	} else {
		col[id] = cloneMap(data)
	}
	m.notifyLocked(collection, id)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, updates []Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for _, u := range updates {
		if union, ok := u.Value.(arrayUnion); ok {
			doc[u.Path] = unionInto(doc[u.Path], union)
			continue
		}
		doc[u.Path] = cloneValue(u.Value)
	}
	m.notifyLocked(collection, id)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil
	}
	if _, ok := col[id]; !ok {
		return nil
	}
	delete(col, id)
	m.notifyLocked(collection, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(q), nil
}

func (m *MemoryStore) Watch(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) Unsubscribe {
	query := q
	mw := &memoryWatcher{query: &query, onSnapshot: onSnapshot, onError: onError}
	return m.register(ctx, q.Collection, mw, func() {
		docs := m.queryLocked(query)
		mw.w.push(func() { onSnapshot(docs) })
	})
}

func (m *MemoryStore) WatchDocument(ctx context.Context, collection, id string, onDocument DocumentFunc, onError ErrorFunc) Unsubscribe {
	mw := &memoryWatcher{docID: id, onDocument: onDocument, onError: onError}
	return m.register(ctx, collection, mw, func() {
		doc := m.getLocked(collection, id)
		mw.w.push(func() { onDocument(doc) })
	})
}

// FailWatches terminates every watch on collection with err, the way a
// backend reports a broken listener.
func (m *MemoryStore) FailWatches(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for mw := range m.watchers[collection] {
		w := mw
		if w.onError != nil {
			w.w.push(func() {
				w.onError(err)
				w.w.stop()
			})
		} else {
			w.w.stop()
		}
		delete(m.watchers[collection], w)
	}
}

func (m *MemoryStore) register(ctx context.Context, collection string, mw *memoryWatcher, initial func()) Unsubscribe {
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers[collection], mw)
			m.mu.Unlock()
			mw.w.stop()
		})
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.Lock()
	mw.w = newWatch(ctx, unsubscribe)
	if m.watchers[collection] == nil {
		m.watchers[collection] = make(map[*memoryWatcher]struct{})
	}
	m.watchers[collection][mw] = struct{}{}
	initial()
	m.mu.Unlock()
	return unsubscribe
}

func (m *MemoryStore) collectionLocked(name string) map[string]map[string]any {
	col, ok := m.collections[name]
	if !ok {
		col = make(map[string]map[string]any)
		m.collections[name] = col
	}
	return col
}

func (m *MemoryStore) getLocked(collection, id string) *Document {
	data, ok := m.collections[collection][id]
	if !ok {
		return nil
	}
	return &Document{ID: id, Data: cloneMap(data)}
}

func (m *MemoryStore) queryLocked(q Query) []Document {
	col := m.collections[q.Collection]
	docs := make([]Document, 0, len(col))
	for id, data := range col {
		docs = append(docs, Document{ID: id, Data: cloneMap(data)})
	}
	return applyQuery(docs, q)
}

// notifyLocked queues a fresh snapshot for every watch affected by a write.
func (m *MemoryStore) notifyLocked(collection, id string) {
	for mw := range m.watchers[collection] {
		w := mw
		if w.query != nil {
			docs := m.queryLocked(*w.query)
			w.w.push(func() { w.onSnapshot(docs) })
			continue
		}
		if w.docID == id {
			doc := m.getLocked(collection, id)
			w.w.push(func() { w.onDocument(doc) })
		}
	}
}
