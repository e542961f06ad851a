package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is the Store backed by Cloud Firestore, whose snapshot
// listeners provide the live watches natively.
type FirestoreStore struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreStore wraps an open client. The client is owned by the caller.
func NewFirestoreStore(client *firestore.Client, logger *zap.Logger) *FirestoreStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirestoreStore{client: client, logger: logger}
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Data: cloneMap(snap.Data())}, nil
}

func (s *FirestoreStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, cloneMap(data))
	if err != nil {
		return "", fmt.Errorf("add %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if id == "" {
		return errors.New("docstore: empty document id")
	}
	ref := s.client.Collection(collection).Doc(id)
	var err error
	if merge {
		_, err = ref.Set(ctx, cloneMap(data), firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, cloneMap(data))
	}
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, updates []Update) error {
	fsUpdates := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		value := u.Value
		if union, ok := value.(arrayUnion); ok {
			elems := make([]interface{}, len(union.elems))
			for i, e := range union.elems {
				elems[i] = cloneValue(e)
			}
			value = firestore.ArrayUnion(elems...)
		} else {
			value = cloneValue(value)
		}
		fsUpdates = append(fsUpdates, firestore.Update{Path: u.Path, Value: value})
	}
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, fsUpdates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) List(ctx context.Context, q Query) ([]Document, error) {
	snaps, err := s.query(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}
	return toDocuments(snaps), nil
}

func (s *FirestoreStore) Watch(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) Unsubscribe {
	ctx, cancel := s.watchContext(ctx)
	it := s.query(q).Snapshots(ctx)
	w := newWatch(ctx, cancel)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				s.watchFailed(ctx, w, err, onError)
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				s.watchFailed(ctx, w, err, onError)
				return
			}
			result := toDocuments(docs)
			w.push(func() { onSnapshot(result) })
		}
	}()
	return func() {
		cancel()
		w.stop()
	}
}

func (s *FirestoreStore) WatchDocument(ctx context.Context, collection, id string, onDocument DocumentFunc, onError ErrorFunc) Unsubscribe {
	ctx, cancel := s.watchContext(ctx)
	it := s.client.Collection(collection).Doc(id).Snapshots(ctx)
	w := newWatch(ctx, cancel)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				s.watchFailed(ctx, w, err, onError)
				return
			}
			var doc *Document
			if snap.Exists() {
				doc = &Document{ID: snap.Ref.ID, Data: cloneMap(snap.Data())}
			}
			w.push(func() { onDocument(doc) })
		}
	}()
	return func() {
		cancel()
		w.stop()
	}
}

func (s *FirestoreStore) watchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithCancel(ctx)
}

// watchFailed reports a listener error unless the watch was cancelled by
// its owner.
func (s *FirestoreStore) watchFailed(ctx context.Context, w *watch, err error, onError ErrorFunc) {
	if ctx.Err() != nil || status.Code(err) == codes.Canceled {
		return
	}
	s.logger.Warn("firestore listener failed", zap.Error(err))
	if onError == nil {
		w.stop()
		return
	}
	w.push(func() {
		onError(err)
		w.stop()
	})
}

func (s *FirestoreStore) query(q Query) firestore.Query {
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, "==", cloneValue(f.Value))
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Direction == Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	return fq
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []Document {
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, Document{ID: snap.Ref.ID, Data: cloneMap(snap.Data())})
	}
	return docs
}
