package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/changefeed"
)

// PostgresStore keeps documents as JSONB rows in the documents table and
// drives live watches from a change feed.
type PostgresStore struct {
	pool   *pgxpool.Pool
	feed   changefeed.Feed
	logger *zap.Logger
}

// NewPostgresStore constructs a store on an open pool.
func NewPostgresStore(pool *pgxpool.Pool, feed changefeed.Feed, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, feed: feed, logger: logger}
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var data map[string]any
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Data: cloneMap(data)}, nil
}

func (s *PostgresStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	payload, err := encodeData(data)
	if err != nil {
		return "", err
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data, updated_at) VALUES ($1, $2, $3::jsonb, NOW())`,
		collection, id, payload,
	); err != nil {
		return "", fmt.Errorf("add %s: %w", collection, err)
	}
	s.publish(ctx, collection, id)
	return id, nil
}

// Set replaces the document, or with merge folds data into the existing
// top-level fields.
func (s *PostgresStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if id == "" {
		return errors.New("docstore: empty document id")
	}
	payload, err := encodeData(data)
	if err != nil {
		return err
	}
	onConflict := `data = EXCLUDED.data`
	if merge {
		onConflict = `data = documents.data || EXCLUDED.data`
	}
	query := `INSERT INTO documents (collection, id, data, updated_at) VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET ` + onConflict + `, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, collection, id, payload); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	s.publish(ctx, collection, id)
	return nil
}

// Update locks the row for the duration of the transaction, so concurrent
// array unions on the same document are applied one after the other.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, updates []Update) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var data map[string]any
	err = tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if data == nil {
		data = make(map[string]any)
	}
	applyUpdates(data, updates)

	payload, err := encodeData(data)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE documents SET data = $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2`,
		collection, id, payload,
	); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.publish(ctx, collection, id)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() > 0 {
		s.publish(ctx, collection, id)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, q Query) ([]Document, error) {
	sql, args, err := buildListQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			id   string
			data map[string]any
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Data: cloneMap(data)})
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Watch(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) Unsubscribe {
	topics := []string{changefeed.CollectionTopic(q.Collection)}
	return s.runWatch(ctx, topics, onError, func(ctx context.Context) (func(), error) {
		docs, err := s.List(ctx, q)
		if err != nil {
			return nil, err
		}
		return func() { onSnapshot(docs) }, nil
	})
}

func (s *PostgresStore) WatchDocument(ctx context.Context, collection, id string, onDocument DocumentFunc, onError ErrorFunc) Unsubscribe {
	topics := []string{changefeed.DocumentTopic(collection, id)}
	return s.runWatch(ctx, topics, onError, func(ctx context.Context) (func(), error) {
		doc, err := s.Get(ctx, collection, id)
		if errors.Is(err, ErrNotFound) {
			return func() { onDocument(nil) }, nil
		}
		if err != nil {
			return nil, err
		}
		return func() { onDocument(doc) }, nil
	})
}

// runWatch subscribes before the first read so no change between the
// initial snapshot and the subscription is lost, then re-reads on every
// notice.
func (s *PostgresStore) runWatch(parent context.Context, topics []string, onError ErrorFunc, read func(context.Context) (func(), error)) Unsubscribe {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	var closed atomic.Bool
	stop := func() {
		closed.Store(true)
		cancel()
	}
	fail := func(err error) {
		if closed.Swap(true) {
			return
		}
		cancel()
		s.logger.Warn("document watch failed", zap.Strings("topics", topics), zap.Error(err))
		if onError != nil {
			onError(err)
		}
	}

	sub, subErr := s.feed.Subscribe(ctx, topics...)
	go func() {
		if subErr != nil {
			fail(subErr)
			return
		}
		defer sub.Close()

		emit := func() bool {
			deliver, err := read(ctx)
			if err != nil {
				if ctx.Err() == nil {
					fail(err)
				}
				return false
			}
			if closed.Load() {
				return false
			}
			deliver()
			return true
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					if ctx.Err() == nil {
						fail(errors.New("change feed closed"))
					}
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()
	return stop
}

func (s *PostgresStore) publish(ctx context.Context, collection, id string) {
	if err := s.feed.Publish(ctx, changefeed.Notice{Collection: collection, ID: id}); err != nil {
		s.logger.Warn("publish change notice failed",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}

func applyUpdates(data map[string]any, updates []Update) {
	for _, u := range updates {
		if union, ok := u.Value.(arrayUnion); ok {
			data[u.Path] = unionInto(cloneValue(data[u.Path]), union)
			continue
		}
		data[u.Path] = cloneValue(u.Value)
	}
}

func encodeData(data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(cloneMap(data))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(payload), nil
}

// buildListQuery renders equality filters as a JSONB containment test and
// orders on the text form of the field, byte-wise, so fixed-width UTC
// timestamps sort chronologically.
func buildListQuery(q Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{q.Collection}
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)

	if len(q.Filters) > 0 {
		filter := make(map[string]any, len(q.Filters))
		for _, f := range q.Filters {
			filter[f.Field] = f.Value
		}
		payload, err := encodeData(filter)
		if err != nil {
			return "", nil, err
		}
		args = append(args, payload)
		fmt.Fprintf(&sb, ` AND data @> $%d::jsonb`, len(args))
	}

	if q.OrderBy == "" {
		sb.WriteString(` ORDER BY id`)
		return sb.String(), args, nil
	}

	args = append(args, q.OrderBy)
	field := len(args)
	dir := "ASC"
	if q.Direction == Desc {
		dir = "DESC"
	}
	fmt.Fprintf(&sb, ` AND data ? $%d ORDER BY (data->>$%d) COLLATE "C" %s, id %s`, field, field, dir, dir)
	return sb.String(), args, nil
}
