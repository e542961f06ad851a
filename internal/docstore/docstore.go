// Package docstore defines the document database contract the services are
// written against: point reads and writes, merge upserts, atomic array
// appends and live query subscriptions. Backends live alongside it.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a stored document and its id.
type Document struct {
	ID   string
	Data map[string]any
}

// Direction is the sort direction of an ordered query.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from one collection. Documents lacking the
// OrderBy field are excluded when an ordering is set.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
}

// Collection starts a query over every document of a collection.
func Collection(name string) Query {
	return Query{Collection: name}
}

// Where returns a copy of q with an extra equality filter.
func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

// Order returns a copy of q ordered by a single field.
func (q Query) Order(field string, dir Direction) Query {
	q.OrderBy = field
	q.Direction = dir
	return q
}

// Update is a single field mutation applied by Store.Update.
type Update struct {
	Path  string
	Value any
}

type arrayUnion struct {
	elems []any
}

// ArrayUnion is an Update value that appends elems to an array field
// atomically, skipping elements already present.
func ArrayUnion(elems ...any) any {
	return arrayUnion{elems: elems}
}

// SnapshotFunc receives the full result set of a query each time it changes.
type SnapshotFunc func([]Document)

// DocumentFunc receives a document each time it changes; nil means absent.
type DocumentFunc func(*Document)

// ErrorFunc is called once when a watch fails. The watch is stopped.
type ErrorFunc func(error)

// Unsubscribe stops a watch. After it returns, at most a callback already
// being dispatched may still finish; nothing new is delivered. It is safe
// to call more than once and from inside a callback.
type Unsubscribe func()

// Store is the document database.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	Update(ctx context.Context, collection, id string, updates []Update) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, q Query) ([]Document, error)
	Watch(ctx context.Context, q Query, onSnapshot SnapshotFunc, onError ErrorFunc) Unsubscribe
	WatchDocument(ctx context.Context, collection, id string, onDocument DocumentFunc, onError ErrorFunc) Unsubscribe
}
