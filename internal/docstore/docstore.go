// Package docstore is a small collection/document abstraction over the
// schema-flexible stores the service can run on (Postgres JSONB, MongoDB,
// or in-process memory).
//
// Documents are plain field maps. Queries support equality, membership and
// range predicates combined conjunctively, plus an ordered list of sort keys.
// Writes merge top-level fields with last-write-wins semantics; there is no
// version check. Watch delivers the complete result set of a query every time
// anything in the collection changes.
package docstore

import (
	"context"
	"errors"
)

// Backend errors. Every backend wraps its native errors with one of these so
// callers can classify failures without knowing which store is in use.
var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("store unavailable")
	ErrQuotaExceeded    = errors.New("quota exceeded")
)

// deleteField is the type of DeleteField.
type deleteField struct{}

// DeleteField, used as a value in Merge, removes the key from the stored document.
var DeleteField = deleteField{}

// Document is a stored document: an opaque id plus its fields.
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// Op is a predicate operator.
type Op string

const (
	OpEq  Op = "=="
	OpIn  Op = "in"
	OpGte Op = ">="
	OpLte Op = "<="
)

// Predicate constrains one field.
type Predicate struct {
	Field string
	Op    Op
	Value interface{}
}

// Eq matches documents whose field equals value.
func Eq(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// In matches documents whose field equals any of values.
func In(field string, values ...interface{}) Predicate {
	return Predicate{Field: field, Op: OpIn, Value: values}
}

// Gte matches documents whose field is greater than or equal to value.
func Gte(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpGte, Value: value}
}

// Lte matches documents whose field is less than or equal to value.
func Lte(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpLte, Value: value}
}

// Order is a sort key. Ties are always broken by document id ascending.
type Order struct {
	Field string
	Desc  bool
}

// Query selects and orders documents of a collection.
type Query struct {
	Where   []Predicate
	OrderBy []Order
}

// WatchFunc receives full query snapshots. A non-nil err reports a failed
// re-query; watching continues and the next change triggers another attempt.
type WatchFunc func(docs []Document, err error)

// Collection is a named set of documents.
type Collection interface {
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)

	// Find returns every document matching q, ordered by q.OrderBy then id.
	Find(ctx context.Context, q Query) ([]Document, error)

	// Insert stores a new document and returns its generated id.
	Insert(ctx context.Context, fields map[string]interface{}) (string, error)

	// Merge overwrites the given top-level fields of an existing document.
	// Keys whose value is DeleteField are removed. Returns ErrNotFound if the
	// document does not exist.
	Merge(ctx context.Context, id string, fields map[string]interface{}) error

	// Delete permanently removes a document. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// Watch calls fn with the current result of q, and again after every change
	// to the collection, until the returned unsubscribe func is called or ctx ends.
	Watch(ctx context.Context, q Query, fn WatchFunc) (unsubscribe func(), err error)
}

// Store hands out collections.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
