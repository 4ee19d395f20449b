package docstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process. It backs tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	hub         *Hub
	failures    map[string]error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]interface{}),
		hub:         NewHub(),
		failures:    make(map[string]error),
	}
}

// Collection returns the named collection, creating it lazily.
func (s *MemoryStore) Collection(name string) Collection {
	return &memoryCollection{store: s, name: name}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// FailNext makes the next operation on collection return err. Used by tests
// to simulate backend failures.
func (s *MemoryStore) FailNext(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[collection] = err
}

func (s *MemoryStore) takeFailure(collection string) error {
	if err, ok := s.failures[collection]; ok {
		delete(s.failures, collection)
		return err
	}
	return nil
}

type memoryCollection struct {
	store *MemoryStore
	name  string
}

func (c *memoryCollection) docs() map[string]map[string]interface{} {
	docs, ok := c.store.collections[c.name]
	if !ok {
		docs = make(map[string]map[string]interface{})
		c.store.collections[c.name] = docs
	}
	return docs
}

func (c *memoryCollection) Get(ctx context.Context, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if err := c.store.takeFailure(c.name); err != nil {
		return nil, err
	}

	fields, ok := c.docs()[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Fields: copyFields(fields)}, nil
}

func (c *memoryCollection) Find(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if err := c.store.takeFailure(c.name); err != nil {
		return nil, err
	}

	result := []Document{}
	for id, fields := range c.docs() {
		if matches(fields, q.Where) {
			result = append(result, Document{ID: id, Fields: copyFields(fields)})
		}
	}
	sortDocuments(result, q.OrderBy)
	return result, nil
}

func (c *memoryCollection) Insert(ctx context.Context, fields map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.store.mu.Lock()
	if err := c.store.takeFailure(c.name); err != nil {
		c.store.mu.Unlock()
		return "", err
	}
	id := uuid.NewString()
	set, _ := splitMerge(fields)
	c.docs()[id] = copyFields(set)
	c.store.mu.Unlock()

	c.store.hub.Publish(c.name)
	return id, nil
}

func (c *memoryCollection) Merge(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.store.mu.Lock()
	if err := c.store.takeFailure(c.name); err != nil {
		c.store.mu.Unlock()
		return err
	}
	existing, ok := c.docs()[id]
	if !ok {
		c.store.mu.Unlock()
		return ErrNotFound
	}
	set, unset := splitMerge(fields)
	for _, k := range unset {
		delete(existing, k)
	}
	for k, v := range set {
		existing[k] = copyValue(v)
	}
	c.store.mu.Unlock()

	c.store.hub.Publish(c.name)
	return nil
}

func (c *memoryCollection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.store.mu.Lock()
	if err := c.store.takeFailure(c.name); err != nil {
		c.store.mu.Unlock()
		return err
	}
	docs := c.docs()
	if _, ok := docs[id]; !ok {
		c.store.mu.Unlock()
		return ErrNotFound
	}
	delete(docs, id)
	c.store.mu.Unlock()

	c.store.hub.Publish(c.name)
	return nil
}

func (c *memoryCollection) Watch(ctx context.Context, q Query, fn WatchFunc) (func(), error) {
	return watchSnapshots(ctx, c.store.hub, c.name, q, c.Find, fn)
}
