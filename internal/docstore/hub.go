package docstore

import (
	"context"
	"sync"
)

// Hub fans out per-collection change signals to live queries.
// Signals are coalesced: a slow watcher sees at most one pending change.
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[string]map[uint64]chan struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]chan struct{})}
}

// Publish signals every watcher of collection that it changed.
func (h *Hub) Publish(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// PublishAll signals every watcher of every collection.
func (h *Hub) PublishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, subs := range h.subs {
		for _, ch := range subs {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Subscribers returns the number of active watchers of collection.
func (h *Hub) Subscribers(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}

func (h *Hub) subscribe(collection string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	ch := make(chan struct{}, 1)
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[uint64]chan struct{})
	}
	h.subs[collection][id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[collection], id)
		if len(h.subs[collection]) == 0 {
			delete(h.subs, collection)
		}
	}
}

// watchSnapshots runs the shared live-query loop for every backend: fetch the
// initial result synchronously, then re-run find and deliver the full result
// after every change signal for collection.
func watchSnapshots(
	ctx context.Context,
	hub *Hub,
	collection string,
	q Query,
	find func(context.Context, Query) ([]Document, error),
	fn WatchFunc,
) (func(), error) {
	initial, err := find(ctx, q)
	if err != nil {
		return nil, err
	}

	changes, leave := hub.subscribe(collection)
	watchCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer leave()
		fn(initial, nil)
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-changes:
				docs, err := find(watchCtx, q)
				if watchCtx.Err() != nil {
					return
				}
				fn(docs, err)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}
