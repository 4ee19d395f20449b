package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, c Collection, docs ...map[string]interface{}) []string {
	t.Helper()
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		id, err := c.Insert(context.Background(), d)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestMemoryStore_InsertAndGet(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")
	ctx := context.Background()

	input := map[string]interface{}{
		"title":  "Casa en Pance",
		"price":  int64(450000000),
		"images": []string{"a.jpg", "b.jpg"},
	}
	id, err := c.Insert(ctx, input)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	// Mutating the caller's map must not leak into the store
	input["title"] = "changed"

	doc, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "Casa en Pance", doc.Fields["title"])
	assert.Equal(t, []interface{}{"a.jpg", "b.jpg"}, doc.Fields["images"])
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Collection("properties").Get(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}

func TestMemoryStore_FindPredicates(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")
	seed(t, c,
		map[string]interface{}{"city": "Cali", "price": int64(100), "type": "Casa"},
		map[string]interface{}{"city": "Cali", "price": int64(200), "type": "house"},
		map[string]interface{}{"city": "Jamundí", "price": int64(300), "type": "Lote"},
		map[string]interface{}{"city": "Cali", "type": "Casa"},
	)

	tests := []struct {
		name  string
		where []Predicate
		want  int
	}{
		{"no predicates", nil, 4},
		{"equality", []Predicate{Eq("city", "Cali")}, 3},
		{"membership", []Predicate{In("type", "Casa", "house")}, 3},
		{"range", []Predicate{Gte("price", 150), Lte("price", 300)}, 2},
		{"range mixes int and float", []Predicate{Gte("price", 99.5)}, 3},
		{"conjunction", []Predicate{Eq("city", "Cali"), Lte("price", 150)}, 1},
		{"missing field excluded", []Predicate{Gte("price", 0)}, 3},
		{"inverted range", []Predicate{Gte("price", 300), Lte("price", 100)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := c.Find(context.Background(), Query{Where: tt.where})
			require.NoError(t, err)
			assert.Len(t, docs, tt.want)
		})
	}
}

func TestMemoryStore_FindOrdering(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, c,
		map[string]interface{}{"title": "old", "createdAt": base},
		map[string]interface{}{"title": "new", "createdAt": base.Add(2 * time.Hour)},
		map[string]interface{}{"title": "mid", "createdAt": base.Add(time.Hour)},
	)

	docs, err := c.Find(context.Background(), Query{OrderBy: []Order{{Field: "createdAt", Desc: true}}})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "new", docs[0].Fields["title"])
	assert.Equal(t, "mid", docs[1].Fields["title"])
	assert.Equal(t, "old", docs[2].Fields["title"])
}

func TestMemoryStore_FindTiesBrokenByID(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")
	seed(t, c,
		map[string]interface{}{"rank": int64(1)},
		map[string]interface{}{"rank": int64(1)},
		map[string]interface{}{"rank": int64(1)},
	)

	docs, err := c.Find(context.Background(), Query{OrderBy: []Order{{Field: "rank"}}})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Less(t, docs[0].ID, docs[1].ID)
	assert.Less(t, docs[1].ID, docs[2].ID)
}

func TestMemoryStore_Merge(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")
	ctx := context.Background()
	ids := seed(t, c, map[string]interface{}{"title": "Casa", "price": int64(100), "hoaFee": int64(5)})

	err := c.Merge(ctx, ids[0], map[string]interface{}{
		"price":  int64(200),
		"hoaFee": DeleteField,
	})
	require.NoError(t, err)

	doc, err := c.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Casa", doc.Fields["title"])
	assert.Equal(t, int64(200), doc.Fields["price"])
	assert.NotContains(t, doc.Fields, "hoaFee")
}

func TestMemoryStore_MergeLastWriteWins(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")
	ctx := context.Background()
	ids := seed(t, c, map[string]interface{}{"price": int64(1)})

	require.NoError(t, c.Merge(ctx, ids[0], map[string]interface{}{"price": int64(100)}))
	require.NoError(t, c.Merge(ctx, ids[0], map[string]interface{}{"price": int64(200)}))

	doc, err := c.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(200), doc.Fields["price"])
}

func TestMemoryStore_MergeAndDeleteMissing(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")
	ctx := context.Background()

	assert.ErrorIs(t, c.Merge(ctx, "missing", map[string]interface{}{"a": 1}), ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, "missing"), ErrNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")
	ctx := context.Background()
	ids := seed(t, c, map[string]interface{}{"title": "a"})

	require.NoError(t, c.Delete(ctx, ids[0]))
	_, err := c.Get(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_FailNext(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")
	boom := errors.New("boom")
	store.FailNext("properties", boom)

	_, err := c.Find(context.Background(), Query{})
	assert.ErrorIs(t, err, boom)

	// Only the next call fails
	_, err = c.Find(context.Background(), Query{})
	assert.NoError(t, err)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Collection("properties").Insert(ctx, map[string]interface{}{"a": 1})
	assert.ErrorIs(t, err, context.Canceled)
}

// snapshotRecorder collects watch snapshots for assertions.
type snapshotRecorder struct {
	mu    sync.Mutex
	snaps [][]Document
	ch    chan struct{}
}

func newSnapshotRecorder() *snapshotRecorder {
	return &snapshotRecorder{ch: make(chan struct{}, 16)}
}

func (r *snapshotRecorder) record(docs []Document, err error) {
	r.mu.Lock()
	r.snaps = append(r.snaps, docs)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *snapshotRecorder) waitFor(t *testing.T, n int) [][]Document {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		if len(r.snaps) >= n {
			out := append([][]Document(nil), r.snaps...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		select {
		case <-r.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for %d snapshots", n)
		}
	}
}

func TestMemoryStore_WatchDeliversFullSnapshots(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")
	ctx := context.Background()
	seed(t, c, map[string]interface{}{"city": "Cali"})

	rec := newSnapshotRecorder()
	unsubscribe, err := c.Watch(ctx, Query{Where: []Predicate{Eq("city", "Cali")}}, rec.record)
	require.NoError(t, err)
	defer unsubscribe()

	snaps := rec.waitFor(t, 1)
	assert.Len(t, snaps[0], 1)

	seed(t, c, map[string]interface{}{"city": "Cali"})
	snaps = rec.waitFor(t, 2)
	assert.Len(t, snaps[len(snaps)-1], 2)
}

func TestMemoryStore_WatchUnsubscribe(t *testing.T) {
	store := NewMemoryStore()
	c := store.Collection("properties")

	rec := newSnapshotRecorder()
	unsubscribe, err := c.Watch(context.Background(), Query{}, rec.record)
	require.NoError(t, err)
	rec.waitFor(t, 1)

	unsubscribe()
	unsubscribe()

	assert.Eventually(t, func() bool {
		return store.hub.Subscribers("properties") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_WatchInitialError(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("boom")
	store.FailNext("properties", boom)

	_, err := store.Collection("properties").Watch(context.Background(), Query{}, func([]Document, error) {})
	assert.ErrorIs(t, err, boom)
}
