// Package memstore keeps documents in process memory
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/conduit-lang/docmap/internal/orm/adapter/eval"
	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/document"
)

// Store is an in-memory snapshot source safe for concurrent use
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]document.Snapshot
}

// New creates an empty store
func New() *Store {
	return &Store{collections: make(map[string]map[string]document.Snapshot)}
}

// NewAdapter creates an in-memory collection adapter
func NewAdapter(opts ...eval.Option) *eval.Adapter {
	return eval.NewAdapter(New(), opts...)
}

// Scan returns the snapshots of a collection ordered by id
func (s *Store) Scan(ctx context.Context, coll string) ([]document.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[coll]
	out := make([]document.Snapshot, 0, len(docs))
	for _, id := range slices.Sorted(maps.Keys(docs)) {
		out = append(out, clone(docs[id]))
	}
	return out, nil
}

// Get returns one snapshot
func (s *Store) Get(ctx context.Context, coll, id string) (document.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return document.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.collections[coll][id]
	if !ok {
		return document.Snapshot{}, collection.ErrNotFound
	}
	return clone(snap), nil
}

// Insert stores a new snapshot
func (s *Store) Insert(ctx context.Context, coll string, snap document.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.docs(coll)
	if _, ok := docs[snap.ID]; ok {
		return collection.ErrDuplicateID
	}
	docs[snap.ID] = clone(snap)
	return nil
}

// Put stores a snapshot, replacing any existing one
func (s *Store) Put(ctx context.Context, coll string, snap document.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs(coll)[snap.ID] = clone(snap)
	return nil
}

// Remove deletes a snapshot
func (s *Store) Remove(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[coll], id)
	return nil
}

// Len returns the number of documents in a collection
func (s *Store) Len(coll string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[coll])
}

func (s *Store) docs(coll string) map[string]document.Snapshot {
	docs, ok := s.collections[coll]
	if !ok {
		docs = make(map[string]document.Snapshot)
		s.collections[coll] = docs
	}
	return docs
}

// clone copies the snapshot data so callers never share maps with the store
func clone(snap document.Snapshot) document.Snapshot {
	return document.Snapshot{ID: snap.ID, Data: deepCopy(snap.Data).(map[string]any)}
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return map[string]any{}
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
