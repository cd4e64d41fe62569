// Package filestore keeps every collection in a single JSON file guarded by a
// cross-process file lock
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/conduit-lang/docmap/internal/orm/adapter/eval"
	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/document"
)

const (
	formatVersion = "1"

	lockTimeout  = 3 * time.Second
	lockInterval = 50 * time.Millisecond
)

// ErrLockTimeout is returned when the file lock cannot be acquired in time
var ErrLockTimeout = errors.New("could not acquire file lock")

// fileData is the on-disk layout: collection name -> id -> document data
type fileData struct {
	Version     string                               `json:"version"`
	UpdatedAt   time.Time                            `json:"updated_at"`
	Collections map[string]map[string]map[string]any `json:"collections"`
}

// Store is a snapshot source backed by a JSON file
type Store struct {
	path string
	lock *flock.Flock
	mu   sync.RWMutex
}

// New creates a store on path. The file is created on the first write and
// the lock lives next to it.
func New(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// NewAdapter creates a collection adapter over the store
func (s *Store) NewAdapter(opts ...eval.Option) *eval.Adapter {
	return eval.NewAdapter(s, opts...)
}

// Path returns the data file path
func (s *Store) Path() string {
	return s.path
}

// Close releases the lock handle. The lock file stays in place for other
// processes sharing the store.
func (s *Store) Close() error {
	return s.lock.Close()
}

// Scan returns the snapshots of a collection ordered by id
func (s *Store) Scan(ctx context.Context, coll string) ([]document.Snapshot, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	docs := data.Collections[coll]
	out := make([]document.Snapshot, 0, len(docs))
	for _, id := range slices.Sorted(maps.Keys(docs)) {
		out = append(out, document.Snapshot{ID: id, Data: docs[id]})
	}
	return out, nil
}

// Get returns one snapshot
func (s *Store) Get(ctx context.Context, coll, id string) (document.Snapshot, error) {
	data, err := s.read(ctx)
	if err != nil {
		return document.Snapshot{}, err
	}

	doc, ok := data.Collections[coll][id]
	if !ok {
		return document.Snapshot{}, collection.ErrNotFound
	}
	return document.Snapshot{ID: id, Data: doc}, nil
}

// Insert stores a new snapshot
func (s *Store) Insert(ctx context.Context, coll string, snap document.Snapshot) error {
	return s.modify(ctx, func(data *fileData) error {
		docs := data.collection(coll)
		if _, ok := docs[snap.ID]; ok {
			return collection.ErrDuplicateID
		}
		docs[snap.ID] = snap.Data
		return nil
	})
}

// Put stores a snapshot, replacing any existing one
func (s *Store) Put(ctx context.Context, coll string, snap document.Snapshot) error {
	return s.modify(ctx, func(data *fileData) error {
		data.collection(coll)[snap.ID] = snap.Data
		return nil
	})
}

// Remove deletes a snapshot
func (s *Store) Remove(ctx context.Context, coll, id string) error {
	return s.modify(ctx, func(data *fileData) error {
		delete(data.Collections[coll], id)
		return nil
	})
}

func (d *fileData) collection(name string) map[string]map[string]any {
	docs, ok := d.Collections[name]
	if !ok {
		docs = make(map[string]map[string]any)
		d.Collections[name] = docs
	}
	return docs
}

// read loads the file under a shared lock
func (s *Store) read(ctx context.Context) (*fileData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := s.lock.TryRLockContext(ctx, lockInterval)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	defer func() { _ = s.lock.Unlock() }()

	return s.load()
}

// modify runs change on the file contents under an exclusive lock and writes
// the result back atomically
func (s *Store) modify(ctx context.Context, change func(*fileData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(ctx, lockInterval)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}
	if !locked {
		return ErrLockTimeout
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := s.load()
	if err != nil {
		return err
	}
	if err := change(data); err != nil {
		return err
	}
	data.UpdatedAt = time.Now().UTC()
	return s.save(data)
}

func (s *Store) load() (*fileData, error) {
	empty := &fileData{
		Version:     formatVersion,
		Collections: make(map[string]map[string]map[string]any),
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return empty, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data fileData
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if data.Collections == nil {
		data.Collections = empty.Collections
	}
	for _, docs := range data.Collections {
		for id, doc := range docs {
			if doc == nil {
				doc = map[string]any{}
			}
			docs[id] = document.Numbers(doc).(map[string]any)
		}
	}
	return &data, nil
}

func (s *Store) save(data *fileData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.path, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
