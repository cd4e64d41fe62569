// Package redisstore keeps documents in Redis. Each document is a
// msgpack-encoded string under <prefix><collection>:<id> and every
// collection keeps the set of its ids under <prefix><collection>.
package redisstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/conduit-lang/docmap/internal/orm/adapter/eval"
	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/document"
)

// DefaultPrefix namespaces every key written by the store
const DefaultPrefix = "docmap:"

// Config holds connection settings
type Config struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix namespaces the store's keys
	Prefix string
}

// DefaultConfig returns a configuration for a local server
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix: DefaultPrefix,
	}
}

// Store is a snapshot source on a Redis client
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a store on an existing client
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Open connects to Redis and verifies the connection
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.Prefix), nil
}

// NewAdapter creates a collection adapter over the store
func (s *Store) NewAdapter(opts ...eval.Option) *eval.Adapter {
	return eval.NewAdapter(s, opts...)
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) docKey(coll, id string) string {
	return s.prefix + coll + ":" + id
}

func (s *Store) setKey(coll string) string {
	return s.prefix + coll
}

// Scan returns the snapshots of a collection ordered by id
func (s *Store) Scan(ctx context.Context, coll string) ([]document.Snapshot, error) {
	ids, err := s.client.SMembers(ctx, s.setKey(coll)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", coll, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	slices.Sort(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(coll, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", coll, err)
	}

	out := make([]document.Snapshot, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// id listed without a document
			continue
		}
		snap, err := decode(ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Get returns one snapshot
func (s *Store) Get(ctx context.Context, coll, id string) (document.Snapshot, error) {
	raw, err := s.client.Get(ctx, s.docKey(coll, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return document.Snapshot{}, collection.ErrNotFound
		}
		return document.Snapshot{}, fmt.Errorf("failed to read %s/%s: %w", coll, id, err)
	}
	return decode(id, raw)
}

// Insert stores a new snapshot
func (s *Store) Insert(ctx context.Context, coll string, snap document.Snapshot) error {
	raw, err := msgpack.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", coll, snap.ID, err)
	}

	var created *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, s.docKey(coll, snap.ID), raw, 0)
		pipe.SAdd(ctx, s.setKey(coll), snap.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", coll, snap.ID, err)
	}
	if !created.Val() {
		return collection.ErrDuplicateID
	}
	return nil
}

// Put stores a snapshot, replacing any existing one
func (s *Store) Put(ctx context.Context, coll string, snap document.Snapshot) error {
	raw, err := msgpack.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", coll, snap.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(coll, snap.ID), raw, 0)
		pipe.SAdd(ctx, s.setKey(coll), snap.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", coll, snap.ID, err)
	}
	return nil
}

// Remove deletes a snapshot
func (s *Store) Remove(ctx context.Context, coll, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(coll, id))
		pipe.SRem(ctx, s.setKey(coll), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", coll, id, err)
	}
	return nil
}

// decode parses a stored document. Integers decode as int64 or uint64 and
// floats as float64.
func decode(id string, raw []byte) (document.Snapshot, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.UseLooseInterfaceDecoding(true)

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return document.Snapshot{}, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return document.Snapshot{ID: id, Data: data}, nil
}
