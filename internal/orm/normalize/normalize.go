// Package normalize converts between store snapshots and normalized records.
//
// A snapshot holds reference fields as document.Ref handles and times in
// canonical text form. A normalized record carries its id under the node's id
// key and holds referenced documents as nested records.
package normalize

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// DefaultConcurrency bounds NormalizeAll when no limit is given
const DefaultConcurrency = 8

// ErrInvalidReference is returned when a reference field holds a value that
// cannot be turned into a reference handle
var ErrInvalidReference = errors.New("invalid reference value")

// Loader reads a single snapshot by id. It returns collection.ErrNotFound
// when no such document exists.
type Loader interface {
	Load(ctx context.Context, node *schema.Node, id string) (document.Snapshot, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context, node *schema.Node, id string) (document.Snapshot, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context, node *schema.Node, id string) (document.Snapshot, error) {
	return f(ctx, node, id)
}

// Normalizer converts between store snapshots and normalized records
type Normalizer interface {
	Normalize(ctx context.Context, node *schema.Node, snap document.Snapshot) (document.Record, error)
	Denormalize(node *schema.Node, rec document.Record) (document.Snapshot, error)
}

// Default resolves references through a Loader
type Default struct {
	loader Loader
	logger *zap.Logger
}

// Option configures a Default normalizer
type Option func(*Default)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Default) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Default normalizer reading referents through loader
func New(loader Loader, opts ...Option) *Default {
	d := &Default{loader: loader, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Normalize converts a snapshot to a record. Reference fields are loaded and
// normalized recursively; a reference back to a document already being
// resolved becomes a stub holding only its id, and a dangling reference
// becomes nil.
func (d *Default) Normalize(ctx context.Context, node *schema.Node, snap document.Snapshot) (document.Record, error) {
	return d.normalize(ctx, node, snap, map[string]bool{})
}

func (d *Default) normalize(ctx context.Context, node *schema.Node, snap document.Snapshot, path map[string]bool) (document.Record, error) {
	rec := make(document.Record, len(snap.Data)+1)
	for k, v := range snap.Data {
		rec[k] = restoreTimes(v)
	}
	if id, ok := rec[node.IDKey]; !ok || id == nil || id == "" {
		rec[node.IDKey] = snap.ID
	}

	self := node.CollectionName + "/" + snap.ID
	path[self] = true
	defer delete(path, self)

	for _, field := range node.ReferenceFields() {
		ref, ok := document.AsRef(snap.Data[field])
		if !ok {
			continue
		}
		referent := node.References[field]

		if path[referent.CollectionName+"/"+ref.ID] {
			rec[field] = document.Record{referent.IDKey: ref.ID}
			continue
		}

		target, err := d.loader.Load(ctx, referent, ref.ID)
		if err != nil {
			if collection.IsNotFound(err) {
				d.logger.Debug("dangling reference",
					zap.String("collection", node.CollectionName),
					zap.String("field", field),
					zap.Stringer("ref", ref))
				rec[field] = nil
				continue
			}
			return nil, fmt.Errorf("failed to load %s reference %s: %w", field, ref, err)
		}

		nested, err := d.normalize(ctx, referent, target, path)
		if err != nil {
			return nil, err
		}
		rec[field] = nested
	}

	return rec, nil
}

// Denormalize converts a record to a snapshot. Times become canonical text,
// reference values become handles, and the id key moves to Snapshot.ID.
// Reference fields missing from the record are stored as nil.
func (d *Default) Denormalize(node *schema.Node, rec document.Record) (document.Snapshot, error) {
	data := make(map[string]any, len(rec))
	for k, v := range rec {
		data[k] = document.Canonical(v)
	}

	for field, referent := range node.References {
		value, err := RefValue(referent, rec[field])
		if err != nil {
			return document.Snapshot{}, fmt.Errorf("field %s: %w", field, err)
		}
		if value == nil {
			data[field] = nil
			continue
		}
		data[field] = *value
	}

	id, err := IDValue(rec[node.IDKey])
	if err != nil {
		return document.Snapshot{}, fmt.Errorf("field %s: %w", node.IDKey, err)
	}
	delete(data, node.IDKey)

	return document.Snapshot{ID: id, Data: data}, nil
}

// RefValue turns a reference field value into a handle to referent.
// Accepted forms are handles, nested documents carrying the referent's id key,
// and bare ids. Nil and empty values yield nil.
func RefValue(referent *schema.Node, v any) (*document.Ref, error) {
	if v == nil {
		return nil, nil
	}
	if ref, ok := document.AsRef(v); ok {
		return &ref, nil
	}

	var raw any
	switch val := v.(type) {
	case document.Record:
		raw = val[referent.IDKey]
	case map[string]any:
		raw = val[referent.IDKey]
	default:
		raw = val
	}

	id, err := IDValue(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %T for %s", ErrInvalidReference, v, referent.CollectionName)
	}
	if id == "" {
		return nil, nil
	}
	return &document.Ref{Collection: referent.CollectionName, ID: id}, nil
}

// IDValue converts an id value to its string form. Nil yields the empty id.
func IDValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToStringE(val)
	case fmt.Stringer:
		return val.String(), nil
	}
	return "", fmt.Errorf("unsupported id value of type %T", v)
}

// NormalizeAll normalizes snapshots concurrently, preserving their order.
// A limit below one uses DefaultConcurrency.
func NormalizeAll(ctx context.Context, n Normalizer, node *schema.Node, snaps []document.Snapshot, limit int) ([]document.Record, error) {
	if limit < 1 {
		limit = DefaultConcurrency
	}

	out := make([]document.Record, len(snaps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, snap := range snaps {
		g.Go(func() error {
			rec, err := n.Normalize(gctx, node, snap)
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// restoreTimes converts canonical time text back to time values and
// unescapes stored strings
func restoreTimes(v any) any {
	switch val := v.(type) {
	case string:
		return document.RestoreString(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = restoreTimes(item)
		}
		return out
	case map[string]any:
		if _, ok := document.AsRef(val); ok {
			return val
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = restoreTimes(item)
		}
		return out
	default:
		return v
	}
}
