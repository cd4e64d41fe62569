package eval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/normalize"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Source is raw snapshot storage keyed by collection name and id
type Source interface {
	// Scan returns every snapshot of a collection
	Scan(ctx context.Context, collection string) ([]document.Snapshot, error)
	// Get returns one snapshot or collection.ErrNotFound
	Get(ctx context.Context, collection, id string) (document.Snapshot, error)
	// Insert stores a new snapshot or returns collection.ErrDuplicateID
	Insert(ctx context.Context, collection string, snap document.Snapshot) error
	// Put stores a snapshot, replacing any existing one
	Put(ctx context.Context, collection string, snap document.Snapshot) error
	// Remove deletes a snapshot; removing a missing id is not an error
	Remove(ctx context.Context, collection, id string) error
}

// Adapter implements collection.Adapter over a Source, evaluating queries in
// process
type Adapter struct {
	source      Source
	normalizer  normalize.Normalizer
	newID       func() string
	concurrency int
	logger      *zap.Logger
}

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithNormalizer replaces the default normalizer
func WithNormalizer(n normalize.Normalizer) Option {
	return func(a *Adapter) {
		a.normalizer = n
	}
}

// WithIDGenerator sets the generator used for documents created without an id
func WithIDGenerator(newID func() string) Option {
	return func(a *Adapter) {
		a.newID = newID
	}
}

// WithConcurrency bounds concurrent normalization in Fetch
func WithConcurrency(n int) Option {
	return func(a *Adapter) {
		a.concurrency = n
	}
}

// NewAdapter creates an adapter over source. Documents created without an id
// get a random one unless the generator is replaced.
func NewAdapter(source Source, opts ...Option) *Adapter {
	a := &Adapter{
		source:      source,
		newID:       document.NewID,
		concurrency: normalize.DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.normalizer == nil {
		a.normalizer = normalize.New(a, normalize.WithLogger(a.logger))
	}
	return a
}

// Source returns the underlying snapshot storage
func (a *Adapter) Source() Source {
	return a.source
}

// Load implements normalize.Loader
func (a *Adapter) Load(ctx context.Context, node *schema.Node, id string) (document.Snapshot, error) {
	return a.source.Get(ctx, node.CollectionName, id)
}

func (a *Adapter) evaluate(ctx context.Context, node *schema.Node, q query.Query, page bool) ([]document.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filters, err := normalize.Filters(node, q.Where)
	if err != nil {
		return nil, err
	}

	snaps, err := a.source.Scan(ctx, node.CollectionName)
	if err != nil {
		return nil, err
	}

	if !page {
		return Filter(snaps, node.IDKey, filters), nil
	}
	return Apply(snaps, node.IDKey, q, filters), nil
}

// Count returns the number of documents matching the query filters.
// Ordering and pagination are ignored.
func (a *Adapter) Count(ctx context.Context, node *schema.Node, q query.Query) (int, error) {
	snaps, err := a.evaluate(ctx, node, q, false)
	if err != nil {
		return 0, err
	}
	return len(snaps), nil
}

// Fetch returns the normalized documents matching the query
func (a *Adapter) Fetch(ctx context.Context, node *schema.Node, q query.Query) ([]document.Record, error) {
	snaps, err := a.evaluate(ctx, node, q, true)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("fetched",
		zap.String("collection", node.CollectionName),
		zap.Int("count", len(snaps)))
	return normalize.NormalizeAll(ctx, a.normalizer, node, snaps, a.concurrency)
}

// Stream returns a stream that normalizes matching documents one at a time
func (a *Adapter) Stream(ctx context.Context, node *schema.Node, q query.Query) (collection.Stream, error) {
	snaps, err := a.evaluate(ctx, node, q, true)
	if err != nil {
		return nil, err
	}
	return &snapshotStream{normalizer: a.normalizer, node: node, snaps: snaps}, nil
}

// Create stores a new document and returns its id
func (a *Adapter) Create(ctx context.Context, node *schema.Node, rec document.Record) (string, error) {
	snap, err := a.normalizer.Denormalize(node, rec)
	if err != nil {
		return "", err
	}
	if snap.ID == "" {
		if a.newID == nil {
			return "", collection.ErrMissingID
		}
		snap.ID = a.newID()
	}

	if err := a.source.Insert(ctx, node.CollectionName, snap); err != nil {
		return "", err
	}
	return snap.ID, nil
}

// Update replaces a stored document, creating it when missing
func (a *Adapter) Update(ctx context.Context, node *schema.Node, rec document.Record) error {
	snap, err := a.normalizer.Denormalize(node, rec)
	if err != nil {
		return err
	}
	if snap.ID == "" {
		return collection.ErrMissingID
	}
	return a.source.Put(ctx, node.CollectionName, snap)
}

// Delete removes a stored document
func (a *Adapter) Delete(ctx context.Context, node *schema.Node, rec document.Record) error {
	id, err := normalize.IDValue(rec[node.IDKey])
	if err != nil {
		return fmt.Errorf("field %s: %w", node.IDKey, err)
	}
	if id == "" {
		return collection.ErrMissingID
	}
	return a.source.Remove(ctx, node.CollectionName, id)
}

type snapshotStream struct {
	normalizer normalize.Normalizer
	node       *schema.Node
	snaps      []document.Snapshot
	current    document.Record
	err        error
}

func (s *snapshotStream) Next(ctx context.Context) bool {
	if s.err != nil || len(s.snaps) == 0 {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}

	rec, err := s.normalizer.Normalize(ctx, s.node, s.snaps[0])
	s.snaps = s.snaps[1:]
	if err != nil {
		s.err = err
		return false
	}
	s.current = rec
	return true
}

func (s *snapshotStream) Record() document.Record {
	return s.current
}

func (s *snapshotStream) Err() error {
	return s.err
}

func (s *snapshotStream) Close() error {
	s.snaps = nil
	s.current = nil
	return nil
}
