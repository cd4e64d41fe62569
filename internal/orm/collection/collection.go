package collection

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Collection is the repository API of one document type. It carries an
// immutable query builder: every query method returns a new Collection and
// leaves the receiver untouched.
//
// Identity-scoped operations (Find, FindWhere, Create, Update, Delete) are
// only allowed on the original instance, whose version is 0.
type Collection[T any] struct {
	builder query.Builder
	adapter Adapter
	node    *schema.Node
	logger  *zap.Logger
}

// Option configures a Collection
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for collection operations
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates the original instance of a collection
func New[T any](adapter Adapter, node *schema.Node, opts ...Option) *Collection[T] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[T]{
		builder: query.New(),
		adapter: adapter,
		node:    node,
		logger:  o.logger.With(zap.String("collection", node.CollectionName)),
	}
}

// Node returns the resolved document node of the collection
func (c *Collection[T]) Node() *schema.Node {
	return c.node
}

// Adapter returns the adapter the collection delegates to
func (c *Collection[T]) Adapter() Adapter {
	return c.adapter
}

// Builder returns the accumulated query builder
func (c *Collection[T]) Builder() query.Builder {
	return c.builder
}

// Version returns the number of query calls applied to the original instance
func (c *Collection[T]) Version() int {
	return c.builder.Version()
}

// ToQuery returns the accumulated query
func (c *Collection[T]) ToQuery() query.Query {
	return c.builder.ToQuery()
}

func (c *Collection[T]) with(b query.Builder) *Collection[T] {
	next := *c
	next.builder = b
	return &next
}

// validateVersion ensures the collection is the original instance
func (c *Collection[T]) validateVersion() error {
	if c.builder.Version() > 0 {
		return fmt.Errorf("%w (%s, version %d)", ErrMutatedCollection, c.node.CollectionName, c.builder.Version())
	}
	return nil
}

// Select replaces the projection; "*" or no keys selects all fields
func (c *Collection[T]) Select(keys ...string) *Collection[T] {
	return c.with(c.builder.Select(keys...))
}

// Where appends an equality predicate
func (c *Collection[T]) Where(key string, value any) *Collection[T] {
	return c.with(c.builder.Where(key, value))
}

// WhereOp appends a predicate with an explicit operator
func (c *Collection[T]) WhereOp(key string, op query.Operator, value any) *Collection[T] {
	return c.with(c.builder.WhereOp(key, op, value))
}

// WhereRecord appends predicates from a record. An empty record returns c itself.
func (c *Collection[T]) WhereRecord(record query.WhereRecord) *Collection[T] {
	if len(record) == 0 {
		return c
	}
	return c.with(c.builder.WhereRecord(record))
}

// WhereEqualTo appends an equality predicate
func (c *Collection[T]) WhereEqualTo(key string, value any) *Collection[T] {
	return c.with(c.builder.WhereEqualTo(key, value))
}

// WhereLessThan appends a less-than predicate
func (c *Collection[T]) WhereLessThan(key string, value any) *Collection[T] {
	return c.with(c.builder.WhereLessThan(key, value))
}

// WhereLessThanOrEqualTo appends a less-or-equal predicate
func (c *Collection[T]) WhereLessThanOrEqualTo(key string, value any) *Collection[T] {
	return c.with(c.builder.WhereLessThanOrEqualTo(key, value))
}

// WhereGreaterThan appends a greater-than predicate
func (c *Collection[T]) WhereGreaterThan(key string, value any) *Collection[T] {
	return c.with(c.builder.WhereGreaterThan(key, value))
}

// WhereGreaterThanOrEqualTo appends a greater-or-equal predicate
func (c *Collection[T]) WhereGreaterThanOrEqualTo(key string, value any) *Collection[T] {
	return c.with(c.builder.WhereGreaterThanOrEqualTo(key, value))
}

// WhereArrayContains appends an array-contains predicate
func (c *Collection[T]) WhereArrayContains(key string, value any) *Collection[T] {
	return c.with(c.builder.WhereArrayContains(key, value))
}

// WhereIn appends a membership predicate
func (c *Collection[T]) WhereIn(key string, values []any) *Collection[T] {
	return c.with(c.builder.WhereIn(key, values))
}

// WhereArrayContainsAny appends an array-contains-any predicate
func (c *Collection[T]) WhereArrayContainsAny(key string, values []any) *Collection[T] {
	return c.with(c.builder.WhereArrayContainsAny(key, values))
}

// OrderBy appends an ordering clause; direction defaults to ascending
func (c *Collection[T]) OrderBy(key string, direction ...query.Direction) *Collection[T] {
	return c.with(c.builder.OrderBy(key, direction...))
}

// OrderByRecord appends ordering clauses from a record. An empty record returns c itself.
func (c *Collection[T]) OrderByRecord(record query.OrderByRecord) *Collection[T] {
	if len(record) == 0 {
		return c
	}
	return c.with(c.builder.OrderByRecord(record))
}

// OrderByAscending appends an ascending ordering clause
func (c *Collection[T]) OrderByAscending(key string) *Collection[T] {
	return c.with(c.builder.OrderByAscending(key))
}

// OrderByDescending appends a descending ordering clause
func (c *Collection[T]) OrderByDescending(key string) *Collection[T] {
	return c.with(c.builder.OrderByDescending(key))
}

// Limit replaces the result limit
func (c *Collection[T]) Limit(n int) *Collection[T] {
	return c.with(c.builder.Limit(n))
}

// Offset replaces the result offset
func (c *Collection[T]) Offset(n int) *Collection[T] {
	return c.with(c.builder.Offset(n))
}

// Apply applies query scopes
func (c *Collection[T]) Apply(scopes ...query.Scope) *Collection[T] {
	b := c.builder.Apply(scopes...)
	if b.Version() == c.builder.Version() {
		return c
	}
	return c.with(b)
}

// First returns the first document matching the accumulated query
func (c *Collection[T]) First(ctx context.Context) (*T, error) {
	records, err := c.adapter.Fetch(ctx, c.node, c.builder.Limit(1).ToQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c.node.CollectionName, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return decode[T](records[0])
}

// Find returns the document with the given id
func (c *Collection[T]) Find(ctx context.Context, id string) (*T, error) {
	if err := c.validateVersion(); err != nil {
		return nil, err
	}
	return c.FindWhere(ctx, query.WhereRecord{c.node.IDKey: id})
}

// FindWhere returns the first document matching the record.
// Slice values match any of their elements.
func (c *Collection[T]) FindWhere(ctx context.Context, record query.WhereRecord) (*T, error) {
	if err := c.validateVersion(); err != nil {
		return nil, err
	}
	return c.WhereRecord(record).First(ctx)
}

// Count returns the number of documents matching the accumulated query and record
func (c *Collection[T]) Count(ctx context.Context, record query.WhereRecord) (int, error) {
	n, err := c.adapter.Count(ctx, c.node, c.builder.WhereRecord(record).ToQuery())
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.node.CollectionName, err)
	}
	return n, nil
}

// Fetch returns every document matching the accumulated query
func (c *Collection[T]) Fetch(ctx context.Context) ([]*T, error) {
	records, err := c.adapter.Fetch(ctx, c.node, c.builder.ToQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c.node.CollectionName, err)
	}

	out := make([]*T, 0, len(records))
	for _, rec := range records {
		doc, err := decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Stream returns an iterator over the documents matching the accumulated query
func (c *Collection[T]) Stream(ctx context.Context) (*Iterator[T], error) {
	stream, err := c.adapter.Stream(ctx, c.node, c.builder.ToQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to stream %s: %w", c.node.CollectionName, err)
	}
	return &Iterator[T]{stream: stream}, nil
}

// All ranges over the documents matching the accumulated query.
// Iteration stops after the first error.
func (c *Collection[T]) All(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		it, err := c.Stream(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		defer it.Close()

		for it.Next(ctx) {
			if !yield(it.Value(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Create stores a new document. A generated id is written back into doc.
func (c *Collection[T]) Create(ctx context.Context, doc *T) error {
	if err := c.validateVersion(); err != nil {
		return err
	}

	rec, err := encode(doc)
	if err != nil {
		return err
	}

	id, err := c.adapter.Create(ctx, c.node, rec)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", c.node.CollectionName, err)
	}

	if current, _ := rec[c.node.IDKey].(string); current != id {
		if err := c.setID(doc, id); err != nil {
			return err
		}
	}

	c.logger.Debug("document created", zap.String("id", id))
	return nil
}

func (c *Collection[T]) setID(doc *T, id string) error {
	if rec, ok := any(doc).(*document.Record); ok {
		if *rec == nil {
			*rec = document.Record{}
		}
		(*rec)[c.node.IDKey] = id
		return nil
	}
	return decodeInto(document.Record{c.node.IDKey: id}, doc)
}

// Update replaces a stored document
func (c *Collection[T]) Update(ctx context.Context, doc *T) error {
	if err := c.validateVersion(); err != nil {
		return err
	}

	rec, err := encode(doc)
	if err != nil {
		return err
	}

	if err := c.adapter.Update(ctx, c.node, rec); err != nil {
		return fmt.Errorf("failed to update %s: %w", c.node.CollectionName, err)
	}

	c.logger.Debug("document updated", zap.Any("id", rec[c.node.IDKey]))
	return nil
}

// Delete removes a stored document
func (c *Collection[T]) Delete(ctx context.Context, doc *T) error {
	if err := c.validateVersion(); err != nil {
		return err
	}

	rec, err := encode(doc)
	if err != nil {
		return err
	}

	if err := c.adapter.Delete(ctx, c.node, rec); err != nil {
		return fmt.Errorf("failed to delete %s: %w", c.node.CollectionName, err)
	}

	c.logger.Debug("document deleted", zap.Any("id", rec[c.node.IDKey]))
	return nil
}

// Iterator decodes a record stream into typed documents
type Iterator[T any] struct {
	stream  Stream
	current *T
	err     error
}

// Next advances to the next document
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if !it.stream.Next(ctx) {
		return false
	}

	doc, err := decode[T](it.stream.Record())
	if err != nil {
		it.err = err
		it.current = nil
		return false
	}
	it.current = doc
	return true
}

// Value returns the current document
func (it *Iterator[T]) Value() *T {
	return it.current
}

// Err returns the error that stopped iteration, if any
func (it *Iterator[T]) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.stream.Err()
}

// Close releases the underlying stream
func (it *Iterator[T]) Close() error {
	return it.stream.Close()
}
