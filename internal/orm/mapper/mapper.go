// Package mapper ties a registry and a default adapter together and hands out
// cached collections.
//
//	m := mapper.New(mapper.WithAdapter(memstore.NewAdapter()))
//	schema.Document[Task](m.Registry(), "tasks")
//	tasks, err := mapper.CollectionOf[Task](m)
//
// The first collection request resolves the registry. Documents declared
// after that are only visible once Resolve is called again.
package mapper

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// flyweightKey identifies a cached collection. Adapters are compared by
// identity; non-comparable adapters are rejected before a key is built.
type flyweightKey struct {
	typ     schema.TypeID
	adapter collection.Adapter
	records bool
}

// Mapper holds the document declarations, the default adapter and the
// collections created so far
type Mapper struct {
	mu         sync.Mutex
	registry   *schema.Registry
	adapter    collection.Adapter
	graph      *schema.Graph
	flyweights map[flyweightKey]any
	logger     *zap.Logger
}

// Option configures a Mapper
type Option func(*Mapper)

// WithLogger sets the logger passed to every collection
func WithLogger(logger *zap.Logger) Option {
	return func(m *Mapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRegistry uses an existing registry instead of a new one
func WithRegistry(r *schema.Registry) Option {
	return func(m *Mapper) {
		m.registry = r
	}
}

// WithAdapter configures the default adapter
func WithAdapter(a collection.Adapter) Option {
	return func(m *Mapper) {
		m.adapter = a
	}
}

// New creates a mapper
func New(opts ...Option) *Mapper {
	m := &Mapper{
		flyweights: make(map[flyweightKey]any),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = schema.NewRegistry(schema.WithLogger(m.logger))
	}
	return m
}

// Registry returns the registry documents are declared on
func (m *Mapper) Registry() *schema.Registry {
	return m.registry
}

// Configure replaces the default adapter
func (m *Mapper) Configure(a collection.Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapter = a
}

// Adapter returns the default adapter
func (m *Mapper) Adapter() (collection.Adapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultAdapter()
}

func (m *Mapper) defaultAdapter() (collection.Adapter, error) {
	if m.adapter == nil {
		return nil, &AdapterNotConfiguredError{}
	}
	return m.adapter, nil
}

// Resolve rebuilds the snapshot graph from the registry and drops every
// cached collection
func (m *Mapper) Resolve() (*schema.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolve()
}

func (m *Mapper) resolve() (*schema.Graph, error) {
	graph, err := m.registry.ResolveAll()
	if err != nil {
		return nil, err
	}
	m.graph = graph
	clear(m.flyweights)
	m.logger.Debug("mapper resolved", zap.Int("documents", graph.Len()))
	return graph, nil
}

// Graph returns the resolved graph, resolving the registry on first use
func (m *Mapper) Graph() (*schema.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentGraph()
}

func (m *Mapper) currentGraph() (*schema.Graph, error) {
	if m.graph != nil {
		return m.graph, nil
	}
	return m.resolve()
}

// CollectionOf returns the collection of T on the default adapter
func CollectionOf[T any](m *Mapper) (*collection.Collection[T], error) {
	return CollectionWith[T](m, nil)
}

// CollectionWith returns the collection of T on an adapter. A nil adapter
// means the default one. Repeated calls with the same type and adapter return
// the same collection until the next Resolve.
func CollectionWith[T any](m *Mapper, a collection.Adapter) (*collection.Collection[T], error) {
	t := schema.TypeOf[T]()

	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.adapterOrDefault(a)
	if err != nil {
		return nil, err
	}

	key := flyweightKey{typ: t, adapter: a}
	if c, ok := m.flyweights[key]; ok {
		return c.(*collection.Collection[T]), nil
	}

	graph, err := m.currentGraph()
	if err != nil {
		return nil, err
	}
	node, ok := graph.Node(t)
	if !ok {
		return nil, &schema.UndecoratedTypeError{Type: t}
	}

	c := collection.New[T](a, node, collection.WithLogger(m.logger))
	m.flyweights[key] = c
	return c, nil
}

// RecordCollection returns a collection of plain records by collection name.
// It serves documents declared by name, for example from a schema file.
func RecordCollection(m *Mapper, name string, a collection.Adapter) (*collection.Collection[document.Record], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.adapterOrDefault(a)
	if err != nil {
		return nil, err
	}

	graph, err := m.currentGraph()
	if err != nil {
		return nil, err
	}
	node, ok := graph.ByCollection(name)
	if !ok {
		return nil, &UnknownCollectionError{Name: name}
	}

	key := flyweightKey{typ: node.Type, adapter: a, records: true}
	if c, ok := m.flyweights[key]; ok {
		return c.(*collection.Collection[document.Record]), nil
	}

	c := collection.New[document.Record](a, node, collection.WithLogger(m.logger))
	m.flyweights[key] = c
	return c, nil
}

func (m *Mapper) adapterOrDefault(a collection.Adapter) (collection.Adapter, error) {
	if a == nil {
		var err error
		if a, err = m.defaultAdapter(); err != nil {
			return nil, err
		}
	}
	if !reflect.ValueOf(a).Comparable() {
		return nil, &UncomparableAdapterError{Adapter: a}
	}
	return a, nil
}
