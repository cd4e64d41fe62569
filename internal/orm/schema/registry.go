package schema

import (
	"fmt"

	"go.uber.org/zap"
)

// Registry collects document declarations and resolves them into a Graph.
//
// Registration is expected to happen during single-threaded start-up,
// followed by ResolveAll. The registry is not safe for concurrent mutation
// and must not be mutated while ValidateAll or ResolveAll are running.
type Registry struct {
	descriptors []*EntityDescriptor
	index       map[TypeID]*EntityDescriptor
	types       map[string]*NamedType
	graph       *Graph
	logger      *zap.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger used for registration and resolution events
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		index:  make(map[TypeID]*EntityDescriptor),
		types:  make(map[string]*NamedType),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NamedType returns the identity for a type declared by name.
// Repeated calls with the same name return the same value.
func (r *Registry) NamedType(name string) *NamedType {
	if t, ok := r.types[name]; ok {
		return t
	}
	t := &NamedType{name: name}
	r.types[name] = t
	return t
}

// AddDocument declares the collection and id key of a document type
func (r *Registry) AddDocument(collectionName, idKey string, t TypeID) error {
	if t == nil {
		return fmt.Errorf("%w: document type is nil", ErrInvalidDeclaration)
	}
	if collectionName == "" || idKey == "" {
		return fmt.Errorf("%w: %q needs a collection name and an id key", ErrInvalidDeclaration, t.String())
	}

	d := r.descriptor(t)
	if d.Mapped() {
		return &AlreadyMappedError{Type: t, Collection: d.CollectionName}
	}

	d.CollectionName = collectionName
	d.IDKey = idKey

	r.logger.Debug("document declared",
		zap.Stringer("type", t),
		zap.String("collection", collectionName),
		zap.String("id_key", idKey))
	return nil
}

// AddReference declares that fieldName of t references documents of referent
func (r *Registry) AddReference(t TypeID, fieldName string, referent TypeID) error {
	if t == nil || referent == nil {
		return fmt.Errorf("%w: reference types must not be nil", ErrInvalidDeclaration)
	}
	if fieldName == "" {
		return fmt.Errorf("%w: reference of %q needs a field name", ErrInvalidDeclaration, t.String())
	}

	d := r.descriptor(t)
	if _, exists := d.reference(fieldName); exists {
		return &DuplicateReferenceError{Type: t, Field: fieldName, Referent: referent}
	}

	d.References = append(d.References, ReferenceDescriptor{FieldName: fieldName, Referent: referent})

	r.logger.Debug("reference declared",
		zap.Stringer("type", t),
		zap.String("field", fieldName),
		zap.Stringer("referent", referent))
	return nil
}

// descriptor returns the descriptor for t, creating it in registration order
func (r *Registry) descriptor(t TypeID) *EntityDescriptor {
	if d, ok := r.index[t]; ok {
		return d
	}
	d := &EntityDescriptor{Type: t}
	r.descriptors = append(r.descriptors, d)
	r.index[t] = d
	return d
}

// Descriptor returns a copy of the declaration of t
func (r *Registry) Descriptor(t TypeID) (EntityDescriptor, bool) {
	d, ok := r.index[t]
	if !ok {
		return EntityDescriptor{}, false
	}
	return d.clone(), true
}

// Reference returns the declared reference of t for fieldName
func (r *Registry) Reference(t TypeID, fieldName string) (ReferenceDescriptor, bool) {
	d, ok := r.index[t]
	if !ok {
		return ReferenceDescriptor{}, false
	}
	return d.reference(fieldName)
}

// Descriptors returns copies of all declarations in registration order
func (r *Registry) Descriptors() []EntityDescriptor {
	out := make([]EntityDescriptor, len(r.descriptors))
	for i, d := range r.descriptors {
		out[i] = d.clone()
	}
	return out
}

// Len returns the number of declared types
func (r *Registry) Len() int {
	return len(r.descriptors)
}

// ValidateAll checks that every declared type, and every type referenced by
// one, carries a complete document declaration. Descriptors are checked in
// registration order and the first failure is returned.
func (r *Registry) ValidateAll() error {
	for _, d := range r.descriptors {
		if !d.Complete() {
			return &UndecoratedTypeError{Type: d.Type}
		}

		for _, ref := range d.References {
			if _, ok := r.index[ref.Referent]; !ok {
				return &UndecoratedTypeError{Type: ref.Referent}
			}
		}
	}
	return nil
}

// ResolveAll validates the declarations and builds a new snapshot graph.
//
// Nodes are created for every descriptor before any reference is wired, so
// forward and cyclic references resolve without recursion. Each call rebuilds
// the graph from the current declarations and replaces the cached one.
func (r *Registry) ResolveAll() (*Graph, error) {
	if err := r.ValidateAll(); err != nil {
		return nil, fmt.Errorf("failed to resolve documents: %w", err)
	}

	graph := newGraph(len(r.descriptors))

	// First pass: one node per descriptor
	for _, d := range r.descriptors {
		graph.add(&Node{
			Type:           d.Type,
			CollectionName: d.CollectionName,
			IDKey:          d.IDKey,
			References:     make(map[string]*Node, len(d.References)),
		})
	}

	// Second pass: wire references to the nodes created above
	for _, d := range r.descriptors {
		node := graph.byType[d.Type]
		for _, ref := range d.References {
			node.References[ref.FieldName] = graph.byType[ref.Referent]
		}
	}

	if cycles := graph.Cycles(); len(cycles) > 0 {
		r.logger.Debug("reference cycles in snapshot graph",
			zap.Int("count", len(cycles)),
			zap.String("cycles", formatCycles(cycles)))
	}

	r.graph = graph
	r.logger.Debug("snapshot graph resolved", zap.Int("documents", graph.Len()))
	return graph, nil
}

// Snapshot returns the graph built by the last successful ResolveAll, or nil.
// Declarations made after that call are not reflected until ResolveAll runs again.
func (r *Registry) Snapshot() *Graph {
	return r.graph
}

// ClearAll removes every declaration and the cached graph (useful for testing)
func (r *Registry) ClearAll() {
	r.descriptors = nil
	r.index = make(map[TypeID]*EntityDescriptor)
	r.types = make(map[string]*NamedType)
	r.graph = nil
}
