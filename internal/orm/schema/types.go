// Package schema provides document type declarations, the metadata registry
// and the resolved snapshot graph consumed by collections
package schema

import (
	"reflect"
	"sort"
)

// DefaultIDKey is the id key used when a declaration does not name one
const DefaultIDKey = "id"

// TypeID identifies a declared document type. Values are compared by
// identity, never structurally: reflect.Type for Go types and *NamedType for
// types declared by name.
type TypeID interface {
	String() string
}

// TypeOf returns the TypeID of T. Pointer types identify their element type.
func TypeOf[T any]() TypeID {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// NamedType is a document type declared by name, typically from a schema file.
// Obtain instances through Registry.NamedType so that equal names share one identity.
type NamedType struct {
	name string
}

// String returns the declared type name
func (n *NamedType) String() string {
	return n.name
}

// ReferenceDescriptor is a declared reference from a field to another document type
type ReferenceDescriptor struct {
	FieldName string
	Referent  TypeID
}

// EntityDescriptor is the raw declaration of a document type. It may be
// incomplete while declarations are still arriving.
type EntityDescriptor struct {
	Type           TypeID
	CollectionName string
	IDKey          string
	References     []ReferenceDescriptor
}

// Mapped reports whether the collection name or id key has been declared
func (d *EntityDescriptor) Mapped() bool {
	return d.CollectionName != "" || d.IDKey != ""
}

// Complete reports whether both the collection name and id key are declared
func (d *EntityDescriptor) Complete() bool {
	return d.CollectionName != "" && d.IDKey != ""
}

func (d *EntityDescriptor) reference(fieldName string) (ReferenceDescriptor, bool) {
	for _, ref := range d.References {
		if ref.FieldName == fieldName {
			return ref, true
		}
	}
	return ReferenceDescriptor{}, false
}

func (d *EntityDescriptor) clone() EntityDescriptor {
	out := *d
	out.References = append([]ReferenceDescriptor(nil), d.References...)
	return out
}

// Node is a resolved document type in a snapshot graph. References point
// directly at other nodes of the same graph and may form cycles.
// Nodes are read-only once the graph is built.
type Node struct {
	Type           TypeID
	CollectionName string
	IDKey          string
	References     map[string]*Node
}

// Reference returns the node referenced by a field
func (n *Node) Reference(fieldName string) (*Node, bool) {
	ref, ok := n.References[fieldName]
	return ref, ok
}

// IsReference reports whether the field holds a reference
func (n *Node) IsReference(fieldName string) bool {
	_, ok := n.References[fieldName]
	return ok
}

// ReferenceFields returns the reference field names in sorted order
func (n *Node) ReferenceFields() []string {
	fields := make([]string, 0, len(n.References))
	for field := range n.References {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// String returns the collection name of the node
func (n *Node) String() string {
	return n.CollectionName
}
