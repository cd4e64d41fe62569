package schema

import (
	"errors"
)

// Document declares T as a document stored in collectionName.
// The id key defaults to DefaultIDKey.
func Document[T any](r *Registry, collectionName string, idKey ...string) error {
	return r.AddDocument(collectionName, idKeyOrDefault(idKey), TypeOf[T]())
}

// Reference declares that fieldName of T references documents of R
func Reference[T, R any](r *Registry, fieldName string) error {
	return r.AddReference(TypeOf[T](), fieldName, TypeOf[R]())
}

func idKeyOrDefault(idKey []string) string {
	if len(idKey) > 0 && idKey[0] != "" {
		return idKey[0]
	}
	return DefaultIDKey
}

// Definer declares documents fluently and collects errors until Err is called
type Definer struct {
	registry *Registry
	errors   []error
}

// Define starts a schema definition against r
func Define(r *Registry) *Definer {
	return &Definer{
		registry: r,
		errors:   make([]error, 0),
	}
}

// Document declares t as a document stored in collectionName
func (d *Definer) Document(t TypeID, collectionName string, idKey ...string) *Definer {
	if err := d.registry.AddDocument(collectionName, idKeyOrDefault(idKey), t); err != nil {
		d.errors = append(d.errors, err)
	}
	return d
}

// Reference declares that fieldName of t references documents of referent
func (d *Definer) Reference(t TypeID, fieldName string, referent TypeID) *Definer {
	if err := d.registry.AddReference(t, fieldName, referent); err != nil {
		d.errors = append(d.errors, err)
	}
	return d
}

// Err returns every error collected so far, joined
func (d *Definer) Err() error {
	return errors.Join(d.errors...)
}
