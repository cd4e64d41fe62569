package schema

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// File is the YAML form of a schema definition
type File struct {
	Documents []FileDocument `yaml:"documents"`
}

// FileDocument declares one document type by name
type FileDocument struct {
	Type       string            `yaml:"type"`
	Collection string            `yaml:"collection"`
	IDKey      string            `yaml:"id_key"`
	References map[string]string `yaml:"references"`
}

// LoadFile reads a YAML schema file and declares its documents in r
func LoadFile(r *Registry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open schema file: %w", err)
	}
	defer f.Close()

	if err := Load(r, f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load declares the documents of a YAML schema in r.
// An entry without a collection only declares references; its type must be
// declared elsewhere before the registry is resolved.
func Load(r *Registry, in io.Reader) error {
	var file File
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return fmt.Errorf("failed to parse schema: %w", err)
	}

	def := Define(r)
	for i, doc := range file.Documents {
		if doc.Type == "" {
			def.errors = append(def.errors, fmt.Errorf("%w: document %d has no type", ErrInvalidDeclaration, i))
			continue
		}
		t := r.NamedType(doc.Type)

		if doc.Collection != "" {
			def.Document(t, doc.Collection, doc.IDKey)
		}

		// Map order is random; declare references in field order
		fields := make([]string, 0, len(doc.References))
		for field := range doc.References {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			def.Reference(t, field, r.NamedType(doc.References[field]))
		}
	}

	return def.Err()
}
