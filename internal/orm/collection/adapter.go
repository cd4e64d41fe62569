// Package collection binds the query builder to a store adapter and a
// resolved document node
package collection

import (
	"context"

	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Adapter executes queries and writes against a concrete store.
// Every method may block on I/O; cancellation and timeouts come from ctx.
type Adapter interface {
	// Count returns the number of documents matching the query filters
	Count(ctx context.Context, node *schema.Node, q query.Query) (int, error)

	// Fetch returns every document matching the query
	Fetch(ctx context.Context, node *schema.Node, q query.Query) ([]document.Record, error)

	// Stream returns a lazy, single-pass sequence of matching documents
	Stream(ctx context.Context, node *schema.Node, q query.Query) (Stream, error)

	// Create stores a new document and returns its id. The store generates
	// an id when the record carries none.
	Create(ctx context.Context, node *schema.Node, rec document.Record) (string, error)

	// Update replaces a stored document
	Update(ctx context.Context, node *schema.Node, rec document.Record) error

	// Delete removes a stored document
	Delete(ctx context.Context, node *schema.Node, rec document.Record) error
}

// Stream is a lazy, finite, single-pass sequence of records
type Stream interface {
	// Next advances to the next record and reports whether one is available
	Next(ctx context.Context) bool
	// Record returns the current record
	Record() document.Record
	// Err returns the error that stopped iteration, if any
	Err() error
	// Close releases resources held by the stream
	Close() error
}

// SliceStream returns a Stream over already loaded records
func SliceStream(records []document.Record) Stream {
	return &sliceStream{records: records, pos: -1}
}

type sliceStream struct {
	records []document.Record
	pos     int
	err     error
}

func (s *sliceStream) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.pos+1 >= len(s.records) {
		s.pos = len(s.records)
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Record() document.Record {
	if s.pos < 0 || s.pos >= len(s.records) {
		return nil
	}
	return s.records[s.pos]
}

func (s *sliceStream) Err() error {
	return s.err
}

func (s *sliceStream) Close() error {
	s.pos = len(s.records)
	return nil
}
