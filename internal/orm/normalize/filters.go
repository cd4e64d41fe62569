package normalize

import (
	"fmt"

	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Filter is a predicate translated into store terms
type Filter struct {
	query.Where

	// ID marks a predicate on the node's id key; values are id strings
	ID bool
	// Reference marks a predicate on a reference field; values are handles
	Reference bool
}

// Values returns the list operand of a multi-valued filter, or the single
// operand wrapped in a slice
func (f Filter) Values() []any {
	if list, ok := f.Value.([]any); ok {
		return list
	}
	return []any{f.Value}
}

// Filters translates query predicates for a store. Id-key values become id
// strings, reference values become handles and times become canonical text.
func Filters(node *schema.Node, wheres []query.Where) ([]Filter, error) {
	out := make([]Filter, 0, len(wheres))
	for _, w := range wheres {
		if !w.Operator.Valid() {
			return nil, &query.UnsupportedOperatorError{Operator: w.Operator, Key: w.Key}
		}

		f := Filter{Where: w}
		var convert func(any) (any, error)

		switch {
		case w.Key == node.IDKey:
			f.ID = true
			convert = func(v any) (any, error) {
				if rec, ok := v.(document.Record); ok {
					v = rec[node.IDKey]
				}
				return IDValue(v)
			}
		case node.IsReference(w.Key):
			f.Reference = true
			referent := node.References[w.Key]
			convert = func(v any) (any, error) {
				ref, err := RefValue(referent, v)
				if err != nil || ref == nil {
					return nil, err
				}
				return *ref, nil
			}
		default:
			convert = func(v any) (any, error) {
				return document.Canonical(v), nil
			}
		}

		value, err := convertOperand(w, convert)
		if err != nil {
			return nil, fmt.Errorf("filter on %s: %w", w.Key, err)
		}
		f.Value = value
		out = append(out, f)
	}
	return out, nil
}

func convertOperand(w query.Where, convert func(any) (any, error)) (any, error) {
	if !w.Operator.IsMulti() {
		return convert(w.Value)
	}

	list, ok := query.AsList(w.Value)
	if !ok {
		return nil, fmt.Errorf("operator %s requires a list, got %T", w.Operator, w.Value)
	}
	out := make([]any, len(list))
	for i, item := range list {
		v, err := convert(item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
