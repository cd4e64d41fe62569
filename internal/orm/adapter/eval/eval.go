// Package eval evaluates queries in process over store snapshots, for stores
// that cannot filter, order or paginate server side
package eval

import (
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/normalize"
	"github.com/conduit-lang/docmap/internal/orm/query"
)

// Lookup returns the value of key in the snapshot. The id key resolves to the
// positional id and dotted keys descend into nested maps.
func Lookup(snap document.Snapshot, idKey, key string) (any, bool) {
	if key == idKey {
		return snap.ID, true
	}

	var current any = snap.Data
	for _, part := range strings.Split(key, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case document.Record:
		return m, true
	}
	return nil, false
}

// Match reports whether the snapshot satisfies every filter
func Match(snap document.Snapshot, idKey string, filters []normalize.Filter) bool {
	for _, f := range filters {
		value, _ := Lookup(snap, idKey, f.Key)
		if !matchOne(f, value) {
			return false
		}
	}
	return true
}

func matchOne(f normalize.Filter, value any) bool {
	switch f.Operator {
	case query.OpEqualTo:
		return Equal(value, f.Value)
	case query.OpLessThan:
		c, ok := Compare(value, f.Value)
		return ok && c < 0
	case query.OpLessThanOrEqualTo:
		c, ok := Compare(value, f.Value)
		return ok && c <= 0
	case query.OpGreaterThan:
		c, ok := Compare(value, f.Value)
		return ok && c > 0
	case query.OpGreaterThanOrEqualTo:
		c, ok := Compare(value, f.Value)
		return ok && c >= 0
	case query.OpIn:
		return slices.ContainsFunc(f.Values(), func(candidate any) bool {
			return Equal(value, candidate)
		})
	case query.OpArrayContains:
		items, ok := query.AsList(value)
		return ok && slices.ContainsFunc(items, func(item any) bool {
			return Equal(item, f.Value)
		})
	case query.OpArrayContainsAny:
		items, ok := query.AsList(value)
		if !ok {
			return false
		}
		for _, candidate := range f.Values() {
			if slices.ContainsFunc(items, func(item any) bool { return Equal(item, candidate) }) {
				return true
			}
		}
		return false
	}
	return false
}

// Equal compares two stored values. Handles compare by collection and id,
// numbers by value regardless of their Go type.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ra, ok := document.AsRef(a); ok {
		rb, ok := document.AsRef(b)
		return ok && ra == rb
	}
	if isNumber(a) && isNumber(b) {
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two stored values of the same kind. The second result is
// false when the values are not comparable.
func Compare(a, b any) (int, bool) {
	switch {
	case a == nil || b == nil:
		return 0, false
	case isNumber(a) && isNumber(b):
		x, y := cast.ToFloat64(a), cast.ToFloat64(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}

	if ra, ok := document.AsRef(a); ok {
		rb, ok := document.AsRef(b)
		if !ok {
			return 0, false
		}
		return strings.Compare(ra.String(), rb.String()), true
	}
	return 0, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// Sort orders snapshots by the given clauses. Missing and incomparable values
// sort before present ones; ties keep their input order.
func Sort(snaps []document.Snapshot, idKey string, orders []query.OrderBy) {
	if len(orders) == 0 {
		return
	}
	slices.SortStableFunc(snaps, func(x, y document.Snapshot) int {
		for _, o := range orders {
			a, _ := Lookup(x, idKey, o.Key)
			b, _ := Lookup(y, idKey, o.Key)

			c := sortCompare(a, b)
			if o.Direction == query.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func sortCompare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c, ok := Compare(a, b); ok {
		return c
	}
	return strings.Compare(reflect.TypeOf(a).String(), reflect.TypeOf(b).String())
}

// Page applies offset and limit. A nil limit keeps every remaining snapshot.
func Page(snaps []document.Snapshot, offset, limit *int) []document.Snapshot {
	if offset != nil {
		if *offset >= len(snaps) {
			return nil
		}
		if *offset > 0 {
			snaps = snaps[*offset:]
		}
	}
	if limit != nil && *limit >= 0 && *limit < len(snaps) {
		snaps = snaps[:*limit]
	}
	return snaps
}

// Project keeps only the selected data fields. The id stays positional and
// an empty selection keeps every field.
func Project(snap document.Snapshot, selected []string) document.Snapshot {
	if len(selected) == 0 {
		return snap
	}
	data := make(map[string]any, len(selected))
	for _, key := range selected {
		if v, ok := snap.Data[key]; ok {
			data[key] = v
		}
	}
	return document.Snapshot{ID: snap.ID, Data: data}
}

// Filter returns the snapshots matching every filter
func Filter(snaps []document.Snapshot, idKey string, filters []normalize.Filter) []document.Snapshot {
	out := make([]document.Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		if Match(snap, idKey, filters) {
			out = append(out, snap)
		}
	}
	return out
}

// Apply runs the full query over snapshots: filter, order, page and project
func Apply(snaps []document.Snapshot, idKey string, q query.Query, filters []normalize.Filter) []document.Snapshot {
	out := Filter(snaps, idKey, filters)
	Sort(out, idKey, q.OrderBy)
	out = Page(out, q.Offset, q.Limit)

	if len(q.Select) == 0 {
		return out
	}
	projected := make([]document.Snapshot, len(out))
	for i, snap := range out {
		projected[i] = Project(snap, q.Select)
	}
	return projected
}
