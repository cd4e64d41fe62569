// Package document provides the store-neutral value types shared by the
// collection, normalizer and store adapters
package document

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the canonical text form of timestamps written to a store.
// It is fixed width so stored values order lexically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// stringEscape prefixes stored strings that would otherwise read back as
// timestamps, and strings that already start with it
const stringEscape = "\x1f"

// NewID returns a random document id
func NewID() string {
	return uuid.NewString()
}

// Record is a normalized document keyed by field name.
// The id key is present and reference fields hold nested records.
type Record map[string]any

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Ref is a store-native handle to another document
type Ref struct {
	Collection string `json:"collection" msgpack:"collection"`
	ID         string `json:"id" msgpack:"id"`
}

// String returns the path form of the reference
func (r Ref) String() string {
	return r.Collection + "/" + r.ID
}

// AsRef reports whether v is a reference handle.
// Decoded maps carrying exactly the collection and id keys are accepted so
// handles survive a round trip through JSON or msgpack.
func AsRef(v any) (Ref, bool) {
	switch ref := v.(type) {
	case Ref:
		return ref, true
	case *Ref:
		if ref == nil {
			return Ref{}, false
		}
		return *ref, true
	case map[string]any:
		return refFromMap(ref)
	case Record:
		return refFromMap(ref)
	}
	return Ref{}, false
}

func refFromMap(m map[string]any) (Ref, bool) {
	if len(m) != 2 {
		return Ref{}, false
	}
	coll, ok := m["collection"].(string)
	if !ok {
		return Ref{}, false
	}
	id, ok := m["id"].(string)
	if !ok {
		return Ref{}, false
	}
	return Ref{Collection: coll, ID: id}, true
}

// Snapshot is a document as a store holds it: the id is positional and
// reference fields hold Ref handles.
type Snapshot struct {
	ID   string
	Data map[string]any
}

// Field returns a data field of the snapshot
func (s Snapshot) Field(key string) (any, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// FormatTime renders t in the canonical UTC layout
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp written by FormatTime
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// StoredTime reports whether s is a timestamp in canonical form
func StoredTime(s string) (time.Time, bool) {
	if len(s) != len(TimeLayout)-len("Z07:00")+1 || s[len(s)-1] != 'Z' {
		return time.Time{}, false
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// StoreString returns the stored form of a plain string. Strings in canonical
// timestamp form are escaped so they read back as strings.
func StoreString(s string) string {
	if strings.HasPrefix(s, stringEscape) {
		return stringEscape + s
	}
	if _, ok := StoredTime(s); ok {
		return stringEscape + s
	}
	return s
}

// RestoreString reverses StoreString. Unescaped canonical timestamps become
// time values.
func RestoreString(s string) any {
	if rest, ok := strings.CutPrefix(s, stringEscape); ok {
		return rest
	}
	if t, ok := StoredTime(s); ok {
		return t
	}
	return s
}

// Canonical converts time values, including those nested in slices and maps,
// to their canonical text form and escapes strings through StoreString.
// Other values are returned unchanged.
func Canonical(v any) any {
	switch val := v.(type) {
	case string:
		return StoreString(val)
	case time.Time:
		return FormatTime(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		return FormatTime(*val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Canonical(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Canonical(item)
		}
		return out
	case Record:
		return Canonical(map[string]any(val))
	default:
		return v
	}
}

// Numbers replaces json.Number values, including nested ones, in place.
// Integral numbers become int64 and others float64.
func Numbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, item := range val {
			val[k] = Numbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = Numbers(item)
		}
		return val
	}
	return v
}
