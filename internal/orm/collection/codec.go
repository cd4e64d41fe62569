package collection

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/conduit-lang/docmap/internal/orm/document"
)

var (
	recordType        = reflect.TypeFor[document.Record]()
	timeType          = reflect.TypeFor[time.Time]()
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// encode converts a typed document to a record keyed by its JSON field
// names. Time values are kept as time.Time and nested documents become
// nested records.
func encode[T any](doc *T) (document.Record, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	if rec, ok := any(*doc).(document.Record); ok {
		return rec.Clone(), nil
	}

	value, err := toValue(reflect.ValueOf(doc))
	if err != nil {
		return nil, err
	}
	rec, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document of type %T does not encode to an object", *doc)
	}
	return document.Record(rec), nil
}

// decode converts a record to a typed document through its JSON form
func decode[T any](rec document.Record) (*T, error) {
	out := new(T)
	if reflect.TypeFor[T]() == recordType {
		*any(out).(*document.Record) = rec.Clone()
		return out, nil
	}
	if err := decodeInto(rec, out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeInto overlays the record onto an existing document
func decodeInto(rec document.Record, out any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode record into %T: %w", out, err)
	}
	return nil
}

// toValue walks a value the way encoding/json would, stopping at time values.
// Values with their own JSON or text form are stored in that form.
func toValue(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return toValue(v.Elem())
	}

	if v.Type() == timeType {
		return v.Interface(), nil
	}
	if m, ok := marshaler(v); ok {
		return marshalValue(m)
	}

	switch v.Kind() {
	case reflect.Struct:
		out := make(map[string]any)
		if err := structFields(v, out); err != nil {
			return nil, err
		}
		return out, nil

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return v.Interface(), nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			item, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = item
		}
		return out, nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface(), nil
		}
		fallthrough

	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			item, err := toValue(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil

	default:
		return v.Interface(), nil
	}
}

// marshaler returns v as a json.Marshaler or encoding.TextMarshaler,
// including methods declared on the pointer of an addressable value
func marshaler(v reflect.Value) (any, bool) {
	t := v.Type()
	if t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) {
		return v.Interface(), true
	}
	if v.CanAddr() {
		pt := reflect.PointerTo(t)
		if pt.Implements(jsonMarshalerType) || pt.Implements(textMarshalerType) {
			return v.Addr().Interface(), true
		}
	}
	return nil, false
}

// marshalValue stores a value in its JSON form, decoded back to plain values
func marshalValue(m any) (any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", m, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", m, err)
	}
	return document.Numbers(out), nil
}

// structFields copies exported fields into out using their JSON names.
// Untagged embedded structs are flattened.
func structFields(v reflect.Value, out map[string]any) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		fv := v.Field(i)

		if field.Anonymous && name == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct && inner.Type() != timeType {
				if _, ok := marshaler(inner); !ok {
					if err := structFields(inner, out); err != nil {
						return err
					}
					continue
				}
			}
		}

		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		value, err := toValue(fv)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = value
	}
	return nil
}
