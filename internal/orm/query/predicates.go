// Package query provides the immutable query builder and the filter and
// ordering value types it produces
package query

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Operator represents a filter comparison operator
type Operator string

const (
	OpEqualTo              Operator = "=="
	OpLessThan             Operator = "<"
	OpLessThanOrEqualTo    Operator = "<="
	OpGreaterThan          Operator = ">"
	OpGreaterThanOrEqualTo Operator = ">="
	OpIn                   Operator = "in"
	OpArrayContains        Operator = "array-contains"
	OpArrayContainsAny     Operator = "array-contains-any"
)

// Operators lists every supported operator
var Operators = []Operator{
	OpEqualTo,
	OpLessThan,
	OpLessThanOrEqualTo,
	OpGreaterThan,
	OpGreaterThanOrEqualTo,
	OpIn,
	OpArrayContains,
	OpArrayContainsAny,
}

// String returns the token of the operator
func (o Operator) String() string {
	return string(o)
}

// Valid reports whether o is one of the supported operators
func (o Operator) Valid() bool {
	for _, op := range Operators {
		if op == o {
			return true
		}
	}
	return false
}

// IsMulti reports whether the operator takes a list of values
func (o Operator) IsMulti() bool {
	return o == OpIn || o == OpArrayContainsAny
}

// ParseOperator converts an operator token to an Operator
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "==", "=":
		return OpEqualTo, nil
	case "<":
		return OpLessThan, nil
	case "<=":
		return OpLessThanOrEqualTo, nil
	case ">":
		return OpGreaterThan, nil
	case ">=":
		return OpGreaterThanOrEqualTo, nil
	case "in":
		return OpIn, nil
	case "array-contains":
		return OpArrayContains, nil
	case "array-contains-any":
		return OpArrayContainsAny, nil
	default:
		return "", fmt.Errorf("unknown operator: %s", s)
	}
}

// Where is a single filter predicate. The value is opaque to the builder and
// forwarded to the adapter untouched.
type Where struct {
	Key      string
	Operator Operator
	Value    any
}

// NewWhere creates a filter predicate
func NewWhere(key string, op Operator, value any) Where {
	return Where{Key: key, Operator: op, Value: value}
}

// String returns a readable form of the predicate
func (w Where) String() string {
	return fmt.Sprintf("%s %s %v", w.Key, w.Operator, w.Value)
}

// WhereRecord maps field names to values. Slice values decompose to an "in"
// predicate, any other value to equality.
type WhereRecord map[string]any

// Decompose converts the record to predicates ordered by key
func (r WhereRecord) Decompose() []Where {
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Where, 0, len(keys))
	for _, key := range keys {
		value := r[key]
		if list, ok := AsList(value); ok {
			out = append(out, NewWhere(key, OpIn, list))
			continue
		}
		out = append(out, NewWhere(key, OpEqualTo, value))
	}
	return out
}

// AsList copies slice and array values into a new []any. Byte slices are
// treated as scalar values.
func AsList(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if list, ok := value.([]any); ok {
		return append([]any{}, list...), true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// ParseCondition parses a textual predicate such as "status=open",
// "views>=10" or "tags array-contains go". Values of multi operators are
// comma separated.
func ParseCondition(expr string) (Where, error) {
	expr = strings.TrimSpace(expr)

	// The leftmost operator wins; at equal positions the longer token does,
	// so "<=" is not read as "<"
	best, bestIdx := "", -1
	for _, token := range conditionTokens {
		idx := strings.Index(expr, token)
		if idx <= 0 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx || (idx == bestIdx && len(token) > len(best)) {
			best, bestIdx = token, idx
		}
	}
	if bestIdx == -1 {
		return Where{}, fmt.Errorf("invalid condition format: %s", expr)
	}

	op, err := ParseOperator(best)
	if err != nil {
		return Where{}, err
	}
	return buildCondition(expr[:bestIdx], op, expr[bestIdx+len(best):])
}

// conditionTokens are the operator spellings accepted by ParseCondition.
// Word operators must be surrounded by spaces.
var conditionTokens = []string{
	" array-contains-any ",
	" array-contains ",
	" in ",
	"==", "<=", ">=", "<", ">", "=",
}

func buildCondition(key string, op Operator, raw string) (Where, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Where{}, fmt.Errorf("condition has no field: %s %s", op, raw)
	}

	raw = strings.TrimSpace(raw)
	if !op.IsMulti() {
		return NewWhere(key, op, ParseLiteral(raw)), nil
	}

	parts := strings.Split(raw, ",")
	values := make([]any, 0, len(parts))
	for _, part := range parts {
		values = append(values, ParseLiteral(strings.TrimSpace(part)))
	}
	return NewWhere(key, op, values), nil
}

// ParseLiteral parses a literal value from a string. RFC 3339 timestamps
// become time values.
func ParseLiteral(s string) any {
	// Quoted values are always strings
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}

	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}

	// Floats only when a decimal point is present
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	return s
}
