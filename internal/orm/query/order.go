package query

import (
	"fmt"
	"sort"
	"strings"
)

// Direction represents an ordering direction
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// String returns the token of the direction
func (d Direction) String() string {
	return string(d)
}

// Valid reports whether d is a supported direction
func (d Direction) Valid() bool {
	return d == Ascending || d == Descending
}

// ParseDirection converts a direction token to a Direction
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return "", fmt.Errorf("unknown order direction: %s", s)
	}
}

// OrderBy is a single ordering clause
type OrderBy struct {
	Key       string
	Direction Direction
}

// NewOrderBy creates an ordering clause; direction defaults to Ascending
func NewOrderBy(key string, direction ...Direction) OrderBy {
	dir := Ascending
	if len(direction) > 0 && direction[0] != "" {
		dir = direction[0]
	}
	return OrderBy{Key: key, Direction: dir}
}

// OrderByRecord maps field names to directions
type OrderByRecord map[string]Direction

// Decompose converts the record to ordering clauses ordered by key
func (r OrderByRecord) Decompose() []OrderBy {
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]OrderBy, 0, len(keys))
	for _, key := range keys {
		out = append(out, NewOrderBy(key, r[key]))
	}
	return out
}

// ParseOrder parses "field" or "field:desc"
func ParseOrder(expr string) (OrderBy, error) {
	key, dir, found := strings.Cut(strings.TrimSpace(expr), ":")
	if key == "" {
		return OrderBy{}, fmt.Errorf("order has no field: %q", expr)
	}
	if !found {
		return NewOrderBy(key), nil
	}

	direction, err := ParseDirection(dir)
	if err != nil {
		return OrderBy{}, err
	}
	return NewOrderBy(key, direction), nil
}
