package sqlstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Dialect renders the store's SQL for one database engine. Documents live in
// one table per collection with an id column and a JSON data column.
type Dialect interface {
	// Name returns the dialect name used in configuration
	Name() string
	// DriverName returns the database/sql driver name
	DriverName() string
	// CreateTable returns the DDL creating a collection table
	CreateTable(table string) string
	// Placeholder returns the n-th (1-based) positional parameter
	Placeholder(n int) string
	// ValueParam wraps a placeholder compared against a JSON value
	ValueParam(placeholder string) string
	// Path returns the expression selecting a (dotted) data field
	Path(key string) string
	// Bind converts a filter operand to a driver argument for ValueParam
	Bind(v any) (any, error)
	// IsNull matches a missing or null JSON value
	IsNull(expr string) string
	// ArrayContains matches a data field holding an array with the parameter
	ArrayContains(key, param string) string
	// ArrayContainsAny matches a data field holding an array with any of the parameters
	ArrayContainsAny(key string, params []string) string
	// NoLimit is the LIMIT operand meaning unlimited
	NoLimit() string
}

// DialectFor returns the dialect with the given name
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	}
	return nil, fmt.Errorf("unsupported sql dialect %q", name)
}

// SQLite stores data as JSON text queried through json_extract
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite3" }

func (SQLite) CreateTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, data TEXT NOT NULL)", table)
}

func (SQLite) Placeholder(int) string { return "?" }
func (SQLite) ValueParam(placeholder string) string { return placeholder }

func (SQLite) Path(key string) string {
	return fmt.Sprintf("json_extract(data, '$.%s')", key)
}

// Bind maps booleans to the integers json_extract yields and encodes
// composite values as JSON text
func (SQLite) Bind(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	return v, nil
}

func (SQLite) IsNull(expr string) string {
	return expr + " IS NULL"
}

func (SQLite) ArrayContains(key, param string) string {
	return fmt.Sprintf("(json_type(data, '$.%s') = 'array' AND EXISTS (SELECT 1 FROM json_each(data, '$.%s') WHERE json_each.value = %s))", key, key, param)
}

func (SQLite) ArrayContainsAny(key string, params []string) string {
	return fmt.Sprintf("(json_type(data, '$.%s') = 'array' AND EXISTS (SELECT 1 FROM json_each(data, '$.%s') WHERE json_each.value IN (%s)))", key, key, strings.Join(params, ", "))
}

func (SQLite) NoLimit() string { return "-1" }

// Postgres stores data as jsonb and compares values as jsonb
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) CreateTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, data JSONB NOT NULL)", table)
}

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) ValueParam(placeholder string) string {
	return placeholder + "::jsonb"
}

func (Postgres) Path(key string) string {
	return fmt.Sprintf("(data #> '{%s}')", strings.ReplaceAll(key, ".", ","))
}

// Bind encodes the operand as JSON text for a jsonb comparison
func (Postgres) Bind(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (Postgres) IsNull(expr string) string {
	return fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", expr, expr)
}

func (p Postgres) ArrayContains(key, param string) string {
	expr := p.Path(key)
	return fmt.Sprintf("(jsonb_typeof(%s) = 'array' AND %s @> jsonb_build_array(%s))", expr, expr, param)
}

func (p Postgres) ArrayContainsAny(key string, params []string) string {
	clauses := make([]string, len(params))
	for i, param := range params {
		clauses[i] = p.ArrayContains(key, param)
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

func (Postgres) NoLimit() string { return "ALL" }
