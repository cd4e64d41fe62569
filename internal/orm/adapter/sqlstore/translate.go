package sqlstore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/normalize"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// ErrInvalidName is returned for collection or field names that cannot be
// embedded in SQL
var ErrInvalidName = errors.New("invalid collection or field name")

var (
	tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	keyPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// never is a condition no row satisfies
const never = "1 = 0"

// tableName returns the quoted table of a collection
func tableName(collection string) (string, error) {
	if !tablePattern.MatchString(collection) {
		return "", fmt.Errorf("%w: collection %q", ErrInvalidName, collection)
	}
	return `"` + collection + `"`, nil
}

func validKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: field %q", ErrInvalidName, key)
	}
	return nil
}

// statement accumulates SQL text and its positional arguments
type statement struct {
	dialect Dialect
	sql     strings.Builder
	args    []any
}

func newStatement(d Dialect, format string, a ...any) *statement {
	s := &statement{dialect: d}
	fmt.Fprintf(&s.sql, format, a...)
	return s
}

func (s *statement) String() string {
	return s.sql.String()
}

// param binds a raw argument
func (s *statement) param(v any) string {
	s.args = append(s.args, v)
	return s.dialect.Placeholder(len(s.args))
}

// value binds an argument compared against a JSON value
func (s *statement) value(v any) (string, error) {
	bound, err := s.dialect.Bind(v)
	if err != nil {
		return "", err
	}
	return s.dialect.ValueParam(s.param(bound)), nil
}

// where appends the conjunction of the filters
func (s *statement) where(filters []normalize.Filter) error {
	if len(filters) == 0 {
		return nil
	}
	clauses := make([]string, 0, len(filters))
	for _, f := range filters {
		clause, err := s.condition(f)
		if err != nil {
			return fmt.Errorf("filter on %s: %w", f.Key, err)
		}
		clauses = append(clauses, clause)
	}
	s.sql.WriteString(" WHERE ")
	s.sql.WriteString(strings.Join(clauses, " AND "))
	return nil
}

func (s *statement) condition(f normalize.Filter) (string, error) {
	if f.ID {
		return s.idCondition(f), nil
	}
	if err := validKey(f.Key); err != nil {
		return "", err
	}

	expr := s.dialect.Path(f.Key)
	bind := s.value
	if f.Reference {
		expr = s.dialect.Path(f.Key + ".id")
		bind = func(v any) (string, error) {
			ref, _ := document.AsRef(v)
			return s.value(ref.ID)
		}
	}
	isNull := s.dialect.IsNull(s.dialect.Path(f.Key))

	switch f.Operator {
	case query.OpEqualTo:
		if f.Value == nil {
			return isNull, nil
		}
		p, err := bind(f.Value)
		if err != nil {
			return "", err
		}
		return expr + " = " + p, nil

	case query.OpLessThan, query.OpLessThanOrEqualTo, query.OpGreaterThan, query.OpGreaterThanOrEqualTo:
		if f.Value == nil {
			return never, nil
		}
		p, err := bind(f.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", expr, f.Operator, p), nil

	case query.OpIn:
		var params []string
		var clauses []string
		for _, v := range f.Values() {
			if v == nil {
				clauses = append(clauses, isNull)
				continue
			}
			p, err := bind(v)
			if err != nil {
				return "", err
			}
			params = append(params, p)
		}
		if len(params) > 0 {
			clauses = append([]string{fmt.Sprintf("%s IN (%s)", expr, strings.Join(params, ", "))}, clauses...)
		}
		return disjunction(clauses), nil

	case query.OpArrayContains:
		if f.Reference {
			return never, nil
		}
		p, err := s.value(f.Value)
		if err != nil {
			return "", err
		}
		return s.dialect.ArrayContains(f.Key, p), nil

	case query.OpArrayContainsAny:
		values := f.Values()
		if f.Reference || len(values) == 0 {
			return never, nil
		}
		params := make([]string, len(values))
		for i, v := range values {
			p, err := s.value(v)
			if err != nil {
				return "", err
			}
			params[i] = p
		}
		return s.dialect.ArrayContainsAny(f.Key, params), nil
	}

	return "", &query.UnsupportedOperatorError{Operator: f.Operator, Key: f.Key}
}

func (s *statement) idCondition(f normalize.Filter) string {
	switch f.Operator {
	case query.OpEqualTo, query.OpLessThan, query.OpLessThanOrEqualTo, query.OpGreaterThan, query.OpGreaterThanOrEqualTo:
		return fmt.Sprintf("id %s %s", sqlOperator(f.Operator), s.param(f.Value))
	case query.OpIn:
		values := f.Values()
		if len(values) == 0 {
			return never
		}
		params := make([]string, len(values))
		for i, v := range values {
			params[i] = s.param(v)
		}
		return fmt.Sprintf("id IN (%s)", strings.Join(params, ", "))
	}
	return never
}

func sqlOperator(op query.Operator) string {
	if op == query.OpEqualTo {
		return "="
	}
	return string(op)
}

func disjunction(clauses []string) string {
	switch len(clauses) {
	case 0:
		return never
	case 1:
		return clauses[0]
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

// orderBy appends the ordering clauses
func (s *statement) orderBy(node *schema.Node, orders []query.OrderBy) error {
	if len(orders) == 0 {
		return nil
	}
	clauses := make([]string, 0, len(orders))
	for _, o := range orders {
		expr := "id"
		if o.Key != node.IDKey {
			if err := validKey(o.Key); err != nil {
				return err
			}
			expr = s.dialect.Path(o.Key)
		}
		clauses = append(clauses, expr+" "+strings.ToUpper(string(o.Direction)))
	}
	s.sql.WriteString(" ORDER BY ")
	s.sql.WriteString(strings.Join(clauses, ", "))
	return nil
}

// page appends LIMIT and OFFSET
func (s *statement) page(q query.Query) {
	if !q.HasLimit() && !q.HasOffset() {
		return
	}
	if q.HasLimit() {
		fmt.Fprintf(&s.sql, " LIMIT %s", s.param(q.LimitValue()))
	} else {
		fmt.Fprintf(&s.sql, " LIMIT %s", s.dialect.NoLimit())
	}
	if q.HasOffset() {
		fmt.Fprintf(&s.sql, " OFFSET %s", s.param(q.OffsetValue()))
	}
}

// selectStatement renders the query against a collection table
func selectStatement(d Dialect, node *schema.Node, q query.Query) (*statement, error) {
	table, err := tableName(node.CollectionName)
	if err != nil {
		return nil, err
	}
	filters, err := normalize.Filters(node, q.Where)
	if err != nil {
		return nil, err
	}

	s := newStatement(d, "SELECT id, data FROM %s", table)
	if err := s.where(filters); err != nil {
		return nil, err
	}
	if err := s.orderBy(node, q.OrderBy); err != nil {
		return nil, err
	}
	s.page(q)
	return s, nil
}

// countStatement renders a count of the query filters
func countStatement(d Dialect, node *schema.Node, q query.Query) (*statement, error) {
	table, err := tableName(node.CollectionName)
	if err != nil {
		return nil, err
	}
	filters, err := normalize.Filters(node, q.Where)
	if err != nil {
		return nil, err
	}

	s := newStatement(d, "SELECT COUNT(*) FROM %s", table)
	if err := s.where(filters); err != nil {
		return nil, err
	}
	return s, nil
}
