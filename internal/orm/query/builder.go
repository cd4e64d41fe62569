package query

// Builder accumulates query state through a copy-on-write fluent API.
//
// Builder is a value type: every method returns a new Builder whose slices
// are independent copies, and the receiver is never modified. Version counts
// the accumulating calls applied since New; each derived builder has its
// parent's version plus one. The only exception is WhereRecord and
// OrderByRecord with an empty record, which return the receiver unchanged.
type Builder struct {
	version  int
	selected []string
	where    []Where
	orderBy  []OrderBy
	limit    *int
	offset   *int
}

// New creates an empty builder with version 0
func New() Builder {
	return Builder{}
}

// Version returns the number of accumulating calls applied since New
func (b Builder) Version() int {
	return b.version
}

// derive copies the builder, bumps the version and applies change to the copy
func (b Builder) derive(change func(next *Builder)) Builder {
	next := Builder{
		version:  b.version + 1,
		selected: append([]string(nil), b.selected...),
		where:    append([]Where(nil), b.where...),
		orderBy:  append([]OrderBy(nil), b.orderBy...),
		limit:    b.limit,
		offset:   b.offset,
	}
	change(&next)
	return next
}

// Select replaces the projection. No keys, or the single key "*", selects all fields.
func (b Builder) Select(keys ...string) Builder {
	var selected []string
	if !(len(keys) == 0 || (len(keys) == 1 && keys[0] == "*")) {
		selected = append(selected, keys...)
	}
	return b.derive(func(next *Builder) {
		next.selected = selected
	})
}

// Where appends an equality predicate
func (b Builder) Where(key string, value any) Builder {
	return b.WhereOp(key, OpEqualTo, value)
}

// WhereOp appends a predicate with an explicit operator
func (b Builder) WhereOp(key string, op Operator, value any) Builder {
	where := NewWhere(key, op, value)
	return b.derive(func(next *Builder) {
		next.where = append(next.where, where)
	})
}

// WhereRecord appends one predicate per record entry: slice values become
// "in" predicates, other values equality. An empty record returns b itself.
func (b Builder) WhereRecord(record WhereRecord) Builder {
	if len(record) == 0 {
		return b
	}
	wheres := record.Decompose()
	return b.derive(func(next *Builder) {
		next.where = append(next.where, wheres...)
	})
}

// WhereEqualTo appends an equality predicate
func (b Builder) WhereEqualTo(key string, value any) Builder {
	return b.WhereOp(key, OpEqualTo, value)
}

// WhereLessThan appends a less-than predicate
func (b Builder) WhereLessThan(key string, value any) Builder {
	return b.WhereOp(key, OpLessThan, value)
}

// WhereLessThanOrEqualTo appends a less-or-equal predicate
func (b Builder) WhereLessThanOrEqualTo(key string, value any) Builder {
	return b.WhereOp(key, OpLessThanOrEqualTo, value)
}

// WhereGreaterThan appends a greater-than predicate
func (b Builder) WhereGreaterThan(key string, value any) Builder {
	return b.WhereOp(key, OpGreaterThan, value)
}

// WhereGreaterThanOrEqualTo appends a greater-or-equal predicate
func (b Builder) WhereGreaterThanOrEqualTo(key string, value any) Builder {
	return b.WhereOp(key, OpGreaterThanOrEqualTo, value)
}

// WhereArrayContains appends a predicate matching array fields containing value
func (b Builder) WhereArrayContains(key string, value any) Builder {
	return b.WhereOp(key, OpArrayContains, value)
}

// WhereIn appends a membership predicate. values is copied.
func (b Builder) WhereIn(key string, values []any) Builder {
	return b.WhereOp(key, OpIn, append([]any{}, values...))
}

// WhereArrayContainsAny appends a predicate matching array fields containing
// any of values. values is copied.
func (b Builder) WhereArrayContainsAny(key string, values []any) Builder {
	return b.WhereOp(key, OpArrayContainsAny, append([]any{}, values...))
}

// OrderBy appends an ordering clause; direction defaults to Ascending
func (b Builder) OrderBy(key string, direction ...Direction) Builder {
	order := NewOrderBy(key, direction...)
	return b.derive(func(next *Builder) {
		next.orderBy = append(next.orderBy, order)
	})
}

// OrderByRecord appends one clause per record entry. An empty record returns b itself.
func (b Builder) OrderByRecord(record OrderByRecord) Builder {
	if len(record) == 0 {
		return b
	}
	orders := record.Decompose()
	return b.derive(func(next *Builder) {
		next.orderBy = append(next.orderBy, orders...)
	})
}

// OrderByAscending appends an ascending ordering clause
func (b Builder) OrderByAscending(key string) Builder {
	return b.OrderBy(key, Ascending)
}

// OrderByDescending appends a descending ordering clause
func (b Builder) OrderByDescending(key string) Builder {
	return b.OrderBy(key, Descending)
}

// Limit replaces the result limit. Range checks are left to the store.
func (b Builder) Limit(n int) Builder {
	return b.derive(func(next *Builder) {
		next.limit = &n
	})
}

// Offset replaces the result offset. Range checks are left to the store.
func (b Builder) Offset(n int) Builder {
	return b.derive(func(next *Builder) {
		next.offset = &n
	})
}

// Apply applies scopes in order
func (b Builder) Apply(scopes ...Scope) Builder {
	for _, scope := range scopes {
		b = scope(b)
	}
	return b
}

// ToQuery produces the immutable query snapshot. The returned query shares
// no memory with the builder.
func (b Builder) ToQuery() Query {
	q := Query{
		Select:  append([]string{}, b.selected...),
		Where:   append([]Where{}, b.where...),
		OrderBy: append([]OrderBy{}, b.orderBy...),
	}
	if b.limit != nil {
		limit := *b.limit
		q.Limit = &limit
	}
	if b.offset != nil {
		offset := *b.offset
		q.Offset = &offset
	}
	return q
}
