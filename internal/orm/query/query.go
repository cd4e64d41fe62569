package query

// Query is a finalized, declarative request: projection, filters, ordering
// and pagination. It is produced only by Builder.ToQuery and never mutated
// afterwards.
type Query struct {
	// Select lists projected fields; empty means all fields
	Select []string
	// Where lists filter predicates combined with AND; empty means no filter
	Where []Where
	// OrderBy lists ordering clauses in priority order
	OrderBy []OrderBy
	// Limit caps the number of results when set
	Limit *int
	// Offset skips results when set
	Offset *int
}

// HasLimit reports whether a limit is set
func (q Query) HasLimit() bool {
	return q.Limit != nil
}

// HasOffset reports whether an offset is set
func (q Query) HasOffset() bool {
	return q.Offset != nil
}

// LimitValue returns the limit, or 0 when unset
func (q Query) LimitValue() int {
	if q.Limit == nil {
		return 0
	}
	return *q.Limit
}

// OffsetValue returns the offset, or 0 when unset
func (q Query) OffsetValue() int {
	if q.Offset == nil {
		return 0
	}
	return *q.Offset
}

// Validate checks that every operator and direction is supported
func (q Query) Validate() error {
	for _, w := range q.Where {
		if !w.Operator.Valid() {
			return &UnsupportedOperatorError{Operator: w.Operator, Key: w.Key}
		}
	}
	for _, o := range q.OrderBy {
		if !o.Direction.Valid() {
			return &UnsupportedDirectionError{Direction: o.Direction, Key: o.Key}
		}
	}
	return nil
}
