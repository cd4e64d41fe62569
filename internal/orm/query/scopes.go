package query

// Scope is a reusable query fragment
type Scope func(Builder) Builder

// Paginate limits results to one page. Pages start at 1.
func Paginate(page, perPage int) Scope {
	if page < 1 {
		page = 1
	}
	return func(b Builder) Builder {
		return b.Limit(perPage).Offset((page - 1) * perPage)
	}
}

// Recent orders by field descending and limits the result
func Recent(field string, limit int) Scope {
	return func(b Builder) Builder {
		return b.OrderByDescending(field).Limit(limit)
	}
}

// Matching applies a where record
func Matching(record WhereRecord) Scope {
	return func(b Builder) Builder {
		return b.WhereRecord(record)
	}
}
