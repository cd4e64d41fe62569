package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuilderToQuery(t *testing.T) {
	q := New().ToQuery()

	assert.Equal(t, 0, New().Version())
	assert.NotNil(t, q.Select)
	assert.Empty(t, q.Select)
	assert.NotNil(t, q.Where)
	assert.Empty(t, q.Where)
	assert.NotNil(t, q.OrderBy)
	assert.Empty(t, q.OrderBy)
	assert.Nil(t, q.Limit)
	assert.Nil(t, q.Offset)
	assert.False(t, q.HasLimit())
	assert.False(t, q.HasOffset())
}

func TestBuilderVersion(t *testing.T) {
	steps := []struct {
		name string
		call func(Builder) Builder
	}{
		{"select", func(b Builder) Builder { return b.Select("title") }},
		{"where", func(b Builder) Builder { return b.Where("status", "open") }},
		{"where op", func(b Builder) Builder { return b.WhereOp("views", OpGreaterThan, 10) }},
		{"where record", func(b Builder) Builder { return b.WhereRecord(WhereRecord{"a": 1, "b": 2}) }},
		{"equal", func(b Builder) Builder { return b.WhereEqualTo("a", 1) }},
		{"less", func(b Builder) Builder { return b.WhereLessThan("a", 1) }},
		{"less or equal", func(b Builder) Builder { return b.WhereLessThanOrEqualTo("a", 1) }},
		{"greater", func(b Builder) Builder { return b.WhereGreaterThan("a", 1) }},
		{"greater or equal", func(b Builder) Builder { return b.WhereGreaterThanOrEqualTo("a", 1) }},
		{"array contains", func(b Builder) Builder { return b.WhereArrayContains("tags", "go") }},
		{"in", func(b Builder) Builder { return b.WhereIn("a", []any{1, 2}) }},
		{"array contains any", func(b Builder) Builder { return b.WhereArrayContainsAny("tags", []any{"a"}) }},
		{"order by", func(b Builder) Builder { return b.OrderBy("a") }},
		{"order by record", func(b Builder) Builder { return b.OrderByRecord(OrderByRecord{"a": Descending}) }},
		{"ascending", func(b Builder) Builder { return b.OrderByAscending("a") }},
		{"descending", func(b Builder) Builder { return b.OrderByDescending("a") }},
		{"limit", func(b Builder) Builder { return b.Limit(5) }},
		{"offset", func(b Builder) Builder { return b.Offset(5) }},
	}

	b := New()
	for i, step := range steps {
		parent := b
		b = step.call(b)
		assert.Equal(t, parent.Version()+1, b.Version(), step.name)
		assert.Equal(t, i+1, b.Version(), step.name)
	}
}

func TestBuilderEmptyRecordsReturnReceiver(t *testing.T) {
	b := New().Where("status", "open")

	same := b.WhereRecord(WhereRecord{})
	assert.Equal(t, b.Version(), same.Version())
	assert.Equal(t, b.ToQuery(), same.ToQuery())

	same = b.WhereRecord(nil)
	assert.Equal(t, b.Version(), same.Version())

	same = b.OrderByRecord(OrderByRecord{})
	assert.Equal(t, b.Version(), same.Version())
	assert.Equal(t, b.ToQuery(), same.ToQuery())
}

func TestBuilderReceiverUnchanged(t *testing.T) {
	base := New().Where("status", "open").OrderBy("title")

	_ = base.Where("views", 10)
	_ = base.OrderByDescending("views")
	_ = base.Select("title")
	_ = base.Limit(1).Offset(2)

	q := base.ToQuery()
	assert.Len(t, q.Where, 1)
	assert.Len(t, q.OrderBy, 1)
	assert.Empty(t, q.Select)
	assert.Nil(t, q.Limit)
	assert.Nil(t, q.Offset)
	assert.Equal(t, 2, base.Version())
}

func TestBuilderSiblingsDoNotShareSlices(t *testing.T) {
	// Spare capacity in the parent's slice must not leak between siblings
	base := New().Where("a", 1).Where("b", 2).Where("c", 3)

	left := base.Where("left", true)
	right := base.Where("right", true)

	assert.Equal(t, "left", left.ToQuery().Where[3].Key)
	assert.Equal(t, "right", right.ToQuery().Where[3].Key)
}

func TestBuilderSelect(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{"star", []string{"*"}, []string{}},
		{"none", nil, []string{}},
		{"empty", []string{}, []string{}},
		{"single", []string{"title"}, []string{"title"}},
		{"list", []string{"title", "views"}, []string{"title", "views"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New().Select(tt.keys...).ToQuery()
			assert.Equal(t, tt.want, q.Select)
		})
	}

	t.Run("replaces prior selection", func(t *testing.T) {
		q := New().Select("a", "b").Select("c").ToQuery()
		assert.Equal(t, []string{"c"}, q.Select)

		q = New().Select("a").Select("*").ToQuery()
		assert.Empty(t, q.Select)
	})

	t.Run("copies keys", func(t *testing.T) {
		keys := []string{"a", "b"}
		b := New().Select(keys...)
		keys[0] = "changed"
		assert.Equal(t, []string{"a", "b"}, b.ToQuery().Select)
	})
}

func TestBuilderWhereForms(t *testing.T) {
	q := New().
		Where("status", "open").
		WhereOp("views", OpGreaterThanOrEqualTo, 10).
		WhereRecord(WhereRecord{"tags": []string{"go", "orm"}, "author": "ann"}).
		ToQuery()

	want := []Where{
		{Key: "status", Operator: OpEqualTo, Value: "open"},
		{Key: "views", Operator: OpGreaterThanOrEqualTo, Value: 10},
		{Key: "author", Operator: OpEqualTo, Value: "ann"},
		{Key: "tags", Operator: OpIn, Value: []any{"go", "orm"}},
	}
	if diff := cmp.Diff(want, q.Where); diff != "" {
		t.Errorf("where mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilderConvenienceOperators(t *testing.T) {
	q := New().
		WhereEqualTo("a", 1).
		WhereLessThan("b", 2).
		WhereLessThanOrEqualTo("c", 3).
		WhereGreaterThan("d", 4).
		WhereGreaterThanOrEqualTo("e", 5).
		WhereArrayContains("f", "x").
		WhereIn("g", []any{"y"}).
		WhereArrayContainsAny("h", []any{"z"}).
		ToQuery()

	var ops []Operator
	for _, w := range q.Where {
		ops = append(ops, w.Operator)
	}
	assert.Equal(t, Operators, ops)
}

func TestBuilderWhereInCopiesInput(t *testing.T) {
	values := []any{"a", "b"}
	b := New().WhereIn("k", values)
	values[0] = "changed"

	q := b.ToQuery()
	require.Len(t, q.Where, 1)
	assert.Equal(t, Where{Key: "k", Operator: OpIn, Value: []any{"a", "b"}}, q.Where[0])

	anyValues := []any{"x"}
	b = New().WhereArrayContainsAny("tags", anyValues)
	anyValues[0] = "changed"
	assert.Equal(t, []any{"x"}, b.ToQuery().Where[0].Value)
}

func TestBuilderOrderBy(t *testing.T) {
	q := New().
		OrderBy("a").
		OrderBy("b", Descending).
		OrderByRecord(OrderByRecord{"d": Ascending, "c": Descending}).
		OrderByAscending("e").
		OrderByDescending("f").
		ToQuery()

	want := []OrderBy{
		{Key: "a", Direction: Ascending},
		{Key: "b", Direction: Descending},
		{Key: "c", Direction: Descending},
		{Key: "d", Direction: Ascending},
		{Key: "e", Direction: Ascending},
		{Key: "f", Direction: Descending},
	}
	assert.Equal(t, want, q.OrderBy)
}

func TestBuilderLimitOffset(t *testing.T) {
	b := New().Limit(10).Offset(20).Limit(5)
	q := b.ToQuery()

	require.True(t, q.HasLimit())
	require.True(t, q.HasOffset())
	assert.Equal(t, 5, q.LimitValue())
	assert.Equal(t, 20, q.OffsetValue())

	// No range validation at this layer
	assert.Equal(t, -1, New().Limit(-1).ToQuery().LimitValue())
	assert.Equal(t, 0, New().ToQuery().LimitValue())
	assert.Equal(t, 0, New().ToQuery().OffsetValue())
}

func TestToQueryIsIndependent(t *testing.T) {
	b := New().Select("a").Where("k", "v").OrderBy("k").Limit(1).Offset(2)

	q1 := b.ToQuery()
	q1.Select[0] = "changed"
	q1.Where[0].Key = "changed"
	q1.OrderBy[0].Key = "changed"
	*q1.Limit = 100
	*q1.Offset = 100

	q2 := b.ToQuery()
	assert.Equal(t, []string{"a"}, q2.Select)
	assert.Equal(t, "k", q2.Where[0].Key)
	assert.Equal(t, "k", q2.OrderBy[0].Key)
	assert.Equal(t, 1, *q2.Limit)
	assert.Equal(t, 2, *q2.Offset)
}

func TestQueryValidate(t *testing.T) {
	assert.NoError(t, New().Where("a", 1).OrderBy("a").ToQuery().Validate())

	err := New().WhereOp("a", Operator("like"), "x").ToQuery().Validate()
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
	assert.Contains(t, err.Error(), `"like"`)

	err = New().OrderBy("a", Direction("sideways")).ToQuery().Validate()
	assert.ErrorIs(t, err, ErrUnsupportedDirection)
}
