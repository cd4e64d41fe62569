package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorsAreDistinct(t *testing.T) {
	seen := make(map[Operator]bool)
	for _, op := range Operators {
		assert.False(t, seen[op], "duplicate operator token %q", op)
		seen[op] = true
		assert.True(t, op.Valid())
	}
	assert.Len(t, seen, 8)
	assert.False(t, Operator("!=").Valid())
	assert.Equal(t, ">=", OpGreaterThanOrEqualTo.String())
}

func TestOperatorIsMulti(t *testing.T) {
	assert.True(t, OpIn.IsMulti())
	assert.True(t, OpArrayContainsAny.IsMulti())
	assert.False(t, OpArrayContains.IsMulti())
	assert.False(t, OpEqualTo.IsMulti())
}

func TestParseOperator(t *testing.T) {
	tests := map[string]Operator{
		"==":                 OpEqualTo,
		"=":                  OpEqualTo,
		"<":                  OpLessThan,
		"<=":                 OpLessThanOrEqualTo,
		">":                  OpGreaterThan,
		">=":                 OpGreaterThanOrEqualTo,
		"IN":                 OpIn,
		"array-contains":     OpArrayContains,
		"array-contains-any": OpArrayContainsAny,
	}
	for input, want := range tests {
		got, err := ParseOperator(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseOperator("LIKE")
	assert.Error(t, err)
}

func TestWhereRecordDecompose(t *testing.T) {
	record := WhereRecord{
		"status": "open",
		"ids":    []string{"a", "b"},
		"nums":   [2]int{1, 2},
		"raw":    []byte("bytes"),
		"none":   nil,
	}

	got := record.Decompose()
	want := []Where{
		{Key: "ids", Operator: OpIn, Value: []any{"a", "b"}},
		{Key: "none", Operator: OpEqualTo, Value: nil},
		{Key: "nums", Operator: OpIn, Value: []any{1, 2}},
		{Key: "raw", Operator: OpEqualTo, Value: []byte("bytes")},
		{Key: "status", Operator: OpEqualTo, Value: "open"},
	}
	assert.Equal(t, want, got)
}

func TestWhereRecordDecomposeCopiesSlices(t *testing.T) {
	values := []any{"a"}
	got := WhereRecord{"k": values}.Decompose()
	values[0] = "changed"
	assert.Equal(t, []any{"a"}, got[0].Value)
}

func TestWhereString(t *testing.T) {
	assert.Equal(t, "views > 10", NewWhere("views", OpGreaterThan, 10).String())
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		expr string
		want Where
	}{
		{"status=open", Where{Key: "status", Operator: OpEqualTo, Value: "open"}},
		{"status == 'open'", Where{Key: "status", Operator: OpEqualTo, Value: "open"}},
		{"views>=10", Where{Key: "views", Operator: OpGreaterThanOrEqualTo, Value: int64(10)}},
		{"views<=10", Where{Key: "views", Operator: OpLessThanOrEqualTo, Value: int64(10)}},
		{"score<1.5", Where{Key: "score", Operator: OpLessThan, Value: 1.5}},
		{"done>false", Where{Key: "done", Operator: OpGreaterThan, Value: false}},
		{"tags array-contains go", Where{Key: "tags", Operator: OpArrayContains, Value: "go"}},
		{"tags array-contains-any go, orm", Where{Key: "tags", Operator: OpArrayContainsAny, Value: []any{"go", "orm"}}},
		{"status in open,closed", Where{Key: "status", Operator: OpIn, Value: []any{"open", "closed"}}},
		{"id in 1, 2", Where{Key: "id", Operator: OpIn, Value: []any{int64(1), int64(2)}}},
		{"parent=null", Where{Key: "parent", Operator: OpEqualTo, Value: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseCondition(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConditionErrors(t *testing.T) {
	for _, expr := range []string{"status", "=open", "", " in a,b"} {
		_, err := ParseCondition(expr)
		assert.Error(t, err, expr)
	}
}

func TestParseLiteral(t *testing.T) {
	assert.Equal(t, true, ParseLiteral("true"))
	assert.Equal(t, false, ParseLiteral("false"))
	assert.Nil(t, ParseLiteral("null"))
	assert.Equal(t, int64(42), ParseLiteral("42"))
	assert.Equal(t, 4.2, ParseLiteral("4.2"))
	assert.Equal(t, "42", ParseLiteral(`"42"`))
	assert.Equal(t, "v1.2.3", ParseLiteral("v1.2.3"))
	assert.Equal(t, "text", ParseLiteral("text"))
	assert.Equal(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), ParseLiteral("2024-06-01T09:00:00Z"))
	assert.Equal(t, "2024-06-01T09:00:00Z", ParseLiteral(`"2024-06-01T09:00:00Z"`))
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("created")
	require.NoError(t, err)
	assert.Equal(t, OrderBy{Key: "created", Direction: Ascending}, o)

	o, err = ParseOrder("created:DESC")
	require.NoError(t, err)
	assert.Equal(t, OrderBy{Key: "created", Direction: Descending}, o)

	_, err = ParseOrder("created:sideways")
	assert.Error(t, err)

	_, err = ParseOrder(":asc")
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("ascending")
	require.NoError(t, err)
	assert.Equal(t, Ascending, d)
	assert.True(t, d.Valid())
	assert.Equal(t, "asc", d.String())
}

func TestNewOrderByDefault(t *testing.T) {
	assert.Equal(t, Ascending, NewOrderBy("a").Direction)
	assert.Equal(t, Ascending, NewOrderBy("a", "").Direction)
	assert.Equal(t, Descending, NewOrderBy("a", Descending).Direction)
}
