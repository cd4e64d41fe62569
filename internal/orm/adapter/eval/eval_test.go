package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/normalize"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

func taskNode() *schema.Node {
	employees := &schema.Node{CollectionName: "employees", IDKey: "id", References: map[string]*schema.Node{}}
	return &schema.Node{
		CollectionName: "tasks",
		IDKey:          "id",
		References:     map[string]*schema.Node{"assignee": employees},
	}
}

func fixtures() []document.Snapshot {
	return []document.Snapshot{
		{ID: "t1", Data: map[string]any{"title": "b", "points": int64(3), "tags": []any{"go", "db"}, "assignee": document.Ref{Collection: "employees", ID: "e1"}}},
		{ID: "t2", Data: map[string]any{"title": "a", "points": 5.0, "tags": []any{"ui"}, "assignee": map[string]any{"collection": "employees", "id": "e2"}}},
		{ID: "t3", Data: map[string]any{"title": "c", "points": 1, "tags": []any{}, "assignee": nil}},
	}
}

func ids(snaps []document.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.ID
	}
	return out
}

func run(t *testing.T, b query.Builder) []string {
	t.Helper()
	node := taskNode()
	q := b.ToQuery()
	filters, err := normalize.Filters(node, q.Where)
	require.NoError(t, err)
	return ids(Apply(fixtures(), node.IDKey, q, filters))
}

func TestApplyOperators(t *testing.T) {
	tests := []struct {
		name    string
		builder query.Builder
		want    []string
	}{
		{"equal", query.New().Where("title", "a"), []string{"t2"}},
		{"equal id", query.New().Where("id", "t3"), []string{"t3"}},
		{"mixed numeric types", query.New().WhereEqualTo("points", 5), []string{"t2"}},
		{"less than", query.New().WhereLessThan("points", 3), []string{"t3"}},
		{"less or equal", query.New().WhereLessThanOrEqualTo("points", 3), []string{"t1", "t3"}},
		{"greater than", query.New().WhereGreaterThan("title", "a"), []string{"t1", "t3"}},
		{"greater or equal", query.New().WhereGreaterThanOrEqualTo("points", 3), []string{"t1", "t2"}},
		{"in", query.New().WhereIn("title", []any{"a", "c"}), []string{"t2", "t3"}},
		{"array contains", query.New().WhereArrayContains("tags", "go"), []string{"t1"}},
		{"array contains any", query.New().WhereArrayContainsAny("tags", []any{"ui", "db"}), []string{"t1", "t2"}},
		{"reference by id", query.New().Where("assignee", "e2"), []string{"t2"}},
		{"reference by record", query.New().Where("assignee", document.Record{"id": "e1"}), []string{"t1"}},
		{"null reference", query.New().Where("assignee", nil), []string{"t3"}},
		{"conjunction", query.New().WhereGreaterThan("points", 1).WhereArrayContains("tags", "ui"), []string{"t2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, tt.builder))
		})
	}
}

func TestApplyOrderingAndPaging(t *testing.T) {
	assert.Equal(t, []string{"t2", "t1", "t3"}, run(t, query.New().OrderBy("title")))
	assert.Equal(t, []string{"t2", "t1", "t3"}, run(t, query.New().OrderByDescending("points")))
	assert.Equal(t, []string{"t3", "t2", "t1"}, run(t, query.New().OrderByDescending("id")))
	assert.Equal(t, []string{"t1"}, run(t, query.New().OrderBy("title").Offset(1).Limit(1)))
	assert.Empty(t, run(t, query.New().Offset(10)))
}

func TestSortNilsFirst(t *testing.T) {
	snaps := []document.Snapshot{
		{ID: "a", Data: map[string]any{"rank": 2}},
		{ID: "b", Data: map[string]any{}},
		{ID: "c", Data: map[string]any{"rank": 1}},
	}
	Sort(snaps, "id", []query.OrderBy{{Key: "rank", Direction: query.Ascending}})
	assert.Equal(t, []string{"b", "c", "a"}, ids(snaps))
}

func TestProject(t *testing.T) {
	snap := document.Snapshot{ID: "t1", Data: map[string]any{"a": 1, "b": 2}}

	got := Project(snap, []string{"a", "missing"})
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, map[string]any{"a": 1}, got.Data)
	assert.Equal(t, snap, Project(snap, nil))
}

func TestLookupNested(t *testing.T) {
	snap := document.Snapshot{ID: "x", Data: map[string]any{"meta": map[string]any{"owner": "ada"}}}

	v, ok := Lookup(snap, "id", "meta.owner")
	require.True(t, ok)
	assert.Equal(t, "ada", v)

	_, ok = Lookup(snap, "id", "meta.missing")
	assert.False(t, ok)
}

func TestCompare(t *testing.T) {
	c, ok := Compare(int64(2), 2.5)
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare(true, false)
	require.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = Compare("a", 1)
	assert.False(t, ok)
}
