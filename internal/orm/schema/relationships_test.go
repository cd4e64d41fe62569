package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphCycles(t *testing.T) {
	t.Run("acyclic graph", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, Document[Task](r, "tasks"))
		require.NoError(t, Document[Employee](r, "employees"))
		require.NoError(t, Reference[Task, Employee](r, "assignee"))

		graph, err := r.ResolveAll()
		require.NoError(t, err)
		assert.Empty(t, graph.Cycles())
	})

	t.Run("three node cycle", func(t *testing.T) {
		r := NewRegistry()
		a, b, c := r.NamedType("A"), r.NamedType("B"), r.NamedType("C")
		require.NoError(t, Define(r).
			Document(a, "as").
			Document(b, "bs").
			Document(c, "cs").
			Reference(a, "b", b).
			Reference(b, "c", c).
			Reference(c, "a", a).
			Err())

		graph, err := r.ResolveAll()
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"as", "bs", "cs"}}, graph.Cycles())
	})

	t.Run("independent cycles", func(t *testing.T) {
		r := NewRegistry()
		a, b, c := r.NamedType("A"), r.NamedType("B"), r.NamedType("C")
		require.NoError(t, Define(r).
			Document(a, "as").
			Document(b, "bs").
			Document(c, "cs").
			Reference(a, "b", b).
			Reference(b, "a", a).
			Reference(c, "self", c).
			Err())

		graph, err := r.ResolveAll()
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"as", "bs"}, {"cs"}}, graph.Cycles())
	})
}

func TestGraphLookups(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Document[Task](r, "tasks"))
	require.NoError(t, Document[Employee](r, "employees"))
	require.NoError(t, Reference[Task, Employee](r, "reviewer"))
	require.NoError(t, Reference[Task, Employee](r, "assignee"))

	graph, err := r.ResolveAll()
	require.NoError(t, err)

	task, ok := graph.ByCollection("tasks")
	require.True(t, ok)
	assert.Equal(t, []string{"assignee", "reviewer"}, task.ReferenceFields())
	assert.True(t, task.IsReference("assignee"))
	assert.False(t, task.IsReference("title"))
	assert.Equal(t, "tasks", task.String())

	employee, ok := task.Reference("reviewer")
	require.True(t, ok)
	assert.Equal(t, "employees", employee.CollectionName)

	_, ok = graph.ByCollection("missing")
	assert.False(t, ok)
	_, ok = graph.Node(TypeOf[Project]())
	assert.False(t, ok)

	// Nodes returns a copy of the node list
	nodes := graph.Nodes()
	nodes[0] = nil
	assert.NotNil(t, graph.Nodes()[0])
}

func TestFormatCycles(t *testing.T) {
	assert.Equal(t, "a -> b -> a; c -> c", formatCycles([][]string{{"a", "b"}, {"c"}, {}}))
}
