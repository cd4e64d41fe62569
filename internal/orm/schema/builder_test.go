package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentHelper(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, Document[Task](r, "tasks"))
	require.NoError(t, Document[Project](r, "projects", "pid"))

	task, _ := r.Descriptor(TypeOf[Task]())
	assert.Equal(t, DefaultIDKey, task.IDKey)

	project, _ := r.Descriptor(TypeOf[Project]())
	assert.Equal(t, "pid", project.IDKey)

	assert.True(t, IsAlreadyMapped(Document[*Task](r, "other")))
}

func TestDefinerCollectsErrors(t *testing.T) {
	r := NewRegistry()
	task := TypeOf[Task]()
	employee := TypeOf[Employee]()

	err := Define(r).
		Document(task, "tasks").
		Document(task, "tasks").
		Reference(task, "assignee", employee).
		Reference(task, "assignee", employee).
		Document(employee, "employees").
		Err()

	require.Error(t, err)
	assert.True(t, IsAlreadyMapped(err))
	assert.True(t, IsDuplicateReference(err))

	// Valid declarations still applied
	graph, resolveErr := r.ResolveAll()
	require.NoError(t, resolveErr)
	assert.Equal(t, 2, graph.Len())
}

func TestDefinerNoErrors(t *testing.T) {
	assert.NoError(t, Define(NewRegistry()).Document(TypeOf[Task](), "tasks").Err())
}

func TestLoad(t *testing.T) {
	t.Run("declares named documents", func(t *testing.T) {
		r := NewRegistry()
		src := `
documents:
  - type: Task
    collection: tasks
    references:
      reviewer: Employee
      assignee: Employee
  - type: Employee
    collection: employees
    id_key: eid
    references:
      manager: Employee
`
		require.NoError(t, Load(r, strings.NewReader(src)))

		graph, err := r.ResolveAll()
		require.NoError(t, err)

		task, ok := graph.ByCollection("tasks")
		require.True(t, ok)
		assert.Equal(t, DefaultIDKey, task.IDKey)
		assert.Same(t, r.NamedType("Task"), task.Type)

		employee, ok := graph.ByCollection("employees")
		require.True(t, ok)
		assert.Equal(t, "eid", employee.IDKey)
		assert.Same(t, employee, task.References["assignee"])
		assert.Same(t, employee, employee.References["manager"])

		d, _ := r.Descriptor(r.NamedType("Task"))
		assert.Equal(t, "assignee", d.References[0].FieldName)
	})

	t.Run("reference-only entry", func(t *testing.T) {
		r := NewRegistry()
		src := `
documents:
  - type: Task
    references:
      assignee: Employee
`
		require.NoError(t, Load(r, strings.NewReader(src)))

		_, err := r.ResolveAll()
		var undecorated *UndecoratedTypeError
		require.True(t, errors.As(err, &undecorated))
		assert.Equal(t, "Task", undecorated.Type.String())
	})

	t.Run("missing type", func(t *testing.T) {
		err := Load(NewRegistry(), strings.NewReader("documents:\n  - collection: tasks\n"))
		assert.ErrorIs(t, err, ErrInvalidDeclaration)
	})

	t.Run("unknown field", func(t *testing.T) {
		err := Load(NewRegistry(), strings.NewReader("documents:\n  - type: Task\n    table: tasks\n"))
		assert.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.NoError(t, Load(NewRegistry(), strings.NewReader("")))
	})

	t.Run("duplicate type", func(t *testing.T) {
		src := `
documents:
  - type: Task
    collection: tasks
  - type: Task
    collection: jobs
`
		err := Load(NewRegistry(), strings.NewReader(src))
		assert.True(t, IsAlreadyMapped(err))
	})
}

func TestLoadFileMissing(t *testing.T) {
	err := LoadFile(NewRegistry(), "does-not-exist.yaml")
	assert.Error(t, err)
}
