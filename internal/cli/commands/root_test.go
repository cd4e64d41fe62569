package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmap/internal/orm/mapper"
)

const testSchema = `
documents:
  - type: Employee
    collection: employees
    references:
      manager: Employee
  - type: Task
    collection: tasks
    references:
      assignee: Employee
`

// project writes a schema and a file-store config into a temp dir and
// returns the config path
func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	schemaPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))

	configPath := filepath.Join(dir, "docmap.yaml")
	cfg := "store:\n  kind: file\n  file:\n    path: " + filepath.Join(dir, "docs.json") +
		"\nschema:\n  path: " + schemaPath + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return configPath
}

func run(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", configPath, "--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, errOut, err := run(t, configPath, args...)
	require.NoError(t, err, errOut)
	return out
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "docmap", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"version", "schema", "query", "get", "put", "delete"} {
		assert.Contains(t, names, expected)
	}
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	defer func() { Version, GitCommit = "dev", "unknown" }()

	var out bytes.Buffer
	cmd := NewVersionCommand()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	assert.Contains(t, out.String(), "docmap version: 1.0.0-test")
	assert.Contains(t, out.String(), "Git commit: abc123")
}

func TestSchemaValidate(t *testing.T) {
	configPath := project(t)

	out := mustRun(t, configPath, "schema", "validate")
	assert.Contains(t, out, "COLLECTION")
	assert.Contains(t, out, "assignee -> employees")
	assert.Contains(t, out, "reference cycle: employees -> employees")
	assert.Contains(t, out, "2 documents resolved")
}

func TestSchemaValidateUndeclaredReferent(t *testing.T) {
	configPath := project(t)
	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte(`
documents:
  - type: Task
    collection: tasks
    references:
      project: Project
`), 0o644))

	_, _, err := run(t, configPath, "--schema", broken, "schema", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Project")
}

func TestDocumentCommands(t *testing.T) {
	configPath := project(t)

	mustRun(t, configPath, "put", "employees", `{"id":"e1","name":"Ada"}`)
	mustRun(t, configPath, "put", "tasks", `{"id":"t1","title":"design","points":2,"tags":["ux"],"assignee":"e1"}`)
	mustRun(t, configPath, "put", "tasks", `{"id":"t2","title":"build","points":5,"tags":["go","db"]}`)

	generated := strings.TrimSpace(mustRun(t, configPath, "put", "tasks", `{"title":"ship","points":3,"tags":["go"],"assignee":{"id":"e1"}}`))
	assert.Len(t, generated, 36)

	out := mustRun(t, configPath, "get", "tasks", "t1")
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "design", doc["title"])
	assert.Equal(t, map[string]any{"id": "e1", "name": "Ada", "manager": nil}, doc["assignee"])

	out = mustRun(t, configPath, "query", "tasks", "--where", "points>=3", "--order", "points:desc", "--select", "title")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"title":"build"`)
	assert.NotContains(t, lines[0], "points")
	assert.Contains(t, lines[1], `"title":"ship"`)

	out = mustRun(t, configPath, "query", "tasks", "--where", "tags array-contains go", "--count")
	assert.Equal(t, "2\n", out)

	out = mustRun(t, configPath, "query", "tasks", "--order", "title", "--offset", "1", "--limit", "1")
	assert.Contains(t, out, `"title":"design"`)
	assert.NotContains(t, out, `"title":"ship"`)

	_, _, err := run(t, configPath, "put", "tasks", "--create", `{"id":"t1"}`)
	assert.Error(t, err)

	out = mustRun(t, configPath, "delete", "tasks", "t1")
	assert.Contains(t, out, "tasks/t1 deleted")

	_, _, err = run(t, configPath, "get", "tasks", "t1")
	assert.ErrorContains(t, err, "document not found")
}

func TestPutFromStdin(t *testing.T) {
	configPath := project(t)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(`{"id":"e2","name":"Grace"}`))
	cmd.SetArgs([]string{"--config", configPath, "--no-color", "put", "employees", "-"})
	require.NoError(t, cmd.Execute())

	got := mustRun(t, configPath, "get", "employees", "e2")
	assert.Contains(t, got, "Grace")
}

func TestUnknownCollection(t *testing.T) {
	configPath := project(t)

	_, errOut, err := run(t, configPath, "query", "taks")
	require.Error(t, err)
	assert.ErrorIs(t, err, mapper.ErrUnknownCollection)
	assert.Contains(t, errOut, "Did you mean: tasks?")
}

func TestInvalidInput(t *testing.T) {
	configPath := project(t)

	_, _, err := run(t, configPath, "put", "tasks", `{"id":`)
	assert.ErrorContains(t, err, "invalid document")

	_, _, err = run(t, configPath, "query", "tasks", "--where", "points")
	assert.ErrorContains(t, err, "invalid condition")

	_, _, err = run(t, configPath, "query", "tasks", "--order", "points:sideways")
	assert.Error(t, err)
}

func TestParseDocument(t *testing.T) {
	doc, err := parseDocument([]byte(`{"n": 3, "f": 1.5, "nested": {"m": 7}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), doc["n"])
	assert.Equal(t, 1.5, doc["f"])
	assert.Equal(t, map[string]any{"m": int64(7)}, doc["nested"])

	_, err = parseDocument([]byte(`null`))
	assert.Error(t, err)

	_, err = parseDocument([]byte(`{"a":1} {"b":2}`))
	assert.ErrorContains(t, err, "trailing data")
}
