package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store := New(filepath.Join(t.TempDir(), "docmap.json"))
	t.Cleanup(func() { store.Close() })
	return store
}

func nodes() (tasks, employees *schema.Node) {
	employees = &schema.Node{CollectionName: "employees", IDKey: "id", References: map[string]*schema.Node{}}
	tasks = &schema.Node{
		CollectionName: "tasks",
		IDKey:          "id",
		References:     map[string]*schema.Node{"assignee": employees},
	}
	return tasks, employees
}

func TestScanMissingFile(t *testing.T) {
	store := newStore(t)

	snaps, err := store.Scan(context.Background(), "tasks")
	require.NoError(t, err)
	assert.Empty(t, snaps)

	_, err = store.Get(context.Background(), "tasks", "t1")
	assert.ErrorIs(t, err, collection.ErrNotFound)
}

func TestInsertPersists(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, "tasks", document.Snapshot{ID: "t1", Data: map[string]any{
		"points":   3,
		"ratio":    0.5,
		"assignee": document.Ref{Collection: "employees", ID: "e1"},
	}}))
	assert.FileExists(t, store.Path())
	assert.NoFileExists(t, store.Path()+".tmp")

	// a second store on the same file sees the write
	other := New(store.Path())
	snap, err := other.Get(ctx, "tasks", "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Data["points"])
	assert.Equal(t, 0.5, snap.Data["ratio"])

	ref, ok := document.AsRef(snap.Data["assignee"])
	require.True(t, ok)
	assert.Equal(t, "employees/e1", ref.String())

	err = other.Insert(ctx, "tasks", document.Snapshot{ID: "t1", Data: map[string]any{}})
	assert.ErrorIs(t, err, collection.ErrDuplicateID)
}

func TestPutAndRemove(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "tasks", document.Snapshot{ID: "b", Data: map[string]any{"title": "one"}}))
	require.NoError(t, store.Put(ctx, "tasks", document.Snapshot{ID: "a", Data: map[string]any{}}))
	require.NoError(t, store.Put(ctx, "tasks", document.Snapshot{ID: "b", Data: map[string]any{"title": "two"}}))

	snaps, err := store.Scan(ctx, "tasks")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "a", snaps[0].ID)
	assert.Equal(t, "two", snaps[1].Data["title"])

	require.NoError(t, store.Remove(ctx, "tasks", "b"))
	require.NoError(t, store.Remove(ctx, "projects", "missing"))

	snaps, err = store.Scan(ctx, "tasks")
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestCorruptFile(t *testing.T) {
	store := newStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o644))

	_, err := store.Scan(context.Background(), "tasks")
	assert.ErrorContains(t, err, "failed to parse")
}

func TestLockTimeout(t *testing.T) {
	store := newStore(t)

	holder := flock.New(store.Path() + ".lock")
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer holder.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = store.Put(ctx, "tasks", document.Snapshot{ID: "t1", Data: map[string]any{}})
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestCloseKeepsLockFile(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "tasks", document.Snapshot{ID: "t1", Data: map[string]any{}}))

	holder := flock.New(store.Path() + ".lock")
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	other := New(store.Path())
	require.NoError(t, other.Close())
	_, err = os.Stat(store.Path() + ".lock")
	require.NoError(t, err)

	// the holder still excludes writers after another store closed
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = store.Put(cancelled, "tasks", document.Snapshot{ID: "t2", Data: map[string]any{}})
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, holder.Unlock())
	require.NoError(t, other.Put(ctx, "tasks", document.Snapshot{ID: "t2", Data: map[string]any{}}))
	snaps, err := store.Scan(ctx, "tasks")
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	require.NoError(t, other.Close())
}

func TestAdapterQueries(t *testing.T) {
	store := newStore(t)
	adapter := store.NewAdapter()
	tasks, employees := nodes()
	ctx := context.Background()

	_, err := adapter.Create(ctx, employees, document.Record{"id": "e1", "name": "Ada"})
	require.NoError(t, err)
	for i, title := range []string{"design", "build", "ship"} {
		_, err := adapter.Create(ctx, tasks, document.Record{
			"id":       title,
			"title":    title,
			"points":   i + 1,
			"assignee": "e1",
		})
		require.NoError(t, err)
	}

	recs, err := adapter.Fetch(ctx, tasks, query.New().WhereLessThan("points", 3).OrderBy("points").ToQuery())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "design", recs[0]["title"])
	assert.Equal(t, document.Record{"id": "e1", "name": "Ada"}, recs[1]["assignee"])

	n, err := adapter.Count(ctx, tasks, query.New().WhereIn("title", []any{"ship", "nope"}).ToQuery())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, adapter.Delete(ctx, tasks, document.Record{"id": "ship"}))
	n, err = adapter.Count(ctx, tasks, query.New().ToQuery())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
