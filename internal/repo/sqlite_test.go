package repo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
)

func setupSQLite(t *testing.T) *SQLiteGateway {
	t.Helper()
	gw, err := OpenSQLite(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

func TestSQLiteGateway_UpsertAndFetch(t *testing.T) {
	gw := setupSQLite(t)
	ctx := context.Background()

	full, bare := fullTaskRow(), emptyTaskRow()
	bare.OrderIndex = -1

	require.NoError(t, gw.UpsertTask(ctx, full))
	require.NoError(t, gw.UpsertTask(ctx, bare))

	tasks, err := gw.FetchTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, bare, tasks[0], "ordered by order_index")
	assert.Equal(t, full, tasks[1])

	t.Run("upsert is repeatable", func(t *testing.T) {
		require.NoError(t, gw.UpsertTask(ctx, full))
		tasks, err := gw.FetchTasks(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})
}

func TestSQLiteGateway_Projects(t *testing.T) {
	gw := setupSQLite(t)
	ctx := context.Background()

	later := emptyProjectRow()
	later.CreatedAt = ts.Add(time.Minute)
	require.NoError(t, gw.UpsertProject(ctx, later))
	require.NoError(t, gw.UpsertProject(ctx, fullProjectRow()))

	n, err := gw.CountProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	projects, err := gw.FetchProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, fullProjectRow(), projects[0], "ordered by created_at")
	assert.Equal(t, later, projects[1])
}

func TestSQLiteGateway_ProjectsOrderBySubsecondCreation(t *testing.T) {
	gw := setupSQLite(t)
	ctx := context.Background()

	fractional := emptyProjectRow()
	fractional.CreatedAt = ts.Add(500 * time.Millisecond)
	require.NoError(t, gw.UpsertProject(ctx, fractional))
	require.NoError(t, gw.UpsertProject(ctx, fullProjectRow()))

	projects, err := gw.FetchProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "p1", projects[0].ID, "a whole second sorts before a later fraction")
	assert.Equal(t, fractional.CreatedAt, projects[1].CreatedAt)
}

func TestSQLiteGateway_Patch(t *testing.T) {
	gw := setupSQLite(t)
	ctx := context.Background()
	require.NoError(t, gw.UpsertTask(ctx, fullTaskRow()))

	err := gw.Patch(ctx, KindTasks, "t1", Patch{"status": "done", "assignee": (*model.User)(nil)})
	require.NoError(t, err)

	tasks, err := gw.FetchTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	got := tasks[0]
	assert.Equal(t, "done", got.Status)
	assert.Nil(t, got.Assignee)
	assert.Equal(t, "Wire the API", got.Title, "unnamed columns untouched")
	assert.True(t, got.UpdatedAt.After(fullTaskRow().UpdatedAt), "updated_at stamped")

	t.Run("unknown column", func(t *testing.T) {
		err := gw.Patch(ctx, KindTasks, "t1", Patch{"version": 2})
		assert.ErrorIs(t, err, ErrorUnknownColumn)
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := gw.Patch(ctx, Kind("users"), "u1", Patch{})
		assert.ErrorIs(t, err, ErrorUnknownKind)
	})

	t.Run("missing id is not an error", func(t *testing.T) {
		assert.NoError(t, gw.Patch(ctx, KindTasks, "nope", Patch{"title": "x"}))
	})
}

func TestSQLiteGateway_RemoveIsIdempotent(t *testing.T) {
	gw := setupSQLite(t)
	ctx := context.Background()
	require.NoError(t, gw.UpsertTask(ctx, fullTaskRow()))

	require.NoError(t, gw.Remove(ctx, KindTasks, "t1"))
	require.NoError(t, gw.Remove(ctx, KindTasks, "t1"))

	tasks, err := gw.FetchTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSQLiteGateway_Subscribe(t *testing.T) {
	gw := setupSQLite(t)
	ctx := context.Background()

	changes := make(chan Change, 10)
	sub, err := gw.Subscribe(ctx, KindTasks, func(c Change) { changes <- c })
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, gw.UpsertTask(ctx, fullTaskRow()))
	require.NoError(t, gw.Patch(ctx, KindTasks, "t1", Patch{"title": "Renamed"}))
	require.NoError(t, gw.Remove(ctx, KindTasks, "t1"))
	require.NoError(t, gw.UpsertProject(ctx, fullProjectRow()))

	want := []ChangeType{ChangeInsert, ChangeUpdate, ChangeDelete}
	for i, typ := range want {
		select {
		case c := <-changes:
			assert.Equal(t, typ, c.Type, "change %d", i)
			assert.Equal(t, "t1", c.ID)
			if typ == ChangeUpdate {
				var row TaskRow
				require.NoError(t, json.Unmarshal(c.Row, &row))
				assert.Equal(t, "Renamed", row.Title)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", typ)
		}
	}

	select {
	case c := <-changes:
		t.Fatalf("unexpected change for other table: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}
