package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/repo"
	"github.com/BuzzLyutic/kanban-sync/internal/store"
	"github.com/BuzzLyutic/kanban-sync/internal/testutil"
)

type client struct {
	store *store.Store
	rec   *Reconciler
}

func newClient(t *testing.T, gw repo.Gateway, feed repo.ChangeFeed, user model.User) *client {
	t.Helper()
	st := store.New(gw, zap.NewNop(), store.Options{Online: true})
	st.SetCurrentUser(&user)
	require.NoError(t, st.Initialize(context.Background()))

	rec := NewReconciler(st, feed, zap.NewNop(), nil)
	require.NoError(t, rec.Start(context.Background()))
	t.Cleanup(func() {
		rec.Stop()
		st.Close()
	})
	return &client{store: st, rec: rec}
}

// twoClients runs the same scenario against any backend with a feed.
func twoClients(t *testing.T, gw repo.Gateway, feed repo.ChangeFeed) {
	ann := model.User{ID: "u-ann", Name: "Ann"}
	a := newClient(t, gw, feed, ann)
	b := newClient(t, gw, feed, model.User{ID: "u-bob", Name: "Bob"})

	p := model.NewProject("Shared", ann)
	a.store.AddProject(p)
	task := model.NewTask(p.ID, "From A", model.StatusTodo, model.PriorityHigh)
	a.store.AddTask(task)

	ok := testutil.WaitForCondition(t, 5*time.Second, func() bool {
		_, found := b.store.Task(task.ID)
		_, proj := b.store.Project(p.ID)
		return found && proj
	})
	require.True(t, ok, "B sees A's inserts")

	// own echo is ignored: A still holds exactly one copy
	assert.Len(t, a.store.Snapshot().Tasks, 1)

	b.store.MoveTask(task.ID, model.StatusDone, 0)
	ok = testutil.WaitForCondition(t, 5*time.Second, func() bool {
		got, _ := a.store.Task(task.ID)
		return got.Status == model.StatusDone
	})
	require.True(t, ok, "A sees B's update")

	a.store.DeleteTask(task.ID)
	ok = testutil.WaitForCondition(t, 5*time.Second, func() bool {
		_, found := b.store.Task(task.ID)
		return !found
	})
	assert.True(t, ok, "B sees A's delete")
}

func TestTwoClients_SQLite(t *testing.T) {
	gw, err := repo.OpenSQLite(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	twoClients(t, gw, gw)
}

func TestTwoClients_Postgres(t *testing.T) {
	base, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)
	testutil.TruncateTables(t, base)

	// four listeners hold connections for the whole test
	cfg := base.Config()
	cfg.MaxConns = 16
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	gw := repo.NewPgGateway(pool, zap.NewNop())
	twoClients(t, gw, gw)
}
