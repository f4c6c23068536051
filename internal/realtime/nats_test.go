package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/repo"
)

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server failed to start")
	}
	t.Cleanup(ns.Shutdown)

	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return conn
}

type changeLog struct {
	mu      sync.Mutex
	changes []repo.Change
}

func (l *changeLog) add(c repo.Change) {
	l.mu.Lock()
	l.changes = append(l.changes, c)
	l.mu.Unlock()
}

func (l *changeLog) snapshot() []repo.Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]repo.Change{}, l.changes...)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "kanban.changes.tasks", Subject(repo.KindTasks))
	assert.Equal(t, "kanban.changes.projects", Subject(repo.KindProjects))
}

func TestNATSFeed_PublishSubscribe(t *testing.T) {
	conn := startNATS(t)
	feed := NewNATSFeed(conn, zap.NewNop())
	pub := NewPublisher(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tasks, projects changeLog
	_, err := feed.Subscribe(ctx, repo.KindTasks, tasks.add)
	require.NoError(t, err)
	_, err = feed.Subscribe(ctx, repo.KindProjects, projects.add)
	require.NoError(t, err)

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, pub.Publish(ctx, repo.Change{Type: repo.ChangeDelete, Kind: repo.KindTasks, ID: id}))
	}
	require.NoError(t, pub.Publish(ctx, repo.Change{Type: repo.ChangeDelete, Kind: repo.KindProjects, ID: "p1"}))

	require.Eventually(t, func() bool {
		return len(tasks.snapshot()) == 3 && len(projects.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := tasks.snapshot()
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "t2", got[1].ID)
	assert.Equal(t, "t3", got[2].ID)
	assert.Equal(t, repo.KindProjects, projects.snapshot()[0].Kind)
}

func TestNATSFeed_SkipsUndecodable(t *testing.T) {
	conn := startNATS(t)
	feed := NewNATSFeed(conn, zap.NewNop())

	var log changeLog
	sub, err := feed.Subscribe(context.Background(), repo.KindTasks, log.add)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, conn.Publish(Subject(repo.KindTasks), []byte("not json")))
	require.NoError(t, NewPublisher(conn).Publish(context.Background(),
		repo.Change{Type: repo.ChangeDelete, Kind: repo.KindTasks, ID: "t1"}))

	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "t1", log.snapshot()[0].ID)
}

func TestNATSFeed_CloseStopsDelivery(t *testing.T) {
	conn := startNATS(t)
	feed := NewNATSFeed(conn, zap.NewNop())
	pub := NewPublisher(conn)

	var log changeLog
	sub, err := feed.Subscribe(context.Background(), repo.KindTasks, log.add)
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	require.NoError(t, pub.Publish(context.Background(), repo.Change{Type: repo.ChangeDelete, Kind: repo.KindTasks, ID: "t1"}))
	require.NoError(t, conn.Flush())
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, log.snapshot())
}

func TestNATSFeed_RejectsUnknownKind(t *testing.T) {
	conn := startNATS(t)

	_, err := NewNATSFeed(conn, zap.NewNop()).Subscribe(context.Background(), "users", func(repo.Change) {})
	assert.ErrorIs(t, err, repo.ErrorUnknownKind)

	err = NewPublisher(conn).Publish(context.Background(), repo.Change{Kind: "users"})
	assert.ErrorIs(t, err, repo.ErrorUnknownKind)
}

func TestPublisher_CancelledContext(t *testing.T) {
	conn := startNATS(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPublisher(conn).Publish(ctx, repo.Change{Kind: repo.KindTasks})
	assert.ErrorIs(t, err, context.Canceled)
}

// Broadcaster -> Relay -> NATS -> NATSFeed -> Reconciler -> Store.
func TestRelay_EndToEnd(t *testing.T) {
	conn := startNATS(t)
	source := repo.NewBroadcaster(zap.NewNop())
	relay := NewRelay(source, NewPublisher(conn), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newStore(t)
	r := NewReconciler(s, NewNATSFeed(conn, zap.NewNop()), zap.NewNop(), nil)
	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	relayDone := make(chan error, 1)
	go func() { relayDone <- relay.Run(ctx) }()

	task := model.NewTask("p1", "from another client", model.StatusReview, model.PriorityHigh)
	raw, err := json.Marshal(repo.TaskToRow(task))
	require.NoError(t, err)

	// The relay subscribes asynchronously; republish until it is listening.
	require.Eventually(t, func() bool {
		source.Publish(repo.Change{Type: repo.ChangeInsert, Kind: repo.KindTasks, ID: task.ID, Row: raw})
		_, ok := s.Task(task.ID)
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	got, _ := s.Task(task.ID)
	assert.Equal(t, model.StatusReview, got.Status)
	assert.Len(t, s.Snapshot().Tasks, 1, "repeated inserts are deduplicated")

	cancel()
	select {
	case err := <-relayDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
