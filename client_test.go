package priosql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	priosql "github.com/priosql/priosql"
	"github.com/priosql/priosql/executor"
	"github.com/priosql/priosql/internal/fakedriver"
	"github.com/priosql/priosql/pool"
)

func newTestClient(t *testing.T) (*priosql.Client, *fakedriver.Driver) {
	t.Helper()
	drv := fakedriver.New(fakedriver.Config{})
	name := t.Name()
	priosql.RegisterDriver(name, drv)

	c := priosql.New(&priosql.Config{
		Pool: &pool.Config{
			ConnectionConfig: &priosql.ConnectionConfig{DriverName: name, DSN: "memory"},
			MinSize:          1,
			MaxSize:          2,
		},
		Executor: &executor.Config{WorkerCount: 2},
	})
	require.NoError(t, c.Connect(context.Background()))
	return c, drv
}

func TestClient_ConnectCloseLifecycle(t *testing.T) {
	c, _ := newTestClient(t)
	require.True(t, c.IsConnected())
	require.NoError(t, c.Close(context.Background()))
	require.False(t, c.IsConnected())
}

func TestClient_MethodsRequireConnect(t *testing.T) {
	c := priosql.New(&priosql.Config{Pool: &pool.Config{ConnectionConfig: &priosql.ConnectionConfig{DriverName: "x", DSN: "y"}}})
	_, err := c.Execute(context.Background(), "SELECT 1", executor.PriorityNormal, time.Second)
	require.ErrorIs(t, err, priosql.ErrNotConnected)
}

func TestClient_ExecuteAndFetch(t *testing.T) {
	c, _ := newTestClient(t)
	defer c.Close(context.Background())

	_, err := c.Execute(context.Background(), "INSERT INTO t (value) VALUES (?)", executor.PriorityNormal, time.Second, "v1")
	require.NoError(t, err)

	row, err := c.FetchOne(context.Background(), "SELECT * FROM t", executor.PriorityNormal, time.Second)
	require.NoError(t, err)
	require.Equal(t, "v1", row["value"])
}

func TestClient_TransactionCommitsOnSuccess(t *testing.T) {
	c, drv := newTestClient(t)
	defer c.Close(context.Background())

	err := c.Transaction(context.Background(), time.Second, nil, func(conn *pool.Connection) error {
		_, execErr := conn.Exec(context.Background(), "INSERT INTO t (value) VALUES (?)", "txval")
		return execErr
	})
	require.NoError(t, err)
	require.Equal(t, 1, drv.RowCount())
}

func TestClient_TransactionRollsBackOnError(t *testing.T) {
	c, _ := newTestClient(t)
	defer c.Close(context.Background())

	sentinel := errors.New("boom")
	var held *pool.Connection
	err := c.Transaction(context.Background(), time.Second, nil, func(conn *pool.Connection) error {
		held = conn
		_, _ = conn.Exec(context.Background(), "INSERT INTO t (value) VALUES (?)", "txval")
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.False(t, held.InTransaction())
}

func TestClient_Stats(t *testing.T) {
	c, _ := newTestClient(t)
	defer c.Close(context.Background())

	stats := c.Stats()
	require.True(t, stats.Connected)
	require.Equal(t, 1, stats.Pool.Size)
	require.True(t, stats.Executor.Running)
}
