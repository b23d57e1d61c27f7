package priosql_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	priosql "github.com/priosql/priosql"
	"github.com/priosql/priosql/internal/fakedriver"
)

func newTestDB(t *testing.T, cfg fakedriver.Config) (*priosql.DB, *fakedriver.Driver) {
	t.Helper()
	drv := fakedriver.New(cfg)
	name := t.Name()
	priosql.RegisterDriver(name, drv)
	db, err := priosql.Open(context.Background(), &priosql.ConnectionConfig{
		DriverName: name,
		DSN:        "memory",
	})
	require.NoError(t, err)
	return db, drv
}

func TestConnection_ExecInsertAndSelect(t *testing.T) {
	db, drv := newTestDB(t, fakedriver.Config{})
	conn, err := db.Connect(context.Background(), &priosql.ConnectionConfig{DriverName: t.Name(), DSN: "memory"})
	require.NoError(t, err)
	defer conn.Close()

	res, err := conn.Exec(context.Background(), "INSERT INTO t (value) VALUES (?)", "hello")
	require.NoError(t, err)
	require.Equal(t, priosql.QueryTypeInsert, res.QueryType)
	require.EqualValues(t, 1, res.RowCount)
	require.EqualValues(t, 1, conn.QueryCount())

	res, err = conn.Exec(context.Background(), "SELECT * FROM t")
	require.NoError(t, err)
	require.Equal(t, priosql.QueryTypeSelect, res.QueryType)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "hello", res.Rows[0]["value"])
	require.EqualValues(t, 1, drv.RowCount())
}

func TestConnection_ExecBatch(t *testing.T) {
	db, _ := newTestDB(t, fakedriver.Config{})
	conn, err := db.Connect(context.Background(), &priosql.ConnectionConfig{DriverName: t.Name(), DSN: "memory"})
	require.NoError(t, err)
	defer conn.Close()

	res, err := conn.ExecBatch(context.Background(), "INSERT INTO t (value) VALUES (?)", [][]any{
		{"a"}, {"b"}, {"c"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, res.RowCount)
	require.EqualValues(t, 1, conn.QueryCount())
}

func TestConnection_ExplicitTransaction(t *testing.T) {
	db, _ := newTestDB(t, fakedriver.Config{})
	conn, err := db.Connect(context.Background(), &priosql.ConnectionConfig{DriverName: t.Name(), DSN: "memory"})
	require.NoError(t, err)
	defer conn.Close()

	require.False(t, conn.InTransaction())
	require.NoError(t, conn.Begin(context.Background(), nil))
	require.True(t, conn.InTransaction())

	_, err = conn.Exec(context.Background(), "INSERT INTO t (value) VALUES (?)", "x")
	require.NoError(t, err)

	require.NoError(t, conn.Commit(context.Background()))
	require.False(t, conn.InTransaction())
}

func TestConnection_ExplicitRollback(t *testing.T) {
	db, _ := newTestDB(t, fakedriver.Config{})
	conn, err := db.Connect(context.Background(), &priosql.ConnectionConfig{DriverName: t.Name(), DSN: "memory"})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Begin(context.Background(), nil))
	require.NoError(t, conn.Rollback(context.Background()))
	require.False(t, conn.InTransaction())
}

func TestConnection_QueryDelayRespectsContext(t *testing.T) {
	db, _ := newTestDB(t, fakedriver.Config{QueryDelay: 200 * time.Millisecond})
	conn, err := db.Connect(context.Background(), &priosql.ConnectionConfig{DriverName: t.Name(), DSN: "memory"})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = conn.Exec(ctx, "INSERT INTO t (value) VALUES (?)", "slow")
	require.Error(t, err)
}
