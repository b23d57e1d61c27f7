package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	priosql "github.com/priosql/priosql"
	"github.com/priosql/priosql/executor"
	"github.com/priosql/priosql/internal/fakedriver"
	"github.com/priosql/priosql/pool"
)

func newTestExecutor(t *testing.T, drvCfg fakedriver.Config, poolCfg pool.Config, execCfg executor.Config) (*executor.Executor, *pool.Pool, *fakedriver.Driver) {
	t.Helper()
	drv := fakedriver.New(drvCfg)
	name := t.Name()
	priosql.RegisterDriver(name, drv)

	poolCfg.ConnectionConfig = &priosql.ConnectionConfig{DriverName: name, DSN: "memory"}
	p, err := pool.New(context.Background(), &poolCfg)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(context.Background()))

	ex, err := executor.New(p, &execCfg)
	require.NoError(t, err)
	ex.Start()
	return ex, p, drv
}

func TestExecutor_ExecuteRunsAgainstPool(t *testing.T) {
	ex, p, _ := newTestExecutor(t, fakedriver.Config{}, pool.Config{MinSize: 1, MaxSize: 2}, executor.Config{WorkerCount: 2})
	defer func() { ex.Stop(); _ = p.Close(context.Background()) }()

	res, err := ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?)", executor.PriorityNormal, time.Second, "x")
	require.NoError(t, err)
	require.EqualValues(t, 1, res.RowCount)
}

func TestExecutor_FetchAllReturnsRows(t *testing.T) {
	ex, p, _ := newTestExecutor(t, fakedriver.Config{}, pool.Config{MinSize: 1, MaxSize: 2}, executor.Config{WorkerCount: 1})
	defer func() { ex.Stop(); _ = p.Close(context.Background()) }()

	_, err := ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?)", executor.PriorityNormal, time.Second, "x")
	require.NoError(t, err)

	rows, err := ex.FetchAll(context.Background(), "SELECT * FROM t", executor.PriorityNormal, time.Second)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

// TestExecutor_HigherPriorityRunsFirst backs the queue up behind one slow
// in-flight task on a single worker, submits a LOW and then a CRITICAL task
// while the worker is busy, and checks CRITICAL is the one dispatched next.
func TestExecutor_HigherPriorityRunsFirst(t *testing.T) {
	ex, p, drv := newTestExecutor(t,
		fakedriver.Config{QueryDelay: 80 * time.Millisecond},
		pool.Config{MinSize: 1, MaxSize: 1},
		executor.Config{WorkerCount: 1},
	)
	defer func() { ex.Stop(); _ = p.Close(context.Background()) }()

	results := make(chan error, 3)
	go func() {
		_, err := ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?) -- blocker", executor.PriorityNormal, time.Second, "blocker")
		results <- err
	}()
	// Give the blocker time to be picked up by the lone worker before the
	// next two are submitted, so they queue up behind it.
	time.Sleep(20 * time.Millisecond)

	go func() {
		_, err := ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?) -- low", executor.PriorityLow, time.Second, "low")
		results <- err
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		_, err := ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?) -- critical", executor.PriorityCritical, time.Second, "critical")
		results <- err
	}()

	for i := 0; i < 3; i++ {
		require.NoError(t, <-results)
	}

	log := drv.Log()
	require.Len(t, log, 3)
	require.Contains(t, log[0], "blocker")
	require.Contains(t, log[1], "critical")
	require.Contains(t, log[2], "low")
}

func TestExecutor_AdmissionTimeoutReturnsErrQueueFull(t *testing.T) {
	ex, p, _ := newTestExecutor(t,
		fakedriver.Config{QueryDelay: 200 * time.Millisecond},
		pool.Config{MinSize: 1, MaxSize: 1},
		executor.Config{WorkerCount: 1, MaxQueueSize: 1, AdmissionTimeout: 30 * time.Millisecond},
	)
	defer func() { ex.Stop(); _ = p.Close(context.Background()) }()

	go func() { _, _ = ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?)", executor.PriorityNormal, time.Second, "1") }()
	time.Sleep(10 * time.Millisecond)
	go func() { _, _ = ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?)", executor.PriorityNormal, time.Second, "2") }()
	time.Sleep(10 * time.Millisecond)

	_, err := ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?)", executor.PriorityNormal, time.Second, "3")
	require.ErrorIs(t, err, priosql.ErrQueueFull)
}

func TestExecutor_SubmitTimeoutDetachesWithoutCancelling(t *testing.T) {
	ex, p, drv := newTestExecutor(t,
		fakedriver.Config{QueryDelay: 100 * time.Millisecond},
		pool.Config{MinSize: 1, MaxSize: 1},
		executor.Config{WorkerCount: 1},
	)
	defer func() { ex.Stop(); _ = p.Close(context.Background()) }()

	_, err := ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?)", executor.PriorityNormal, 10*time.Millisecond, "x")
	require.ErrorIs(t, err, priosql.ErrSubmitTimeout)

	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 1, drv.RowCount())
}

// TestExecutor_AcquireFailureReachesCaller pins the pool's only connection
// (as Client.Transaction would), so a worker's WithConnection call can never
// acquire one and times out. The submitter must see that error rather than
// block forever waiting on a result that no one sends.
func TestExecutor_AcquireFailureReachesCaller(t *testing.T) {
	ex, p, _ := newTestExecutor(t,
		fakedriver.Config{},
		pool.Config{MinSize: 1, MaxSize: 1, ConnectionTimeout: 30 * time.Millisecond},
		executor.Config{WorkerCount: 1},
	)
	defer func() { ex.Stop(); _ = p.Close(context.Background()) }()

	pinned, err := p.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer func() { _ = p.Release(context.Background(), pinned) }()

	done := make(chan error, 1)
	go func() {
		_, err := ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?)", executor.PriorityNormal, 0, "x")
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, priosql.ErrAcquireTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("Execute blocked forever instead of surfacing the pool acquisition error")
	}
}

func TestExecutor_StopDrainsQueuedTasksWithErrExecutorStopped(t *testing.T) {
	ex, p, _ := newTestExecutor(t,
		fakedriver.Config{QueryDelay: 100 * time.Millisecond},
		pool.Config{MinSize: 1, MaxSize: 1},
		executor.Config{WorkerCount: 1},
	)
	defer func() { _ = p.Close(context.Background()) }()

	queuedErr := make(chan error, 1)
	go func() {
		_, err := ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?)", executor.PriorityNormal, time.Second, "occupies worker")
		_ = err
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		_, err := ex.Execute(context.Background(), "INSERT INTO t (value) VALUES (?)", executor.PriorityNormal, time.Second, "queued")
		queuedErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	ex.Stop()
	require.ErrorIs(t, <-queuedErr, priosql.ErrExecutorStopped)
}
