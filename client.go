package priosql

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/priosql/priosql/executor"
	"github.com/priosql/priosql/pool"
)

// Config bundles everything Connect needs: how to open sessions, how to
// pool them, and how to schedule work against them (spec.md §6 Config).
type Config struct {
	Pool     *pool.Config
	Executor *executor.Config
}

// Client is the facade callers use: Execute/ExecuteMany/FetchOne/FetchAll
// run through the priority executor, while Transaction/WithConnection
// bypass it for direct, ordered access to a single Connection (spec.md §4).
type Client struct {
	cfg *Config

	pool *pool.Pool
	exec *executor.Executor

	connected atomic.Bool
}

// New creates a Client. Callers must call Connect before issuing queries.
func New(cfg *Config) *Client {
	return &Client{cfg: cfg}
}

// Connect opens the pool's minimum connections and starts the executor's
// worker pool. Calling Connect on an already-connected Client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if c.connected.Load() {
		return nil
	}

	if c.cfg.Pool == nil {
		return ErrMissingConnectionConfig
	}
	if c.cfg.Executor == nil {
		c.cfg.Executor = &executor.Config{}
	}
	if c.cfg.Executor.WorkerCount <= 0 && c.cfg.Pool.MaxSize > 0 {
		c.cfg.Executor.WorkerCount = c.cfg.Pool.MaxSize
	}

	p, err := pool.New(ctx, c.cfg.Pool)
	if err != nil {
		return err
	}
	if err := p.Initialize(ctx); err != nil {
		return err
	}

	ex, err := executor.New(p, c.cfg.Executor)
	if err != nil {
		_ = p.Close(ctx)
		return err
	}
	ex.Start()

	c.pool = p
	c.exec = ex
	c.connected.Store(true)
	return nil
}

// Close stops the executor, drains in-flight work, then closes the pool.
func (c *Client) Close(ctx context.Context) error {
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	if c.exec != nil {
		c.exec.Stop()
	}
	if c.pool != nil {
		return c.pool.Close(ctx)
	}
	return nil
}

// IsConnected reports whether Connect has succeeded and Close has not yet
// been called.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) requireConnected() error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	return nil
}

// Execute runs a single query through the priority executor.
func (c *Client) Execute(ctx context.Context, query string, priority executor.Priority, timeout time.Duration, args ...any) (*QueryResult, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	return c.exec.Execute(ctx, query, priority, timeout, args...)
}

// ExecuteMany runs a batched-parameter query through the priority executor.
func (c *Client) ExecuteMany(ctx context.Context, query string, paramSets [][]any, priority executor.Priority, timeout time.Duration) (*QueryResult, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	return c.exec.ExecuteMany(ctx, query, paramSets, priority, timeout)
}

// FetchOne runs a SELECT through the priority executor and returns its
// first row, or nil if it returned none.
func (c *Client) FetchOne(ctx context.Context, query string, priority executor.Priority, timeout time.Duration, args ...any) (Row, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	return c.exec.FetchOne(ctx, query, priority, timeout, args...)
}

// FetchAll runs a SELECT through the priority executor and returns every
// row.
func (c *Client) FetchAll(ctx context.Context, query string, priority executor.Priority, timeout time.Duration, args ...any) ([]Row, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	return c.exec.FetchAll(ctx, query, priority, timeout, args...)
}

// Transaction acquires a Connection directly from the pool, bypassing the
// executor so statements run in submission order on one session, begins a
// transaction, runs fn, and commits or rolls back depending on whether fn
// returned an error (spec.md §4.1).
func (c *Client) Transaction(ctx context.Context, timeout time.Duration, opts *TXOptions, fn func(*pool.Connection) error) error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	conn, err := c.pool.Acquire(ctx, timeout)
	if err != nil {
		return err
	}
	defer func() { _ = c.pool.Release(ctx, conn) }()

	if err := conn.Begin(ctx, opts); err != nil {
		return err
	}
	if err := fn(conn); err != nil {
		_ = conn.Rollback(ctx)
		return err
	}
	return conn.Commit(ctx)
}

// WithConnection acquires a Connection directly from the pool, bypassing
// the executor, runs fn, and releases it regardless of fn's outcome
// (spec.md §4.2).
func (c *Client) WithConnection(ctx context.Context, timeout time.Duration, fn func(*pool.Connection) error) error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	return c.pool.WithConnection(ctx, timeout, fn)
}

// Stats is a point-in-time snapshot of both the pool's and the executor's
// counters plus a copy of the resolved Config (spec.md §6 stats()).
type Stats struct {
	Connected bool
	Pool      pool.Stats
	Executor  executor.Stats
	Config    Config
}

func (c *Client) Stats() Stats {
	if !c.connected.Load() {
		return Stats{Connected: false}
	}
	poolCfg := *c.cfg.Pool
	connCfg := *poolCfg.ConnectionConfig
	poolCfg.ConnectionConfig = &connCfg
	execCfg := *c.cfg.Executor
	return Stats{
		Connected: true,
		Pool:      c.pool.Stats(),
		Executor:  c.exec.Stats(),
		Config:    Config{Pool: &poolCfg, Executor: &execCfg},
	}
}
