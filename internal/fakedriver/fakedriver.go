// Package fakedriver is a minimal database/sql/driver implementation used
// only by this module's own tests. It stands in for a real embedded-SQL
// engine driver, recording query order and simulating latency so pool and
// executor behaviour (growth, recycling, priority ordering, timeouts) can be
// exercised deterministically, the way
// zJUNAIDz-vibe-learning-dump's connection-pool tests stand up a mockConn
// implementing the real Conn interface instead of hitting a real backend.
package fakedriver

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"time"
)

// Config controls the behaviour of every Conn opened through a Driver.
type Config struct {
	// QueryDelay, when set, is waited before every Exec/Query completes,
	// simulating a slow-running statement.
	QueryDelay time.Duration

	// OpenErr, when set, is returned by every Connect call.
	OpenErr error

	// OpenDelay, when set, is waited before every Connect completes.
	OpenDelay time.Duration
}

// database is the state shared by every Conn opened through one Driver,
// analogous to rows actually persisted by a real engine.
type database struct {
	mu        sync.Mutex
	log       []string
	rows      [][]driver.Value
	nextID    int64
	openCount int
	closeCount int
}

// Driver implements driver.Driver and driver.DriverContext.
type Driver struct {
	cfg Config
	db  *database
}

// New creates a Driver whose Conns all share one in-memory table and the
// given Config.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg, db: &database{}}
}

func (d *Driver) Open(_ string) (driver.Conn, error) {
	return nil, errors.New("fakedriver: driver requires OpenConnector (DriverContext)")
}

func (d *Driver) OpenConnector(_ string) (driver.Connector, error) {
	return &connector{driver: d}, nil
}

// Log returns a copy of every query executed so far, in execution order.
func (d *Driver) Log() []string {
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	out := make([]string, len(d.db.log))
	copy(out, d.db.log)
	return out
}

// RowCount returns how many rows are currently stored.
func (d *Driver) RowCount() int {
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	return len(d.db.rows)
}

// OpenCount returns how many Conns have been opened so far.
func (d *Driver) OpenCount() int {
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	return d.db.openCount
}

// CloseCount returns how many Conns have been closed so far.
func (d *Driver) CloseCount() int {
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	return d.db.closeCount
}

type connector struct {
	driver *Driver
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	if c.driver.cfg.OpenDelay > 0 {
		select {
		case <-time.After(c.driver.cfg.OpenDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.driver.cfg.OpenErr != nil {
		return nil, c.driver.cfg.OpenErr
	}
	c.driver.db.mu.Lock()
	c.driver.db.openCount++
	c.driver.db.mu.Unlock()
	return &conn{db: c.driver.db, delay: c.driver.cfg.QueryDelay}, nil
}

func (c *connector) Driver() driver.Driver { return c.driver }

// conn implements driver.Conn, driver.ConnBeginTx, driver.ExecerContext,
// driver.QueryerContext and driver.Pinger.
type conn struct {
	db    *database
	delay time.Duration

	mu     sync.Mutex
	closed bool
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{c: c, query: query}, nil
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.db.mu.Lock()
	c.db.closeCount++
	c.db.mu.Unlock()
	return nil
}

func (c *conn) Begin() (driver.Tx, error) { return &tx{}, nil }

func (c *conn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	return &tx{}, nil
}

func (c *conn) Ping(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return driver.ErrBadConn
	}
	return nil
}

func (c *conn) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(c.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.log = append(c.db.log, query)
	c.db.nextID++
	id := c.db.nextID
	var val driver.Value
	if len(args) > 0 {
		val = args[0].Value
	}
	c.db.rows = append(c.db.rows, []driver.Value{id, val})
	return &result{lastInsertID: id, rowsAffected: 1}, nil
}

func (c *conn) QueryContext(ctx context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.log = append(c.db.log, query)
	data := make([][]driver.Value, len(c.db.rows))
	copy(data, c.db.rows)
	return &rows{columns: []string{"id", "value"}, data: data}, nil
}

// stmt is used only by code that doesn't probe for ExecerContext/
// QueryerContext first; priosql's own execContext/queryContext always do, so
// this is reached only by drivers/tests relying on the legacy path.
type stmt struct {
	c     *conn
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.c.ExecContext(context.Background(), s.query, valuesToNamed(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.c.QueryContext(context.Background(), s.query, valuesToNamed(args))
}

func valuesToNamed(args []driver.Value) []driver.NamedValue {
	nvs := make([]driver.NamedValue, len(args))
	for i, v := range args {
		nvs[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return nvs
}

type tx struct{}

func (t *tx) Commit() error   { return nil }
func (t *tx) Rollback() error { return nil }

type result struct {
	lastInsertID int64
	rowsAffected int64
}

func (r *result) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r *result) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type rows struct {
	columns []string
	data    [][]driver.Value
	pos     int
}

func (r *rows) Columns() []string { return r.columns }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}
