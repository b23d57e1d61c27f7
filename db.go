package priosql

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"sync/atomic"
)

// DB is the handle used to open new underlying driver connections. It wraps
// a registered driver.Connector; pool.Pool opens one Connection per pooled
// slot through it.
type DB struct {
	c driver.Connector

	closed atomic.Bool
}

// Open opens a new DB handle for the driver named by cfg.DriverName.
func Open(_ context.Context, cfg *ConnectionConfig) (*DB, error) {
	if err := cfg.ValidateAndDefault(); err != nil {
		return nil, err
	}
	d, ok := lookupDriver(cfg.DriverName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredDriver, cfg.DriverName)
	}
	c, err := d.OpenConnector(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return &DB{c: c}, nil
}

// Close marks the DB closed, so later Connect calls fail with ErrPoolClosed,
// and closes the connector if it implements io.Closer. It neither waits for
// nor stops statements on Connections that are already open.
//
// It is rare to Close a [DB], as the [DB] handle is meant to be
// long-lived and shared between many goroutines.
func (db *DB) Close() error {
	if db.closed.CompareAndSwap(false, true) {
		if c, ok := db.c.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}
	return nil
}

// Connect opens one new driver.Conn through the underlying connector and
// wraps it as a Connection. Called by pool.Pool for every lazily grown slot.
func (db *DB) Connect(ctx context.Context, cfg *ConnectionConfig) (*Connection, error) {
	if db.closed.Load() {
		return nil, ErrPoolClosed
	}
	c, err := db.c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return newConnection(c, cfg), nil
}
