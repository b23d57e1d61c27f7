package pool

import (
	"context"
	"time"

	priosql "github.com/priosql/priosql"
)

// Acquire borrows a Connection, following spec.md §4.2's acquisition
// algorithm: gate on the capacity semaphore, take an idle entry if one
// shows up quickly, else grow the pool if under MaxSize, else wait out the
// remaining timeout; recycle-on-age happens just before handing the
// Connection back.
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, priosql.ErrPoolClosed
	}
	p.mu.Unlock()

	if timeout <= 0 {
		timeout = p.cfg.ConnectionTimeout
	}
	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		return nil, priosql.ErrAcquireTimeout
	}

	e, err := p.acquireEntry(acquireCtx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	if p.isRecyclable(e) {
		e, err = p.recycle(acquireCtx, e)
		if err != nil {
			p.sem.Release(1)
			return nil, err
		}
	}

	e.lastUsedAt = time.Now()
	p.mu.Lock()
	p.inUse[e] = struct{}{}
	p.mu.Unlock()
	p.acquireCount.Add(1)

	return &Connection{Connection: e.conn, e: e}, nil
}

// acquireEntry implements steps 3-4 of the acquisition algorithm: a short
// fast-path wait on available, then either grow the pool or wait out
// whatever's left of the caller's deadline.
func (p *Pool) acquireEntry(ctx context.Context) (*entry, error) {
	fastCtx, fastCancel := context.WithTimeout(ctx, fastAvailableTake)
	e, ok := p.waitForAvailable(fastCtx)
	fastCancel()
	if ok {
		return e, nil
	}
	if ctx.Err() != nil {
		return nil, priosql.ErrAcquireTimeout
	}

	p.mu.Lock()
	grow := len(p.all) < p.cfg.MaxSize
	p.mu.Unlock()
	if grow {
		e, err := p.createConnection(ctx)
		if err == nil {
			return e, nil
		}
		// Creation failed (e.g. transient driver error); fall through to
		// waiting on available rather than failing outright, in case
		// another borrower releases in time.
	}

	e, ok = p.waitForAvailable(ctx)
	if !ok {
		return nil, priosql.ErrPoolExhausted
	}
	return e, nil
}

// waitForAvailable blocks until available has an entry to pop, ctx is done,
// or the pool closes. It respects ctx cancellation by broadcasting the
// condition variable once ctx.Done() fires.
func (p *Pool) waitForAvailable(ctx context.Context) (*entry, bool) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.availCond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if e, ok := p.available.pop(); ok {
			return e, true
		}
		if p.closed {
			return nil, false
		}
		if ctx.Err() != nil {
			return nil, false
		}
		p.availCond.Wait()
	}
}

// recycle closes an aged-out entry and opens a replacement, preserving the
// permit the caller already holds (spec.md §4.2 step 6: "do not release the
// permit").
func (p *Pool) recycle(ctx context.Context, e *entry) (*entry, error) {
	p.mu.Lock()
	p.removeFromAll(e)
	p.mu.Unlock()
	_ = e.conn.Close()

	return p.createConnection(ctx)
}

// Release returns a Connection to the pool. A Connection past MaxQueries is
// retired (closed, not requeued) instead of being made available again;
// either way the capacity permit is always released (spec.md §4.2 "Release
// algorithm"). A second Release of the same Connection is a silent no-op
// (spec.md §4.2 step 1: "if conn not in in_use, return silently") — without
// this check, a double-release would over-release the capacity semaphore
// and panic.
func (p *Pool) Release(ctx context.Context, c *Connection) error {
	if c == nil || c.e == nil {
		return nil
	}
	e := c.e

	p.mu.Lock()
	if _, ok := p.inUse[e]; !ok {
		p.mu.Unlock()
		return nil
	}
	delete(p.inUse, e)
	closed := p.closed
	p.mu.Unlock()

	defer p.sem.Release(1)
	p.releaseCount.Add(1)

	if closed {
		_ = e.conn.Close()
		return nil
	}

	if p.cfg.MaxQueries > 0 && e.conn.QueryCount() >= p.cfg.MaxQueries {
		p.mu.Lock()
		p.removeFromAll(e)
		p.mu.Unlock()
		return e.conn.Close()
	}

	e.lastUsedAt = time.Now()
	p.mu.Lock()
	p.available.push(e)
	p.availCond.Signal()
	p.mu.Unlock()
	return nil
}

// WithConnection acquires a Connection, runs fn, and releases it regardless
// of fn's outcome (spec.md §4.2 "with_connection" convenience wrapper).
func (p *Pool) WithConnection(ctx context.Context, timeout time.Duration, fn func(*Connection) error) error {
	c, err := p.Acquire(ctx, timeout)
	if err != nil {
		return err
	}
	defer func() { _ = p.Release(ctx, c) }()
	return fn(c)
}
