package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	priosql "github.com/priosql/priosql"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// fastAvailableTake is the short bounded wait step 3 of the acquisition
// algorithm tries before deciding whether to grow the pool or wait the full
// remaining timeout (spec.md §4.2, "design value: 100 ms").
const fastAvailableTake = 100 * time.Millisecond

// Pool owns a bounded set of Connections, gating admission via a capacity
// semaphore and lending/returning them through Acquire/Release (spec.md §4.2).
type Pool struct {
	cfg *Config
	db  *priosql.DB

	// mu guards all, available, inUse, closed and is the condition variable
	// lock for availCond. Long-running (I/O) operations must not be
	// performed while mu is held — the same discipline the teacher's
	// pool.pool documents on its own mu.
	mu        sync.Mutex
	availCond *sync.Cond
	all       []*entry
	available *fifoQueue
	inUse     map[*entry]struct{}
	closed    bool

	// sem is the sole gate on borrower count (spec.md §4.2 "The capacity
	// semaphore is the sole gate on borrower count"), directly reusing the
	// teacher's choice of golang.org/x/sync/semaphore for it.
	sem *semaphore.Weighted

	acquireCount atomic.Int64
	releaseCount atomic.Int64

	healthStop chan struct{}
	healthDone chan struct{}
}

// New creates a Pool. Callers must call Initialize before Acquire.
func New(ctx context.Context, cfg *Config) (*Pool, error) {
	if err := cfg.ValidateAndDefault(); err != nil {
		return nil, err
	}
	db, err := priosql.Open(ctx, cfg.ConnectionConfig)
	if err != nil {
		return nil, err
	}
	p := &Pool{
		cfg:        cfg,
		db:         db,
		sem:        semaphore.NewWeighted(int64(cfg.MaxSize)),
		available:  newFIFOQueue(),
		inUse:      make(map[*entry]struct{}),
		healthStop: make(chan struct{}),
		healthDone: make(chan struct{}),
	}
	p.availCond = sync.NewCond(&p.mu)
	return p, nil
}

// Initialize opens exactly MinSize connections and places them in available.
// Fails fast if any open fails (spec.md §4.2).
func (p *Pool) Initialize(ctx context.Context) error {
	for i := 0; i < p.cfg.MinSize; i++ {
		e, err := p.createConnection(ctx)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.available.push(e)
		p.availCond.Signal()
		p.mu.Unlock()
	}
	go p.healthLoop()
	return nil
}

// createConnection opens one new underlying session and registers it in all.
// It does not touch available/inUse/sem — callers decide what to do with the
// entry once it's open.
func (p *Pool) createConnection(ctx context.Context) (*entry, error) {
	conn, err := p.db.Connect(ctx, p.cfg.ConnectionConfig)
	if err != nil {
		return nil, err
	}
	e := newEntry(conn)
	p.mu.Lock()
	p.all = append(p.all, e)
	p.mu.Unlock()
	return e, nil
}

func (p *Pool) removeFromAll(e *entry) {
	for i, v := range p.all {
		if v == e {
			last := len(p.all) - 1
			p.all[i] = p.all[last]
			p.all[last] = nil
			p.all = p.all[:last]
			return
		}
	}
}

func (p *Pool) isRecyclable(e *entry) bool {
	return p.cfg.PoolRecycle > 0 && e.age() > p.cfg.PoolRecycle
}

// Close drains and closes every connection, blocks new acquisitions and
// empties available (spec.md §4.2 "Close algorithm").
func (p *Pool) Close(ctx context.Context) error {
	close(p.healthStop)
	<-p.healthDone

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	all := make([]*entry, len(p.all))
	copy(all, p.all)
	p.all = nil
	p.available.drain()
	p.inUse = make(map[*entry]struct{})
	p.availCond.Broadcast()
	p.mu.Unlock()

	group, gctx := errgroup.WithContext(ctx)
	for _, e := range all {
		e := e
		group.Go(func() error {
			return e.conn.Close()
		})
	}
	_ = gctx
	if err := group.Wait(); err != nil {
		_ = p.db.Close()
		return fmt.Errorf("%w: %v", priosql.ErrPoolClosed, err)
	}
	return p.db.Close()
}

// Stats returns a point-in-time snapshot of the pool's counters (spec.md §6
// stats() "pool:{...}").
type Stats struct {
	Size           int
	InUse          int
	Available      int
	TotalAcquired  int64
	TotalReleased  int64
	Closed         bool
}

// Stats reports the pool's current counters, read under mu.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Size:          len(p.all),
		InUse:         len(p.inUse),
		Available:     p.available.length(),
		TotalAcquired: p.acquireCount.Load(),
		TotalReleased: p.releaseCount.Load(),
		Closed:        p.closed,
	}
}
