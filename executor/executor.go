package executor

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	priosql "github.com/priosql/priosql"
	"github.com/priosql/priosql/pool"
)

// Executor multiplexes callers onto a fixed worker pool, running admitted
// tasks against a Pool in priority order (spec.md §5).
type Executor struct {
	cfg *Config
	p   *pool.Pool

	mu   sync.Mutex
	cond *sync.Cond
	pq   priorityQueue

	seq     atomic.Uint64
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	totalExecuted atomic.Int64
	totalFailed   atomic.Int64
}

// New creates an Executor bound to p. Callers must call Start before
// Execute/ExecuteMany.
func New(p *pool.Pool, cfg *Config) (*Executor, error) {
	if err := cfg.ValidateAndDefault(); err != nil {
		return nil, err
	}
	e := &Executor{cfg: cfg, p: p}
	e.cond = sync.NewCond(&e.mu)
	return e, nil
}

// Start launches WorkerCount worker goroutines plus the poll broadcaster.
func (e *Executor) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.stopCh = make(chan struct{})
	e.wg.Add(e.cfg.WorkerCount)
	for i := 0; i < e.cfg.WorkerCount; i++ {
		go e.worker()
	}
	go e.poller()
}

// poller periodically broadcasts the condition variable so idle workers
// re-check the running flag at roughly WorkerPollInterval (spec.md §5.2
// "worker poll bound"), the Go analogue of the original implementation's
// asyncio.wait_for(queue.get(), timeout=0.1) loop.
func (e *Executor) poller() {
	ticker := time.NewTicker(e.cfg.WorkerPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		}
	}
}

// Stop stops accepting new admissions, resolves every task still queued
// with ErrExecutorStopped (the Open Question in spec.md §9, resolved as
// "completed, not leaked"), waits for in-flight tasks to finish, and
// returns once every worker has exited.
func (e *Executor) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.stopCh)

	e.mu.Lock()
	for e.pq.Len() > 0 {
		t := heap.Pop(&e.pq).(*task)
		t.result <- taskResult{err: priosql.ErrExecutorStopped}
	}
	e.cond.Broadcast()
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		t, ok := e.waitForTask()
		if !ok {
			return
		}
		e.executeTask(t)
	}
}

func (e *Executor) waitForTask() (*task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if e.pq.Len() > 0 {
			return heap.Pop(&e.pq).(*task), true
		}
		if !e.running.Load() {
			return nil, false
		}
		e.cond.Wait()
	}
}

func (e *Executor) executeTask(t *task) {
	ran := false
	err := e.p.WithConnection(context.Background(), 0, func(c *pool.Connection) error {
		ran = true
		res, opErr := t.op(context.Background(), c)
		if opErr != nil {
			t.result <- taskResult{err: opErr}
			return opErr
		}
		t.result <- taskResult{res: res}
		return nil
	})
	if err != nil {
		e.totalFailed.Add(1)
		// fn never ran: the failure happened acquiring the connection
		// (ErrAcquireTimeout/ErrPoolExhausted/ErrPoolClosed), so nobody has
		// sent to t.result yet. Send the acquisition error itself, or the
		// submitter blocks forever (spec.md §4.3: complete the task's slot
		// with the result or the raised error).
		if !ran {
			t.result <- taskResult{err: err}
		}
	} else {
		e.totalExecuted.Add(1)
	}
}

// submit admits t onto the queue, waiting up to cfg.AdmissionTimeout for
// room (spec.md §5.2 "admission bound").
func (e *Executor) submit(ctx context.Context, t *task) error {
	if !e.running.Load() {
		return priosql.ErrExecutorStopped
	}

	admitCtx, cancel := context.WithTimeout(ctx, e.cfg.AdmissionTimeout)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-admitCtx.Done():
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		case <-done:
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	for e.pq.Len() >= e.cfg.MaxQueueSize {
		if !e.running.Load() {
			return priosql.ErrExecutorStopped
		}
		if admitCtx.Err() != nil {
			return priosql.ErrQueueFull
		}
		e.cond.Wait()
	}
	if !e.running.Load() {
		return priosql.ErrExecutorStopped
	}
	heap.Push(&e.pq, t)
	e.cond.Broadcast()
	return nil
}

// Execute submits a single query at the given priority and blocks for its
// result, detaching (but not cancelling) the task if timeout elapses first
// (spec.md §5.1).
func (e *Executor) Execute(ctx context.Context, query string, priority Priority, timeout time.Duration, args ...any) (*priosql.QueryResult, error) {
	return e.run(ctx, execOperation(query, args), priority, timeout)
}

// ExecuteMany submits a batched-parameter query at the given priority.
func (e *Executor) ExecuteMany(ctx context.Context, query string, paramSets [][]any, priority Priority, timeout time.Duration) (*priosql.QueryResult, error) {
	return e.run(ctx, execBatchOperation(query, paramSets), priority, timeout)
}

func (e *Executor) run(ctx context.Context, op operation, priority Priority, timeout time.Duration) (*priosql.QueryResult, error) {
	t := &task{
		op:        op,
		priority:  priority,
		seq:       e.seq.Add(1),
		createdAt: time.Now(),
		result:    make(chan taskResult, 1),
	}
	if err := e.submit(ctx, t); err != nil {
		return nil, err
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case r := <-t.result:
		return r.res, r.err
	case <-waitCtx.Done():
		return nil, priosql.ErrSubmitTimeout
	}
}

// FetchOne executes a SELECT and returns its first row, or nil if it
// returned none.
func (e *Executor) FetchOne(ctx context.Context, query string, priority Priority, timeout time.Duration, args ...any) (priosql.Row, error) {
	res, err := e.Execute(ctx, query, priority, timeout, args...)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	return res.Rows[0], nil
}

// FetchAll executes a SELECT and returns every row.
func (e *Executor) FetchAll(ctx context.Context, query string, priority Priority, timeout time.Duration, args ...any) ([]priosql.Row, error) {
	res, err := e.Execute(ctx, query, priority, timeout, args...)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Stats is a point-in-time snapshot of the executor's counters (spec.md §6
// stats() "executor:{...}").
type Stats struct {
	QueueSize     int
	Workers       int
	TotalExecuted int64
	TotalFailed   int64
	Running       bool
}

func (e *Executor) Stats() Stats {
	e.mu.Lock()
	qs := e.pq.Len()
	e.mu.Unlock()
	return Stats{
		QueueSize:     qs,
		Workers:       e.cfg.WorkerCount,
		TotalExecuted: e.totalExecuted.Load(),
		TotalFailed:   e.totalFailed.Load(),
		Running:       e.running.Load(),
	}
}
