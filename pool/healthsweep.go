package pool

import (
	"context"
	"time"

	"github.com/sinhashubham95/go-utils/maths"
	"github.com/sinhashubham95/go-utils/structures/stack"
)

// healthLoop runs until Close signals healthStop, periodically sweeping
// idle connections to enforce MaxIdleTime/PoolRecycle and to replenish
// MinSize (resolving the MaxIdleTime Open Question in spec.md §9 as
// "enforced", documented in DESIGN.md).
func (p *Pool) healthLoop() {
	defer close(p.healthDone)
	ticker := time.NewTicker(p.cfg.HealthCheckPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.healthStop:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// sweep borrows every currently-idle entry off available without disturbing
// in-flight Acquire/Release traffic, closes the ones past MaxIdleTime or
// PoolRecycle, and returns the rest. It reuses the teacher's exponential
// partial-semaphore-acquire trick (acquireSemAll in the teacher's
// pool/acquirerelease.go) to grab as many permits as are free right now
// without blocking on ones that are in use, and a stack.Stack[*entry] as an
// order-independent scratch buffer while it inspects them — order doesn't
// matter here, unlike available itself, which must stay FIFO.
func (p *Pool) sweep() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	idle := p.available.length()
	p.mu.Unlock()
	if idle == 0 {
		p.growToMin()
		return
	}

	acquired := p.acquireSemAll(idle)
	if acquired == 0 {
		return
	}
	defer p.sem.Release(int64(acquired))

	scratch := stack.New[*entry]()
	p.mu.Lock()
	for i := 0; i < acquired; i++ {
		e, ok := p.available.pop()
		if !ok {
			break
		}
		scratch.Push(e)
	}
	p.mu.Unlock()

	var survivors []*entry
	for scratch.Length() > 0 {
		e, _ := scratch.Pop()
		if e.idleDuration() > p.cfg.MaxIdleTime || p.isRecyclable(e) {
			p.mu.Lock()
			p.removeFromAll(e)
			p.mu.Unlock()
			_ = e.conn.Close()
			continue
		}
		survivors = append(survivors, e)
	}

	p.mu.Lock()
	for _, e := range survivors {
		p.available.push(e)
	}
	if len(survivors) > 0 {
		p.availCond.Broadcast()
	}
	p.mu.Unlock()

	p.growToMin()
}

// acquireSemAll tries to take count permits from the capacity semaphore in
// one shot; if that fails it falls back to exponentially smaller partial
// claims so the sweep still makes progress against whatever capacity is
// free, without blocking waiting Acquire callers for any permits currently
// in use.
func (p *Pool) acquireSemAll(count int) int {
	if p.sem.TryAcquire(int64(count)) {
		return count
	}
	var acquired int
	for i := int(maths.Log2(float32(count))); i >= 0; i-- {
		v := 1 << i
		if p.sem.TryAcquire(int64(v)) {
			acquired += v
		}
	}
	return acquired
}

// growToMin replenishes available back up to MinSize after the sweep has
// retired connections, mirroring Initialize's eager-open behaviour.
func (p *Pool) growToMin() {
	p.mu.Lock()
	deficit := p.cfg.MinSize - len(p.all)
	closed := p.closed
	p.mu.Unlock()
	if closed || deficit <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectionTimeout)
	defer cancel()
	for i := 0; i < deficit; i++ {
		e, err := p.createConnection(ctx)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.available.push(e)
		p.availCond.Signal()
		p.mu.Unlock()
	}
}
