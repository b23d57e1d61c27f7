package pool

import (
	"time"

	priosql "github.com/priosql/priosql"
)

// entry is the Pool's private bookkeeping for one live Connection: its
// creation time (for recycle-by-age) and last-used time (for idle-time
// enforcement). spec.md §3 folds this bookkeeping into "Connection"
// directly; it's split out here so the Pool keeps its own timestamps
// alongside the session. A recycle closes the entry's Connection and
// replaces the whole entry with a new one.
type entry struct {
	conn       *priosql.Connection
	createdAt  time.Time
	lastUsedAt time.Time
}

func newEntry(conn *priosql.Connection) *entry {
	now := time.Now()
	return &entry{conn: conn, createdAt: now, lastUsedAt: now}
}

func (e *entry) age() time.Duration {
	return time.Since(e.createdAt)
}

func (e *entry) idleDuration() time.Duration {
	return time.Since(e.lastUsedAt)
}

// Connection is the handle lent to callers by Pool.Acquire. It embeds
// *priosql.Connection so callers can issue Exec/Begin/... directly, plus the
// pool-private age/idle bookkeeping the caller isn't meant to see.
type Connection struct {
	*priosql.Connection

	e *entry
}
