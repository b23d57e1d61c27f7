package executor

import (
	"context"
	"time"

	priosql "github.com/priosql/priosql"
	"github.com/priosql/priosql/pool"
)

// operation is what a task asks a Connection to do; it's the one seam
// between the executor's scheduling mechanism and priosql's query surface.
type operation func(ctx context.Context, conn *pool.Connection) (*priosql.QueryResult, error)

// task is one admitted unit of work. seq breaks priority ties in submission
// order (spec.md §5.1 "ordering key (-priority, seq)").
type task struct {
	op        operation
	priority  Priority
	seq       uint64
	createdAt time.Time

	result chan taskResult
}

type taskResult struct {
	res *priosql.QueryResult
	err error
}

func execOperation(query string, args []any) operation {
	return func(ctx context.Context, conn *pool.Connection) (*priosql.QueryResult, error) {
		return conn.Exec(ctx, query, args...)
	}
}

func execBatchOperation(query string, paramSets [][]any) operation {
	return func(ctx context.Context, conn *pool.Connection) (*priosql.QueryResult, error) {
		return conn.ExecBatch(ctx, query, paramSets)
	}
}
