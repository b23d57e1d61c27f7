package priosql

import "time"

// Row is one result row, keyed by column name (spec.md §3 "row mappings",
// original_source/web_sqlite3/types.py: Row = Dict[str, Any]).
type Row map[string]any

// QueryResult is the outcome of one Connection.Exec/ExecBatch call
// (spec.md §3 "QueryResult (C3 output)").
type QueryResult struct {
	// Rows holds the materialised result set for SELECT statements; nil for
	// everything else.
	Rows []Row

	// RowCount is the number of rows materialised (SELECT), or the number
	// of rows affected (INSERT/UPDATE/DELETE/...) as reported by the driver.
	RowCount int64

	// LastInsertID is the driver-reported last inserted row id, where
	// applicable.
	LastInsertID int64

	// Elapsed is wall-clock time measured around the driver call.
	Elapsed time.Duration

	// QueryType is derived by classifyQuery from the statement's first
	// keyword.
	QueryType QueryType
}
