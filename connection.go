package priosql

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// QueryType is derived from a statement's first keyword (spec.md §4.1).
type QueryType int

// Recognised query types. Anything not matching one of the named keywords
// classifies as QueryTypeOther.
const (
	QueryTypeOther QueryType = iota
	QueryTypeSelect
	QueryTypeInsert
	QueryTypeUpdate
	QueryTypeDelete
	QueryTypeCreate
	QueryTypeDrop
	QueryTypeAlter
)

var queryTypeKeywords = map[string]QueryType{
	"SELECT": QueryTypeSelect,
	"INSERT": QueryTypeInsert,
	"UPDATE": QueryTypeUpdate,
	"DELETE": QueryTypeDelete,
	"CREATE": QueryTypeCreate,
	"DROP":   QueryTypeDrop,
	"ALTER":  QueryTypeAlter,
}

// classifyQuery trims leading whitespace and matches the uppercased first
// token against the known keyword set. Ported from
// original_source/web_sqlite3/connection.py:_detect_query_type.
func classifyQuery(query string) QueryType {
	trimmed := strings.TrimSpace(query)
	end := strings.IndexFunc(trimmed, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '('
	})
	first := trimmed
	if end >= 0 {
		first = trimmed[:end]
	}
	if qt, ok := queryTypeKeywords[strings.ToUpper(first)]; ok {
		return qt
	}
	return QueryTypeOther
}

// Connection wraps one live driver.Conn session. mu is held across the
// entire body of Exec/ExecBatch, including row materialisation, because the
// underlying driver assumes one statement in flight per session at a time
// (spec.md §4.1 "Per-connection serialisation", §9).
type Connection struct {
	conn driver.Conn
	cfg  *ConnectionConfig

	createdAt  time.Time
	queryCount atomic.Int64

	mu            sync.Mutex
	inTransaction bool
	tx            driver.Tx
}

func newConnection(c driver.Conn, cfg *ConnectionConfig) *Connection {
	return &Connection{conn: c, cfg: cfg, createdAt: time.Now()}
}

// CreatedAt returns the time this Connection's underlying session was opened.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// QueryCount returns the number of statements executed on this Connection so
// far (incremented on both success and failure, spec.md §4.1).
func (c *Connection) QueryCount() int64 { return c.queryCount.Load() }

// Close releases the underlying session. Idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Ping verifies the underlying session is still usable, if the driver
// supports it.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrConnectionFailed
	}
	if p, ok := c.conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Exec runs one statement under the per-connection guard. If the statement
// classifies as SELECT, all rows are eagerly materialised into Row maps. When
// not inside an explicit transaction, the statement is wrapped in an
// implicit one, committed on success and rolled back on failure. This is the
// Go realization of "autocommit per statement": a bare driver.Conn has no
// ambient commit outside an explicit driver.Tx, unlike the Python original's
// sqlite3 connection object, so the implicit wrap is what makes the two
// semantics equivalent.
func (c *Connection) Exec(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execLocked(ctx, query, args)
}

func (c *Connection) execLocked(ctx context.Context, query string, args []any) (result *QueryResult, err error) {
	if c.conn == nil {
		return nil, ErrConnectionFailed
	}
	start := time.Now()
	queryType := classifyQuery(query)

	nvs, err := getDriverNamedValuesFromArgs(c, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	implicitTx, beginErr := c.beginImplicit(ctx)
	if beginErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, beginErr)
	}

	defer func() {
		c.queryCount.Add(1)
		if implicitTx == nil {
			return
		}
		if err != nil {
			_ = implicitTx.Rollback()
			return
		}
		if cerr := implicitTx.Commit(); cerr != nil {
			err = fmt.Errorf("%w: %v", ErrQueryFailed, cerr)
			result = nil
		}
	}()

	if queryType == QueryTypeSelect {
		var rowsi driver.Rows
		rowsi, err = queryContext(ctx, c.conn, query, nvs)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrQueryFailed, err)
			return nil, err
		}
		var rows []Row
		rows, err = materializeRows(rowsi)
		_ = rowsi.Close()
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrQueryFailed, err)
			return nil, err
		}
		result = &QueryResult{
			Rows:      rows,
			RowCount:  int64(len(rows)),
			QueryType: queryType,
			Elapsed:   time.Since(start),
		}
		return result, nil
	}

	var resi driver.Result
	resi, err = execContext(ctx, c.conn, query, nvs)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrQueryFailed, err)
		return nil, err
	}
	rowCount, _ := resi.RowsAffected()
	lastID, _ := resi.LastInsertId()
	result = &QueryResult{
		RowCount:     rowCount,
		LastInsertID: lastID,
		QueryType:    queryType,
		Elapsed:      time.Since(start),
	}
	return result, nil
}

// ExecBatch runs one statement once per parameter set, analogous to Exec but
// returning no rows (spec.md §4.1 execute_batch).
func (c *Connection) ExecBatch(ctx context.Context, query string, paramSets [][]any) (result *QueryResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrConnectionFailed
	}
	start := time.Now()
	queryType := classifyQuery(query)

	implicitTx, beginErr := c.beginImplicit(ctx)
	if beginErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, beginErr)
	}

	defer func() {
		c.queryCount.Add(1)
		if implicitTx == nil {
			return
		}
		if err != nil {
			_ = implicitTx.Rollback()
			return
		}
		if cerr := implicitTx.Commit(); cerr != nil {
			err = fmt.Errorf("%w: %v", ErrQueryFailed, cerr)
			result = nil
		}
	}()

	var totalRows, lastID int64
	for _, args := range paramSets {
		var nvs []driver.NamedValue
		nvs, err = getDriverNamedValuesFromArgs(c, args)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrQueryFailed, err)
			return nil, err
		}
		var resi driver.Result
		resi, err = execContext(ctx, c.conn, query, nvs)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrQueryFailed, err)
			return nil, err
		}
		ra, _ := resi.RowsAffected()
		totalRows += ra
		lastID, _ = resi.LastInsertId()
	}

	result = &QueryResult{
		RowCount:     totalRows,
		LastInsertID: lastID,
		QueryType:    queryType,
		Elapsed:      time.Since(start),
	}
	return result, nil
}

// beginImplicit starts the implicit autocommit-wrapper transaction used by
// Exec/ExecBatch when the caller hasn't opened an explicit one. Returns
// (nil, nil) when already inside an explicit transaction, since in that case
// Commit/Rollback are the caller's responsibility.
func (c *Connection) beginImplicit(ctx context.Context) (driver.Tx, error) {
	if c.inTransaction {
		return nil, nil
	}
	return beginTx(ctx, c.conn, nil)
}

// Begin starts an explicit transaction. No-op if one is already open.
func (c *Connection) Begin(ctx context.Context, opts *TXOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inTransaction {
		return nil
	}
	if c.conn == nil {
		return ErrConnectionFailed
	}
	tx, err := beginTx(ctx, c.conn, opts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	c.tx = tx
	c.inTransaction = true
	return nil
}

// Commit commits the open explicit transaction. No-op if none is open.
func (c *Connection) Commit(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inTransaction {
		return nil
	}
	err := c.tx.Commit()
	c.tx = nil
	c.inTransaction = false
	return err
}

// Rollback rolls back the open explicit transaction. No-op if none is open.
func (c *Connection) Rollback(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inTransaction {
		return nil
	}
	err := c.tx.Rollback()
	c.tx = nil
	c.inTransaction = false
	return err
}

// InTransaction reports whether an explicit transaction is currently open.
func (c *Connection) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inTransaction
}

func beginTx(ctx context.Context, conn driver.Conn, opts *TXOptions) (driver.Tx, error) {
	if ctc, ok := conn.(driver.ConnBeginTx); ok {
		return ctc.BeginTx(ctx, txOptionsToDriver(opts))
	}
	return conn.Begin() //nolint:staticcheck // fallback for drivers without ConnBeginTx
}

func prepareContext(ctx context.Context, conn driver.Conn, query string) (driver.Stmt, error) {
	if cpc, ok := conn.(driver.ConnPrepareContext); ok {
		return cpc.PrepareContext(ctx, query)
	}
	return conn.Prepare(query)
}

func execContext(ctx context.Context, conn driver.Conn, query string, args []driver.NamedValue) (driver.Result, error) {
	if execer, ok := conn.(driver.ExecerContext); ok {
		res, err := execer.ExecContext(ctx, query, args)
		if err != driver.ErrSkip {
			return res, err
		}
	}
	stmt, err := prepareContext(ctx, conn, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	if se, ok := stmt.(driver.StmtExecContext); ok {
		return se.ExecContext(ctx, args)
	}
	values, ok := namedValuesToValues(args)
	if !ok {
		return nil, fmt.Errorf("driver does not support named parameters")
	}
	return stmt.Exec(values) //nolint:staticcheck // fallback path
}

func queryContext(ctx context.Context, conn driver.Conn, query string, args []driver.NamedValue) (driver.Rows, error) {
	if queryer, ok := conn.(driver.QueryerContext); ok {
		rows, err := queryer.QueryContext(ctx, query, args)
		if err != driver.ErrSkip {
			return rows, err
		}
	}
	stmt, err := prepareContext(ctx, conn, query)
	if err != nil {
		return nil, err
	}
	if sq, ok := stmt.(driver.StmtQueryContext); ok {
		rows, err := sq.QueryContext(ctx, args)
		if err != nil {
			_ = stmt.Close()
			return nil, err
		}
		return &closingRows{Rows: rows, stmt: stmt}, nil
	}
	values, ok := namedValuesToValues(args)
	if !ok {
		_ = stmt.Close()
		return nil, fmt.Errorf("driver does not support named parameters")
	}
	rows, err := stmt.Query(values) //nolint:staticcheck // fallback path
	if err != nil {
		_ = stmt.Close()
		return nil, err
	}
	return &closingRows{Rows: rows, stmt: stmt}, nil
}

// closingRows closes the backing prepared statement alongside the rows, for
// drivers that only implement the non-context Stmt query path.
type closingRows struct {
	driver.Rows
	stmt driver.Stmt
}

func (r *closingRows) Close() error {
	err := r.Rows.Close()
	if serr := r.stmt.Close(); err == nil {
		err = serr
	}
	return err
}

func namedValuesToValues(args []driver.NamedValue) ([]driver.Value, bool) {
	values := make([]driver.Value, len(args))
	for i, a := range args {
		if a.Name != "" {
			return nil, false
		}
		values[i] = a.Value
	}
	return values, true
}

func materializeRows(rowsi driver.Rows) ([]Row, error) {
	columns := getColumnsFromDriverColumns(rowsi)
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name()
	}
	dest := make([]driver.Value, len(columns))
	var rows []Row
	for {
		err := rowsi.Next(dest)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(Row, len(names))
		for i, n := range names {
			row[n] = dest[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
