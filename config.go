package priosql

import "time"

// IsolationLevel names the SQLite-style isolation vocabulary
// (DEFERRED/IMMEDIATE/EXCLUSIVE or none). It is its own enum, separate from
// TXIsolationLevel; configfile maps the configuration file's level names
// onto these values.
type IsolationLevel int

// Isolation levels accepted in ConnectionConfig.
const (
	IsolationLevelNone IsolationLevel = iota
	IsolationLevelDeferred
	IsolationLevelImmediate
	IsolationLevelExclusive
)

// ConnectionConfig is the set of parameters needed to open one underlying
// driver connection. It mirrors original_source/web_sqlite3/types.py's
// ConnectionConfig, generalized from a SQLite-only field set to any
// database/sql/driver-registered engine.
type ConnectionConfig struct {
	// DriverName must have been registered with RegisterDriver.
	DriverName string

	// DSN is the driver-specific data source name (a file path, ":memory:",
	// a connection URL, ...).
	DSN string

	// Timeout is the driver-level operation timeout. Default 5s.
	Timeout time.Duration

	// CheckSameThread mirrors sqlite3's check_same_thread flag. It is kept
	// in the config only; the driver is opened from DSN alone and does not
	// receive it.
	CheckSameThread bool

	// IsolationLevel is the configured isolation hint. Connection.Begin does
	// not read it: a transaction uses the TXOptions passed to Begin, or the
	// driver default when those are nil.
	IsolationLevel IsolationLevel

	// CachedStatements is a pass-through statement-cache size hint; not
	// interpreted by the core (spec.md §1 Non-goals: "statement caching
	// policy beyond a pass-through integer hint").
	CachedStatements int

	// URI indicates DSN should be interpreted as a URI rather than a bare
	// path/DSN string.
	URI bool
}

// default values for ConnectionConfig fields left unset.
const (
	defaultConnectionTimeout     = 5 * time.Second
	defaultCachedStatementsCount = 128
)

// ValidateAndDefault validates the mandatory fields and fills in defaults for
// everything else.
func (c *ConnectionConfig) ValidateAndDefault() error {
	if c.DriverName == "" {
		return ErrMissingDriverName
	}
	if c.DSN == "" {
		return ErrMissingDSN
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultConnectionTimeout
	}
	if c.CachedStatements <= 0 {
		c.CachedStatements = defaultCachedStatementsCount
	}
	return nil
}

// Copy returns a copy of c. Every field is a value, so the copy shares no
// state with c.
func (c *ConnectionConfig) Copy() *ConnectionConfig {
	cp := *c
	return &cp
}
