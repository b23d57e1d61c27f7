package priosql

import "database/sql/driver"

// TXIsolationLevel is the transaction isolation level used in TXOptions.
//
// See https://en.wikipedia.org/wiki/Isolation_(database_systems)#Isolation_levels.
type TXIsolationLevel int

// Isolation levels a driver may support via Connection.Begin.
const (
	TXIsolationLevelDefault TXIsolationLevel = iota
	TXIsolationLevelReadUncommitted
	TXIsolationLevelReadCommitted
	TXIsolationLevelWriteCommitted
	TXIsolationLevelRepeatableRead
	TXIsolationLevelSnapshot
	TXIsolationLevelSerializable
	TXIsolationLevelLinearizable
)

// TXAccessMode is the transaction access mode (read write or read only).
type TXAccessMode string

// Transaction access modes.
const (
	TXAccessModeReadWrite TXAccessMode = "read write"
	TXAccessModeReadOnly  TXAccessMode = "read only"
)

// TXOptions holds the transaction options passed to Connection.Begin.
type TXOptions struct {
	IsolationLevel TXIsolationLevel
	AccessMode     TXAccessMode
}

// txOptionsToDriver maps TXOptions onto the stdlib driver.TxOptions shape
// consumed by driver.ConnBeginTx. A nil opts means "use the driver default".
func txOptionsToDriver(opts *TXOptions) driver.TxOptions {
	if opts == nil {
		return driver.TxOptions{}
	}
	return driver.TxOptions{
		Isolation: driver.IsolationLevel(opts.IsolationLevel),
		ReadOnly:  opts.AccessMode == TXAccessModeReadOnly,
	}
}
