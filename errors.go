package priosql

import "errors"

// Sentinel errors. Components wrap these with fmt.Errorf("...: %w", ...)
// so callers can still match with errors.Is.
var (
	// ErrConnectionFailed is returned when opening or using a driver
	// session fails.
	ErrConnectionFailed = errors.New("priosql: connection failed")

	// ErrPoolClosed is returned by Pool.Acquire after Close, by DB.Connect
	// after DB.Close, and wraps connection close errors from Pool.Close.
	ErrPoolClosed = errors.New("priosql: pool is closed")

	// ErrPoolExhausted is returned when no idle connection became available
	// within the acquire bound after the pool could not grow (it was at max
	// size, or opening a new connection failed).
	ErrPoolExhausted = errors.New("priosql: no connection available")

	// ErrAcquireTimeout is returned when the acquire bound expired while
	// waiting for the capacity permit or during the short fast-path wait
	// for an idle connection.
	ErrAcquireTimeout = errors.New("priosql: timeout acquiring connection")

	// ErrQueryFailed wraps a driver-level failure of a statement.
	ErrQueryFailed = errors.New("priosql: query failed")

	// ErrQueueFull is the executor's ingress backpressure signal.
	ErrQueueFull = errors.New("priosql: query queue is full")

	// ErrSubmitTimeout is returned to a submitter whose deadline expired
	// before its task completed. The task itself is not cancelled.
	ErrSubmitTimeout = errors.New("priosql: query timed out")

	// ErrExecutorStopped is returned to any task still queued when
	// Stop is called.
	ErrExecutorStopped = errors.New("priosql: executor stopped")

	// ErrNotConnected is returned by facade methods called before
	// Client.Connect.
	ErrNotConnected = errors.New("priosql: client not connected")

	// ErrConfiguration is returned for bootstrap configuration failures.
	ErrConfiguration = errors.New("priosql: configuration error")

	// ErrValidation is reserved for caller-side input validation.
	ErrValidation = errors.New("priosql: validation error")

	// ErrMissingDriverName is returned when a ConnectionConfig has no
	// DriverName set.
	ErrMissingDriverName = errors.New("priosql: driver name is a mandatory config")

	// ErrMissingDSN is returned when a ConnectionConfig has no DSN set.
	ErrMissingDSN = errors.New("priosql: dsn is a mandatory config")

	// ErrMissingConnectionConfig is returned when a pool/client config
	// omits the connection config entirely.
	ErrMissingConnectionConfig = errors.New("priosql: no connection config provided")

	// ErrUnregisteredDriver is returned by Open when DriverName was
	// never passed to RegisterDriver.
	ErrUnregisteredDriver = errors.New("priosql: driver not registered")

	// ErrNoRows names an empty result set. No function in this module
	// returns it: FetchOne reports an empty result as a nil Row and a nil
	// error.
	ErrNoRows = errors.New("priosql: no rows in result set")

	// ErrTXDone names a finished transaction. No function in this module
	// returns it: Commit and Rollback with no open transaction are no-ops
	// that return nil.
	ErrTXDone = errors.New("priosql: transaction already committed or rolled back")

	// ErrNamedArgNoLetterBegin is returned when a NamedArg's name doesn't
	// begin with a letter.
	ErrNamedArgNoLetterBegin = errors.New("priosql: named argument name does not begin with a letter")

	// ErrConvertingArgumentToNamedArg is returned when a driver's
	// NamedValueChecker rejects an argument.
	ErrConvertingArgumentToNamedArg = errors.New("priosql: unable to convert argument to named value")
)
