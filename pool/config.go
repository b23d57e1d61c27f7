package pool

import (
	"time"

	priosql "github.com/priosql/priosql"
)

// Config is the configuration required to create a Pool (spec.md §6
// PoolConfig).
type Config struct {
	ConnectionConfig *priosql.ConnectionConfig

	// MinSize is the number of connections opened eagerly by Initialize.
	MinSize int

	// MaxSize bounds the number of connections ever open at once; also the
	// number of permits on the capacity semaphore.
	MaxSize int

	// MaxQueries, when > 0, retires a Connection once its query count
	// reaches this value. 0 disables retirement by query count.
	MaxQueries int64

	// MaxIdleTime bounds how long a Connection may sit idle in available
	// before the health sweep closes it (Open Question in spec.md §9,
	// resolved as "enforced" — see healthsweep.go).
	MaxIdleTime time.Duration

	// ConnectionTimeout is the default Acquire bound when the caller
	// doesn't supply one.
	ConnectionTimeout time.Duration

	// PoolRecycle, when > 0, recycles a Connection once its age exceeds
	// this value. A negative value disables recycling; the zero value
	// means "unset" and is replaced by DefaultPoolRecycle.
	PoolRecycle time.Duration

	// HealthCheckPeriod is the interval between background sweeps that
	// replenish MinSize and enforce MaxIdleTime/PoolRecycle proactively.
	HealthCheckPeriod time.Duration
}

// Default values for Config fields left unset (spec.md §6).
const (
	DefaultMinSize           = 1
	DefaultMaxSize           = 10
	DefaultConnectionTimeout = 30 * time.Second
	DefaultPoolRecycle       = time.Hour
	DefaultMaxIdleTime       = 10 * time.Minute
	DefaultHealthCheckPeriod = time.Minute
)

// ValidateAndDefault validates the mandatory fields and fills in defaults for
// everything else, mirroring the teacher's pool.Config.ValidateAndDefault.
func (c *Config) ValidateAndDefault() error {
	if c.ConnectionConfig == nil {
		return priosql.ErrMissingConnectionConfig
	}
	if err := c.ConnectionConfig.ValidateAndDefault(); err != nil {
		return err
	}
	if c.MinSize <= 0 {
		c.MinSize = DefaultMinSize
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.MaxSize < c.MinSize {
		c.MaxSize = c.MinSize
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.PoolRecycle == 0 {
		c.PoolRecycle = DefaultPoolRecycle
	}
	if c.MaxIdleTime <= 0 {
		c.MaxIdleTime = DefaultMaxIdleTime
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = DefaultHealthCheckPeriod
	}
	return nil
}
