package priosql

import (
	"database/sql/driver"
	"sync"
)

// registered drivers
var (
	driversMu sync.RWMutex
	drivers   = make(map[string]driver.DriverContext)
)

// RegisterDriver registers a driver under name so ConnectionConfig.DriverName
// can reference it. Typically called from a driver package's init, the same
// way database/sql drivers register themselves.
func RegisterDriver(name string, d driver.DriverContext) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = d
}

func lookupDriver(name string) (driver.DriverContext, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d, ok
}
