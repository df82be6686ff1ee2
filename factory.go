package filegate

import (
	"fmt"
	"sort"
	"sync"
)

// DriverFactory creates the FileSystem that serves one bucket
type DriverFactory func(cfg *Config, bucket string) (FileSystem, error)

var (
	driverFactories = make(map[string]DriverFactory)
	factoryMutex    sync.RWMutex
)

// RegisterDriver registers a driver factory function. Drivers call it from
// init, so importing a driver package for side effects is enough.
func RegisterDriver(name string, factory DriverFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	driverFactories[name] = factory
}

// CreateDriver creates the FileSystem for bucket using cfg.Driver
func CreateDriver(cfg *Config, bucket string) (FileSystem, error) {
	factoryMutex.RLock()
	factory, exists := driverFactories[cfg.Driver]
	factoryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: driver %s not registered", ErrUnknownDriver, cfg.Driver)
	}

	return factory(cfg, bucket)
}

// RegisteredDrivers returns the names of all registered drivers, sorted
func RegisteredDrivers() []string {
	factoryMutex.RLock()
	defer factoryMutex.RUnlock()
	names := make([]string, 0, len(driverFactories))
	for name := range driverFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
