package accel

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory opens a device. Opening selects the hardware, creates the
// command queue and compiles the marking program from cfg.KernelSource.
type Factory func(cfg Config) (Device, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	loggers    = make(map[string]func(*slog.Logger))
)

// Register makes a device available under name. It is typically called from
// init functions in device packages. Registering a name again replaces the
// previous factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a device from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
	delete(loggers, name)
}

// RegisterLogger installs the function that updates the package-level
// logger of the device registered under name.
func RegisterLogger(name string, set func(*slog.Logger)) {
	registryMu.Lock()
	defer registryMu.Unlock()
	loggers[name] = set
}

// SetLogger passes l to every device package that keeps its own logger.
// Devices opened later also receive Config.Logger.
func SetLogger(l *slog.Logger) {
	registryMu.RLock()
	sets := make([]func(*slog.Logger), 0, len(loggers))
	for _, set := range loggers {
		sets = append(sets, set)
	}
	registryMu.RUnlock()
	for _, set := range sets {
		set(l)
	}
}

// Available returns the registered device names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether a device with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens the named device with cfg.
func Open(name string, cfg Config) (Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDevice, name, Available())
	}
	if cfg.Factor == 0 {
		cfg.Factor = DefaultFactor
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return factory(cfg)
}
