package connector

import (
	"fmt"
	"sort"
	"sync"
)

// Factory is a function that creates a new Connector instance.
type Factory func() Connector

// Registry maps driver names to connector factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// RegisterDriver registers a connector factory for a driver type.
func (r *Registry) RegisterDriver(driver string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[driver] = factory
}

// New returns an unconnected connector for driver.
func (r *Registry) New(driver string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s (available: %v)", driver, r.availableDrivers())
	}
	return factory(), nil
}

// Generator resolves the SQL generator for a driver. The returned value is an
// unconnected connector, usable for offline DDL generation only.
func (r *Registry) Generator(driver string) (SQLGenerator, error) {
	return r.New(driver)
}

// Open creates and connects a connector. The caller owns the returned
// connector and must Disconnect it.
func (r *Registry) Open(cfg ConnectionConfig) (Connector, error) {
	conn, err := r.New(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(cfg); err != nil {
		return nil, err
	}
	return conn, nil
}

// Drivers returns the registered driver names, sorted.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableDrivers()
}

func (r *Registry) availableDrivers() []string {
	drivers := make([]string, 0, len(r.factories))
	for d := range r.factories {
		drivers = append(drivers, d)
	}
	sort.Strings(drivers)
	return drivers
}
