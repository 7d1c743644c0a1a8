package migrate

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Factory returns a new Migration.
type Factory func() Migration

// Registry maps migration names to the factories of Go migrations.
type Registry struct {
	mx      sync.RWMutex
	entries map[string]Factory
}

// DefaultRegistry is the registry used by Register.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]Factory{}}
}

// Register adds a migration factory to the DefaultRegistry. It's meant to be
// called from init functions, and panics if the name is invalid or already
// registered.
//
// Example:
//
//	func init() {
//		migrate.Register(`app\migrations\M240101120000CreatePost`, func() migrate.Migration {
//			return migrate.NewReversible(up, down)
//		})
//	}
func Register(name string, f Factory) {
	if err := DefaultRegistry.Add(name, f); err != nil {
		panic(err)
	}
}

// Add adds a migration factory. The base name must follow one of the migration
// naming conventions.
func (r *Registry) Add(name string, f Factory) error {
	if f == nil {
		return fmt.Errorf("nil factory for migration '%s'", name)
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	if !IsMigrationName(BaseName(name)) {
		return fmt.Errorf("invalid migration name '%s'", name)
	}

	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("migration '%s' is already registered", name)
	}
	r.entries[name] = f

	return nil
}

// Lookup returns the factory registered with the name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mx.RLock()
	defer r.mx.RUnlock()
	f, ok := r.entries[name]
	return f, ok
}

// Names returns the sorted names of all registered migrations.
func (r *Registry) Names() []string {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return slices.Sorted(maps.Keys(r.entries))
}
