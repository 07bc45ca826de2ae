// File: internal/registry/registry.go
// Description: Holds the declared capabilities of every registered collector.
// The registry is built once at startup and is read-only afterwards, so
// selection takes no lock.
package registry

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/dossier-cli/api/schemas"
)

// DuplicateAdapterError is returned when a collector name is registered
// twice. It is fatal during setup.
type DuplicateAdapterError struct {
	Name string
}

func (e *DuplicateAdapterError) Error() string {
	return fmt.Sprintf("collector %q is already registered", e.Name)
}

// Registry maps collector names to their instances. Register is only legal
// before investigations begin; Select is safe for concurrent use afterwards.
type Registry struct {
	collectors map[string]schemas.Collector
	log        *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		collectors: make(map[string]schemas.Collector),
		log:        logger.Named("registry"),
	}
}

// Register adds a collector. The descriptor's name must be unique and it
// must accept at least one target kind.
func (r *Registry) Register(c schemas.Collector) error {
	desc := c.Descriptor()
	if desc.Name == "" {
		return fmt.Errorf("collector descriptor has an empty name")
	}
	if len(desc.Kinds) == 0 {
		return fmt.Errorf("collector %q accepts no target kinds", desc.Name)
	}
	if _, exists := r.collectors[desc.Name]; exists {
		return &DuplicateAdapterError{Name: desc.Name}
	}

	r.collectors[desc.Name] = c
	r.log.Debug("Collector registered",
		zap.String("name", desc.Name),
		zap.Int("priority", desc.Priority))
	return nil
}

// Select returns the collectors applicable to the target, ordered by
// descending priority with ties broken by ascending name. The ordering is
// deterministic for a fixed registry.
func (r *Registry) Select(target schemas.Target) []schemas.Collector {
	var selected []schemas.Collector
	for _, c := range r.collectors {
		if c.Descriptor().Accepts(target.Kind) {
			selected = append(selected, c)
		}
	}

	sort.Slice(selected, func(i, j int) bool {
		di, dj := selected[i].Descriptor(), selected[j].Descriptor()
		if di.Priority != dj.Priority {
			return di.Priority > dj.Priority
		}
		return di.Name < dj.Name
	})
	return selected
}

// Get looks up one collector by name.
func (r *Registry) Get(name string) (schemas.Collector, bool) {
	c, ok := r.collectors[name]
	return c, ok
}

// Len returns the number of registered collectors.
func (r *Registry) Len() int {
	return len(r.collectors)
}
