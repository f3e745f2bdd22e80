package scenario

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownSuite is returned when a requested suite name is not registered.
var ErrUnknownSuite = errors.New("unknown suite")

// Registry holds suites by name and preserves registration order, which is
// also run order.
type Registry struct {
	mu     sync.RWMutex
	suites map[string]*Suite
	order  []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		suites: make(map[string]*Suite),
	}
}

// DefaultRegistry creates a Registry pre-loaded with the builtin suites.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range Builtins() {
		// Builtins are statically valid
		if err := r.Register(s); err != nil {
			panic(fmt.Sprintf("builtin suite %q: %v", s.Name, err))
		}
	}
	return r
}

// Register normalizes and validates a suite, then adds it.
// Duplicate names are rejected.
func (r *Registry) Register(s *Suite) error {
	s.Normalize()
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.suites[s.Name]; exists {
		return fmt.Errorf("suite %q already registered", s.Name)
	}
	r.suites[s.Name] = s
	r.order = append(r.order, s.Name)
	return nil
}

// Get returns the suite with the given name.
func (r *Registry) Get(name string) (*Suite, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.suites[name]
	return s, ok
}

// Names returns suite names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Suites returns the registered suites in registration order.
func (r *Registry) Suites() []*Suite {
	r.mu.RLock()
	defer r.mu.RUnlock()

	suites := make([]*Suite, 0, len(r.order))
	for _, name := range r.order {
		suites = append(suites, r.suites[name])
	}
	return suites
}

// Select resolves the requested suite names, or all suites when names is
// empty. Unknown names are reported with the available choices.
func (r *Registry) Select(names []string) ([]*Suite, error) {
	if len(names) == 0 {
		return r.Suites(), nil
	}

	suites := make([]*Suite, 0, len(names))
	for _, name := range names {
		s, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownSuite, name, r.Names())
		}
		suites = append(suites, s)
	}
	return suites, nil
}
