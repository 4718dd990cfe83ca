package circuitbreaker

import (
	"sort"
	"sync"
)

// Registry owns one Breaker per logical operation name. Breakers are
// created lazily on first use and live until an explicit Reset. The
// registry is injected into the orchestrator rather than held as package
// state so tests and multiple orchestrators get independent breaker sets.
type Registry struct {
	mu        sync.Mutex
	breakers  map[string]*Breaker
	configFor func(name string) Config
}

// NewRegistry creates a registry. configFor supplies the configuration for
// a breaker the first time its operation name is seen; nil means
// DefaultConfig for every operation.
func NewRegistry(configFor func(name string) Config) *Registry {
	if configFor == nil {
		configFor = DefaultConfig
	}
	return &Registry{
		breakers:  make(map[string]*Breaker),
		configFor: configFor,
	}
}

// Get returns the breaker for the operation name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(r.configFor(name))
	r.breakers[name] = b
	return b
}

// StatusOf returns the status of one breaker. ok is false when no breaker
// has been created for the name yet.
func (r *Registry) StatusOf(name string) (Status, bool) {
	r.mu.Lock()
	b, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return Status{}, false
	}
	return b.Status(), true
}

// Snapshot returns the status of every breaker, sorted by name, for health
// and monitoring display.
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	statuses := make([]Status, 0, len(r.breakers))
	for _, b := range r.breakers {
		statuses = append(statuses, b.Status())
	}
	r.mu.Unlock()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// Reset returns the named breaker to the closed state with cleared counts.
// Unknown names are ignored.
func (r *Registry) Reset(name string) {
	r.mu.Lock()
	b, ok := r.breakers[name]
	r.mu.Unlock()

	if ok {
		b.Reset()
	}
}
