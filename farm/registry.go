package farm

import (
	"sort"
	"strings"
	"sync"

	"github.com/prismvfx/farmhand/errors"
)

// Registry is the adapter registry owned by a single orchestrator instance.
// There is deliberately no process-wide registry: capability lookups always
// go through a snapshot taken from an explicit Registry value.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]*Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]*Adapter),
	}
}

// Register upserts an adapter under its case-normalized name and derives
// its Features flags from the wired funcs. Re-registering a name replaces
// the stored adapter wholesale, so an adapter registered without
// capability info clears any previously stored capability metadata for
// that name (no merging).
func (r *Registry) Register(a Adapter) error {
	name := strings.ToLower(strings.TrimSpace(a.Name))
	if name == "" {
		return errors.New("adapter name cannot be empty")
	}
	if a.Submit == nil {
		return errors.Newf("adapter %q has no submit function", name)
	}

	a.Name = name
	a.Supports = Features{
		StatusLookup: a.GetJobStatus != nil,
		Cancellation: a.CancelJob != nil,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = &a
	return nil
}

// Remove deregisters an adapter and its capability metadata.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, strings.ToLower(strings.TrimSpace(name)))
}

// Get returns the adapter registered under name (case-insensitive).
func (r *Registry) Get(name string) (*Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// Names returns the registered farm names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CapabilitySnapshot evaluates every adapter's capability source once and
// returns the result as a fresh map. Validation works against exactly one
// snapshot, so a concurrent registration or removal mid-request cannot
// produce partially inconsistent bounds checks. Every registered farm has
// an entry; a nil value means the adapter was registered without
// capability metadata and submissions carry their fields through
// unchecked.
func (r *Registry) CapabilitySnapshot() map[string]*Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]*Capabilities, len(r.adapters))
	for name, a := range r.adapters {
		if caps, ok := a.CapabilitiesNow(); ok {
			c := caps
			snap[name] = &c
		} else {
			snap[name] = nil
		}
	}
	return snap
}
