package framework

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/xru192/CppMicroServices/errors"
	"github.com/xru192/CppMicroServices/filter"
	"github.com/xru192/CppMicroServices/types"
)

// serviceRegistry is the indexed set of live service entries. The index
// lock protects only the index structures; it is never held across
// factory or listener callbacks.
type serviceRegistry struct {
	core *coreContext

	nextID atomic.Int64

	mu      sync.RWMutex
	byClass map[string][]*serviceEntry
	all     []*serviceEntry
}

func newServiceRegistry(core *coreContext) *serviceRegistry {
	return &serviceRegistry{
		core:    core,
		byClass: make(map[string][]*serviceEntry),
	}
}

// register creates an entry for a new publication, inserts it into the
// index, and dispatches the REGISTERED event. Exactly one of object and
// factory is non-nil; classes carries the promised interface names.
func (r *serviceRegistry) register(
	producer *Bundle, object *InterfaceMap, factory ServiceFactory,
	classes []string, scope string, props types.AnyMap,
) (*ServiceRegistration, error) {
	if len(classes) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
			"ServiceRegistry", "Register", "interface list validation")
	}
	seen := make(map[string]bool, len(classes))
	for _, name := range classes {
		if name == "" {
			return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
				"ServiceRegistry", "Register", "blank interface name validation")
		}
		if seen[name] {
			return nil, errors.WrapInvalid(errors.ErrDuplicateInterface,
				"ServiceRegistry", "Register", "unique interface check")
		}
		seen[name] = true
	}

	id := r.nextID.Add(1)
	e := &serviceEntry{
		registry:  r,
		id:        id,
		scope:     scope,
		classes:   classes,
		producer:  producer,
		factory:   factory,
		object:    object,
		props:     buildProperties(props, id, scope, classes),
		uses:      make(map[int64]*bundleUse),
		protoUses: make(map[int64][]*InterfaceMap),
		available: true,
	}
	reg := &ServiceRegistration{entry: e}
	e.reg = reg

	r.mu.Lock()
	for _, name := range classes {
		r.byClass[name] = append(r.byClass[name], e)
	}
	r.all = append(r.all, e)
	r.mu.Unlock()

	r.core.metrics.RecordServiceRegistered()
	r.core.listeners.dispatchServiceEvent(ServiceEvent{
		Type:      ServiceEventRegistered,
		Reference: ServiceReference{entry: e},
	})

	return reg, nil
}

// removeEntry drops a fully released, unregistered entry from the index.
// Safe to call more than once.
func (r *serviceRegistry) removeEntry(e *serviceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.removed {
		return
	}
	e.removed = true

	for _, name := range e.classes {
		entries := r.byClass[name]
		for i, candidate := range entries {
			if candidate == e {
				r.byClass[name] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
		if len(r.byClass[name]) == 0 {
			delete(r.byClass, name)
		}
	}
	for i, candidate := range r.all {
		if candidate == e {
			r.all = append(r.all[:i], r.all[i+1:]...)
			break
		}
	}
}

// find returns ranked references to the entries matching the query.
// clazz narrows candidates to entries published under that interface
// name ("" means all entries); f, when non-nil, gates on the current
// properties. Unless all is set, the installed find hooks may mask
// candidates from the requesting bundle.
func (r *serviceRegistry) find(requester *Bundle, clazz string, f *filter.Filter, all bool) []ServiceReference {
	r.mu.RLock()
	var candidates []*serviceEntry
	if clazz == "" {
		candidates = make([]*serviceEntry, len(r.all))
		copy(candidates, r.all)
	} else {
		indexed := r.byClass[clazz]
		candidates = make([]*serviceEntry, len(indexed))
		copy(candidates, indexed)
	}
	r.mu.RUnlock()

	refs := make([]ServiceReference, 0, len(candidates))
	for _, e := range candidates {
		if !e.isAvailable() {
			continue
		}
		if f != nil && !f.Matches(e.propsSnapshot()) {
			continue
		}
		refs = append(refs, ServiceReference{entry: e, clazz: clazz})
	}

	if !all {
		refs = r.core.applyFindHooks(requester, clazz, refs)
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Compare(refs[j]) < 0
	})
	return refs
}

// getServiceReference returns the single best match for the interface
// name: highest ranking, lowest id on ties. The zero reference when
// nothing matches.
func (r *serviceRegistry) getServiceReference(requester *Bundle, clazz string) ServiceReference {
	refs := r.find(requester, clazz, nil, false)
	if len(refs) == 0 {
		return ServiceReference{}
	}
	return refs[0]
}

// size reports the number of live entries in the index
func (r *serviceRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// unregisterBundleServices unregisters every live entry produced by the
// bundle. Called when the bundle stops.
func (r *serviceRegistry) unregisterBundleServices(producer *Bundle) {
	r.mu.RLock()
	var owned []*serviceEntry
	for _, e := range r.all {
		if e.producer == producer {
			owned = append(owned, e)
		}
	}
	r.mu.RUnlock()

	for _, e := range owned {
		// Already-unregistered entries are skipped silently
		_ = e.reg.Unregister()
	}
}
