package framework

import (
	"fmt"
	"sync"

	"github.com/xru192/CppMicroServices/errors"
	"github.com/xru192/CppMicroServices/types"
)

// bundleUse tracks one consuming bundle's hold on a service entry
type bundleUse struct {
	consumer *Bundle
	count    int
	cached   *InterfaceMap
}

// serviceEntry represents one live registration. The registry holds the
// strong owner; references and registrations are thin handles onto it.
//
// Lock ordering: the entry mutex is below the registry index lock and
// must never be held while invoking factory or listener callbacks.
type serviceEntry struct {
	registry *serviceRegistry
	reg      *ServiceRegistration

	id       int64
	scope    string
	classes  []string
	producer *Bundle
	factory  ServiceFactory // nil for plain object registrations

	mu            sync.Mutex
	props         types.AnyMap
	prevProps     types.AnyMap // populated only during MODIFIED dispatch
	object        *InterfaceMap
	uses          map[int64]*bundleUse
	protoUses     map[int64][]*InterfaceMap
	unregistering bool // Unregister has begun; blocks re-unregistration
	available     bool // discoverable and acquirable; cleared after UNREGISTERING dispatch
	removed       bool // index removal done; guarded by the registry lock
}

// isAvailable reports whether the entry is discoverable and acquirable
func (e *serviceEntry) isAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// propsSnapshot returns a deep copy of the current properties
func (e *serviceEntry) propsSnapshot() types.AnyMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.props.Clone()
}

// prevSnapshot returns a deep copy of the pre-update properties; nil
// outside MODIFIED dispatch
func (e *serviceEntry) prevSnapshot() types.AnyMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prevProps.Clone()
}

// getProperty returns one property value
func (e *serviceEntry) getProperty(key string) types.Any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.props[key]; ok {
		return types.NewAny(v)
	}
	return types.Any{}
}

// ranking returns the entry's current service.ranking
func (e *serviceEntry) ranking() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.props.GetInt(ServiceRanking, 0)
}

func (e *serviceEntry) useFor(consumer *Bundle) *bundleUse {
	use, ok := e.uses[consumer.id]
	if !ok {
		use = &bundleUse{consumer: consumer}
		e.uses[consumer.id] = use
	}
	return use
}

// idle reports whether no consumer holds any use. Caller holds e.mu.
func (e *serviceEntry) idle() bool {
	return len(e.uses) == 0 && len(e.protoUses) == 0
}

// getService acquires the shared (singleton) or per-bundle instance for
// the consumer and charges one use. Prototype-scoped entries behave like
// bundle scope here; distinct instances require getPrototypeService.
func (e *serviceEntry) getService(consumer *Bundle) (*InterfaceMap, error) {
	e.mu.Lock()
	if !e.available {
		e.mu.Unlock()
		return nil, errors.WrapInvalid(errors.ErrServiceUnregistered,
			"ServiceEntry", "GetService", "availability check")
	}

	if e.factory == nil {
		use := e.useFor(consumer)
		use.count++
		if use.cached == nil {
			use.cached = e.object
		}
		m := use.cached
		e.mu.Unlock()
		e.registry.core.metrics.RecordAcquisition(e.scope)
		return m, nil
	}

	if use, ok := e.uses[consumer.id]; ok && use.cached != nil {
		use.count++
		m := use.cached
		e.mu.Unlock()
		e.registry.core.metrics.RecordAcquisition(e.scope)
		return m, nil
	}
	e.mu.Unlock()

	produced, err := e.invokeFactory(consumer)
	if err != nil {
		e.reportFactoryFailure(consumer, err)
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrFactoryFailure, err),
			"ServiceEntry", "GetService", "factory invocation")
	}

	e.mu.Lock()
	if !e.available {
		e.mu.Unlock()
		e.disposeInstance(consumer, produced)
		return nil, errors.WrapInvalid(errors.ErrServiceUnregistered,
			"ServiceEntry", "GetService", "availability check")
	}
	use := e.useFor(consumer)
	var extra *InterfaceMap
	if use.cached == nil {
		use.cached = produced
	} else {
		// Another goroutine won the factory race; ours is surplus
		extra = produced
	}
	use.count++
	m := use.cached
	e.mu.Unlock()

	if extra != nil {
		e.disposeInstance(consumer, extra)
	}
	e.registry.core.metrics.RecordAcquisition(e.scope)
	return m, nil
}

// getPrototypeService produces a fresh instance for the consumer and
// records it in the prototype-instance table.
func (e *serviceEntry) getPrototypeService(consumer *Bundle) (*InterfaceMap, error) {
	e.mu.Lock()
	if !e.available {
		e.mu.Unlock()
		return nil, errors.WrapInvalid(errors.ErrServiceUnregistered,
			"ServiceEntry", "GetPrototypeService", "availability check")
	}
	e.mu.Unlock()

	produced, err := e.invokeFactory(consumer)
	if err != nil {
		e.reportFactoryFailure(consumer, err)
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrFactoryFailure, err),
			"ServiceEntry", "GetPrototypeService", "factory invocation")
	}

	e.mu.Lock()
	if !e.available {
		e.mu.Unlock()
		e.disposeInstance(consumer, produced)
		return nil, errors.WrapInvalid(errors.ErrServiceUnregistered,
			"ServiceEntry", "GetPrototypeService", "availability check")
	}
	e.protoUses[consumer.id] = append(e.protoUses[consumer.id], produced)
	e.mu.Unlock()

	e.registry.core.metrics.RecordAcquisition(ScopePrototype)
	return produced, nil
}

// ungetService releases one use charged by getService. Returns false if
// the consumer holds no outstanding use.
func (e *serviceEntry) ungetService(consumer *Bundle) bool {
	e.mu.Lock()
	use, ok := e.uses[consumer.id]
	if !ok || use.count == 0 {
		e.mu.Unlock()
		return false
	}
	use.count--

	var dispose *InterfaceMap
	if use.count == 0 {
		dispose = use.cached
		delete(e.uses, consumer.id)
	}
	remove := e.unregistering && e.idle()
	e.mu.Unlock()

	if dispose != nil && e.factory != nil {
		e.disposeInstance(consumer, dispose)
	}
	if remove {
		e.registry.removeEntry(e)
	}
	return true
}

// ungetPrototypeService disposes one specific prototype instance.
// Returns false if the instance is not in the consumer's table (already
// disposed, or eagerly released at unregistration).
func (e *serviceEntry) ungetPrototypeService(consumer *Bundle, instance *InterfaceMap) bool {
	e.mu.Lock()
	list := e.protoUses[consumer.id]
	idx := -1
	for i, m := range list {
		if m == instance {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return false
	}
	list = append(list[:idx], list[idx+1:]...)
	if len(list) == 0 {
		delete(e.protoUses, consumer.id)
	} else {
		e.protoUses[consumer.id] = list
	}
	remove := e.unregistering && e.idle()
	e.mu.Unlock()

	e.disposeInstance(consumer, instance)
	if remove {
		e.registry.removeEntry(e)
	}
	return true
}

// invokeFactory calls the producer's factory outside all framework
// locks, converting panics to errors and validating the produced map
// against the promised objectClass.
func (e *serviceEntry) invokeFactory(consumer *Bundle) (m *InterfaceMap, err error) {
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("factory panicked: %v", r)
		}
	}()

	m, err = e.factory.GetService(consumer, e.reg)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("factory returned nil interface map")
	}
	if !m.containsAll(e.classes) {
		return nil, fmt.Errorf("%w: factory result missing promised interfaces %v",
			errors.ErrInterfaceNotFound, e.classes)
	}
	return m, nil
}

// disposeInstance hands an instance back to the factory. Disposal-time
// panics are contained and logged; they never propagate to the caller.
func (e *serviceEntry) disposeInstance(consumer *Bundle, instance *InterfaceMap) {
	if e.factory == nil || instance == nil {
		return
	}
	name := ""
	if consumer != nil {
		name = consumer.symbolicName
	}
	defer func() {
		if r := recover(); r != nil {
			if sink := e.registry.core.sink; sink != nil {
				sink.Warn("service factory UngetService panicked",
					"service.id", e.id, "bundle", name, "panic", fmt.Sprint(r))
			}
		}
	}()
	e.factory.UngetService(consumer, e.reg, instance)
}

// reportFactoryFailure emits the diagnostic framework WARNING event for
// a failed factory callback.
func (e *serviceEntry) reportFactoryFailure(consumer *Bundle, cause error) {
	core := e.registry.core
	core.metrics.RecordFactoryFailure()
	core.postFrameworkEvent(FrameworkEvent{
		Type:    FrameworkEventWarning,
		Bundle:  e.producer,
		Message: fmt.Sprintf("service factory for service.id %d failed for bundle %q", e.id, consumer.symbolicName),
		Err:     cause,
	})
}

// eagerRelease disposes every outstanding factory-produced instance at
// unregistration time: prototype instances are disposed via the
// factory's unget callback and cached bundle instances are evicted. Use
// counts are retained so that outstanding guards drain them.
func (e *serviceEntry) eagerRelease() {
	type disposal struct {
		consumer *Bundle
		instance *InterfaceMap
	}
	var disposals []disposal

	e.mu.Lock()
	for _, use := range e.uses {
		if use.cached != nil && e.factory != nil {
			disposals = append(disposals, disposal{consumer: use.consumer, instance: use.cached})
		}
		use.cached = nil
	}
	for id, list := range e.protoUses {
		consumer := e.registry.core.bundles.get(id)
		for _, m := range list {
			disposals = append(disposals, disposal{consumer: consumer, instance: m})
		}
	}
	e.protoUses = make(map[int64][]*InterfaceMap)
	e.mu.Unlock()

	for _, d := range disposals {
		e.disposeInstance(d.consumer, d.instance)
	}
}

// usingBundles returns the bundles currently holding uses on the entry
func (e *serviceEntry) usingBundles() []*Bundle {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[int64]bool, len(e.uses))
	var out []*Bundle
	for id, use := range e.uses {
		if use.count > 0 && !seen[id] {
			seen[id] = true
			out = append(out, use.consumer)
		}
	}
	for id := range e.protoUses {
		if !seen[id] {
			seen[id] = true
			if b := e.registry.core.bundles.get(id); b != nil {
				out = append(out, b)
			}
		}
	}
	return out
}

// useCount reports the consumer's outstanding use count (shared scope
// uses plus live prototype instances)
func (e *serviceEntry) useCount(consumer *Bundle) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	if use, ok := e.uses[consumer.id]; ok {
		n += use.count
	}
	n += len(e.protoUses[consumer.id])
	return n
}
