package framework

import (
	"github.com/xru192/CppMicroServices/errors"
	"github.com/xru192/CppMicroServices/types"
)

// ServiceRegistration is the registrar's handle to one registration. It
// is returned by RegisterService and friends and is the only object that
// can update the registration's properties or unregister it.
type ServiceRegistration struct {
	entry *serviceEntry
}

// Reference returns a reference to the underlying registration
func (r *ServiceRegistration) Reference() ServiceReference {
	return ServiceReference{entry: r.entry}
}

// SetProperties replaces all non-reserved properties with the supplied
// map, preserving the framework-assigned keys. The objectClass list is
// immutable. Listeners observing the resulting MODIFIED (or
// MODIFIED_ENDMATCH) event can compare the new properties with the
// previous snapshot via ServiceReference.PreviousProperties, which is
// defined only during that dispatch.
func (r *ServiceRegistration) SetProperties(props types.AnyMap) error {
	e := r.entry

	e.mu.Lock()
	if !e.available {
		e.mu.Unlock()
		return errors.WrapInvalid(errors.ErrServiceUnregistered,
			"ServiceRegistration", "SetProperties", "availability check")
	}
	old := e.props
	e.props = mergeProperties(old, props)
	e.prevProps = old
	e.mu.Unlock()

	e.registry.core.listeners.dispatchServiceModified(
		ServiceReference{entry: e}, old.Clone(), e.propsSnapshot())

	e.mu.Lock()
	e.prevProps = nil
	e.mu.Unlock()

	return nil
}

// Unregister removes the registration from the registry. The
// UNREGISTERING event is dispatched while the entry is still
// discoverable; afterwards the entry is hidden from new queries,
// outstanding factory-produced instances are eagerly disposed, and the
// entry itself is dropped once every outstanding use has been released.
// Unregistering twice returns an error.
func (r *ServiceRegistration) Unregister() error {
	e := r.entry

	e.mu.Lock()
	if e.unregistering {
		e.mu.Unlock()
		return errors.WrapInvalid(errors.ErrServiceUnregistered,
			"ServiceRegistration", "Unregister", "double unregistration check")
	}
	e.unregistering = true
	e.mu.Unlock()

	core := e.registry.core
	core.listeners.dispatchServiceEvent(ServiceEvent{
		Type:      ServiceEventUnregistering,
		Reference: ServiceReference{entry: e},
	})

	e.mu.Lock()
	e.available = false
	e.mu.Unlock()

	e.eagerRelease()

	e.mu.Lock()
	remove := e.idle()
	e.mu.Unlock()
	if remove {
		e.registry.removeEntry(e)
	}
	core.metrics.RecordServiceRemoved()

	return nil
}
