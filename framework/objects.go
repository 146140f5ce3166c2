package framework

import (
	"github.com/xru192/CppMicroServices/errors"
)

// ServiceObjects allows a consumer to obtain per-acquisition instances
// of a prototype-scoped service. For singleton and bundle scopes it
// behaves exactly like BundleContext.GetService.
type ServiceObjects struct {
	ctx *BundleContext
	ref ServiceReference
}

// Reference returns the reference the ServiceObjects was created for
func (s *ServiceObjects) Reference() ServiceReference {
	return s.ref
}

// GetService acquires one instance. For prototype scope every call
// produces a distinct instance whose guard disposes exactly that
// instance; otherwise the call is equivalent to
// BundleContext.GetService.
func (s *ServiceObjects) GetService() (*ServiceGuard, error) {
	consumer, err := s.ctx.checkValid("ServiceObjects", "GetService")
	if err != nil {
		return nil, err
	}

	entry := s.ref.entry
	if entry.scope != ScopePrototype {
		return s.ctx.GetService(s.ref)
	}

	ifmap, err := entry.getPrototypeService(consumer)
	if err != nil {
		return nil, err
	}
	return newServiceGuard(s.ref, consumer, ifmap, true, s.ctx.core.sink), nil
}

// GetServiceInterfaceMap acquires one instance exactly as GetService
// does and returns the same kind of guard; the complete interface map
// is reached through the guard's InterfaceMap method.
func (s *ServiceObjects) GetServiceInterfaceMap() (*ServiceGuard, error) {
	return s.GetService()
}

// GetServiceObjects creates a ServiceObjects for the reference. The
// zero reference is rejected.
func (c *BundleContext) GetServiceObjects(ref ServiceReference) (*ServiceObjects, error) {
	if _, err := c.checkValid("BundleContext", "GetServiceObjects"); err != nil {
		return nil, err
	}
	if ref.IsNil() {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
			"BundleContext", "GetServiceObjects", "reference validation")
	}
	return &ServiceObjects{ctx: c, ref: ref}, nil
}
