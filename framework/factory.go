package framework

// ServiceFactory produces and disposes per-bundle service instances.
// Registering a ServiceFactory yields a bundle-scoped service: the
// framework keeps one instance per consuming bundle while that bundle
// holds any use, and balances every GetService call with exactly one
// UngetService call. Concurrent first acquisitions by the same bundle
// may each call GetService; the surplus instances are handed straight
// back through UngetService.
//
// Both callbacks are invoked with no framework lock held and may
// re-enter the framework. A GetService that returns an error, panics, or
// returns a map missing any promised interface name fails the
// acquisition: no use is charged and a framework WARNING event is
// emitted.
type ServiceFactory interface {
	GetService(bundle *Bundle, registration *ServiceRegistration) (*InterfaceMap, error)
	UngetService(bundle *Bundle, registration *ServiceRegistration, service *InterfaceMap)
}

// PrototypeServiceFactory marks a factory whose registrations are
// prototype-scoped: GetService is invoked anew for every acquisition and
// every produced instance is disposed individually.
type PrototypeServiceFactory interface {
	ServiceFactory
	// Prototype distinguishes the interface from ServiceFactory so that
	// scope assignment is an explicit choice of the registrar.
	Prototype()
}

// ServiceFactoryFuncs adapts a pair of functions to the ServiceFactory
// interface. UngetFunc may be nil.
type ServiceFactoryFuncs struct {
	GetFunc   func(bundle *Bundle, registration *ServiceRegistration) (*InterfaceMap, error)
	UngetFunc func(bundle *Bundle, registration *ServiceRegistration, service *InterfaceMap)
}

// GetService implements ServiceFactory
func (f ServiceFactoryFuncs) GetService(bundle *Bundle, registration *ServiceRegistration) (*InterfaceMap, error) {
	return f.GetFunc(bundle, registration)
}

// UngetService implements ServiceFactory
func (f ServiceFactoryFuncs) UngetService(bundle *Bundle, registration *ServiceRegistration, service *InterfaceMap) {
	if f.UngetFunc != nil {
		f.UngetFunc(bundle, registration, service)
	}
}

// PrototypeFactoryFuncs adapts a pair of functions to the
// PrototypeServiceFactory interface. UngetFunc may be nil.
type PrototypeFactoryFuncs struct {
	GetFunc   func(bundle *Bundle, registration *ServiceRegistration) (*InterfaceMap, error)
	UngetFunc func(bundle *Bundle, registration *ServiceRegistration, service *InterfaceMap)
}

// GetService implements ServiceFactory
func (f PrototypeFactoryFuncs) GetService(bundle *Bundle, registration *ServiceRegistration) (*InterfaceMap, error) {
	return f.GetFunc(bundle, registration)
}

// UngetService implements ServiceFactory
func (f PrototypeFactoryFuncs) UngetService(bundle *Bundle, registration *ServiceRegistration, service *InterfaceMap) {
	if f.UngetFunc != nil {
		f.UngetFunc(bundle, registration, service)
	}
}

// Prototype implements PrototypeServiceFactory
func (f PrototypeFactoryFuncs) Prototype() {}
