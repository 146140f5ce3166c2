package framework

import (
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/xru192/CppMicroServices/errors"
	"github.com/xru192/CppMicroServices/filter"
	"github.com/xru192/CppMicroServices/types"
)

// BundleContext is the per-bundle, validity-gated facade over the
// framework's registries. A context is created when its bundle starts
// and invalidated exactly once when the bundle stops; every operation on
// an invalidated context fails with errors.ErrContextInvalidated.
type BundleContext struct {
	core   *coreContext
	bundle *Bundle
	valid  atomic.Bool
}

func newBundleContext(core *coreContext, bundle *Bundle) *BundleContext {
	ctx := &BundleContext{core: core, bundle: bundle}
	ctx.valid.Store(true)
	return ctx
}

// IsValid reports whether the context is still usable
func (c *BundleContext) IsValid() bool {
	return c != nil && c.valid.Load()
}

// invalidate clears the context exactly once and drops its listeners.
// Repeated invalidation is idempotent.
func (c *BundleContext) invalidate() {
	if !c.valid.CompareAndSwap(true, false) {
		return
	}
	c.core.listeners.removeAllForContext(c)
}

// checkValid gates every public operation and resolves the owning
// bundle
func (c *BundleContext) checkValid(component, method string) (*Bundle, error) {
	if c == nil || !c.valid.Load() {
		return nil, errors.WrapInvalid(errors.ErrContextInvalidated, component, method, "context validity check")
	}
	b := c.bundle
	if b == nil {
		return nil, errors.WrapInvalid(errors.ErrBundleGone, component, method, "owning bundle resolution")
	}
	return b, nil
}

// GetProperty looks up one framework property; the empty Any when
// absent
func (c *BundleContext) GetProperty(key string) (types.Any, error) {
	if _, err := c.checkValid("BundleContext", "GetProperty"); err != nil {
		return types.Any{}, err
	}
	if v, ok := c.core.props[key]; ok {
		return types.NewAny(v), nil
	}
	return types.Any{}, nil
}

// GetProperties returns a copy of the framework properties
func (c *BundleContext) GetProperties() (types.AnyMap, error) {
	if _, err := c.checkValid("BundleContext", "GetProperties"); err != nil {
		return nil, err
	}
	return c.core.props.Clone(), nil
}

// GetBundle returns the context's owning bundle
func (c *BundleContext) GetBundle() (*Bundle, error) {
	return c.checkValid("BundleContext", "GetBundle")
}

// GetBundleByID returns the installed bundle with the given id, or nil
func (c *BundleContext) GetBundleByID(id int64) (*Bundle, error) {
	if _, err := c.checkValid("BundleContext", "GetBundleByID"); err != nil {
		return nil, err
	}
	return c.core.bundles.get(id), nil
}

// GetBundles returns all installed bundles ordered by id
func (c *BundleContext) GetBundles() ([]*Bundle, error) {
	if _, err := c.checkValid("BundleContext", "GetBundles"); err != nil {
		return nil, err
	}
	return c.core.bundles.list(), nil
}

// GetBundlesByLocation returns the bundles installed from the location
func (c *BundleContext) GetBundlesByLocation(location string) ([]*Bundle, error) {
	if _, err := c.checkValid("BundleContext", "GetBundlesByLocation"); err != nil {
		return nil, err
	}
	return c.core.bundles.byLocation(location), nil
}

// RegisterService publishes a singleton-scoped service under every
// interface name in the map. The registration's objectClass mirrors the
// map's declaration order.
func (c *BundleContext) RegisterService(ifmap *InterfaceMap, props types.AnyMap) (*ServiceRegistration, error) {
	producer, err := c.checkValid("BundleContext", "RegisterService")
	if err != nil {
		return nil, err
	}
	if ifmap == nil || ifmap.Len() == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
			"BundleContext", "RegisterService", "interface map validation")
	}
	return c.core.services.register(producer, ifmap, nil, ifmap.Interfaces(), ScopeSingleton, props)
}

// RegisterServiceFactory publishes a factory-backed service under the
// given interface names. A plain ServiceFactory yields bundle scope; a
// PrototypeServiceFactory yields prototype scope.
func (c *BundleContext) RegisterServiceFactory(
	factory ServiceFactory, interfaces []string, props types.AnyMap,
) (*ServiceRegistration, error) {
	producer, err := c.checkValid("BundleContext", "RegisterServiceFactory")
	if err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
			"BundleContext", "RegisterServiceFactory", "factory validation")
	}

	scope := ScopeBundle
	if _, ok := factory.(PrototypeServiceFactory); ok {
		scope = ScopePrototype
	}
	return c.core.services.register(producer, nil, factory, interfaces, scope, props)
}

// GetServiceReference returns the single best match for the interface
// name, or the zero reference when nothing matches.
func (c *BundleContext) GetServiceReference(clazz string) (ServiceReference, error) {
	requester, err := c.checkValid("BundleContext", "GetServiceReference")
	if err != nil {
		return ServiceReference{}, err
	}
	return c.core.services.getServiceReference(requester, clazz), nil
}

// GetServiceReferences returns the ranked references matching the
// interface name and optional filter expression ("" means no filter).
func (c *BundleContext) GetServiceReferences(clazz, filterExpr string) ([]ServiceReference, error) {
	return c.findReferences("GetServiceReferences", clazz, filterExpr, false)
}

// GetAllServiceReferences is GetServiceReferences without find-hook
// masking applied.
func (c *BundleContext) GetAllServiceReferences(clazz, filterExpr string) ([]ServiceReference, error) {
	return c.findReferences("GetAllServiceReferences", clazz, filterExpr, true)
}

func (c *BundleContext) findReferences(method, clazz, filterExpr string, all bool) ([]ServiceReference, error) {
	requester, err := c.checkValid("BundleContext", method)
	if err != nil {
		return nil, err
	}

	var flt *filter.Filter
	if filterExpr != "" {
		flt, err = filter.Parse(filterExpr)
		if err != nil {
			return nil, errors.Wrap(err, "BundleContext", method, "filter parse")
		}
	}
	return c.core.services.find(requester, clazz, flt, all), nil
}

// GetService acquires the service behind the reference and charges one
// use against this context's bundle. The returned guard's Close is the
// sole release path. Prototype-scoped services behave like bundle scope
// here; use GetServiceObjects for per-acquisition instances.
func (c *BundleContext) GetService(ref ServiceReference) (*ServiceGuard, error) {
	consumer, err := c.checkValid("BundleContext", "GetService")
	if err != nil {
		return nil, err
	}
	if ref.IsNil() {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
			"BundleContext", "GetService", "reference validation")
	}

	ifmap, err := ref.entry.getService(consumer)
	if err != nil {
		return nil, err
	}
	return newServiceGuard(ref, consumer, ifmap, false, c.core.sink), nil
}

// AddServiceListener subscribes to service events, optionally gated by
// an LDAP filter expression ("" subscribes to all service events).
func (c *BundleContext) AddServiceListener(fn ServiceListener, data any, filterExpr string) (ListenerToken, error) {
	if _, err := c.checkValid("BundleContext", "AddServiceListener"); err != nil {
		return ListenerToken{}, err
	}
	if fn == nil {
		return ListenerToken{}, errors.WrapInvalid(errors.ErrInvalidArgument,
			"BundleContext", "AddServiceListener", "callback validation")
	}

	var flt *filter.Filter
	if filterExpr != "" {
		parsed, err := filter.Parse(filterExpr)
		if err != nil {
			return ListenerToken{}, errors.Wrap(err, "BundleContext", "AddServiceListener", "filter parse")
		}
		flt = parsed
	}
	return c.core.listeners.addServiceListener(c, fn, data, flt), nil
}

// RemoveServiceListener removes by (callback, data) identity
func (c *BundleContext) RemoveServiceListener(fn ServiceListener, data any) error {
	if _, err := c.checkValid("BundleContext", "RemoveServiceListener"); err != nil {
		return err
	}
	c.core.listeners.removeServiceListener(c, fn, data)
	return nil
}

// AddBundleListener subscribes to bundle events
func (c *BundleContext) AddBundleListener(fn BundleListener, data any) (ListenerToken, error) {
	if _, err := c.checkValid("BundleContext", "AddBundleListener"); err != nil {
		return ListenerToken{}, err
	}
	if fn == nil {
		return ListenerToken{}, errors.WrapInvalid(errors.ErrInvalidArgument,
			"BundleContext", "AddBundleListener", "callback validation")
	}
	return c.core.listeners.addBundleListener(c, fn, data), nil
}

// RemoveBundleListener removes by (callback, data) identity
func (c *BundleContext) RemoveBundleListener(fn BundleListener, data any) error {
	if _, err := c.checkValid("BundleContext", "RemoveBundleListener"); err != nil {
		return err
	}
	c.core.listeners.removeBundleListener(c, fn, data)
	return nil
}

// AddFrameworkListener subscribes to framework events
func (c *BundleContext) AddFrameworkListener(fn FrameworkListener, data any) (ListenerToken, error) {
	if _, err := c.checkValid("BundleContext", "AddFrameworkListener"); err != nil {
		return ListenerToken{}, err
	}
	if fn == nil {
		return ListenerToken{}, errors.WrapInvalid(errors.ErrInvalidArgument,
			"BundleContext", "AddFrameworkListener", "callback validation")
	}
	return c.core.listeners.addFrameworkListener(c, fn, data), nil
}

// RemoveFrameworkListener removes by (callback, data) identity
func (c *BundleContext) RemoveFrameworkListener(fn FrameworkListener, data any) error {
	if _, err := c.checkValid("BundleContext", "RemoveFrameworkListener"); err != nil {
		return err
	}
	c.core.listeners.removeFrameworkListener(c, fn, data)
	return nil
}

// RemoveListener removes the listener the token names, whichever table
// it is in. Unknown tokens are a no-op.
func (c *BundleContext) RemoveListener(token ListenerToken) error {
	if _, err := c.checkValid("BundleContext", "RemoveListener"); err != nil {
		return err
	}
	c.core.listeners.removeToken(c, token)
	return nil
}

// GetDataFile returns the path of a file inside the bundle's persistent
// data directory, creating the directory on first use. Returns "" when
// the framework has no storage root configured.
func (c *BundleContext) GetDataFile(name string) (string, error) {
	b, err := c.checkValid("BundleContext", "GetDataFile")
	if err != nil {
		return "", err
	}
	if c.core.storageRoot == "" {
		return "", nil
	}

	dir := filepath.Join(c.core.storageRoot, strconv.FormatInt(b.id, 10))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.WrapTransient(err, "BundleContext", "GetDataFile", "data directory creation")
	}
	return filepath.Join(dir, name), nil
}

// InstallBundles installs a bundle from the location with the supplied
// manifest headers, delegating to the bundle registry. Installing an
// already-installed location returns the existing bundle.
func (c *BundleContext) InstallBundles(location string, manifest types.AnyMap) (*Bundle, error) {
	origin, err := c.checkValid("BundleContext", "InstallBundles")
	if err != nil {
		return nil, err
	}
	return c.core.bundles.install(location, manifest, origin)
}
