package framework

import (
	"log/slog"
	"sync/atomic"

	"github.com/xru192/CppMicroServices/errors"
	"github.com/xru192/CppMicroServices/metric"
	"github.com/xru192/CppMicroServices/types"
)

// Framework property keys seeded at boot
const (
	PropFrameworkVersion = "framework.version"
	PropFrameworkVendor  = "framework.vendor"
	PropStorageRoot      = "framework.storage"
)

// FrameworkVersion is the runtime's own version, visible through the
// framework properties.
const FrameworkVersion = "1.0.0"

// coreContext is the state shared by every bundle of one framework
// instance: the framework properties, the diagnostic sink, and the
// service, listener, bundle, and hook registries.
type coreContext struct {
	props       types.AnyMap
	sink        *slog.Logger
	metrics     *metric.Metrics
	storageRoot string

	services  *serviceRegistry
	listeners *listenerRegistry
	bundles   *bundleRegistry
	hooks     *hookRegistry
}

// postFrameworkEvent logs and dispatches a framework event
func (c *coreContext) postFrameworkEvent(ev FrameworkEvent) {
	if c.sink != nil {
		switch ev.Type {
		case FrameworkEventError:
			c.sink.Error(ev.Message, "error", ev.Err)
		case FrameworkEventWarning:
			c.sink.Warn(ev.Message, "error", ev.Err)
		default:
			c.sink.Info(ev.Message)
		}
	}
	c.listeners.dispatchFrameworkEvent(ev)
}

// Option configures a Framework at construction
type Option func(*Framework)

// WithLogger sets the diagnostic sink
func WithLogger(logger *slog.Logger) Option {
	return func(f *Framework) {
		if logger != nil {
			f.core.sink = logger
		}
	}
}

// WithProperties merges entries into the framework properties
func WithProperties(props types.AnyMap) Option {
	return func(f *Framework) {
		for k, v := range props.Clone() {
			f.core.props[k] = v
		}
	}
}

// WithStorageRoot sets the directory under which per-bundle data
// directories are created. Empty disables persistent bundle data.
func WithStorageRoot(dir string) Option {
	return func(f *Framework) {
		f.core.storageRoot = dir
	}
}

// WithMetrics attaches a metrics instance; without one the framework
// runs unmetered.
func WithMetrics(m *metric.Metrics) Option {
	return func(f *Framework) {
		f.core.metrics = m
	}
}

// Framework owns one service registry runtime. Create with New, then
// Start before installing and starting bundles.
type Framework struct {
	core    *coreContext
	system  *Bundle
	started atomic.Bool
}

// New creates a framework with the supplied options applied
func New(opts ...Option) *Framework {
	core := &coreContext{
		props: types.AnyMap{
			PropFrameworkVersion: FrameworkVersion,
			PropFrameworkVendor:  "CppMicroServices",
		},
		sink: slog.Default(),
	}
	core.services = newServiceRegistry(core)
	core.listeners = newListenerRegistry(core)
	core.bundles = newBundleRegistry(core)
	core.hooks = newHookRegistry()

	f := &Framework{core: core}
	for _, opt := range opts {
		opt(f)
	}

	if f.core.storageRoot != "" {
		f.core.props[PropStorageRoot] = f.core.storageRoot
	}

	f.system = core.bundles.installSystemBundle()
	return f
}

// Start boots the framework: the system bundle becomes ACTIVE and a
// framework STARTED event is dispatched. Starting twice is an error.
func (f *Framework) Start() error {
	if !f.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Framework", "Start", "double start check")
	}

	if err := f.system.Start(); err != nil {
		f.started.Store(false)
		return errors.Wrap(err, "Framework", "Start", "system bundle activation")
	}

	f.core.postFrameworkEvent(FrameworkEvent{
		Type:    FrameworkEventStarted,
		Bundle:  f.system,
		Message: "framework started",
	})
	return nil
}

// Stop shuts the framework down: every ACTIVE bundle is stopped in
// reverse install order, the system bundle last.
func (f *Framework) Stop() error {
	if !f.started.CompareAndSwap(true, false) {
		return errors.WrapInvalid(errors.ErrNotStarted, "Framework", "Stop", "started check")
	}

	bundles := f.core.bundles.list()
	for i := len(bundles) - 1; i >= 0; i-- {
		if bundles[i] == f.system {
			continue
		}
		if err := bundles[i].Stop(); err != nil && f.core.sink != nil {
			f.core.sink.Error("bundle stop failed during shutdown",
				"bundle", bundles[i].SymbolicName(), "error", err)
		}
	}
	return f.system.Stop()
}

// Context returns the system bundle's context; nil before Start
func (f *Framework) Context() *BundleContext {
	return f.system.Context()
}

// SystemBundle returns the framework's own bundle (id 0)
func (f *Framework) SystemBundle() *Bundle {
	return f.system
}

// InstallBundle installs a bundle from the location with the supplied
// manifest headers.
func (f *Framework) InstallBundle(location string, manifest types.AnyMap) (*Bundle, error) {
	if !f.started.Load() {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "Framework", "InstallBundle", "started check")
	}
	return f.core.bundles.install(location, manifest, f.system)
}

// Properties returns a copy of the framework properties
func (f *Framework) Properties() types.AnyMap {
	return f.core.props.Clone()
}

// AddFindHook installs a find hook consulted by every registry query
func (f *Framework) AddFindHook(hook FindHook) HookToken {
	return f.core.hooks.addFindHook(hook)
}

// AddEventHook installs an event hook consulted before every service
// event dispatch
func (f *Framework) AddEventHook(hook EventHook) HookToken {
	return f.core.hooks.addEventHook(hook)
}

// RemoveHook uninstalls a previously added hook
func (f *Framework) RemoveHook(token HookToken) {
	f.core.hooks.remove(token)
}
