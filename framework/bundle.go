package framework

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xru192/CppMicroServices/errors"
	"github.com/xru192/CppMicroServices/types"
)

// BundleState is the coarse lifecycle state of a bundle
type BundleState int

// Bundle lifecycle states
const (
	BundleInstalled BundleState = iota + 1
	BundleResolved
	BundleStarting
	BundleActive
	BundleStopping
	BundleUninstalled
)

// String returns the state name
func (s BundleState) String() string {
	switch s {
	case BundleInstalled:
		return "INSTALLED"
	case BundleResolved:
		return "RESOLVED"
	case BundleStarting:
		return "STARTING"
	case BundleActive:
		return "ACTIVE"
	case BundleStopping:
		return "STOPPING"
	case BundleUninstalled:
		return "UNINSTALLED"
	default:
		return "UNKNOWN"
	}
}

// manifest key for the bundle's symbolic name
const manifestSymbolicName = "bundle.symbolicName"

// Bundle is one installed unit of code with its own lifecycle. The
// framework's service core treats bundles as consumer and producer
// identities; loading code from disk is outside this runtime.
type Bundle struct {
	core         *coreContext
	id           int64
	location     string
	symbolicName string
	manifest     types.AnyMap

	mu    sync.Mutex
	state BundleState
	ctx   *BundleContext
}

// ID returns the bundle id; 0 is the system bundle
func (b *Bundle) ID() int64 {
	return b.id
}

// SymbolicName returns the bundle's symbolic name
func (b *Bundle) SymbolicName() string {
	return b.symbolicName
}

// Location returns the install location the bundle was installed from
func (b *Bundle) Location() string {
	return b.location
}

// Manifest returns a copy of the manifest headers supplied at install
func (b *Bundle) Manifest() types.AnyMap {
	return b.manifest.Clone()
}

// State returns the current lifecycle state
func (b *Bundle) State() BundleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Context returns the bundle's context while the bundle is ACTIVE or
// STOPPING; nil otherwise.
func (b *Bundle) Context() *BundleContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// Start activates the bundle: a STARTING event is emitted, the bundle
// context is created and validated, and a STARTED event follows.
// Starting an ACTIVE bundle is a no-op.
func (b *Bundle) Start() error {
	b.mu.Lock()
	switch b.state {
	case BundleActive:
		b.mu.Unlock()
		return nil
	case BundleUninstalled:
		b.mu.Unlock()
		return errors.WrapInvalid(errors.ErrBundleGone,
			"Bundle", "Start", "uninstalled bundle check")
	case BundleStarting, BundleStopping:
		b.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("bundle %q is in transient state", b.symbolicName),
			"Bundle", "Start", "state check")
	}
	b.state = BundleStarting
	b.mu.Unlock()

	b.core.listeners.dispatchBundleEvent(BundleEvent{
		Type: BundleEventStarting, Bundle: b, Origin: b,
	})

	ctx := newBundleContext(b.core, b)

	b.mu.Lock()
	b.ctx = ctx
	b.state = BundleActive
	b.mu.Unlock()

	b.core.metrics.BundleStarted()
	b.core.listeners.dispatchBundleEvent(BundleEvent{
		Type: BundleEventStarted, Bundle: b, Origin: b,
	})
	return nil
}

// Stop deactivates the bundle: a STOPPING event is emitted, the bundle
// context is invalidated exactly once (which drops its listeners), the
// bundle's own registrations are unregistered, and a STOPPED event
// follows. Stopping a non-ACTIVE bundle is a no-op.
func (b *Bundle) Stop() error {
	b.mu.Lock()
	if b.state != BundleActive {
		b.mu.Unlock()
		return nil
	}
	b.state = BundleStopping
	ctx := b.ctx
	b.mu.Unlock()

	b.core.listeners.dispatchBundleEvent(BundleEvent{
		Type: BundleEventStopping, Bundle: b, Origin: b,
	})

	if ctx != nil {
		ctx.invalidate()
	}
	b.core.services.unregisterBundleServices(b)

	b.mu.Lock()
	b.ctx = nil
	b.state = BundleResolved
	b.mu.Unlock()

	b.core.metrics.BundleStopped()
	b.core.listeners.dispatchBundleEvent(BundleEvent{
		Type: BundleEventStopped, Bundle: b, Origin: b,
	})
	return nil
}

// Uninstall stops the bundle if needed and removes it from the bundle
// registry. The bundle object stays usable as an identity but can no
// longer be started.
func (b *Bundle) Uninstall() error {
	b.mu.Lock()
	if b.state == BundleUninstalled {
		b.mu.Unlock()
		return errors.WrapInvalid(errors.ErrBundleGone,
			"Bundle", "Uninstall", "double uninstall check")
	}
	b.mu.Unlock()

	if err := b.Stop(); err != nil {
		return err
	}

	b.mu.Lock()
	b.state = BundleUninstalled
	b.mu.Unlock()

	b.core.bundles.remove(b)
	b.core.listeners.dispatchBundleEvent(BundleEvent{
		Type: BundleEventUninstalled, Bundle: b, Origin: b,
	})
	return nil
}

// bundleRegistry tracks installed bundles by id and location
type bundleRegistry struct {
	core *coreContext

	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Bundle
}

func newBundleRegistry(core *coreContext) *bundleRegistry {
	return &bundleRegistry{
		core: core,
		byID: make(map[int64]*Bundle),
	}
}

// install registers a new bundle at the location. Installing the same
// location twice returns the existing bundle, matching the idempotent
// install semantics of the original runtime.
func (r *bundleRegistry) install(location string, manifest types.AnyMap, origin *Bundle) (*Bundle, error) {
	if location == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
			"BundleRegistry", "Install", "location validation")
	}

	r.mu.Lock()
	for _, b := range r.byID {
		if b.location == location {
			r.mu.Unlock()
			return b, nil
		}
	}
	r.nextID++
	manifest = manifest.Clone()
	name := manifest.GetString(manifestSymbolicName, location)
	b := &Bundle{
		core:         r.core,
		id:           r.nextID,
		location:     location,
		symbolicName: name,
		manifest:     manifest,
		state:        BundleInstalled,
	}
	r.byID[b.id] = b
	r.mu.Unlock()

	r.core.listeners.dispatchBundleEvent(BundleEvent{
		Type: BundleEventInstalled, Bundle: b, Origin: origin,
	})
	return b, nil
}

// installSystemBundle creates the framework's own bundle with id 0
func (r *bundleRegistry) installSystemBundle() *Bundle {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := &Bundle{
		core:         r.core,
		id:           0,
		location:     "system",
		symbolicName: "system.bundle",
		manifest:     types.AnyMap{},
		state:        BundleInstalled,
	}
	r.byID[0] = b
	return b
}

func (r *bundleRegistry) get(id int64) *Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// byLocation returns the bundles installed from the location
func (r *bundleRegistry) byLocation(location string) []*Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Bundle
	for _, b := range r.byID {
		if b.location == location {
			out = append(out, b)
		}
	}
	return out
}

// list returns all installed bundles ordered by id
func (r *bundleRegistry) list() []*Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Bundle, 0, len(r.byID))
	for _, b := range r.byID {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *bundleRegistry) remove(b *Bundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, b.id)
}
