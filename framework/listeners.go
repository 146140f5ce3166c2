package framework

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/xru192/CppMicroServices/filter"
	"github.com/xru192/CppMicroServices/types"
)

// ListenerToken is the opaque handle returned at listener registration
// and accepted by RemoveListener. The zero token is never assigned.
type ListenerToken struct {
	id uint64
}

// IsZero reports whether the token is the zero token
func (t ListenerToken) IsZero() bool {
	return t.id == 0
}

type serviceListenerEntry struct {
	token uint64
	owner *BundleContext
	fn    ServiceListener
	fnPtr uintptr
	data  any
	flt   *filter.Filter
}

type bundleListenerEntry struct {
	token uint64
	owner *BundleContext
	fn    BundleListener
	fnPtr uintptr
	data  any
}

type frameworkListenerEntry struct {
	token uint64
	owner *BundleContext
	fn    FrameworkListener
	fnPtr uintptr
	data  any
}

// listenerRegistry holds the three subscriber tables. Table mutation is
// serialised on one mutex; dispatch iterates a snapshot so listeners may
// add or remove listeners (including themselves) from inside their own
// callback without deadlock.
type listenerRegistry struct {
	core      *coreContext
	nextToken atomic.Uint64

	mu        sync.Mutex
	service   map[uint64]*serviceListenerEntry
	bundle    map[uint64]*bundleListenerEntry
	framework map[uint64]*frameworkListenerEntry
}

func newListenerRegistry(core *coreContext) *listenerRegistry {
	return &listenerRegistry{
		core:      core,
		service:   make(map[uint64]*serviceListenerEntry),
		bundle:    make(map[uint64]*bundleListenerEntry),
		framework: make(map[uint64]*frameworkListenerEntry),
	}
}

func callbackPointer(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// addServiceListener registers a filtered service listener. Registering
// the same (callback, data) pair again replaces the previous entry, as
// the token of the replaced entry is invalidated.
func (l *listenerRegistry) addServiceListener(
	owner *BundleContext, fn ServiceListener, data any, flt *filter.Filter,
) ListenerToken {
	ptr := callbackPointer(fn)
	token := l.nextToken.Add(1)

	l.mu.Lock()
	for id, entry := range l.service {
		if entry.owner == owner && entry.fnPtr == ptr && entry.data == data {
			delete(l.service, id)
		}
	}
	l.service[token] = &serviceListenerEntry{
		token: token, owner: owner, fn: fn, fnPtr: ptr, data: data, flt: flt,
	}
	l.mu.Unlock()

	return ListenerToken{id: token}
}

func (l *listenerRegistry) addBundleListener(owner *BundleContext, fn BundleListener, data any) ListenerToken {
	ptr := callbackPointer(fn)
	token := l.nextToken.Add(1)

	l.mu.Lock()
	for id, entry := range l.bundle {
		if entry.owner == owner && entry.fnPtr == ptr && entry.data == data {
			delete(l.bundle, id)
		}
	}
	l.bundle[token] = &bundleListenerEntry{token: token, owner: owner, fn: fn, fnPtr: ptr, data: data}
	l.mu.Unlock()

	return ListenerToken{id: token}
}

func (l *listenerRegistry) addFrameworkListener(owner *BundleContext, fn FrameworkListener, data any) ListenerToken {
	ptr := callbackPointer(fn)
	token := l.nextToken.Add(1)

	l.mu.Lock()
	for id, entry := range l.framework {
		if entry.owner == owner && entry.fnPtr == ptr && entry.data == data {
			delete(l.framework, id)
		}
	}
	l.framework[token] = &frameworkListenerEntry{token: token, owner: owner, fn: fn, fnPtr: ptr, data: data}
	l.mu.Unlock()

	return ListenerToken{id: token}
}

// removeToken removes whichever listener the token names. Unknown
// tokens are a no-op.
func (l *listenerRegistry) removeToken(owner *BundleContext, token ListenerToken) {
	if token.IsZero() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.service[token.id]; ok && entry.owner == owner {
		delete(l.service, token.id)
		return
	}
	if entry, ok := l.bundle[token.id]; ok && entry.owner == owner {
		delete(l.bundle, token.id)
		return
	}
	if entry, ok := l.framework[token.id]; ok && entry.owner == owner {
		delete(l.framework, token.id)
	}
}

// removeServiceListener removes by (callback, data) identity
func (l *listenerRegistry) removeServiceListener(owner *BundleContext, fn ServiceListener, data any) {
	ptr := callbackPointer(fn)

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, entry := range l.service {
		if entry.owner == owner && entry.fnPtr == ptr && entry.data == data {
			delete(l.service, id)
		}
	}
}

func (l *listenerRegistry) removeBundleListener(owner *BundleContext, fn BundleListener, data any) {
	ptr := callbackPointer(fn)

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, entry := range l.bundle {
		if entry.owner == owner && entry.fnPtr == ptr && entry.data == data {
			delete(l.bundle, id)
		}
	}
}

func (l *listenerRegistry) removeFrameworkListener(owner *BundleContext, fn FrameworkListener, data any) {
	ptr := callbackPointer(fn)

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, entry := range l.framework {
		if entry.owner == owner && entry.fnPtr == ptr && entry.data == data {
			delete(l.framework, id)
		}
	}
}

// removeAllForContext purges every listener the context registered. A
// dying context silently invalidates its listeners.
func (l *listenerRegistry) removeAllForContext(owner *BundleContext) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, entry := range l.service {
		if entry.owner == owner {
			delete(l.service, id)
		}
	}
	for id, entry := range l.bundle {
		if entry.owner == owner {
			delete(l.bundle, id)
		}
	}
	for id, entry := range l.framework {
		if entry.owner == owner {
			delete(l.framework, id)
		}
	}
}

func (l *listenerRegistry) serviceSnapshot() []*serviceListenerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*serviceListenerEntry, 0, len(l.service))
	for _, entry := range l.service {
		out = append(out, entry)
	}
	return out
}

// dispatchServiceEvent delivers a REGISTERED or UNREGISTERING event to
// every service listener whose filter matches the event's current
// properties. Event hooks may mask recipients.
func (l *listenerRegistry) dispatchServiceEvent(ev ServiceEvent) {
	l.core.metrics.RecordServiceEvent(ev.Type.String())

	props := ev.Reference.Properties()
	allowed := l.core.applyEventHooks(ev, l.ownerContexts())

	for _, entry := range l.serviceSnapshot() {
		if !l.ownerAllowed(entry.owner, allowed) {
			continue
		}
		if entry.flt != nil && !entry.flt.Matches(props) {
			continue
		}
		l.invokeServiceListener(entry, ev)
	}
}

// dispatchServiceModified delivers the property-update event for one
// registration: listeners whose filter matches the new properties see
// MODIFIED; listeners whose filter matched only the old properties see
// MODIFIED_ENDMATCH; the rest see nothing.
func (l *listenerRegistry) dispatchServiceModified(ref ServiceReference, old, updated types.AnyMap) {
	l.core.metrics.RecordServiceEvent(ServiceEventModified.String())

	modified := ServiceEvent{Type: ServiceEventModified, Reference: ref}
	endmatch := ServiceEvent{Type: ServiceEventModifiedEndmatch, Reference: ref}
	allowed := l.core.applyEventHooks(modified, l.ownerContexts())

	for _, entry := range l.serviceSnapshot() {
		if !l.ownerAllowed(entry.owner, allowed) {
			continue
		}
		switch {
		case entry.flt == nil || entry.flt.Matches(updated):
			l.invokeServiceListener(entry, modified)
		case entry.flt.Matches(old):
			l.invokeServiceListener(entry, endmatch)
		}
	}
}

// dispatchBundleEvent broadcasts unfiltered to the bundle table
func (l *listenerRegistry) dispatchBundleEvent(ev BundleEvent) {
	l.mu.Lock()
	snapshot := make([]*bundleListenerEntry, 0, len(l.bundle))
	for _, entry := range l.bundle {
		snapshot = append(snapshot, entry)
	}
	l.mu.Unlock()

	for _, entry := range snapshot {
		if entry.owner != nil && !entry.owner.IsValid() {
			continue
		}
		l.invokeBundleListener(entry, ev)
	}
}

// dispatchFrameworkEvent broadcasts unfiltered to the framework table
func (l *listenerRegistry) dispatchFrameworkEvent(ev FrameworkEvent) {
	l.mu.Lock()
	snapshot := make([]*frameworkListenerEntry, 0, len(l.framework))
	for _, entry := range l.framework {
		snapshot = append(snapshot, entry)
	}
	l.mu.Unlock()

	for _, entry := range snapshot {
		if entry.owner != nil && !entry.owner.IsValid() {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					// Log only: raising another framework event for a
					// framework listener failure could recurse forever
					l.core.metrics.RecordListenerError()
					if sink := l.core.sink; sink != nil {
						sink.Error("framework listener panicked",
							"event", ev.Type.String(), "panic", fmt.Sprint(r))
					}
				}
			}()
			entry.fn(ev, entry.data)
		}()
	}
}

func (l *listenerRegistry) invokeServiceListener(entry *serviceListenerEntry, ev ServiceEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.reportListenerFailure("service", ev.Type.String(), r)
		}
	}()
	entry.fn(ev, entry.data)
}

func (l *listenerRegistry) invokeBundleListener(entry *bundleListenerEntry, ev BundleEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.reportListenerFailure("bundle", ev.Type.String(), r)
		}
	}()
	entry.fn(ev, entry.data)
}

// reportListenerFailure contains a listener panic: the failure is logged
// and surfaced as a framework ERROR event, and dispatch to the remaining
// listeners continues.
func (l *listenerRegistry) reportListenerFailure(table, eventType string, cause any) {
	l.core.metrics.RecordListenerError()
	if sink := l.core.sink; sink != nil {
		sink.Error("listener callback panicked",
			"table", table, "event", eventType, "panic", fmt.Sprint(cause))
	}
	l.dispatchFrameworkEvent(FrameworkEvent{
		Type:    FrameworkEventError,
		Message: fmt.Sprintf("%s listener panicked during %s dispatch", table, eventType),
		Err:     fmt.Errorf("listener panic: %v", cause),
	})
}

// ownerContexts returns the distinct owning contexts of current service
// listeners, for event-hook masking.
func (l *listenerRegistry) ownerContexts() []*BundleContext {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[*BundleContext]bool)
	var out []*BundleContext
	for _, entry := range l.service {
		if entry.owner != nil && !seen[entry.owner] {
			seen[entry.owner] = true
			out = append(out, entry.owner)
		}
	}
	return out
}

// ownerAllowed applies context validity and the event-hook mask
func (l *listenerRegistry) ownerAllowed(owner *BundleContext, allowed map[*BundleContext]bool) bool {
	if owner == nil {
		return true
	}
	if !owner.IsValid() {
		return false
	}
	return allowed == nil || allowed[owner]
}
