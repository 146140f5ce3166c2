package framework

import (
	"fmt"
	"sync"
)

// ServiceGuard wraps one acquisition. Close is the sole release path:
// closing a typed guard releases one use against the consuming bundle;
// closing a per-acquisition (prototype) guard disposes the specific
// instance it wraps. Close is idempotent, safe from any goroutine, and
// never panics; a guard tolerates outliving its producing bundle and the
// registration, in which case Close still releases its remaining use and
// returns nil.
type ServiceGuard struct {
	ref       ServiceReference
	consumer  *Bundle
	ifmap     *InterfaceMap
	object    any
	prototype bool
	sink      diagSink

	mu     sync.Mutex
	closed bool
}

// diagSink is the minimal logging surface a guard needs at disposal time
type diagSink interface {
	Warn(msg string, args ...any)
}

func newServiceGuard(
	ref ServiceReference, consumer *Bundle, ifmap *InterfaceMap, prototype bool, sink diagSink,
) *ServiceGuard {
	var object any
	if name := ref.Interface(); name != "" {
		object, _ = ifmap.Get(name)
	}
	if object == nil {
		object = ifmap.first()
	}
	return &ServiceGuard{
		ref:       ref,
		consumer:  consumer,
		ifmap:     ifmap,
		object:    object,
		prototype: prototype,
		sink:      sink,
	}
}

// Object returns the service object for the interface the reference was
// obtained through. The pointer is stable for the life of the guard.
func (g *ServiceGuard) Object() any {
	return g.object
}

// InterfaceMap returns the full interface map backing this acquisition
func (g *ServiceGuard) InterfaceMap() *InterfaceMap {
	return g.ifmap
}

// Reference returns the reference this guard was acquired through
func (g *ServiceGuard) Reference() ServiceReference {
	return g.ref
}

// Close releases the acquisition. Closing an already-closed guard is a
// no-op and returns nil.
func (g *ServiceGuard) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			if g.sink != nil {
				g.sink.Warn("service guard release panicked",
					"service.id", g.ref.ID(), "panic", fmt.Sprint(r))
			}
		}
	}()

	entry := g.ref.entry
	if entry == nil || g.consumer == nil {
		return nil
	}

	if g.prototype {
		entry.ungetPrototypeService(g.consumer, g.ifmap)
	} else {
		entry.ungetService(g.consumer)
	}
	return nil
}
