package framework

import (
	"fmt"
	"sync"
)

// FindHook inspects and may narrow the candidate set of a registry
// query before it is returned to the requesting bundle. Hooks run in
// registration order on the querying goroutine, with no framework lock
// held.
type FindHook func(requester *Bundle, clazz string, refs []ServiceReference) []ServiceReference

// EventHook inspects and may narrow the set of bundle contexts that
// will receive a service event. Returning nil or an empty slice masks
// every recipient.
type EventHook func(event ServiceEvent, contexts []*BundleContext) []*BundleContext

// HookToken identifies an installed hook for later removal
type HookToken struct {
	id uint64
}

type hookRegistry struct {
	mu        sync.RWMutex
	nextID    uint64
	findHooks map[uint64]FindHook
	eventHook map[uint64]EventHook
	findOrder []uint64
	evtOrder  []uint64
}

func newHookRegistry() *hookRegistry {
	return &hookRegistry{
		findHooks: make(map[uint64]FindHook),
		eventHook: make(map[uint64]EventHook),
	}
}

func (h *hookRegistry) addFindHook(hook FindHook) HookToken {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	h.findHooks[h.nextID] = hook
	h.findOrder = append(h.findOrder, h.nextID)
	return HookToken{id: h.nextID}
}

func (h *hookRegistry) addEventHook(hook EventHook) HookToken {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	h.eventHook[h.nextID] = hook
	h.evtOrder = append(h.evtOrder, h.nextID)
	return HookToken{id: h.nextID}
}

func (h *hookRegistry) remove(token HookToken) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.findHooks, token.id)
	delete(h.eventHook, token.id)
}

func (h *hookRegistry) findSnapshot() []FindHook {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]FindHook, 0, len(h.findHooks))
	for _, id := range h.findOrder {
		if hook, ok := h.findHooks[id]; ok {
			out = append(out, hook)
		}
	}
	return out
}

func (h *hookRegistry) eventSnapshot() []EventHook {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]EventHook, 0, len(h.eventHook))
	for _, id := range h.evtOrder {
		if hook, ok := h.eventHook[id]; ok {
			out = append(out, hook)
		}
	}
	return out
}

// applyFindHooks runs the installed find hooks over a query result. A
// panicking hook is skipped and reported; it cannot veto the query.
func (c *coreContext) applyFindHooks(requester *Bundle, clazz string, refs []ServiceReference) []ServiceReference {
	for _, hook := range c.hooks.findSnapshot() {
		refs = c.safeFindHook(hook, requester, clazz, refs)
	}
	return refs
}

func (c *coreContext) safeFindHook(
	hook FindHook, requester *Bundle, clazz string, refs []ServiceReference,
) (out []ServiceReference) {
	defer func() {
		if r := recover(); r != nil {
			out = refs
			c.metrics.RecordListenerError()
			if c.sink != nil {
				c.sink.Error("find hook panicked", "clazz", clazz, "panic", fmt.Sprint(r))
			}
		}
	}()
	return hook(requester, clazz, refs)
}

// applyEventHooks computes the allowed recipient contexts for a service
// event; nil means no masking is in effect.
func (c *coreContext) applyEventHooks(ev ServiceEvent, contexts []*BundleContext) map[*BundleContext]bool {
	hooks := c.hooks.eventSnapshot()
	if len(hooks) == 0 {
		return nil
	}

	for _, hook := range hooks {
		contexts = c.safeEventHook(hook, ev, contexts)
	}

	allowed := make(map[*BundleContext]bool, len(contexts))
	for _, ctx := range contexts {
		allowed[ctx] = true
	}
	return allowed
}

func (c *coreContext) safeEventHook(
	hook EventHook, ev ServiceEvent, contexts []*BundleContext,
) (out []*BundleContext) {
	defer func() {
		if r := recover(); r != nil {
			out = contexts
			c.metrics.RecordListenerError()
			if c.sink != nil {
				c.sink.Error("event hook panicked", "event", ev.Type.String(), "panic", fmt.Sprint(r))
			}
		}
	}()
	return hook(ev, contexts)
}
