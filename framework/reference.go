package framework

import "github.com/xru192/CppMicroServices/types"

// ServiceReference is a stable, copyable handle to a registration. The
// zero ServiceReference is invalid. A reference stays syntactically
// valid after its registration is unregistered, but dereferencing
// operations then yield empty results.
type ServiceReference struct {
	entry *serviceEntry
	// clazz is the interface name the reference was obtained through;
	// empty when obtained without naming an interface.
	clazz string
}

// IsNil reports whether the reference is the zero reference
func (r ServiceReference) IsNil() bool {
	return r.entry == nil
}

// IsValid reports whether the reference points at a registration that is
// still discoverable.
func (r ServiceReference) IsValid() bool {
	return r.entry != nil && r.entry.isAvailable()
}

// Equal reports whether both references denote the same registration
func (r ServiceReference) Equal(other ServiceReference) bool {
	return r.entry == other.entry
}

// Compare orders references for selection: a higher service.ranking
// precedes a lower one; on equal ranking the lower service.id precedes.
// Returns a negative value when r precedes other, positive when other
// precedes r, zero when they denote the same registration.
func (r ServiceReference) Compare(other ServiceReference) int {
	if r.entry == other.entry {
		return 0
	}
	if r.entry == nil {
		return 1
	}
	if other.entry == nil {
		return -1
	}

	rRank, oRank := r.entry.ranking(), other.entry.ranking()
	if rRank != oRank {
		if rRank > oRank {
			return -1
		}
		return 1
	}
	if r.entry.id < other.entry.id {
		return -1
	}
	return 1
}

// ID returns the registration's service.id, or 0 for the zero reference
func (r ServiceReference) ID() int64 {
	if r.entry == nil {
		return 0
	}
	return r.entry.id
}

// Interface returns the interface name the reference was obtained
// through, or the first declared interface when none was named.
func (r ServiceReference) Interface() string {
	if r.clazz != "" {
		return r.clazz
	}
	if r.entry == nil || len(r.entry.classes) == 0 {
		return ""
	}
	return r.entry.classes[0]
}

// Properties returns a snapshot of the registration's current
// properties; nil for the zero reference.
func (r ServiceReference) Properties() types.AnyMap {
	if r.entry == nil {
		return nil
	}
	return r.entry.propsSnapshot()
}

// GetProperty returns one property value; the empty Any when absent or
// for the zero reference.
func (r ServiceReference) GetProperty(key string) types.Any {
	if r.entry == nil {
		return types.Any{}
	}
	return r.entry.getProperty(key)
}

// PreviousProperties returns the pre-update property snapshot. It is
// defined only while a MODIFIED or MODIFIED_ENDMATCH event for this
// registration is being dispatched; at any other time it returns nil.
func (r ServiceReference) PreviousProperties() types.AnyMap {
	if r.entry == nil {
		return nil
	}
	return r.entry.prevSnapshot()
}

// Scope returns the registration's service.scope, or "" for the zero
// reference
func (r ServiceReference) Scope() string {
	if r.entry == nil {
		return ""
	}
	return r.entry.scope
}

// Bundle returns the producing bundle, or nil after unregistration or
// for the zero reference.
func (r ServiceReference) Bundle() *Bundle {
	if r.entry == nil || !r.entry.isAvailable() {
		return nil
	}
	return r.entry.producer
}

// UsingBundles returns the bundles currently holding uses on the
// registration
func (r ServiceReference) UsingBundles() []*Bundle {
	if r.entry == nil {
		return nil
	}
	return r.entry.usingBundles()
}
