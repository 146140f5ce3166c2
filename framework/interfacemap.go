package framework

import (
	"fmt"

	"github.com/xru192/CppMicroServices/errors"
)

// InterfaceEntry names one interface a service satisfies together with
// the object implementing it.
type InterfaceEntry struct {
	Name   string
	Object any
}

// InterfaceMap is an immutable table from interface name to the object
// implementing that interface, carried by exactly one registration (or,
// for non-singleton scopes, one factory-produced instance). The entry
// order is the order the interfaces were declared in and is mirrored by
// the registration's objectClass property.
type InterfaceMap struct {
	names   []string
	objects map[string]any
}

// NewInterfaceMap builds an interface map from ordered entries. Entries
// must be non-empty, names unique and non-blank, objects non-nil.
func NewInterfaceMap(entries ...InterfaceEntry) (*InterfaceMap, error) {
	if len(entries) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
			"InterfaceMap", "New", "empty interface list validation")
	}

	m := &InterfaceMap{
		names:   make([]string, 0, len(entries)),
		objects: make(map[string]any, len(entries)),
	}
	for _, entry := range entries {
		if entry.Name == "" {
			return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
				"InterfaceMap", "New", "blank interface name validation")
		}
		if entry.Object == nil {
			return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
				"InterfaceMap", "New",
				fmt.Sprintf("nil object for interface %q", entry.Name))
		}
		if _, exists := m.objects[entry.Name]; exists {
			return nil, errors.WrapInvalid(errors.ErrDuplicateInterface,
				"InterfaceMap", "New",
				fmt.Sprintf("interface %q declared twice", entry.Name))
		}
		m.names = append(m.names, entry.Name)
		m.objects[entry.Name] = entry.Object
	}
	return m, nil
}

// SingleInterfaceMap is a convenience constructor for the common case of
// a service published under exactly one interface name.
func SingleInterfaceMap(name string, object any) (*InterfaceMap, error) {
	return NewInterfaceMap(InterfaceEntry{Name: name, Object: object})
}

// Interfaces returns the interface names in declaration order
func (m *InterfaceMap) Interfaces() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Get returns the object published under the given interface name
func (m *InterfaceMap) Get(name string) (any, bool) {
	obj, ok := m.objects[name]
	return obj, ok
}

// Contains reports whether the map carries the given interface name
func (m *InterfaceMap) Contains(name string) bool {
	_, ok := m.objects[name]
	return ok
}

// Len returns the number of interfaces in the map
func (m *InterfaceMap) Len() int {
	return len(m.names)
}

// first returns the object for the first declared interface. Used when a
// caller acquired the reference without naming a specific interface.
func (m *InterfaceMap) first() any {
	if len(m.names) == 0 {
		return nil
	}
	return m.objects[m.names[0]]
}

// containsAll reports whether every name in classes is present. Used to
// validate factory-produced maps against the promised objectClass.
func (m *InterfaceMap) containsAll(classes []string) bool {
	if m == nil {
		return false
	}
	for _, name := range classes {
		if _, ok := m.objects[name]; !ok {
			return false
		}
	}
	return true
}
