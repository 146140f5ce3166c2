package framework

import (
	"strings"

	"github.com/xru192/CppMicroServices/types"
)

// Framework-assigned service property keys
const (
	// ServiceID is the monotonically increasing, process-unique
	// registration id. Assigned by the framework; immutable.
	ServiceID = "service.id"

	// ServiceScope is one of ScopeSingleton, ScopeBundle or
	// ScopePrototype. Assigned by the framework from the registration
	// form; immutable.
	ServiceScope = "service.scope"

	// ServiceRanking is a signed integer used for selection ordering.
	// May be supplied by the registrar; defaults to 0.
	ServiceRanking = "service.ranking"

	// ObjectClass is the ordered list of interface names the service is
	// published under. Assigned by the framework; immutable.
	ObjectClass = "objectClass"
)

// Service scope values
const (
	ScopeSingleton = "singleton"
	ScopeBundle    = "bundle"
	ScopePrototype = "prototype"
)

// reservedPrefix guards the framework-assigned property namespace
const reservedPrefix = "service."

// buildProperties assembles the property map for a new registration:
// user keys are copied, framework-assigned keys are stripped and then
// injected, and the ranking is coerced to an integer.
func buildProperties(user types.AnyMap, id int64, scope string, classes []string) types.AnyMap {
	props := make(types.AnyMap, len(user)+4)
	for k, v := range user.Clone() {
		if isFrameworkAssigned(k) {
			continue
		}
		props[k] = v
	}

	props[ServiceRanking] = rankingOf(user)
	props[ServiceID] = id
	props[ServiceScope] = scope

	oc := make([]string, len(classes))
	copy(oc, classes)
	props[ObjectClass] = oc

	return props
}

// mergeProperties applies a property update: all non-reserved keys are
// replaced with the new map while framework-assigned keys are preserved
// from the old. The ranking is taken from the update (0 when absent).
func mergeProperties(old, update types.AnyMap) types.AnyMap {
	props := make(types.AnyMap, len(update)+4)
	for k, v := range update.Clone() {
		if isFrameworkAssigned(k) {
			continue
		}
		props[k] = v
	}

	props[ServiceRanking] = rankingOf(update)
	props[ServiceID] = old[ServiceID]
	props[ServiceScope] = old[ServiceScope]
	props[ObjectClass] = old[ObjectClass]

	return props
}

// isFrameworkAssigned reports whether only the framework may set the key
func isFrameworkAssigned(key string) bool {
	if strings.EqualFold(key, ObjectClass) {
		return true
	}
	if !strings.HasPrefix(key, reservedPrefix) {
		return false
	}
	return strings.EqualFold(key, ServiceID) || strings.EqualFold(key, ServiceScope)
}

// rankingOf extracts an integer ranking from user properties; anything
// that is not an integer coerces to 0
func rankingOf(props types.AnyMap) int {
	return props.GetInt(ServiceRanking, 0)
}
