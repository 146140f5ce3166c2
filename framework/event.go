package framework

// ServiceEventType identifies the lifecycle transition a service event
// reports.
type ServiceEventType int

// Service event types. For a given registration, listeners observe
// REGISTERED, then zero or more MODIFIED / MODIFIED_ENDMATCH, then
// UNREGISTERING.
const (
	ServiceEventRegistered ServiceEventType = iota + 1
	ServiceEventModified
	ServiceEventModifiedEndmatch
	ServiceEventUnregistering
)

// String returns the event type name
func (t ServiceEventType) String() string {
	switch t {
	case ServiceEventRegistered:
		return "REGISTERED"
	case ServiceEventModified:
		return "MODIFIED"
	case ServiceEventModifiedEndmatch:
		return "MODIFIED_ENDMATCH"
	case ServiceEventUnregistering:
		return "UNREGISTERING"
	default:
		return "UNKNOWN"
	}
}

// ServiceEvent reports a service lifecycle transition. The reference
// remains usable during dispatch; for MODIFIED events,
// Reference.PreviousProperties exposes the pre-update snapshot.
type ServiceEvent struct {
	Type      ServiceEventType
	Reference ServiceReference
}

// BundleEventType identifies the lifecycle transition a bundle event
// reports.
type BundleEventType int

// Bundle event types
const (
	BundleEventInstalled BundleEventType = iota + 1
	BundleEventStarting
	BundleEventStarted
	BundleEventStopping
	BundleEventStopped
	BundleEventUninstalled
)

// String returns the event type name
func (t BundleEventType) String() string {
	switch t {
	case BundleEventInstalled:
		return "INSTALLED"
	case BundleEventStarting:
		return "STARTING"
	case BundleEventStarted:
		return "STARTED"
	case BundleEventStopping:
		return "STOPPING"
	case BundleEventStopped:
		return "STOPPED"
	case BundleEventUninstalled:
		return "UNINSTALLED"
	default:
		return "UNKNOWN"
	}
}

// BundleEvent reports a bundle lifecycle transition. Origin is the
// bundle whose action caused the event (the installer for INSTALLED).
type BundleEvent struct {
	Type   BundleEventType
	Bundle *Bundle
	Origin *Bundle
}

// FrameworkEventType identifies the severity or kind of a framework
// event.
type FrameworkEventType int

// Framework event types
const (
	FrameworkEventStarted FrameworkEventType = iota + 1
	FrameworkEventError
	FrameworkEventWarning
	FrameworkEventInfo
)

// String returns the event type name
func (t FrameworkEventType) String() string {
	switch t {
	case FrameworkEventStarted:
		return "STARTED"
	case FrameworkEventError:
		return "ERROR"
	case FrameworkEventWarning:
		return "WARNING"
	case FrameworkEventInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// FrameworkEvent reports a framework-level condition, including contained
// failures from user-supplied callbacks.
type FrameworkEvent struct {
	Type    FrameworkEventType
	Bundle  *Bundle
	Message string
	Err     error
}

// ServiceListener receives service events. The opaque data supplied at
// registration is passed back on every delivery.
type ServiceListener func(event ServiceEvent, data any)

// BundleListener receives bundle events
type BundleListener func(event BundleEvent, data any)

// FrameworkListener receives framework events
type FrameworkListener func(event FrameworkEvent, data any)
