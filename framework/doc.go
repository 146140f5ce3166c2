// Package framework implements the in-process service registry and bundle
// context runtime.
//
// Bundles publish capability objects ("services") under one or more named
// interfaces, discover services offered by others through attribute-based
// queries, and observe lifecycle changes through listeners. The framework
// mediates all publication, discovery, and consumption with correct
// lifetimes and ordering under concurrent access.
//
// # Architecture
//
// A Framework owns one core context shared by all bundles:
//
//   - the service registry: indexed storage of service entries, LDAP
//     filter matching, and ranking-based selection
//   - the listener registry: filtered subscriber tables for service,
//     bundle, and framework events
//   - the bundle registry: installed bundles keyed by id and location
//   - the framework properties map, seeded at boot and read-only to
//     bundle contexts
//
// Each bundle interacts with the framework through its BundleContext, a
// validity-gated facade created when the bundle starts and invalidated
// when it stops. Service acquisition returns a ServiceGuard whose Close
// is the sole release path; guards are idempotent and safe to close from
// any goroutine.
//
// # Service scopes
//
// A service is registered with one of three scopes:
//
//   - singleton: one shared instance for all consumers
//   - bundle: one instance per consuming bundle, produced by a
//     ServiceFactory
//   - prototype: one instance per acquisition, produced by a
//     PrototypeServiceFactory
//
// The scope is assigned by the framework from the registration form used
// and is immutable for the life of the registration.
//
// # Concurrency
//
// Any goroutine may call any public operation at any time. Event dispatch
// is synchronous on the goroutine that caused the event; listener and
// factory callbacks are always invoked with no framework lock held, so
// callbacks may re-enter the framework freely.
package framework
