// Package microservices provides an in-process service-oriented
// component framework: bundles publish capability objects under named
// interfaces, discover one another through attribute-filtered registry
// queries, and observe lifecycle changes through listeners.
//
// # Architecture
//
// The module is organised into focused packages:
//
//   - framework: the core runtime — service registry, service entries
//     and scopes, references and registrations, acquisition guards,
//     listener dispatch, bundles and bundle contexts
//   - filter: LDAP-style filter expressions over attribute maps
//   - types: the Any/AnyMap attribute value types
//   - errors: classified error handling shared by all packages
//   - metric: Prometheus instrumentation and the exposition server
//   - natsbridge: republishes framework events to NATS for remote
//     diagnostics
//   - config: layered JSON configuration with environment overrides
//   - cmd/microfwk: the host binary wiring all of the above together
//
// # Quick start
//
//	fwk := framework.New(framework.WithLogger(logger))
//	if err := fwk.Start(); err != nil {
//	    return err
//	}
//	defer fwk.Stop()
//
//	ctx := fwk.Context()
//	ifmap, _ := framework.SingleInterfaceMap("com.example.Greeter", &impl{})
//	reg, err := ctx.RegisterService(ifmap, types.AnyMap{"lang": "en"})
//	if err != nil {
//	    return err
//	}
//	defer reg.Unregister()
//
//	ref, _ := ctx.GetServiceReference("com.example.Greeter")
//	guard, err := ctx.GetService(ref)
//	if err != nil {
//	    return err
//	}
//	defer guard.Close()
//	greeter := guard.Object().(*impl)
//
// Service consumption is guard-based: the guard returned by GetService
// owns the acquisition, and closing it is the only release path.
package microservices
