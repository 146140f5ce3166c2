package framework

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xru192/CppMicroServices/errors"
	"github.com/xru192/CppMicroServices/types"
)

// testSink keeps framework diagnostics out of test output
func testSink() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFramework(t *testing.T, opts ...Option) *Framework {
	t.Helper()
	opts = append([]Option{WithLogger(testSink())}, opts...)
	f := New(opts...)
	require.NoError(t, f.Start())
	t.Cleanup(func() { _ = f.Stop() })
	return f
}

func startedBundle(t *testing.T, f *Framework, location string) *Bundle {
	t.Helper()
	b, err := f.InstallBundle(location, types.AnyMap{manifestSymbolicName: location})
	require.NoError(t, err)
	require.NoError(t, b.Start())
	return b
}

type greeter struct {
	name string
}

func (g *greeter) Greet() string {
	return "hello from " + g.name
}

func mustInterfaceMap(t *testing.T, name string, obj any) *InterfaceMap {
	t.Helper()
	m, err := SingleInterfaceMap(name, obj)
	require.NoError(t, err)
	return m
}

func TestRegisterServiceAssignsFrameworkProperties(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	reg, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "a"}),
		types.AnyMap{"color": "red", ServiceRanking: 7})
	require.NoError(t, err)

	props := reg.Reference().Properties()
	assert.Equal(t, "red", props.GetString("color", ""))
	assert.Equal(t, 7, props.GetInt(ServiceRanking, -1))
	assert.Equal(t, ScopeSingleton, props.GetString(ServiceScope, ""))
	assert.Equal(t, []string{"com.example.Greeter"}, props[ObjectClass])
	assert.Positive(t, props.GetInt(ServiceID, 0))
}

func TestRegisterServiceRejectsReservedKeys(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	reg, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "a"}),
		types.AnyMap{ServiceID: int64(9999), ServiceScope: ScopePrototype})
	require.NoError(t, err)

	props := reg.Reference().Properties()
	// Framework-assigned keys cannot be spoofed by the registrar
	assert.NotEqual(t, 9999, props.GetInt(ServiceID, 0))
	assert.Equal(t, ScopeSingleton, props.GetString(ServiceScope, ""))
}

func TestServiceIDsAreMonotone(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var last int64
	for i := 0; i < 5; i++ {
		reg, err := ctx.RegisterService(
			mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "x"}), nil)
		require.NoError(t, err)

		id := reg.Reference().ID()
		assert.Greater(t, id, last)
		last = id
	}
}

func TestRegisterServiceInvalidArguments(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	_, err := ctx.RegisterService(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = NewInterfaceMap(
		InterfaceEntry{Name: "com.example.Greeter", Object: &greeter{}},
		InterfaceEntry{Name: "com.example.Greeter", Object: &greeter{}},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateInterface)

	_, err = ctx.RegisterServiceFactory(nil, []string{"com.example.Greeter"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestGetServiceReferenceRankingTieBreak(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	first, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "first"}),
		types.AnyMap{ServiceRanking: 5})
	require.NoError(t, err)

	_, err = ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "second"}),
		types.AnyMap{ServiceRanking: 5})
	require.NoError(t, err)

	ref, err := ctx.GetServiceReference("com.example.Greeter")
	require.NoError(t, err)
	require.False(t, ref.IsNil())

	// Equal ranking: the lower service.id wins
	assert.True(t, ref.Equal(first.Reference()))
}

func TestGetServiceReferencesOrdering(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	low, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "low"}),
		types.AnyMap{ServiceRanking: -3})
	require.NoError(t, err)
	high, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "high"}),
		types.AnyMap{ServiceRanking: 10})
	require.NoError(t, err)
	mid, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "mid"}), nil)
	require.NoError(t, err)

	refs, err := ctx.GetServiceReferences("com.example.Greeter", "")
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.True(t, refs[0].Equal(high.Reference()))
	assert.True(t, refs[1].Equal(mid.Reference()))
	assert.True(t, refs[2].Equal(low.Reference()))
}

func TestGetServiceReferencesFiltered(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	red, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "red"}),
		types.AnyMap{"color": "red"})
	require.NoError(t, err)
	_, err = ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "blue"}),
		types.AnyMap{"color": "blue"})
	require.NoError(t, err)

	refs, err := ctx.GetServiceReferences("com.example.Greeter", "(color=red)")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.True(t, refs[0].Equal(red.Reference()))

	// Malformed filter surfaces a parse error
	_, err = ctx.GetServiceReferences("com.example.Greeter", "(color=")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFilterParse)
}

func TestGetServiceReferencesAcrossInterfaces(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	multi, err := NewInterfaceMap(
		InterfaceEntry{Name: "com.example.Greeter", Object: &greeter{name: "m"}},
		InterfaceEntry{Name: "com.example.Closer", Object: &greeter{name: "m"}},
	)
	require.NoError(t, err)

	reg, err := ctx.RegisterService(multi, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example.Greeter", "com.example.Closer"},
		reg.Reference().Properties()[ObjectClass])

	byCloser, err := ctx.GetServiceReferences("com.example.Closer", "")
	require.NoError(t, err)
	require.Len(t, byCloser, 1)

	// "" queries all entries regardless of interface
	all, err := ctx.GetServiceReferences("", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUnregisteredServiceHiddenFromQueries(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	reg, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "a"}), nil)
	require.NoError(t, err)

	ref, err := ctx.GetServiceReference("com.example.Greeter")
	require.NoError(t, err)
	require.False(t, ref.IsNil())

	require.NoError(t, reg.Unregister())

	ref, err = ctx.GetServiceReference("com.example.Greeter")
	require.NoError(t, err)
	assert.True(t, ref.IsNil())

	// The reference stays syntactically valid but dereferences fail
	stale := reg.Reference()
	assert.False(t, stale.IsNil())
	assert.False(t, stale.IsValid())
	assert.Nil(t, stale.Bundle())

	// Double unregistration is rejected
	err = reg.Unregister()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrServiceUnregistered)
}

func TestRegisterUnregisterRoundTrip(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	before := f.core.services.size()

	reg, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "a"}), nil)
	require.NoError(t, err)
	require.NoError(t, reg.Unregister())

	// With no outstanding uses the registry returns to its prior state
	assert.Equal(t, before, f.core.services.size())
}

func TestFindHookMasksCandidates(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	_, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "visible"}),
		types.AnyMap{"hidden": false})
	require.NoError(t, err)
	_, err = ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "masked"}),
		types.AnyMap{"hidden": true})
	require.NoError(t, err)

	token := f.AddFindHook(func(_ *Bundle, _ string, refs []ServiceReference) []ServiceReference {
		out := refs[:0]
		for _, ref := range refs {
			if !ref.Properties().GetBool("hidden", false) {
				out = append(out, ref)
			}
		}
		return out
	})

	refs, err := ctx.GetServiceReferences("com.example.Greeter", "")
	require.NoError(t, err)
	assert.Len(t, refs, 1)

	// GetAllServiceReferences bypasses find hooks
	all, err := ctx.GetAllServiceReferences("com.example.Greeter", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	f.RemoveHook(token)
	refs, err = ctx.GetServiceReferences("com.example.Greeter", "")
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestStoppingBundleUnregistersItsServices(t *testing.T) {
	f := newTestFramework(t)
	producer := startedBundle(t, f, "bundle://producer")

	_, err := producer.Context().RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "owned"}), nil)
	require.NoError(t, err)

	refs, err := f.Context().GetServiceReferences("com.example.Greeter", "")
	require.NoError(t, err)
	require.Len(t, refs, 1)

	require.NoError(t, producer.Stop())

	refs, err = f.Context().GetServiceReferences("com.example.Greeter", "")
	require.NoError(t, err)
	assert.Empty(t, refs)
}
