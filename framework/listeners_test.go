package framework

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xru192/CppMicroServices/types"
)

func TestServiceListenerReceivesLifecycleEvents(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var events []ServiceEventType
	_, err := ctx.AddServiceListener(func(ev ServiceEvent, _ any) {
		events = append(events, ev.Type)
	}, nil, "")
	require.NoError(t, err)

	reg, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "a"}), nil)
	require.NoError(t, err)
	require.NoError(t, reg.SetProperties(types.AnyMap{"color": "red"}))
	require.NoError(t, reg.Unregister())

	assert.Equal(t, []ServiceEventType{
		ServiceEventRegistered,
		ServiceEventModified,
		ServiceEventUnregistering,
	}, events)
}

func TestServiceListenerFilterGating(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var matched int
	_, err := ctx.AddServiceListener(func(ServiceEvent, any) {
		matched++
	}, nil, "(color=red)")
	require.NoError(t, err)

	_, err = ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "blue"}),
		types.AnyMap{"color": "blue"})
	require.NoError(t, err)
	assert.Equal(t, 0, matched)

	_, err = ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "red"}),
		types.AnyMap{"color": "red"})
	require.NoError(t, err)
	assert.Equal(t, 1, matched)
}

func TestModifiedEndmatchEvent(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var events []ServiceEventType
	_, err := ctx.AddServiceListener(func(ev ServiceEvent, _ any) {
		events = append(events, ev.Type)
	}, nil, "(color=red)")
	require.NoError(t, err)

	reg, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "s"}),
		types.AnyMap{"color": "red"})
	require.NoError(t, err)

	// Still matching: plain MODIFIED
	require.NoError(t, reg.SetProperties(types.AnyMap{"color": "red", "size": 2}))

	// Filter matched the old but not the new properties: ENDMATCH
	require.NoError(t, reg.SetProperties(types.AnyMap{"color": "blue"}))

	// No longer matching either way: nothing delivered
	require.NoError(t, reg.SetProperties(types.AnyMap{"color": "green"}))

	assert.Equal(t, []ServiceEventType{
		ServiceEventRegistered,
		ServiceEventModified,
		ServiceEventModifiedEndmatch,
	}, events)
}

func TestModifiedExposesPreviousProperties(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var oldColor, newColor string
	_, err := ctx.AddServiceListener(func(ev ServiceEvent, _ any) {
		if ev.Type != ServiceEventModified {
			return
		}
		oldColor = ev.Reference.PreviousProperties().GetString("color", "")
		newColor = ev.Reference.Properties().GetString("color", "")
	}, nil, "")
	require.NoError(t, err)

	reg, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "s"}),
		types.AnyMap{"color": "red"})
	require.NoError(t, err)
	require.NoError(t, reg.SetProperties(types.AnyMap{"color": "blue"}))

	assert.Equal(t, "red", oldColor)
	assert.Equal(t, "blue", newColor)

	// The previous snapshot is defined only during dispatch
	assert.Nil(t, reg.Reference().PreviousProperties())
}

func TestSetPropertiesPreservesFrameworkKeys(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	reg, err := ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "s"}),
		types.AnyMap{"color": "red"})
	require.NoError(t, err)

	id := reg.Reference().ID()
	require.NoError(t, reg.SetProperties(types.AnyMap{
		"size":     3,
		ServiceID:  int64(4242),
		ObjectClass: []string{"com.example.Spoofed"},
	}))

	props := reg.Reference().Properties()
	assert.Equal(t, id, int64(props.GetInt(ServiceID, -1)))
	assert.Equal(t, []string{"com.example.Greeter"}, props[ObjectClass])
	assert.Equal(t, 3, props.GetInt("size", -1))
	// Replaced wholesale: the old non-reserved key is gone
	assert.Equal(t, "", props.GetString("color", ""))
}

func TestListenerTokenRemoval(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var calls int
	token, err := ctx.AddServiceListener(func(ServiceEvent, any) {
		calls++
	}, nil, "")
	require.NoError(t, err)
	assert.False(t, token.IsZero())

	require.NoError(t, ctx.RemoveListener(token))

	_, err = ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "s"}), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	// Removing an unknown token is a no-op
	assert.NoError(t, ctx.RemoveListener(token))
	assert.NoError(t, ctx.RemoveListener(ListenerToken{}))
}

func TestListenerRemovalByCallbackAndData(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var calls []string
	listener := func(_ ServiceEvent, data any) {
		calls = append(calls, data.(string))
	}

	_, err := ctx.AddServiceListener(listener, "one", "")
	require.NoError(t, err)
	_, err = ctx.AddServiceListener(listener, "two", "")
	require.NoError(t, err)

	// Only the ("one") entry is removed; ("two") stays
	require.NoError(t, ctx.RemoveServiceListener(listener, "one"))

	_, err = ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "s"}), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"two"}, calls)
}

func TestReaddingListenerReplacesEntry(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var calls int
	listener := func(ServiceEvent, any) { calls++ }

	_, err := ctx.AddServiceListener(listener, nil, "")
	require.NoError(t, err)
	_, err = ctx.AddServiceListener(listener, nil, "")
	require.NoError(t, err)

	_, err = ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "s"}), nil)
	require.NoError(t, err)

	// One delivery, not two: the second Add replaced the first
	assert.Equal(t, 1, calls)
}

func TestListenerPanicIsContained(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var errorEvents int
	_, err := ctx.AddFrameworkListener(func(ev FrameworkEvent, _ any) {
		if ev.Type == FrameworkEventError {
			errorEvents++
		}
	}, nil)
	require.NoError(t, err)

	_, err = ctx.AddServiceListener(func(ServiceEvent, any) {
		panic("listener bug")
	}, nil, "")
	require.NoError(t, err)

	var survivorCalls int
	_, err = ctx.AddServiceListener(func(ServiceEvent, any) {
		survivorCalls++
	}, nil, "")
	require.NoError(t, err)

	_, err = ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "s"}), nil)
	require.NoError(t, err)

	// The panic was reported and did not interrupt dispatch
	assert.Equal(t, 1, errorEvents)
	assert.Equal(t, 1, survivorCalls)
}

func TestListenerMayRemoveItselfDuringDispatch(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var calls int
	var token ListenerToken
	var err error
	token, err = ctx.AddServiceListener(func(ServiceEvent, any) {
		calls++
		_ = ctx.RemoveListener(token)
	}, nil, "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = ctx.RegisterService(
			mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "s"}), nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, calls)
}

func TestListenerReentrancy(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var reentrantRefs int
	_, err := ctx.AddServiceListener(func(ev ServiceEvent, _ any) {
		if ev.Type != ServiceEventRegistered {
			return
		}
		// Re-entering the registry from a callback is supported
		refs, err := ctx.GetServiceReferences("com.example.Greeter", "")
		if err == nil {
			reentrantRefs = len(refs)
		}
	}, nil, "")
	require.NoError(t, err)

	_, err = ctx.RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "s"}), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, reentrantRefs)
}

func TestBundleListenerObservesLifecycle(t *testing.T) {
	f := newTestFramework(t)
	ctx := f.Context()

	var events []BundleEventType
	_, err := ctx.AddBundleListener(func(ev BundleEvent, _ any) {
		events = append(events, ev.Type)
	}, nil)
	require.NoError(t, err)

	b, err := f.InstallBundle("bundle://observed", nil)
	require.NoError(t, err)
	require.NoError(t, b.Start())
	require.NoError(t, b.Stop())
	require.NoError(t, b.Uninstall())

	assert.Equal(t, []BundleEventType{
		BundleEventInstalled,
		BundleEventStarting,
		BundleEventStarted,
		BundleEventStopping,
		BundleEventStopped,
		BundleEventUninstalled,
	}, events)
}

func TestEventHookMasksRecipients(t *testing.T) {
	f := newTestFramework(t)
	observer := startedBundle(t, f, "bundle://observer")

	var calls int
	_, err := observer.Context().AddServiceListener(func(ServiceEvent, any) {
		calls++
	}, nil, "")
	require.NoError(t, err)

	// Mask every recipient
	token := f.AddEventHook(func(_ ServiceEvent, _ []*BundleContext) []*BundleContext {
		return nil
	})

	_, err = f.Context().RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "masked"}), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	f.RemoveHook(token)

	_, err = f.Context().RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "seen"}), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestStoppedBundleListenersAreDropped(t *testing.T) {
	f := newTestFramework(t)
	observer := startedBundle(t, f, "bundle://observer")

	var calls int
	_, err := observer.Context().AddServiceListener(func(ServiceEvent, any) {
		calls++
	}, nil, "")
	require.NoError(t, err)

	require.NoError(t, observer.Stop())

	_, err = f.Context().RegisterService(
		mustInterfaceMap(t, "com.example.Greeter", &greeter{name: "late"}), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, calls)
}
