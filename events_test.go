package hive

import (
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEmitterDeliversToAllSubscribers(t *testing.T) {
	e := NewEventEmitter()
	var got []cloudevents.Event
	e.Subscribe(func(evt cloudevents.Event) { got = append(got, evt) })

	e.Emit(EventModuleLoaded, LifecyclePayload{Subject: "module", Name: "logger"})

	require.Len(t, got, 1)
	assert.Equal(t, EventModuleLoaded, got[0].Type())
	assert.Equal(t, cloudevents.VersionV1, got[0].SpecVersion())
}

func TestEventEmitterFiltersByType(t *testing.T) {
	e := NewEventEmitter()
	var got []string
	e.Subscribe(func(evt cloudevents.Event) { got = append(got, evt.Type()) }, EventServiceRetired)

	e.Emit(EventModuleLoaded, LifecyclePayload{Subject: "module"})
	e.Emit(EventServiceRetired, LifecyclePayload{Subject: "service"})

	assert.Equal(t, []string{EventServiceRetired}, got)
}

func TestEventEmitterUnsubscribeStopsDelivery(t *testing.T) {
	e := NewEventEmitter()
	count := 0
	unsub := e.Subscribe(func(evt cloudevents.Event) { count++ })

	e.Emit(EventModuleLoaded, LifecyclePayload{})
	unsub()
	e.Emit(EventModuleLoaded, LifecyclePayload{})

	assert.Equal(t, 1, count)
}

func TestNodeEmitsLifecycleEvents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bootstrap = "" // no bootstrap module is registered in this test
	n := New(cfg, nil, nil)
	require.NoError(t, n.Run(nil))
	defer func() {
		n.Registry().RetireAll()
		n.Shutdown()
	}()

	var types []string
	n.Events().Subscribe(func(evt cloudevents.Event) { types = append(types, evt.Type()) })

	mod := &Module{
		Name: "greeter",
		Init: func(inst Instance, ctx *Context, param string) error {
			ctx.SetCallback(func(c *Context, ud any, msgType uint8, session int32, source Handle, data []byte) bool {
				return false
			}, nil)
			return nil
		},
	}
	require.NoError(t, n.RegisterModule(mod))
	h, _, err := n.Launch("greeter")
	require.NoError(t, err)
	require.NoError(t, n.Registry().Retire(h))

	assert.Contains(t, types, EventModuleLoaded)
	assert.Contains(t, types, EventServiceLaunched)
	assert.Eventually(t, func() bool {
		for _, ty := range types {
			if ty == EventServiceRetired {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
