// Package node holds end-to-end tests that exercise the registry,
// mailbox, dispatch, wheel, monitor, harbor, and command surface
// together through the public Node API, rather than any one package in
// isolation.
package node

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveworks/hive"
)

func pingModule(onPong chan<- string) *hive.Module {
	return &hive.Module{
		Name: "ping",
		Init: func(inst hive.Instance, ctx *hive.Context, param string) error {
			ctx.SetCallback(func(c *hive.Context, ud any, msgType uint8, session int32, source hive.Handle, data []byte) bool {
				onPong <- string(data)
				return false
			}, nil)
			return nil
		},
	}
}

func pongModule(n *hive.Node) *hive.Module {
	return &hive.Module{
		Name: "pong",
		Init: func(inst hive.Instance, ctx *hive.Context, param string) error {
			ctx.SetCallback(func(c *hive.Context, ud any, msgType uint8, session int32, source hive.Handle, data []byte) bool {
				_, _ = n.Send(ctx.Handle(), source, hive.PTypeText, session, []byte("pong"), 0)
				return false
			}, nil)
			return nil
		},
	}
}

func newTestNode(t *testing.T) *hive.Node {
	t.Helper()
	cfg := hive.DefaultConfig()
	cfg.Bootstrap = "" // no bootstrap module is registered in these tests
	n := hive.New(cfg, nil, nil)
	require.NoError(t, n.Run(nil))
	t.Cleanup(func() {
		n.Registry().RetireAll()
		n.Shutdown()
	})
	return n
}

func TestPingPongRoundTrip(t *testing.T) {
	n := newTestNode(t)

	onPong := make(chan string, 1)
	require.NoError(t, n.RegisterModule(pingModule(onPong)))
	require.NoError(t, n.RegisterModule(pongModule(n)))

	pingHandle, _, err := n.Launch("ping")
	require.NoError(t, err)
	pongHandle, _, err := n.Launch("pong")
	require.NoError(t, err)

	_, err = n.Send(pingHandle, pongHandle, hive.PTypeText, 1, []byte("ping"), 0)
	require.NoError(t, err)

	select {
	case got := <-onPong:
		assert.Equal(t, "pong", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pong reply")
	}
}

func TestTimeoutDeliversResponse(t *testing.T) {
	n := newTestNode(t)

	var wg sync.WaitGroup
	wg.Add(1)
	var gotResponse bool
	mod := &hive.Module{
		Name: "waiter",
		Init: func(inst hive.Instance, ctx *hive.Context, param string) error {
			ctx.SetCallback(func(c *hive.Context, ud any, msgType uint8, session int32, source hive.Handle, data []byte) bool {
				if msgType == hive.PTypeResponse {
					gotResponse = true
					wg.Done()
				}
				return false
			}, nil)
			return nil
		},
	}
	require.NoError(t, n.RegisterModule(mod))
	h, ctx, err := n.Launch("waiter")
	require.NoError(t, err)
	_ = h

	_, err = n.Command(ctx, "TIMEOUT", "1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		assert.True(t, gotResponse)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TIMEOUT response")
	}
}

func TestRetireRacesWithInFlightSend(t *testing.T) {
	n := newTestNode(t)

	mod := &hive.Module{
		Name: "ephemeral",
		Init: func(inst hive.Instance, ctx *hive.Context, param string) error {
			ctx.SetCallback(func(c *hive.Context, ud any, msgType uint8, session int32, source hive.Handle, data []byte) bool {
				return false
			}, nil)
			return nil
		},
	}
	require.NoError(t, n.RegisterModule(mod))

	h, ctx, err := n.Launch("ephemeral")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = n.Send(0, h, hive.PTypeText, 0, []byte("x"), 0)
		}()
	}
	require.NoError(t, n.Registry().Retire(h))
	wg.Wait()
	_ = ctx
}

func TestDuplicateNameRegistrationFails(t *testing.T) {
	n := newTestNode(t)

	mod := &hive.Module{
		Name: "named",
		Init: func(inst hive.Instance, ctx *hive.Context, param string) error {
			ctx.SetCallback(func(c *hive.Context, ud any, msgType uint8, session int32, source hive.Handle, data []byte) bool {
				return false
			}, nil)
			return nil
		},
	}
	require.NoError(t, n.RegisterModule(mod))

	_, ctxA, err := n.Launch("named")
	require.NoError(t, err)
	_, ctxB, err := n.Launch("named")
	require.NoError(t, err)

	_, err = n.Command(ctxA, "REG", ".svc")
	require.NoError(t, err)

	_, err = n.Command(ctxB, "REG", ".svc")
	assert.ErrorIs(t, err, hive.ErrNameConflict)
}

func TestEndlessLoopIsFlagged(t *testing.T) {
	n := newTestNode(t)

	unblock := make(chan struct{})
	mod := &hive.Module{
		Name: "stuck",
		Init: func(inst hive.Instance, ctx *hive.Context, param string) error {
			ctx.SetCallback(func(c *hive.Context, ud any, msgType uint8, session int32, source hive.Handle, data []byte) bool {
				<-unblock
				return false
			}, nil)
			return nil
		},
	}
	require.NoError(t, n.RegisterModule(mod))
	h, ctx, err := n.Launch("stuck")
	require.NoError(t, err)

	_, err = n.Send(0, h, hive.PTypeText, 0, []byte("go"), 0)
	require.NoError(t, err)

	// the monitor polls every 5s: the first poll after the handler starts
	// records its version, the next one sees it unchanged and flags it
	assert.Eventually(t, func() bool {
		return ctx.Endless()
	}, 11*time.Second, 50*time.Millisecond)

	close(unblock)
}
