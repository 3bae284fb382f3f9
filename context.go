package hive

import (
	"sync"
	"sync/atomic"

	"github.com/hiveworks/hive/mailbox"
)

// CallbackFunc is the sole function invoked per received message, once a
// service has installed one via Context.SetCallback. Returning false tells
// the runtime the callback did not take ownership of data (a no-op in Go,
// since the garbage collector reclaims it regardless; the return value is
// kept for behavioral parity with the original ownership-transfer
// protocol and is observable from tests).
type CallbackFunc func(ctx *Context, ud any, msgType uint8, session int32, source Handle, data []byte) (kept bool)

// Context is one service: a module instance plus its mailbox, callback,
// and bookkeeping fields, per §3. It implements registry.Entry so it can
// be stored directly in a *registry.Registry[*Context].
type Context struct {
	handle atomic.Uint32

	module *Module
	inst   Instance

	mailbox *mailbox.Mailbox

	cbMu sync.RWMutex
	cb   CallbackFunc
	ud   any

	session atomic.Int32

	ref atomic.Int32

	initDone atomic.Bool
	endless  atomic.Bool
	profile  atomic.Bool

	cpuTicks atomic.Int64

	logger Logger
}

// newContext builds a Context with ref=2, matching the double-count
// startup dance preserved from the design: one ref for the registry slot,
// one held until init succeeds or fails (see §9 Open Question).
func newContext(mod *Module, inst Instance, mb *mailbox.Mailbox, logger Logger) *Context {
	c := &Context{module: mod, inst: inst, mailbox: mb, logger: logger}
	c.ref.Store(2)
	if logger == nil {
		c.logger = NoopLogger()
	}
	return c
}

// Handle returns this context's assigned handle (0 until the registry has
// assigned one).
func (c *Context) Handle() Handle { return Handle(c.handle.Load()) }

// setHandle is called once, immediately after Registry.Register returns.
func (c *Context) setHandle(h Handle) { c.handle.Store(uint32(h)) }

// Retain increments the ref count and returns its new value.
func (c *Context) Retain() int32 { return c.ref.Add(1) }

// Release decrements the ref count and returns its new value. Callers
// (normally the registry) are responsible for invoking the module's
// release hook when this reaches zero.
func (c *Context) Release() int32 { return c.ref.Add(-1) }

// RefCount returns the current ref count, for diagnostics and tests.
func (c *Context) RefCount() int32 { return c.ref.Load() }

// SetCallback installs the handler invoked for every subsequent message.
// Safe to call at any time; the dispatcher reads it with the same lock.
func (c *Context) SetCallback(cb CallbackFunc, ud any) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.cb = cb
	c.ud = ud
}

func (c *Context) callback() (CallbackFunc, any) {
	c.cbMu.RLock()
	defer c.cbMu.RUnlock()
	return c.cb, c.ud
}

// NextSession allocates a fresh positive session id, wrapping to 1 on
// overflow (0 is never returned, so a session id is always truthy).
func (c *Context) NextSession() int32 {
	for {
		v := c.session.Add(1)
		if v > 0 {
			return v
		}
		// wrapped past int32 max; reset and try again
		c.session.Store(0)
	}
}

// Endless reports whether the monitor has flagged this service as stuck.
func (c *Context) Endless() bool { return c.endless.Load() }

// SetEndless is called by the monitor's callback.
func (c *Context) SetEndless(v bool) { c.endless.Store(v) }

// Profile reports whether per-message cpu accounting is enabled.
func (c *Context) Profile() bool { return c.profile.Load() }

// SetProfile toggles cpu accounting.
func (c *Context) SetProfile(v bool) { c.profile.Store(v) }

// AddCPUTicks accumulates cpu usage, in arbitrary ticks, for STAT cpu.
func (c *Context) AddCPUTicks(d int64) { c.cpuTicks.Add(d) }

// CPUTicks returns the accumulated cpu usage.
func (c *Context) CPUTicks() int64 { return c.cpuTicks.Load() }

// Mailbox returns this context's owned mailbox.
func (c *Context) Mailbox() *mailbox.Mailbox { return c.mailbox }

// Logger returns the per-service log sink (never nil).
func (c *Context) Logger() Logger { return c.logger }

// SetLogger installs a new per-service log sink (LOGON/LOGOFF).
func (c *Context) SetLogger(l Logger) {
	if l == nil {
		l = NoopLogger()
	}
	c.logger = l
}

// Module returns the module vtable this context was created from.
func (c *Context) Module() *Module { return c.module }

// Instance returns the opaque module instance.
func (c *Context) Instance() Instance { return c.inst }

// markInit records that init() completed, successfully or not.
func (c *Context) markInit() { c.initDone.Store(true) }

// Initialized reports whether init() has run.
func (c *Context) Initialized() bool { return c.initDone.Load() }

// Mbox satisfies dispatch.Entry, exposing the owned mailbox under the
// short name the dispatcher package expects.
func (c *Context) Mbox() *mailbox.Mailbox { return c.mailbox }

// Invoke calls the installed callback, if any, and reports whether it kept
// ownership of data. A context with no callback installed yet silently
// drops the message (mirrors the original's "ctx->cb == NULL: free data"
// branch, ownership being moot under GC).
func (c *Context) Invoke(msgType uint8, session int32, source Handle, data []byte) bool {
	cb, ud := c.callback()
	if cb == nil {
		return false
	}
	return cb(c, ud, msgType, session, source, data)
}
