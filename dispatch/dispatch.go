// Package dispatch implements the worker loop of §4.4: pop a ready
// mailbox, grab its owning context, drain a weight-dependent batch of
// messages through the context's callback, and hand the mailbox back.
//
// Grounded on the teacher's lifecycle/dispatcher.go (same "registered
// work drained by a background loop" shape, here draining ready mailboxes
// instead of a fan-out event bus) and modules/scheduler/scheduler.go's
// worker-loop idiom. A Worker is built with New; the sleep/wake loop that
// calls Dispatch lives in the root package.
package dispatch

import (
	"github.com/hiveworks/hive/mailbox"
	"github.com/hiveworks/hive/registry"
)

// Entry is the registry payload a Worker can dispatch into: a context with
// its own mailbox and a way to invoke its installed callback.
type Entry interface {
	registry.Entry
	Mbox() *mailbox.Mailbox
	Invoke(msgType uint8, session int32, source registry.Handle, data []byte) (kept bool)
}

// Message is the wire shape a Worker expects to find in a mailbox. The
// root package's Message satisfies this via its exported fields; declared
// here as an interface so this package stays independent of the root
// package's concrete type.
type Message interface {
	SourceHandle() registry.Handle
	SessionID() int32
	MsgType() uint8
	Payload() []byte
}

// DropFunc is invoked once per undelivered message when a mailbox is
// drained during release, so the caller can synthesize a PTYPE_ERROR
// response to the sender.
type DropFunc func(msg Message)

// MonitorFunc is called before and after every callback invocation,
// matching monitor.Trigger's (source, dest) signature; workerID identifies
// which worker (and therefore which monitor slot) is reporting.
type MonitorFunc func(workerID int, source, dest registry.Handle)

// OverloadFunc is called whenever Mailbox.Overload() reports a non-zero
// length after a pop.
type OverloadFunc func(owner registry.Handle, length int)

// Worker drains ready mailboxes according to its assigned weight.
type Worker[T Entry] struct {
	id       int
	weight   int
	registry *registry.Registry[T]
	ready    *mailbox.ReadyQueue

	onMonitor  MonitorFunc
	onOverload OverloadFunc
	onDrop     DropFunc
}

// New builds a Worker. weight follows §4.4's assignment table: −1
// (single message per turn), 0 (drain full queue), or 1..3 (drain
// 1/2, 1/4, 1/8 of the backlog).
func New[T Entry](id, weight int, reg *registry.Registry[T], ready *mailbox.ReadyQueue, onMonitor MonitorFunc, onOverload OverloadFunc, onDrop DropFunc) *Worker[T] {
	return &Worker[T]{
		id: id, weight: weight, registry: reg, ready: ready,
		onMonitor: onMonitor, onOverload: onOverload, onDrop: onDrop,
	}
}

// Dispatch runs one turn of the algorithm in §4.4 given the mailbox this
// worker is currently holding (nil means "I have nothing, try to pop
// one"). It returns the mailbox to work next, or nil meaning "sleep".
func (w *Worker[T]) Dispatch(current *mailbox.Mailbox) *mailbox.Mailbox {
	if current == nil {
		current = w.ready.PopFront()
		if current == nil {
			return nil
		}
	}

	owner := registry.Handle(current.Owner())
	ctx, err := w.registry.Grab(owner)
	if err != nil {
		// Service retired concurrently: drain whatever is left, erroring
		// each pending sender, and move on.
		current.MarkRelease()
		w.releaseMailbox(current, owner)
		return w.ready.PopFront()
	}
	defer ctx.Release()

	// n starts at 1 so the first message is always popped unconditionally;
	// only after that pop, for weight>=0, is n recomputed as that first
	// message plus the post-pop backlog length shifted right by weight.
	n := 1
	for i := 0; i < n; i++ {
		raw, ok := current.Pop()
		if !ok {
			return w.ready.PopFront()
		}
		if i == 0 && w.weight >= 0 {
			n = 1 + (current.Length() >> uint(w.weight))
		}
		msg := raw.(Message)

		if overload := current.Overload(); overload != 0 && w.onOverload != nil {
			w.onOverload(owner, overload)
		}

		if w.onMonitor != nil {
			w.onMonitor(w.id, msg.SourceHandle(), owner)
		}
		ctx.Invoke(msg.MsgType(), msg.SessionID(), msg.SourceHandle(), msg.Payload())
		if w.onMonitor != nil {
			w.onMonitor(w.id, 0, 0)
		}
	}

	next := w.ready.PopFront()
	if next != nil {
		w.ready.PushBack(current)
		return next
	}
	return current
}

// releaseMailbox drains a mailbox whose owning context is gone, reporting
// each dropped message via onDrop.
func (w *Worker[T]) releaseMailbox(mb *mailbox.Mailbox, owner registry.Handle) {
	if w.onDrop == nil {
		mb.Drain(func(mailbox.Message) {})
		return
	}
	mb.Drain(func(raw mailbox.Message) {
		if msg, ok := raw.(Message); ok {
			w.onDrop(msg)
		}
	})
}
