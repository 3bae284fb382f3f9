package dispatch

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveworks/hive/mailbox"
	"github.com/hiveworks/hive/registry"
)

type fakeMsg struct {
	source registry.Handle
	typ    uint8
}

func (m fakeMsg) SourceHandle() registry.Handle { return m.source }
func (m fakeMsg) SessionID() int32              { return 1 }
func (m fakeMsg) MsgType() uint8                { return m.typ }
func (m fakeMsg) Payload() []byte               { return nil }

type fakeEntry struct {
	handle   atomic.Uint32
	refs     atomic.Int32
	mb       *mailbox.Mailbox
	invoked  atomic.Int32
}

func newFakeEntry(h registry.Handle) *fakeEntry {
	e := &fakeEntry{mb: mailbox.New(mailbox.Owner(h))}
	e.handle.Store(uint32(h))
	e.refs.Store(1)
	e.mb.Pop() // drain the initial in_global pre-set, mirroring real setup
	return e
}

func (e *fakeEntry) Handle() registry.Handle { return registry.Handle(e.handle.Load()) }
func (e *fakeEntry) Retain() int32           { return e.refs.Add(1) }
func (e *fakeEntry) Release() int32          { return e.refs.Add(-1) }
func (e *fakeEntry) Mbox() *mailbox.Mailbox  { return e.mb }
func (e *fakeEntry) Invoke(msgType uint8, session int32, source registry.Handle, data []byte) bool {
	e.invoked.Add(1)
	return false
}

func setup(t *testing.T, weight int) (*Worker[*fakeEntry], *fakeEntry, *registry.Registry[*fakeEntry], *mailbox.ReadyQueue) {
	t.Helper()
	reg := registry.New[*fakeEntry](0, nil)
	e := newFakeEntry(0)
	h, err := reg.Register(e)
	require.NoError(t, err)
	e.handle.Store(uint32(h))
	e.mb = mailbox.New(mailbox.Owner(h))
	e.mb.Pop()

	ready := mailbox.NewReadyQueue()
	w := New[*fakeEntry](0, weight, reg, ready, nil, nil, nil)
	return w, e, reg, ready
}

func TestDispatch_WeightNegative_DrainsOneMessagePerTurn(t *testing.T) {
	w, e, _, ready := setup(t, -1)

	for i := 0; i < 5; i++ {
		if e.mb.Push(fakeMsg{typ: 0}) {
			ready.PushBack(e.mb)
		}
	}

	next := w.Dispatch(nil)
	require.NotNil(t, next)
	assert.EqualValues(t, 1, e.invoked.Load())
	assert.Equal(t, 4, e.mb.Length())
}

func TestDispatch_WeightZero_DrainsFullBacklog(t *testing.T) {
	w, e, _, ready := setup(t, 0)

	for i := 0; i < 5; i++ {
		if e.mb.Push(fakeMsg{typ: 0}) {
			ready.PushBack(e.mb)
		}
	}

	w.Dispatch(nil)
	assert.EqualValues(t, 5, e.invoked.Load())
	assert.Equal(t, 0, e.mb.Length())
}

func TestDispatch_ShortQueueWeightPositive_StillProcessesFirstMessage(t *testing.T) {
	w, e, _, ready := setup(t, 2)

	if e.mb.Push(fakeMsg{typ: 0}) {
		ready.PushBack(e.mb)
	}

	w.Dispatch(nil)
	assert.EqualValues(t, 1, e.invoked.Load(), "length>>weight yields 0 but the first pop must still run")
}

func TestDispatch_RetiredService_DrainsWithDropFunc(t *testing.T) {
	reg := registry.New[*fakeEntry](0, nil)
	e := newFakeEntry(0)
	h, err := reg.Register(e)
	require.NoError(t, err)
	e.handle.Store(uint32(h))
	e.mb = mailbox.New(mailbox.Owner(h))
	e.mb.Pop()
	e.mb.Push(fakeMsg{typ: 0, source: 99})

	require.NoError(t, reg.Retire(h)) // service gone, mailbox still has a message

	var dropped []registry.Handle
	ready := mailbox.NewReadyQueue()
	w := New[*fakeEntry](0, 0, reg, ready, nil, nil, func(msg Message) {
		dropped = append(dropped, msg.SourceHandle())
	})

	w.Dispatch(e.mb)
	assert.Equal(t, []registry.Handle{99}, dropped)
}

func TestDispatch_SwapsToNextWhenAvailable(t *testing.T) {
	reg := registry.New[*fakeEntry](0, nil)
	ready := mailbox.NewReadyQueue()

	e1 := newFakeEntry(0)
	h1, _ := reg.Register(e1)
	e1.handle.Store(uint32(h1))
	e1.mb = mailbox.New(mailbox.Owner(h1))
	e1.mb.Pop()
	e1.mb.Push(fakeMsg{typ: 0})

	e2 := newFakeEntry(0)
	h2, _ := reg.Register(e2)
	e2.handle.Store(uint32(h2))
	e2.mb = mailbox.New(mailbox.Owner(h2))
	e2.mb.Pop()
	e2.mb.Push(fakeMsg{typ: 0})
	ready.PushBack(e2.mb)

	w := New[*fakeEntry](0, -1, reg, ready, nil, nil, nil)
	next := w.Dispatch(e1.mb)

	assert.Same(t, e2.mb, next, "worker must move to the other ready mailbox")
}
