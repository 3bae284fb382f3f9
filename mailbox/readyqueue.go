package mailbox

import "sync"

// ReadyQueue is the global intrusive singly-linked FIFO of mailboxes that
// are non-empty and not currently being dispatched. Its own lock is held
// only for O(1) pointer work, matching the spin-lock discipline of §4.3.
type ReadyQueue struct {
	mu   sync.Mutex
	head *Mailbox
	tail *Mailbox
}

// NewReadyQueue builds an empty queue.
func NewReadyQueue() *ReadyQueue {
	return &ReadyQueue{}
}

// PushBack links mb onto the tail. mb must not already be linked.
func (q *ReadyQueue) PushBack(mb *Mailbox) {
	q.mu.Lock()
	defer q.mu.Unlock()

	mb.next = nil
	if q.tail == nil {
		q.head, q.tail = mb, mb
		return
	}
	q.tail.next = mb
	q.tail = mb
}

// PopFront unlinks and returns the head mailbox, or nil if the queue is
// empty.
func (q *ReadyQueue) PopFront() *Mailbox {
	q.mu.Lock()
	defer q.mu.Unlock()

	mb := q.head
	if mb == nil {
		return nil
	}
	q.head = mb.next
	if q.head == nil {
		q.tail = nil
	}
	mb.next = nil
	return mb
}
