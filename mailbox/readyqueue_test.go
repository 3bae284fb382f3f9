package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadyQueue_FIFOOrder(t *testing.T) {
	q := NewReadyQueue()
	a, b, c := New(1), New(2), New(3)

	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)

	assert.Same(t, a, q.PopFront())
	assert.Same(t, b, q.PopFront())
	assert.Same(t, c, q.PopFront())
	assert.Nil(t, q.PopFront())
}

func TestReadyQueue_PopFrontClearsNext(t *testing.T) {
	q := NewReadyQueue()
	a, b := New(1), New(2)
	q.PushBack(a)
	q.PushBack(b)

	popped := q.PopFront()
	assert.Nil(t, popped.next)
}
