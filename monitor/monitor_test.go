package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollOnce_FlagsStuckSlot(t *testing.T) {
	var reported []Handle
	m := New(1, func(source, dest Handle) { reported = append(reported, dest) })

	m.Trigger(0, 10, 20) // handler started, never finishes this poll period
	m.pollOnce()         // first poll establishes the baseline checkVersion
	m.pollOnce()         // version unchanged since baseline -> stuck

	require.Len(t, reported, 1)
	assert.EqualValues(t, 20, reported[0])
	assert.True(t, m.IsEndless(20))
}

func TestPollOnce_ClearsOnceHandlerReturns(t *testing.T) {
	m := New(1, nil)

	m.Trigger(0, 10, 20)
	m.pollOnce()
	m.pollOnce() // now flagged endless

	m.Trigger(0, 0, 0) // handler returned
	m.pollOnce()

	assert.False(t, m.IsEndless(20))
}

func TestPollOnce_DoesNotReportTwiceWhileStillStuck(t *testing.T) {
	calls := 0
	m := New(1, func(source, dest Handle) { calls++ })

	m.Trigger(0, 10, 20)
	m.pollOnce()
	m.pollOnce()
	m.pollOnce()

	assert.Equal(t, 1, calls)
}
