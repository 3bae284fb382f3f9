package harbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsNodeZeroWhenEnabled(t *testing.T) {
	_, err := New(0, true, nil)
	assert.ErrorIs(t, err, ErrInvalidHarborID)
}

func TestForward_DisabledReturnsError(t *testing.T) {
	h, err := New(1, false, nil)
	require.NoError(t, err)

	err = h.Forward(2, 5, 1, 0, nil)
	assert.ErrorIs(t, err, ErrHarborDisabled)
}

func TestForward_InvokesForwardFuncWithEnvelope(t *testing.T) {
	var got Envelope
	h, err := New(1, true, func(env Envelope) error {
		got = env
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, h.Forward(2, 42, 7, 5, []byte("hi")))
	assert.Equal(t, uint8(1), got.SourceNode)
	assert.Equal(t, uint8(2), got.DestNode)
	assert.EqualValues(t, 42, got.DestHandle)
	assert.NotEmpty(t, got.ID)
}
