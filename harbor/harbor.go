// Package harbor implements the cross-node forwarding hook: a reserved,
// pinned service handle that messages to remote handles are rerouted to
// as opaque envelopes. Grounded on skynet_harbor.c's REMOTE_MAX pinned
// handle and "harbor id 0 is invalid" check; envelope ids use
// google/uuid, matching the teacher's id-tagging idiom elsewhere
// (eventbus subscriptions, eventlogger correlation ids).
package harbor

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrHarborDisabled  = errors.New("harbor: remote routing disabled")
	ErrInvalidHarborID = errors.New("harbor: node id 0 is not a valid harbor")
	ErrNoPinnedHook    = errors.New("harbor: no forwarder hook installed")
)

// Envelope wraps a message destined for a remote node. Id is a fresh
// correlation id assigned at forward time, independent of the session
// field, so a log line can tie an outbound envelope to the inbound
// message that produced it.
type Envelope struct {
	ID          string
	SourceNode  uint8
	DestNode    uint8
	DestHandle  uint32
	Session     int32
	Type        uint8
	Data        []byte
}

// ForwardFunc actually ships an Envelope to a remote node (the network I/O
// layer); the core only ever sees this as an opaque callback.
type ForwardFunc func(env Envelope) error

// Hook is the pinned cross-node forwarder. It is "pinned" in the sense
// that it is never retired by the registry for the lifetime of the node.
type Hook struct {
	localNode uint8
	enabled   bool
	forward   ForwardFunc
}

// New builds a Hook for localNode. enabled=false mirrors the harbor=0
// configuration key, which disables remote routing entirely.
func New(localNode uint8, enabled bool, forward ForwardFunc) (*Hook, error) {
	if enabled && localNode == 0 {
		return nil, ErrInvalidHarborID
	}
	return &Hook{localNode: localNode, enabled: enabled, forward: forward}, nil
}

// Forward routes a message to destNode/destHandle as an Envelope.
func (h *Hook) Forward(destNode uint8, destHandle uint32, session int32, msgType uint8, data []byte) error {
	if !h.enabled {
		return ErrHarborDisabled
	}
	if h.forward == nil {
		return ErrNoPinnedHook
	}
	env := Envelope{
		ID:         uuid.NewString(),
		SourceNode: h.localNode,
		DestNode:   destNode,
		DestHandle: destHandle,
		Session:    session,
		Type:       msgType,
		Data:       data,
	}
	return h.forward(env)
}

// LocalNode returns the node id this hook was built for.
func (h *Hook) LocalNode() uint8 { return h.localNode }

// Enabled reports whether remote routing is active.
func (h *Hook) Enabled() bool { return h.enabled }
