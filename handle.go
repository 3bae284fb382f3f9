package hive

import "github.com/hiveworks/hive/registry"

// Handle identifies a service; see registry.Handle for the bit layout.
type Handle = registry.Handle

const (
	HandleBits = registry.HandleBits
	HandleMask = registry.HandleMask
	RemoteMax  = registry.RemoteMax
)

// WithNode ORs node-id bits into a local sequence, producing a full handle.
func WithNode(node uint8, seq uint32) Handle {
	return registry.WithNode(node, seq)
}
