// Package registry implements the handle table: allocation of 32-bit
// service handles, handle→entry lookup under a reader-writer lock, and a
// sorted name-binding table, following §4.1 of the runtime design.
//
// Grounded on the teacher's registry/registry.go (sync.RWMutex-guarded
// Register/Unregister/Resolve* shape), rebuilt here as a slot array with
// linear probing and a binary-searched name slice instead of a Go map, to
// match the handle-table semantics the design calls for.
package registry

// Handle identifies a service. The high 8 bits are the node id ("harbor");
// the low 24 bits are a per-node monotonic sequence. Handle 0 is reserved.
type Handle uint32

const (
	HandleBits = 24
	HandleMask = 1<<HandleBits - 1
	RemoteMax  = HandleMask
)

func (h Handle) NodeID() uint8 {
	return uint8(uint32(h) >> HandleBits)
}

func (h Handle) Sequence() uint32 {
	return uint32(h) & HandleMask
}

func (h Handle) IsRemote(localNode uint8) bool {
	return h.NodeID() != localNode
}

func WithNode(node uint8, seq uint32) Handle {
	return Handle(uint32(node)<<HandleBits | (seq & HandleMask))
}
