package hive

// Message types, wire-visible in cross-node envelopes and log output.
const (
	PTypeText      uint8 = 0
	PTypeResponse  uint8 = 1
	PTypeMulticast uint8 = 2
	PTypeClient    uint8 = 3
	PTypeSystem    uint8 = 4
	PTypeHarbor    uint8 = 5
	PTypeSocket    uint8 = 6
	PTypeError     uint8 = 7
	// 8-11 reserved for future message type tags.
)

// Send-time flags. These are never persisted on a Message; they only
// influence how Send interprets its arguments.
const (
	DontCopy     = 0x10000
	AllocSession = 0x20000
)

// MaxPayloadSize is the largest payload Send accepts, leaving the top 8
// bits of the size word free to encode the message type.
const MaxPayloadSize = 1<<24 - 1

// Message is the unit of delivery between services. Data is considered
// owned by whichever side currently holds the Message: the sender until
// Send transfers it (DontCopy), the runtime after a copying send, and the
// receiving callback once handed off via dispatch.
type Message struct {
	Source  Handle
	Session int32
	Data    []byte
	Type    uint8
}

// Size reports the payload length encoded alongside the message type.
func (m Message) Size() int {
	return len(m.Data)
}

// The accessors below let Message satisfy dispatch.Message and
// harbor-adjacent consumers without those packages importing this one.
func (m Message) SourceHandle() Handle { return m.Source }
func (m Message) SessionID() int32     { return m.Session }
func (m Message) MsgType() uint8       { return m.Type }
func (m Message) Payload() []byte      { return m.Data }
