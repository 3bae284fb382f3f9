package hive

import (
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Lifecycle event types emitted on a Node's EventEmitter.
const (
	EventModuleLoaded    = "hive.module.loaded"
	EventServiceLaunched = "hive.service.launched"
	EventServiceRetired  = "hive.service.retired"
	EventEndlessDetected = "hive.service.endless"
	eventSourcePrefix    = "hive://node"
)

// LifecyclePayload is the structured body of every lifecycle CloudEvent
// this runtime emits. Metadata carries event-specific extra fields (e.g.
// "param" on a launch, "dest"/"source" on an endless-loop detection)
// without growing the struct per event type.
type LifecyclePayload struct {
	Subject   string                 `json:"subject"`
	Handle    uint32                 `json:"handle,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// EventListener receives every lifecycle event matching its subscribed
// types (or all events, if none were given at registration).
type EventListener func(event cloudevents.Event)

type eventSubscription struct {
	listener EventListener
	types    map[string]bool // empty means "all types"
}

// EventEmitter is a minimal CloudEvents-based pub/sub hub for the
// runtime's own lifecycle notifications: module loads, service
// launches/retirements, and endless-loop detections. It does not
// participate in service-to-service messaging (that is Send/Command);
// it exists purely so an operator can wire structured observability
// without threading a callback through every internal call site.
type EventEmitter struct {
	mu        sync.RWMutex
	listeners []*eventSubscription
}

// NewEventEmitter builds an empty emitter.
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{}
}

// Subscribe registers listener for eventTypes (or every event type, if
// none are given). Returns an unsubscribe function.
func (e *EventEmitter) Subscribe(listener EventListener, eventTypes ...string) func() {
	sub := &eventSubscription{listener: listener, types: make(map[string]bool, len(eventTypes))}
	for _, t := range eventTypes {
		sub.types[t] = true
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, sub)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.listeners {
			if s == sub {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Emit builds a CloudEvent for eventType/payload and delivers it to every
// subscribed listener synchronously. A listener's panic or slow handling
// is the caller's problem, same as skynet's own in-process callbacks.
func (e *EventEmitter) Emit(eventType string, payload LifecyclePayload) {
	evt := cloudevents.NewEvent()
	evt.SetID(uuid.NewString())
	evt.SetSource(eventSourcePrefix)
	evt.SetType(eventType)
	evt.SetTime(time.Now())
	evt.SetSpecVersion(cloudevents.VersionV1)
	_ = evt.SetData(cloudevents.ApplicationJSON, payload)

	e.mu.RLock()
	subs := append([]*eventSubscription(nil), e.listeners...)
	e.mu.RUnlock()

	for _, sub := range subs {
		if len(sub.types) > 0 && !sub.types[eventType] {
			continue
		}
		sub.listener(evt)
	}
}
