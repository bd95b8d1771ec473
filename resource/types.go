package resource

import "fmt"

// Handle is an opaque reference to a registry entry.
// The top byte carries the namespace tag, the low 56 bits a serial number.
// Handle 0 is reserved and always invalid.
type Handle uint64

const (
	serialBits = 56
	serialMask = 1<<serialBits - 1
	maxSerial  = serialMask
)

func makeHandle(kind Kind, serial uint64) Handle {
	return Handle(uint64(kind)<<serialBits | serial&serialMask)
}

// Kind returns the namespace tag encoded in the handle.
// A tag alone proves nothing; only the registry can confirm the handle was issued.
func (h Handle) Kind() Kind {
	return Kind(uint64(h) >> serialBits)
}

// Serial returns the arena serial encoded in the handle.
func (h Handle) Serial() uint64 {
	return uint64(h) & serialMask
}

func (h Handle) String() string {
	return fmt.Sprintf("%s#%d", h.Kind(), h.Serial())
}

// Kind identifies a handle namespace.
type Kind uint8

const (
	KindContext  Kind = 0x01
	KindDocument Kind = 0x02
)

func (k Kind) String() string {
	switch k {
	case KindContext:
		return "context"
	case KindDocument:
		return "document"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) valid() bool {
	return k == KindContext || k == KindDocument
}

// State is the lifecycle state of a registry entry.
//
//	Context:  Uninitialized -> Active -> Destroyed
//	Document: (none) -> Open -> Closed
type State uint8

const (
	StateUninitialized State = iota
	StateActive
	StateDestroyed
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateDestroyed:
		return "destroyed"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Live reports whether the state allows resolution.
func (s State) Live() bool {
	return s == StateActive || s == StateOpen
}

// Retirement reasons reported by UseAfterFree errors.
const (
	ReasonClosed         = "document closed"
	ReasonDestroyed      = "context destroyed"
	ReasonOwnerDestroyed = "owner context destroyed"
	ReasonRegistryClosed = "registry closed"
)

// Entry is a snapshot of a registry entry.
type Entry struct {
	Value  any
	Handle Handle
	Parent Handle
	Kind   Kind
	State  State
}

// Event types for handle lifecycle notifications.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventInvalidated
	EventCascaded
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventInvalidated:
		return "invalidated"
	case EventCascaded:
		return "cascaded"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Reason string
	Handle Handle
	Parent Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnHandleEvent(e Event) { f(e) }
