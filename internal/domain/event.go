package domain

// EventKind classifies an inbound push-channel event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventConnect
	EventDisconnect
	EventMessage
)

// ParseEventKind maps the channel's event type tag onto the closed set of
// kinds. Anything unrecognised is EventUnknown.
func ParseEventKind(tag string) EventKind {
	switch tag {
	case "CONNECT":
		return EventConnect
	case "DISCONNECT":
		return EventDisconnect
	case "MESSAGE":
		return EventMessage
	default:
		return EventUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "CONNECT"
	case EventDisconnect:
		return "DISCONNECT"
	case EventMessage:
		return "MESSAGE"
	default:
		return "UNKNOWN"
	}
}

// ChannelEvent is one inbound event from a client connection.
type ChannelEvent struct {
	Kind         EventKind
	ConnectionID string
	Body         string
}
