package stream

// Event types delivered to a session's live channel. One exchange produces
// exactly one TypeStart, zero or more TypeFragment, and one TypeEnd.
const (
	TypeStart    = "stream_start"
	TypeFragment = "stream"
	TypeEnd      = "stream_end"
	TypeError    = "error"
)

// Event is one frame on a session's delivery channel. Content carries the
// fragment text during delivery; Message carries the complete final text on
// stream_end only.
type Event struct {
	Type     string         `json:"type"`
	Content  string         `json:"content,omitempty"`
	Message  string         `json:"message,omitempty"`
	Agent    string         `json:"agent,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Sink receives events for one connected client. Implementations must be
// safe for use from multiple goroutines: the user-message path and the
// bridge-reply path both push into the same sink.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error { return f(e) }
