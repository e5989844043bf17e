// Package transport defines the contract between the network layer and
// the session core: a connection that turns a byte stream into discrete
// protocol lines and reports its own lifecycle as events.
//
// Status changes and decoded lines travel on a single channel so the
// consumer sees them in exactly the order they happened. Two channels
// would let a late status overtake the lines received before it.
package transport

import "errors"

// ErrNotConnected is returned when a send is attempted without a live
// connection. Callers check it with errors.Is.
var ErrNotConnected = errors.New("transport: not connected")

// Status describes the connection lifecycle.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

// String returns the status name used in logs and status lines.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// EventKind discriminates the two event variants.
type EventKind int

const (
	KindStatus EventKind = iota // connection status transition
	KindLine                    // one decoded protocol line
)

// Event is one item of the transport's output stream.
// For KindStatus, Status is set and Err carries the failure detail when
// Status is StatusError. For KindLine, Line holds the decoded text
// without its terminator.
type Event struct {
	Kind   EventKind
	Status Status
	Err    error
	Line   string
	Addr   string // remote address, set on StatusConnected
}

// StatusEvent builds a status transition event. addr is the remote
// address and may be empty for transitions away from the peer.
func StatusEvent(s Status, addr string) Event {
	return Event{Kind: KindStatus, Status: s, Addr: addr}
}

// ErrorEvent builds a StatusError event carrying the failure.
func ErrorEvent(err error) Event {
	return Event{Kind: KindStatus, Status: StatusError, Err: err}
}

// LineEvent builds a decoded-line event.
func LineEvent(line string) Event {
	return Event{Kind: KindLine, Line: line}
}

// LineTransport is the contract every concrete transport satisfies.
// The session core only ever talks to this interface.
type LineTransport interface {
	// SendLine appends the line terminator and writes the bytes as one
	// write. Returns ErrNotConnected when no connection is open. A write
	// failure closes the connection; the read loop then reports the
	// disconnect on Events.
	SendLine(line string) error

	// Events returns the single ordered stream of status transitions
	// and decoded lines. The channel is closed after the final
	// StatusDisconnected; that status may be dropped when the consumer
	// has abandoned a full channel, so shutdown never blocks on it.
	Events() <-chan Event

	// Connected reports whether a connection handle is currently held.
	// It does not guarantee the peer is alive; keepalive does that.
	Connected() bool

	// Close shuts the connection down. Idempotent and safe from any
	// goroutine.
	Close() error
}
