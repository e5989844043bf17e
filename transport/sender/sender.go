// Package sender serializes outgoing protocol lines.
//
// The session core must never block on a socket write, and two writes
// issued back to back must reach the wire in that order. Sender gives
// both: callers enqueue without blocking, and a single writer goroutine
// drains the queue so outgoing lines keep their submission order. One
// Sender exists per connection and dies with it.
package sender

import (
	"errors"
	"sync"

	"github.com/risa-org/prsinet/transport"
)

// ErrQueueFull is returned when the outgoing queue has no room left.
// A full queue means the peer has stopped draining its socket; the
// caller treats it like any other send failure.
var ErrQueueFull = errors.New("sender: outgoing queue full")

// DefaultQueueSize bounds the outgoing queue.
const DefaultQueueSize = 64

// FailFunc is invoked from the writer goroutine when a line could not
// be written. The transport has already been closed at that point.
type FailFunc func(line string, err error)

// Sender owns the writer goroutine for one connection.
type Sender struct {
	transport transport.LineTransport
	queue     chan string
	quit      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	onFail    FailFunc
}

// New starts a Sender writing to t. onFail may be nil.
func New(t transport.LineTransport, onFail FailFunc) *Sender {
	s := &Sender{
		transport: t,
		queue:     make(chan string, DefaultQueueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		onFail:    onFail,
	}
	go s.writeLoop()
	return s
}

// Enqueue hands a line to the writer goroutine without blocking.
// Returns ErrQueueFull when the queue is saturated and ErrNotConnected
// after Stop.
func (s *Sender) Enqueue(line string) error {
	select {
	case <-s.quit:
		return transport.ErrNotConnected
	default:
	}

	select {
	case s.queue <- line:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop shuts the writer down. Queued lines not yet written are
// discarded; after a disconnect they would be sent into a dead socket
// anyway. Idempotent.
func (s *Sender) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
}

func (s *Sender) writeLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case line := <-s.queue:
			if err := s.transport.SendLine(line); err != nil {
				if s.onFail != nil {
					s.onFail(line, err)
				}
				return
			}
		}
	}
}
