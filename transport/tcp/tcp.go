// Package tcp implements transport.LineTransport over a raw TCP
// connection, the wire the game server actually listens on.
package tcp

import (
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/risa-org/prsinet/transport"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the package logger. Call before dialing.
func SetLogger(l logrus.FieldLogger) {
	if l != nil {
		logger = l
	}
}

const (
	readChunkSize   = 4096
	eventBufferSize = 256
)

// Transport is a TCP-backed line transport. One background goroutine
// reads and frames incoming bytes; writes are serialized by a mutex so
// each line leaves the socket as a single contiguous write.
type Transport struct {
	conn      net.Conn
	events    chan transport.Event
	connected atomic.Bool
	closing   atomic.Bool
	closeOnce sync.Once
	writeMu   sync.Mutex
	log       *logrus.Entry
}

// Dial opens a TCP connection to host:port, bounded by timeout, and
// starts the receive loop. Nagle's algorithm is disabled; the protocol
// is many small latency-sensitive lines. The StatusConnected event is
// emitted only after the socket is established.
func Dial(host string, port int, timeout time.Duration) (*Transport, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s failed", addr)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// best effort, a transport that cannot set the option still works
		_ = tc.SetNoDelay(true)
	}
	return wrap(conn, addr), nil
}

// Wrap adapts an already-established connection. Used by tests to run
// the transport over net.Pipe without a listener.
func Wrap(conn net.Conn) *Transport {
	return wrap(conn, conn.RemoteAddr().String())
}

func wrap(conn net.Conn, addr string) *Transport {
	t := &Transport{
		conn:   conn,
		events: make(chan transport.Event, eventBufferSize),
		log: logger.WithFields(logrus.Fields{
			"conn_id": uuid.NewString(),
			"addr":    addr,
		}),
	}
	t.connected.Store(true)
	t.log.Debug("connection established")

	t.events <- transport.StatusEvent(transport.StatusConnected, addr)
	go t.readLoop()
	return t
}

// SendLine appends '\n' and writes the line as one write. The caller
// must not pass text containing a newline. A failed write closes the
// connection so the read loop reports the disconnect.
func (t *Transport) SendLine(line string) error {
	if !t.connected.Load() {
		return transport.ErrNotConnected
	}

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	t.writeMu.Lock()
	_, err := t.conn.Write(buf)
	t.writeMu.Unlock()

	if err != nil {
		t.log.WithError(err).Debug("write failed, closing connection")
		_ = t.Close()
		return errors.Wrap(err, "write line failed")
	}
	return nil
}

// Events returns the ordered status+line stream.
func (t *Transport) Events() <-chan transport.Event {
	return t.events
}

// Connected reports whether the socket handle is still held.
func (t *Transport) Connected() bool {
	return t.connected.Load()
}

// Close requests the receive loop to stop and releases the socket.
// Idempotent; the receive loop delivers the final StatusDisconnected
// and closes the events channel.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closing.Store(true)
		t.connected.Store(false)
		err = t.conn.Close()
	})
	return err
}

// readLoop is the sole detector of peer-initiated disconnects. It never
// retries; reconnect policy belongs to the session layer.
func (t *Transport) readLoop() {
	defer func() {
		t.connected.Store(false)
		_ = t.Close()
		select {
		case t.events <- transport.StatusEvent(transport.StatusDisconnected, ""):
		default:
			// consumer abandoned a full channel; dropping the final
			// status beats leaking this goroutine
		}
		close(t.events)
		t.log.Debug("receive loop stopped")
	}()

	var frames transport.LineBuffer
	chunk := make([]byte, readChunkSize)

	for {
		n, err := t.conn.Read(chunk)
		if n > 0 {
			for _, line := range frames.Feed(chunk[:n]) {
				t.events <- transport.LineEvent(line)
			}
		}
		if err != nil {
			// a clean EOF or a locally requested close is not an error,
			// only unexpected failures produce a StatusError
			if !t.closing.Load() && !errors.Is(err, io.EOF) {
				t.log.WithError(err).Debug("receive failed")
				select {
				case t.events <- transport.ErrorEvent(err):
				default:
				}
			}
			return
		}
	}
}
