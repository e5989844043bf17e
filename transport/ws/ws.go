// Package ws implements transport.LineTransport over a WebSocket
// connection, for running the same client core against a gateway that
// bridges the TCP line protocol into browser-reachable territory.
//
// Each outgoing line is one text message. Incoming messages are fed
// through the shared line framer, so a gateway may batch several lines
// into one message or split a line across two.
package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/risa-org/prsinet/transport"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the package logger. Call before dialing.
func SetLogger(l logrus.FieldLogger) {
	if l != nil {
		logger = l
	}
}

// Transport is a WebSocket-backed line transport.
type Transport struct {
	conn      *websocket.Conn
	events    chan transport.Event
	connected atomic.Bool
	closing   atomic.Bool
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	log       *logrus.Entry
}

// Dial connects to a WebSocket URL (ws:// or wss://), bounded by
// timeout, and starts the receive loop.
func Dial(url string, timeout time.Duration) (*Transport, error) {
	dialCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s failed", url)
	}
	return Wrap(conn, url), nil
}

// Wrap adapts an already-established WebSocket connection.
func Wrap(conn *websocket.Conn, addr string) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		conn:   conn,
		events: make(chan transport.Event, 256),
		ctx:    ctx,
		cancel: cancel,
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

// SendLine writes the line, terminator included, as one text message.
func (t *Transport) SendLine(line string) error {
	if !t.connected.Load() {
		return transport.ErrNotConnected
	}

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	if err := t.conn.Write(t.ctx, websocket.MessageText, buf); err != nil {
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

// Connected reports whether the connection is still held.
func (t *Transport) Connected() bool {
	return t.connected.Load()
}

// Close shuts the connection down. Idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closing.Store(true)
		t.connected.Store(false)
		err = t.conn.Close(websocket.StatusNormalClosure, "client closing")
		t.cancel()
	})
	return err
}

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
	for {
		_, data, err := t.conn.Read(t.ctx)
		if err != nil {
			if !t.closing.Load() && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.log.WithError(err).Debug("receive failed")
				select {
				case t.events <- transport.ErrorEvent(err):
				default:
				}
			}
			return
		}
		for _, line := range frames.Feed(data) {
			t.events <- transport.LineEvent(line)
		}
	}
}
