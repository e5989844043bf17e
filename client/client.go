// Package client drives the session lifecycle of the card-game client:
// connecting, logging in or resuming, keepalive, bounded automatic
// reconnection and projection of the server's line stream into the
// state model.
//
// All shared state is mutated from a single control loop (Run). The
// background receive loop and the per-connection writer goroutine only
// ever talk to the loop through channels, so the model itself needs no
// locking beyond the snapshot boundary handed to renderers.
package client

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/risa-org/prsinet/config"
	"github.com/risa-org/prsinet/protocol"
	"github.com/risa-org/prsinet/state"
	"github.com/risa-org/prsinet/store"
	"github.com/risa-org/prsinet/transport"
	"github.com/risa-org/prsinet/transport/sender"
	"github.com/risa-org/prsinet/transport/tcp"
)

// DialFunc opens a connection to the server. Injected so tests can
// substitute scripted transports for real sockets.
type DialFunc func(host string, port int, timeout time.Duration) (transport.LineTransport, error)

// Client is the session lifecycle orchestrator.
type Client struct {
	cfg   config.ServerConfig
	store store.Store
	dial  DialFunc
	log   logrus.FieldLogger

	// events is the single FIFO between the network goroutines and the
	// control loop; cmds carries externally requested operations onto
	// the loop.
	events  chan sourced
	cmds    chan func()
	notices chan string

	quit      chan struct{}
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once

	// modelMu guards the model for Snapshot readers; the control loop
	// is the only writer.
	modelMu sync.RWMutex
	model   *state.Model

	// connMu guards the connection pair, swapped on every (re)connect.
	connMu sync.RWMutex
	tr     transport.LineTransport
	snd    *sender.Sender

	// control-loop-owned sub-state, never touched elsewhere
	host       string
	port       int
	nick       string
	autoResume bool

	awaitingPong bool
	lastPingSent time.Time

	attempts    int
	reconnectAt time.Time
	gaveUp      bool
}

// sourced pairs an event with the transport that produced it, so the
// loop can discard events of a superseded connection. Synthetic events
// (dial failures, send failures) carry a nil source and are always
// handled.
type sourced struct {
	src transport.LineTransport
	ev  transport.Event
}

// Option configures a Client.
type Option func(*Client)

// WithDial substitutes the transport factory.
func WithDial(d DialFunc) Option {
	return func(c *Client) { c.dial = d }
}

// WithLogger sets the logger. Defaults to the standard logrus logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Client using the given connection policy and session
// store. Unset timing fields fall back to the standard policy, so a
// zero-value config is a working setup. Call Run to start the control
// loop.
func New(cfg config.ServerConfig, st store.Store, opts ...Option) *Client {
	def := config.Default().Server
	if cfg.ConnectTimeoutMS <= 0 {
		cfg.ConnectTimeoutMS = def.ConnectTimeoutMS
	}
	if cfg.PingIntervalMS <= 0 {
		cfg.PingIntervalMS = def.PingIntervalMS
	}
	if cfg.PongTimeoutMS <= 0 {
		cfg.PongTimeoutMS = def.PongTimeoutMS
	}
	if cfg.ReconnectDelayMS <= 0 {
		cfg.ReconnectDelayMS = def.ReconnectDelayMS
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = def.PollIntervalMS
	}

	c := &Client{
		cfg:     cfg,
		store:   st,
		log:     logrus.StandardLogger(),
		events:  make(chan sourced, 512),
		cmds:    make(chan func(), 64),
		notices: make(chan string, 32),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		model:   state.NewModel(),
	}
	c.dial = func(host string, port int, timeout time.Duration) (transport.LineTransport, error) {
		return tcp.Dial(host, port, timeout)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect records the target, enables auto-resume and starts an
// asynchronous connection attempt. Any live connection is torn down
// first; its shutdown events are ignored as stale. A failure to
// establish surfaces as a status notice and feeds the reconnect
// scheduler, never as a return value. Calling Connect again after the
// client gave up re-arms the retry budget.
func (c *Client) Connect(host string, port int, nick string) {
	c.post(func() {
		c.dropConn()
		c.awaitingPong = false
		c.lastPingSent = time.Time{}

		c.host, c.port, c.nick = host, port, nick
		c.modelMu.Lock()
		c.model.Connected = false
		c.model.Nick = nick
		c.model.ResetGame()
		c.model.ResetRooms()
		c.modelMu.Unlock()

		c.autoResume = true
		c.attempts = 0
		c.reconnectAt = time.Time{}
		c.gaveUp = false

		c.log.WithFields(logrus.Fields{"host": host, "port": port, "nick": nick}).
			Info("connect requested")
		c.notice("connecting to " + host + ":" + strconv.Itoa(port))
		c.dialAsync()
	})
}

// Send submits one raw protocol line for asynchronous delivery. The
// write happens on the connection's writer goroutine; a failure there
// funnels into the normal disconnect handling. Returns
// transport.ErrNotConnected when no connection is open.
func (c *Client) Send(line string) error {
	c.connMu.RLock()
	snd := c.snd
	c.connMu.RUnlock()
	if snd == nil {
		return transport.ErrNotConnected
	}
	return snd.Enqueue(line)
}

// Snapshot returns a deep copy of the current model for rendering.
func (c *Client) Snapshot() state.Model {
	c.modelMu.RLock()
	defer c.modelMu.RUnlock()
	return c.model.Snapshot()
}

// Notices returns human-readable status notifications (connection
// changes, login conflicts, the terminal gave-up message). The channel
// is never closed; slow consumers lose the oldest notices rather than
// stalling the core.
func (c *Client) Notices() <-chan string {
	return c.notices
}

// Close shuts the client down: best-effort LEAVE_ROOM, stop the control
// loop, close the connection. Idempotent and safe from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)

		c.connMu.RLock()
		tr := c.tr
		c.connMu.RUnlock()
		if tr != nil && tr.Connected() {
			// polite leave straight on the socket, the writer goroutine
			// is about to be stopped anyway
			_ = tr.SendLine(protocol.Request(protocol.CmdLeave))
			_ = tr.Close()
		}
		close(c.quit)
	})
	return nil
}

// post runs fn on the control loop. Drops the operation when the
// client is shutting down.
func (c *Client) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.quit:
	}
}

// pushEvent feeds a synthetic event into the control queue, used by
// dial workers and the send failure path.
func (c *Client) pushEvent(ev transport.Event) {
	select {
	case c.events <- sourced{ev: ev}:
	case <-c.quit:
	}
}

// notice publishes a notification without ever blocking the loop.
func (c *Client) notice(text string) {
	select {
	case c.notices <- text:
	default:
		select {
		case <-c.notices:
		default:
		}
		select {
		case c.notices <- text:
		default:
		}
	}
}
