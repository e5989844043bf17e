package client

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/risa-org/prsinet/protocol"
	"github.com/risa-org/prsinet/transport"
	"github.com/risa-org/prsinet/transport/sender"
)

// Run executes the control loop until ctx is cancelled or Close is
// called. All event handling, keepalive checks and reconnect scheduling
// happen here.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.teardown()

	poll := time.NewTicker(c.cfg.PollInterval())
	defer poll.Stop()
	ping := time.NewTicker(c.cfg.PingInterval())
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quit:
			return nil
		case <-poll.C:
			c.drain()
			c.maybeReconnect()
		case <-ping.C:
			c.keepaliveTick()
		}
	}
}

// Done is closed when Run has returned.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// drain empties both the event queue and the command queue without
// blocking, preserving per-queue arrival order.
func (c *Client) drain() {
	for {
		select {
		case s := <-c.events:
			c.handleEvent(s)
		case fn := <-c.cmds:
			fn()
		default:
			return
		}
	}
}

func (c *Client) handleEvent(s sourced) {
	if s.src != nil && !c.isCurrent(s.src) {
		// shutdown tail of a connection that has been replaced
		c.log.Debug("discarding event from superseded connection")
		return
	}
	switch s.ev.Kind {
	case transport.KindStatus:
		c.handleStatus(s.ev)
	case transport.KindLine:
		c.handleLine(s.ev.Line)
	}
}

func (c *Client) isCurrent(tr transport.LineTransport) bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.tr == tr
}

func (c *Client) handleStatus(ev transport.Event) {
	switch ev.Status {
	case transport.StatusConnecting:
		c.log.WithField("addr", ev.Addr).Debug("connecting")
	case transport.StatusConnected:
		c.onConnected(ev.Addr)
	case transport.StatusError:
		if ev.Err != nil {
			c.log.WithError(ev.Err).Warn("connection error")
			c.modelMu.Lock()
			c.model.LastError = ev.Err.Error()
			c.modelMu.Unlock()
		}
		c.onDisconnected()
	case transport.StatusDisconnected:
		c.onDisconnected()
	}
}

func (c *Client) onConnected(addr string) {
	c.attempts = 0
	c.reconnectAt = time.Time{}
	c.gaveUp = false
	c.awaitingPong = false
	c.lastPingSent = time.Time{}

	c.modelMu.Lock()
	c.model.Connected = true
	c.modelMu.Unlock()

	c.log.WithField("addr", addr).Info("connected")
	c.notice("connected to " + addr)

	if c.autoResume {
		c.autoResume = false
		c.authenticate()
	}
}

// onDisconnected resets per-connection state and feeds the reconnect
// scheduler. Safe to run more than once for the same outage: the error
// and disconnect events of a dying connection both land here.
func (c *Client) onDisconnected() {
	if c.connectedNow() {
		// a live connection exists, so this is the tail of an older
		// attempt (a late dial failure); the current connection stands
		return
	}
	c.dropConn()

	c.awaitingPong = false
	c.lastPingSent = time.Time{}

	c.modelMu.Lock()
	wasConnected := c.model.Connected
	c.model.Connected = false
	c.model.ResetGame()
	c.model.ResetRooms()
	c.modelMu.Unlock()

	c.autoResume = true
	if wasConnected {
		c.log.Warn("disconnected")
		c.notice("disconnected")
	}
	if !c.closing.Load() {
		c.scheduleReconnect()
	}
}

// dropConn detaches and stops the current connection pair, if any.
func (c *Client) dropConn() {
	c.connMu.Lock()
	tr, snd := c.tr, c.snd
	c.tr, c.snd = nil, nil
	c.connMu.Unlock()

	if tr != nil {
		_ = tr.Close()
	}
	if snd != nil {
		snd.Stop()
	}
}

// dialAsync starts a connection attempt off the loop. The outcome comes
// back through the event queue, success additionally adopts the new
// transport via the command queue.
func (c *Client) dialAsync() {
	host, port := c.host, c.port
	c.handleStatus(transport.StatusEvent(transport.StatusConnecting,
		host+":"+strconv.Itoa(port)))
	go func() {
		tr, err := c.dial(host, port, c.cfg.ConnectTimeout())
		if err != nil {
			c.pushEvent(transport.ErrorEvent(errors.Wrap(err, "connect")))
			c.pushEvent(transport.StatusEvent(transport.StatusDisconnected, ""))
			return
		}
		c.post(func() { c.adopt(tr) })
	}()
}

// adopt installs a freshly dialed transport as the active connection.
// The transport's own connected event then drives onConnected.
func (c *Client) adopt(tr transport.LineTransport) {
	if c.closing.Load() {
		_ = tr.Close()
		return
	}
	c.dropConn()

	snd := sender.New(tr, func(line string, err error) {
		c.pushEvent(transport.ErrorEvent(errors.Wrap(err, "send")))
	})
	c.connMu.Lock()
	c.tr, c.snd = tr, snd
	c.connMu.Unlock()

	go c.forward(tr)
}

// forward pumps one transport's events into the shared queue. Exits
// when the transport closes its channel or the client shuts down.
func (c *Client) forward(tr transport.LineTransport) {
	for ev := range tr.Events() {
		select {
		case c.events <- sourced{src: tr, ev: ev}:
		case <-c.quit:
			return
		}
	}
}

// scheduleReconnect arms the single pending reconnect timer, replacing
// any previous deadline. Once the attempt budget is spent it publishes
// the terminal unavailable notice instead; only a fresh Connect re-arms
// retries after that.
func (c *Client) scheduleReconnect() {
	if c.gaveUp || c.host == "" || c.port == 0 {
		return
	}
	if c.connectedNow() {
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.gaveUp = true
		c.reconnectAt = time.Time{}
		c.log.WithField("attempts", c.attempts).Error("server unavailable, giving up")
		c.notice("server unavailable, reconnect manually")
		return
	}
	c.reconnectAt = time.Now().Add(c.cfg.ReconnectDelay())
}

// maybeReconnect fires the pending reconnect attempt once its deadline
// has passed. Called from the poll tick.
func (c *Client) maybeReconnect() {
	if c.reconnectAt.IsZero() || time.Now().Before(c.reconnectAt) {
		return
	}
	c.reconnectAt = time.Time{}
	if c.closing.Load() || c.connectedNow() || c.host == "" {
		return
	}
	c.attempts++
	c.log.WithFields(logrus.Fields{
		"attempt": c.attempts,
		"max":     c.cfg.MaxReconnectAttempts,
	}).Info("reconnecting")
	c.notice("reconnecting, attempt " + strconv.Itoa(c.attempts) +
		"/" + strconv.Itoa(c.cfg.MaxReconnectAttempts))
	c.dialAsync()
}

// keepaliveTick runs every ping interval. At most one ping is awaited
// at a time; a pong overdue past the timeout forces the connection
// closed so the regular disconnect path takes over.
func (c *Client) keepaliveTick() {
	if c.closing.Load() || !c.connectedNow() {
		return
	}
	if c.awaitingPong {
		if time.Since(c.lastPingSent) > c.cfg.PongTimeout() {
			c.log.Warn("pong timeout, dropping connection")
			c.awaitingPong = false
			c.connMu.RLock()
			tr := c.tr
			c.connMu.RUnlock()
			if tr != nil {
				_ = tr.Close()
			}
		}
		return
	}
	c.awaitingPong = true
	c.lastPingSent = time.Now()
	c.enqueue(protocol.Request(protocol.CmdPing))
}

func (c *Client) connectedNow() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.tr != nil && c.tr.Connected()
}

// enqueue hands a line to the writer goroutine, logging instead of
// failing when no connection is up.
func (c *Client) enqueue(line string) {
	if err := c.Send(line); err != nil {
		c.log.WithError(err).WithField("line", line).Debug("send dropped")
	}
}

// teardown releases the connection when the loop exits. Routing
// through Close also closes the quit channel, which unblocks any
// forwarder or dial worker still parked on the queues.
func (c *Client) teardown() {
	_ = c.Close()
	c.dropConn()
}
