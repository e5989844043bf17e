package client

import (
	"github.com/risa-org/prsinet/protocol"
)

// authenticate runs right after a connection is established: resume
// when a persisted token exists for the nick, plain login otherwise.
func (c *Client) authenticate() {
	token := c.loadToken()
	if token != "" {
		c.modelMu.Lock()
		c.model.Session = token
		c.modelMu.Unlock()
		c.log.WithField("nick", c.nick).Info("resuming session")
		c.enqueue(protocol.Request(protocol.CmdResume,
			protocol.KV{Key: "nick", Value: c.nick},
			protocol.KV{Key: "session", Value: token},
		))
		return
	}
	c.log.WithField("nick", c.nick).Info("logging in")
	c.enqueue(protocol.Request(protocol.CmdLogin,
		protocol.KV{Key: "nick", Value: c.nick},
	))
}

// handleLine applies one server line to the model and reacts to the
// auth and keepalive responses the lifecycle depends on.
func (c *Client) handleLine(line string) {
	c.log.WithField("line", line).Trace("recv")

	c.modelMu.Lock()
	prevRoom := c.model.Game.RoomID
	c.model.Apply(line)
	newRoom := c.model.Game.RoomID
	c.modelMu.Unlock()

	msg, ok := protocol.Parse(line)
	if !ok {
		return
	}

	switch {
	case msg.IsError(protocol.CmdLogin) && msg.Code() == protocol.CodeNickTaken:
		c.onNickTaken()
	case msg.IsError(protocol.CmdResume):
		c.onResumeRejected()
	case msg.IsResponse(protocol.CmdLogin) && msg.OK():
		c.onLoggedIn()
	case msg.IsResponse(protocol.CmdResume) && msg.OK():
		c.onResumed()
	case msg.IsResponse(protocol.CmdPong):
		c.awaitingPong = false
	case msg.IsResponse(protocol.CmdCreate) && msg.OK(),
		msg.IsResponse(protocol.CmdJoin) && msg.OK():
		// membership changed, room counts are stale
		c.requestRoomList()
	case prevRoom >= 0 && newRoom < 0:
		c.requestRoomList()
	}
}

// onNickTaken handles a login collision: one resume attempt when a
// stored token exists, otherwise the conflict is surfaced and the
// caller decides.
func (c *Client) onNickTaken() {
	token := c.loadToken()
	if token == "" {
		c.log.WithField("nick", c.nick).Warn("nickname already in use")
		c.notice("nickname " + c.nick + " already in use")
		return
	}
	c.modelMu.Lock()
	c.model.Session = token
	c.modelMu.Unlock()
	c.log.WithField("nick", c.nick).Info("nick taken, trying resume")
	c.enqueue(protocol.Request(protocol.CmdResume,
		protocol.KV{Key: "nick", Value: c.nick},
		protocol.KV{Key: "session", Value: token},
	))
}

// onResumeRejected discards the stale token everywhere and falls back
// to a fresh login.
func (c *Client) onResumeRejected() {
	c.log.WithField("nick", c.nick).Warn("resume rejected, token discarded")
	if err := c.store.Save(c.nick, ""); err != nil {
		c.log.WithError(err).Warn("session store")
	}
	c.modelMu.Lock()
	c.model.Session = ""
	c.modelMu.Unlock()
	c.enqueue(protocol.Request(protocol.CmdLogin,
		protocol.KV{Key: "nick", Value: c.nick},
	))
}

func (c *Client) onLoggedIn() {
	c.modelMu.RLock()
	token := c.model.Session
	c.modelMu.RUnlock()
	if token != "" && c.nick != "" {
		if err := c.store.Save(c.nick, token); err != nil {
			c.log.WithError(err).Warn("session store")
		}
	}
	c.log.WithField("nick", c.nick).Info("logged in")
	c.notice("logged in as " + c.nick)
	c.requestRoomList()
}

func (c *Client) onResumed() {
	c.log.WithField("nick", c.nick).Info("session resumed")
	c.notice("session resumed")
	c.modelMu.RLock()
	inRoom := c.model.InRoom()
	c.modelMu.RUnlock()
	if !inRoom {
		c.requestRoomList()
	}
}

// requestRoomList clears the cached listing and asks for a fresh one.
func (c *Client) requestRoomList() {
	c.modelMu.Lock()
	c.model.ResetRooms()
	c.modelMu.Unlock()
	c.enqueue(protocol.Request(protocol.CmdListRooms))
}

// loadToken reads the persisted session token for the current nick.
// Store failures degrade to "no token".
func (c *Client) loadToken() string {
	if c.nick == "" {
		return ""
	}
	token, err := c.store.Load(c.nick)
	if err != nil {
		c.log.WithError(err).Warn("session store")
		return ""
	}
	return token
}
