package client

import (
	"strconv"

	"github.com/risa-org/prsinet/protocol"
)

// The convenience methods below format and queue the common game
// requests. They are safe from any goroutine and fire-and-forget:
// delivery failures surface through the disconnect path, replies
// through the model.

// ListRooms clears the cached room listing and requests a fresh one.
func (c *Client) ListRooms() {
	c.post(c.requestRoomList)
}

// CreateRoom asks the server for a new room. Size 0 leaves the room
// capacity to the server default.
func (c *Client) CreateRoom(name string, size int) error {
	var sizeField string
	if size > 0 {
		sizeField = strconv.Itoa(size)
	}
	return c.Send(protocol.Request(protocol.CmdCreate,
		protocol.KV{Key: "name", Value: name},
		protocol.KV{Key: "size", Value: sizeField},
	))
}

// JoinRoom enters the room with the given id.
func (c *Client) JoinRoom(id int) error {
	return c.Send(protocol.Request(protocol.CmdJoin,
		protocol.KV{Key: "room", Value: strconv.Itoa(id)},
	))
}

// LeaveRoom leaves the current room.
func (c *Client) LeaveRoom() error {
	return c.Send(protocol.Request(protocol.CmdLeave))
}

// StartGame asks the host-side start of the current room's game.
func (c *Client) StartGame() error {
	return c.Send(protocol.Request(protocol.CmdStart))
}

// Draw takes cards from the stock, covering any pending penalty.
func (c *Client) Draw() error {
	return c.Send(protocol.Request(protocol.CmdDraw))
}

// PlayCard plays one card from the hand. wish names the suit demanded
// when playing a queen and is omitted from the wire otherwise.
func (c *Client) PlayCard(card, wish string) error {
	return c.Send(protocol.Request(protocol.CmdPlay,
		protocol.KV{Key: "card", Value: card},
		protocol.KV{Key: "wish", Value: wish},
	))
}

// Logout ends the session server-side. The stored token stays valid
// only if the server says so; the client keeps it untouched.
func (c *Client) Logout() error {
	return c.Send(protocol.Request(protocol.CmdLogout))
}
