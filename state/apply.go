package state

import (
	"strconv"
	"strings"

	"github.com/risa-org/prsinet/protocol"
)

// Apply projects one raw server line onto the model. Lines that do not
// parse, and commands the model does not track, are ignored.
func (m *Model) Apply(line string) {
	msg, ok := protocol.Parse(line)
	if !ok {
		return
	}

	switch msg.Category {
	case protocol.CatEvent:
		m.applyEvent(msg)
	case protocol.CatResponse:
		m.applyResponse(msg)
	case protocol.CatError:
		m.LastError = line
	}
}

func (m *Model) applyResponse(msg protocol.Message) {
	switch msg.Command {
	case protocol.CmdLogin:
		if msg.OK() {
			if ses := msg.Fields.Get("session", ""); ses != "" {
				m.Session = ses
			}
		}
	case protocol.CmdLeave:
		if msg.OK() {
			m.ResetGame()
		}
	}
}

func (m *Model) applyEvent(msg protocol.Message) {
	f := msg.Fields
	g := &m.Game

	switch msg.Command {
	case "SERVER":
		m.LastServerMsg = f.Get("msg", "")

	case "ROOM":
		id := f.Int("id", -1)
		if id < 0 {
			return
		}
		r, ok := m.Rooms[id]
		if !ok {
			r = RoomInfo{ID: id}
		}
		r.Name = f.Get("name", r.Name)
		r.Players = f.Get("players", r.Players)
		r.State = f.Get("state", r.State)
		m.Rooms[id] = r

	case "PLAYER_JOIN":
		if n := f.Get("nick", ""); n != "" {
			g.addPlayer(n)
			g.Online[n] = true
		}

	case "PLAYER_LEAVE":
		if n := f.Get("nick", ""); n != "" {
			g.removePlayer(n)
		}

	case "PLAYER_ONLINE":
		if n := f.Get("nick", ""); n != "" {
			g.addPlayer(n)
			g.Online[n] = true
		}

	case "PLAYER_OFFLINE":
		if n := f.Get("nick", ""); n != "" {
			g.addPlayer(n)
			g.Online[n] = false
		}

	case "HOST":
		g.Host = f.Get("nick", g.Host)

	case "STATE":
		g.RoomID = f.Int("room", g.RoomID)
		g.Phase = f.Get("phase", g.Phase)
		g.Top = f.Get("top", g.Top)
		g.ActiveSuit = f.Get("active_suit", g.ActiveSuit)
		g.Penalty = f.Int("penalty", g.Penalty)
		g.Turn = f.Get("turn", g.Turn)
		g.Paused = f.Bool("paused")

	case "TOP":
		g.Top = f.Get("card", g.Top)
		g.ActiveSuit = f.Get("active_suit", g.ActiveSuit)
		g.Penalty = f.Int("penalty", g.Penalty)

	case "TURN":
		g.Turn = f.Get("nick", g.Turn)

	case "HAND":
		g.Hand = splitCards(f.Get("cards", ""))

	case "WINNER", "GAME_OVER", "GAME_END":
		winner := f.Get("nick", "")
		if winner == "" {
			winner = f.Get("winner", "")
		}
		if winner != "" {
			g.Status = "Winner: " + winner
		} else {
			g.Status = "Game over"
		}
	}
}

// addPlayer appends the nick unless already present, preserving join order.
func (g *GameState) addPlayer(nick string) {
	for _, p := range g.Players {
		if p == nick {
			return
		}
	}
	g.Players = append(g.Players, nick)
}

// removePlayer drops the nick from both the ordered list and the online map.
func (g *GameState) removePlayer(nick string) {
	for i, p := range g.Players {
		if p == nick {
			g.Players = append(g.Players[:i], g.Players[i+1:]...)
			break
		}
	}
	delete(g.Online, nick)
}

// splitCards turns "cH7,cS9" style comma lists into a slice. An empty
// value yields an empty hand, not a one-element slice.
func splitCards(cards string) []string {
	if cards == "" {
		return nil
	}
	parts := strings.Split(cards, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FormatRoomID renders a room id for status text, "-" when absent.
func FormatRoomID(id int) string {
	if id < 0 {
		return "-"
	}
	return "#" + strconv.Itoa(id)
}
