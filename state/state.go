// Package state holds the client's view of the server: session
// identity, the room list and the in-room game state. The Model is a
// pure reducer over incoming protocol lines; it performs no I/O and
// never returns an error, because a malformed line from the server must
// degrade to a no-op, not a crash.
package state

// RoomInfo is one entry of the room list.
type RoomInfo struct {
	ID      int    // unique numeric room id, never negative once stored
	Name    string // human-readable room name
	Players string // player count or listing, as formatted by the server
	State   string // room state label, e.g. OPEN
}

// Phase values reported by the server in EVT STATE.
const (
	PhaseNone  = "NONE"
	PhaseLobby = "LOBBY"
	PhaseGame  = "GAME"
)

// GameState is the in-room state. Fields arrive incrementally through
// partial events; absent fields keep their previous value, so a full
// snapshot never has to arrive in one message.
type GameState struct {
	RoomID     int             // -1 when not in a room
	Host       string          // nickname of the current host
	Players    []string        // join order, no duplicates
	Online     map[string]bool // per-player online flag
	Status     string          // human-readable status line, e.g. winner text
	Paused     bool
	Phase      string
	Top        string   // top card of the discard pile
	ActiveSuit string   // suit currently in effect
	Penalty    int      // accumulated draw penalty
	Turn       string   // nickname whose turn it is
	Hand       []string // this client's cards
}

// NewGameState returns the empty in-room state.
func NewGameState() GameState {
	return GameState{
		RoomID:     -1,
		Host:       "-",
		Online:     map[string]bool{},
		Phase:      PhaseNone,
		Top:        "-",
		ActiveSuit: "-",
		Turn:       "-",
	}
}

// Model is the top-level client state.
type Model struct {
	Connected     bool   // last known transport status
	Nick          string
	Session       string // session token from RESP LOGIN, "" when none
	LastServerMsg string // most recent EVT SERVER informational message
	LastError     string // most recent ERR line, verbatim

	Rooms map[int]RoomInfo
	Game  GameState
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		Rooms: map[int]RoomInfo{},
		Game:  NewGameState(),
	}
}

// ResetRooms clears the cached room list. Called before each
// LIST_ROOMS request so stale rooms never linger.
func (m *Model) ResetRooms() {
	m.Rooms = map[int]RoomInfo{}
}

// ResetGame wipes the in-room state back to empty. A disconnect or a
// confirmed leave invalidates everything the server told us about the
// room.
func (m *Model) ResetGame() {
	m.Game = NewGameState()
}

// InRoom reports whether the model believes the client is in a room.
// Value receiver so it can be called directly on a Snapshot result.
func (m Model) InRoom() bool {
	return m.Game.RoomID >= 0
}

// Playable reports whether the given two-character card token could be
// played right now under the local view of the rules: with a pending
// penalty only sevens go, queens always go, otherwise the suit or the
// rank must match the discard pile. Value receiver, like InRoom.
func (m Model) Playable(card string) bool {
	g := &m.Game

	if g.Phase != PhaseGame {
		return false
	}
	if g.Turn != "-" && g.Turn != m.Nick {
		return false
	}
	if len(card) != 2 {
		return false
	}

	suit, rank := card[0], card[1]

	if g.Penalty > 0 {
		return rank == '7'
	}
	if rank == 'Q' {
		return true
	}

	topRank := byte(0)
	if len(g.Top) == 2 {
		topRank = g.Top[1]
	}
	return string(suit) == g.ActiveSuit || (topRank != 0 && rank == topRank)
}

// Snapshot returns a deep copy safe to hand across the rendering
// boundary while the control loop keeps mutating the original.
func (m *Model) Snapshot() Model {
	out := *m

	out.Rooms = make(map[int]RoomInfo, len(m.Rooms))
	for id, r := range m.Rooms {
		out.Rooms[id] = r
	}

	out.Game.Players = append([]string(nil), m.Game.Players...)
	out.Game.Hand = append([]string(nil), m.Game.Hand...)
	out.Game.Online = make(map[string]bool, len(m.Game.Online))
	for n, on := range m.Game.Online {
		out.Game.Online[n] = on
	}
	return out
}
