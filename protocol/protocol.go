// Package protocol implements the line-oriented key=value wire format
// spoken by the game server.
//
// Every message is a single UTF-8 line of the shape
//
//	<CATEGORY> <COMMAND> [key=value]...
//
// where CATEGORY is one of REQ, RESP, EVT or ERR. Values carry no
// embedded spaces. The parser is deliberately forgiving: unknown keys
// are kept verbatim, malformed tokens are skipped, and numeric
// accessors fall back to a caller-supplied default instead of failing.
package protocol

import (
	"strconv"
	"strings"
)

// Message categories. REQ only ever travels client to server.
const (
	CatRequest  = "REQ"
	CatResponse = "RESP"
	CatEvent    = "EVT"
	CatError    = "ERR"
)

// Commands the client formats or inspects by name.
const (
	CmdLogin     = "LOGIN"
	CmdResume    = "RESUME"
	CmdLogout    = "LOGOUT"
	CmdPing      = "PING"
	CmdPong      = "PONG"
	CmdListRooms = "LIST_ROOMS"
	CmdCreate    = "CREATE_ROOM"
	CmdJoin      = "JOIN_ROOM"
	CmdLeave     = "LEAVE_ROOM"
	CmdStart     = "START_GAME"
	CmdDraw      = "DRAW"
	CmdPlay      = "PLAY"
)

// Error codes the server attaches to ERR lines that the client reacts to.
const (
	CodeNickTaken  = "NICK_TAKEN"
	CodeBadSession = "BAD_SESSION"
)

// Message is one parsed protocol line.
type Message struct {
	Category string
	Command  string
	Fields   Fields
}

// Fields maps keys to their raw string values.
type Fields map[string]string

// Parse splits a raw line into a Message. The second return value is
// false when the line has fewer than two tokens or an unknown category;
// such lines are not protocol messages and callers should skip them.
func Parse(line string) (Message, bool) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return Message{}, false
	}

	switch tokens[0] {
	case CatRequest, CatResponse, CatEvent, CatError:
	default:
		return Message{}, false
	}

	msg := Message{
		Category: tokens[0],
		Command:  tokens[1],
		Fields:   parseFields(tokens[2:]),
	}
	return msg, true
}

// parseFields turns ["id=1", "name=Lobby"] into a Fields map.
// Tokens without '=' are skipped. A later duplicate key wins.
func parseFields(tokens []string) Fields {
	kv := make(Fields, len(tokens))
	for _, t := range tokens {
		k, v, ok := strings.Cut(t, "=")
		if !ok || k == "" {
			continue
		}
		kv[k] = v
	}
	return kv
}

// Get returns the raw value for key, or fallback when the key is absent.
func (f Fields) Get(key, fallback string) string {
	if v, ok := f[key]; ok {
		return v
	}
	return fallback
}

// Has reports whether key is present, even with an empty value.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Int returns the value for key parsed as a decimal integer. Missing
// keys and unparseable values yield fallback, never an error; defaulting
// keeps a single malformed field from poisoning an otherwise valid
// message.
func (f Fields) Int(key string, fallback int) int {
	v, ok := f[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Bool reports whether the value for key is the literal "1".
// Anything else, including an absent key, is false.
func (f Fields) Bool(key string) bool {
	return f[key] == "1"
}

// OK reports whether the message carries ok=1, the server's success
// marker on RESP lines.
func (m Message) OK() bool {
	return m.Fields.Bool("ok")
}

// Code returns the error code of an ERR message, or "" when absent.
func (m Message) Code() string {
	return m.Fields.Get("code", "")
}

// IsError reports whether the message is an ERR line for the given command.
func (m Message) IsError(command string) bool {
	return m.Category == CatError && m.Command == command
}

// IsResponse reports whether the message is a RESP line for the given command.
func (m Message) IsResponse(command string) bool {
	return m.Category == CatResponse && m.Command == command
}

// IsEvent reports whether the message is an EVT line for the given command.
func (m Message) IsEvent(command string) bool {
	return m.Category == CatEvent && m.Command == command
}
