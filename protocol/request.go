package protocol

import "strings"

// KV is one key=value pair of an outgoing request.
type KV struct {
	Key   string
	Value string
}

// Request formats an outgoing REQ line, e.g.
//
//	Request(CmdLogin, KV{"nick", "Alice"})  ->  "REQ LOGIN nick=Alice"
//
// Pairs with an empty value are omitted, matching how the client only
// sends fields it actually has (a PLAY without a wish carries no wish
// key at all). The returned line has no trailing newline; the transport
// appends the terminator.
func Request(command string, pairs ...KV) string {
	var b strings.Builder
	b.WriteString(CatRequest)
	b.WriteByte(' ')
	b.WriteString(command)
	for _, p := range pairs {
		if p.Value == "" {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}
