package transport

import (
	"reflect"
	"testing"
)

func feedAll(b *LineBuffer, chunks ...[]byte) []string {
	var all []string
	for _, c := range chunks {
		all = append(all, b.Feed(c)...)
	}
	return all
}

func TestFeedSingleChunk(t *testing.T) {
	var b LineBuffer
	got := b.Feed([]byte("EVT ROOM id=1 name=Lobby players=2 state=OPEN\nEVT ROOM id=2 name=Arena players=1 state=OPEN\n"))
	want := []string{
		"EVT ROOM id=1 name=Lobby players=2 state=OPEN",
		"EVT ROOM id=2 name=Arena players=1 state=OPEN",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestChunkBoundariesDoNotMatter(t *testing.T) {
	payload := []byte("RESP LOGIN ok=1 session=tok\nEVT SERVER msg=hi\nEVT TURN nick=Bob\n")

	var whole LineBuffer
	want := whole.Feed(payload)

	// split the same bytes at every possible boundary
	for cut := 1; cut < len(payload); cut++ {
		var b LineBuffer
		got := feedAll(&b, payload[:cut], payload[cut:])
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: got %v, want %v", cut, got, want)
		}
	}

	// and byte by byte
	var b LineBuffer
	var got []string
	for i := range payload {
		got = append(got, b.Feed(payload[i:i+1])...)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("byte-by-byte: got %v, want %v", got, want)
	}
}

func TestCarriageReturnStripped(t *testing.T) {
	var crlf, lf LineBuffer
	a := crlf.Feed([]byte("RESP PONG\r\n"))
	b := lf.Feed([]byte("RESP PONG\n"))
	if !reflect.DeepEqual(a, b) {
		t.Errorf("\\r\\n and \\n framed differently: %v vs %v", a, b)
	}
	if len(a) != 1 || a[0] != "RESP PONG" {
		t.Errorf("unexpected lines: %v", a)
	}
}

func TestEmptyLinesDropped(t *testing.T) {
	var b LineBuffer
	got := b.Feed([]byte("\n\r\nEVT SERVER msg=x\n\n"))
	if len(got) != 1 || got[0] != "EVT SERVER msg=x" {
		t.Errorf("expected only the non-empty line, got %v", got)
	}
}

func TestPartialLineStaysBuffered(t *testing.T) {
	var b LineBuffer
	if got := b.Feed([]byte("EVT HO")); len(got) != 0 {
		t.Fatalf("incomplete line must not be emitted, got %v", got)
	}
	if b.Pending() == 0 {
		t.Fatal("expected pending bytes")
	}
	got := b.Feed([]byte("ST nick=Alice\n"))
	if len(got) != 1 || got[0] != "EVT HOST nick=Alice" {
		t.Errorf("expected joined line, got %v", got)
	}
	if b.Pending() != 0 {
		t.Errorf("expected empty buffer, %d bytes pending", b.Pending())
	}
}

func TestInvalidUTF8Replaced(t *testing.T) {
	var b LineBuffer
	got := b.Feed([]byte{'E', 'V', 'T', ' ', 'S', 0xff, '\n'})
	if len(got) != 1 {
		t.Fatalf("expected one line, got %v", got)
	}
	if got[0] != "EVT S�" {
		t.Errorf("expected replacement rune, got %q", got[0])
	}
}
