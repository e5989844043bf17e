package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/risa-org/prsinet/transport"
)

// lineServer accepts one WebSocket connection, sends the given lines,
// then echoes everything it receives back as EVT SERVER lines.
func lineServer(t *testing.T, serverLines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		for _, l := range serverLines {
			if err := conn.Write(ctx, websocket.MessageText, []byte(l+"\n")); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			reply := "EVT SERVER msg=echo:" + strings.TrimSpace(string(data))
			if err := conn.Write(ctx, websocket.MessageText, []byte(reply+"\n")); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collectLines(t *testing.T, tr *Transport, n int) []string {
	t.Helper()
	var lines []string
	deadline := time.After(3 * time.Second)
	for len(lines) < n {
		select {
		case ev, ok := <-tr.Events():
			if !ok {
				t.Fatalf("channel closed after %d of %d lines", len(lines), n)
			}
			if ev.Kind == transport.KindLine {
				lines = append(lines, ev.Line)
			}
		case <-deadline:
			t.Fatalf("timed out after %d of %d lines", len(lines), n)
		}
	}
	return lines
}

func TestDialAndReceive(t *testing.T) {
	srv := lineServer(t, []string{"EVT SERVER msg=welcome", "EVT TURN nick=Alice"})
	defer srv.Close()

	tr, err := Dial(wsURL(srv), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	// first event must be the status transition
	select {
	case ev := <-tr.Events():
		if ev.Kind != transport.KindStatus || ev.Status != transport.StatusConnected {
			t.Fatalf("expected StatusConnected first, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for StatusConnected")
	}

	lines := collectLines(t, tr, 2)
	if lines[0] != "EVT SERVER msg=welcome" || lines[1] != "EVT TURN nick=Alice" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestSendLineRoundTrip(t *testing.T) {
	srv := lineServer(t, nil)
	defer srv.Close()

	tr, err := Dial(wsURL(srv), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	if err := tr.SendLine("REQ PING"); err != nil {
		t.Fatalf("SendLine failed: %v", err)
	}

	lines := collectLines(t, tr, 1)
	if lines[0] != "EVT SERVER msg=echo:REQ PING" {
		t.Errorf("unexpected echo: %q", lines[0])
	}
}

func TestCloseIsIdempotentAndTerminates(t *testing.T) {
	srv := lineServer(t, nil)
	defer srv.Close()

	tr, err := Dial(wsURL(srv), 2*time.Second)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	_ = tr.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-tr.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel never closed after Close")
		}
	}
}

func TestDialFailure(t *testing.T) {
	if _, err := Dial("ws://127.0.0.1:1", 500*time.Millisecond); err == nil {
		t.Fatal("expected dial to an unused port to fail")
	}
}
