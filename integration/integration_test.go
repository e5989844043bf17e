package integration

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/risa-org/prsinet/client"
	"github.com/risa-org/prsinet/config"
	"github.com/risa-org/prsinet/logging"
	"github.com/risa-org/prsinet/protocol"
	"github.com/risa-org/prsinet/store"
	filestore "github.com/risa-org/prsinet/store/file"
	"github.com/risa-org/prsinet/store/memory"
)

// ------------------------------------------------------------
// gameServer
// ------------------------------------------------------------

// gameServer is a scripted TCP game server covering the slice of the
// protocol the lifecycle tests need: login with nick collisions,
// token-checked resume, a static room listing, join/leave and
// keepalive.
type gameServer struct {
	mu       sync.Mutex
	sessions map[string]string // token -> nick
	active   map[string]bool   // nicks with a live connection
	conns    map[net.Conn]struct{}
	nextTok  int
	ln       net.Listener
}

func newGameServer(t *testing.T) *gameServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	s := &gameServer{
		sessions: make(map[string]string),
		active:   make(map[string]bool),
		conns:    make(map[net.Conn]struct{}),
		ln:       ln,
	}
	go s.acceptLoop()
	t.Cleanup(func() { ln.Close(); s.dropAll() })
	return s
}

func (s *gameServer) hostPort(t *testing.T) (string, int) {
	t.Helper()
	addr := s.ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// dropAll severs every live connection, keeping sessions intact.
func (s *gameServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *gameServer) issueToken(nick string) string {
	s.nextTok++
	tok := "tok-" + strconv.Itoa(s.nextTok)
	s.sessions[tok] = nick
	return tok
}

func (s *gameServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.serve(conn)
	}
}

func (s *gameServer) serve(conn net.Conn) {
	var nick string
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		if nick != "" {
			delete(s.active, nick)
		}
		s.mu.Unlock()
		conn.Close()
	}()

	send := func(line string) { fmt.Fprintf(conn, "%s\n", line) }
	send("EVT SERVER msg=welcome")

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		msg, ok := protocol.Parse(sc.Text())
		if !ok || msg.Category != protocol.CatRequest {
			continue
		}
		switch msg.Command {
		case protocol.CmdLogin:
			want := msg.Fields.Get("nick", "")
			s.mu.Lock()
			if s.active[want] {
				s.mu.Unlock()
				send("ERR LOGIN code=NICK_TAKEN msg=nick in use")
				continue
			}
			nick = want
			s.active[nick] = true
			tok := s.issueToken(nick)
			s.mu.Unlock()
			send("RESP LOGIN ok=1 session=" + tok)
		case protocol.CmdResume:
			tok := msg.Fields.Get("session", "")
			s.mu.Lock()
			owner, known := s.sessions[tok]
			if !known || owner != msg.Fields.Get("nick", "") {
				s.mu.Unlock()
				send("ERR RESUME code=BAD_SESSION msg=unknown session")
				continue
			}
			nick = owner
			s.active[nick] = true
			s.mu.Unlock()
			send("RESP RESUME ok=1")
		case protocol.CmdListRooms:
			send("EVT ROOM id=1 name=lounge players=1/4 state=LOBBY")
			send("EVT ROOM id=2 name=arena players=4/4 state=GAME")
		case protocol.CmdJoin:
			id := msg.Fields.Get("room", "")
			send("RESP JOIN_ROOM ok=1")
			send("EVT STATE room=" + id + " phase=LOBBY")
			send("EVT HOST nick=" + nick)
			send("EVT PLAYER_JOIN nick=" + nick)
		case protocol.CmdLeave:
			send("RESP LEAVE_ROOM ok=1")
		case protocol.CmdPing:
			send("RESP PONG ok=1")
		}
	}
}

// ------------------------------------------------------------
// Helpers
// ------------------------------------------------------------

func testServerConfig() config.ServerConfig {
	cfg := config.Default().Server
	cfg.ReconnectDelayMS = 20
	cfg.PollIntervalMS = 5
	return cfg
}

func startClient(t *testing.T, cfg config.ServerConfig, st store.Store) *client.Client {
	t.Helper()
	c := client.New(cfg, st, client.WithLogger(logging.Quiet()))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx) }()
	t.Cleanup(func() {
		c.Close()
		cancel()
		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Error("control loop did not stop")
		}
	})
	return c
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitNotice(t *testing.T, c *client.Client, substr string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case n := <-c.Notices():
			if strings.Contains(n, substr) {
				return
			}
		case <-deadline:
			t.Fatalf("no notice containing %q", substr)
		}
	}
}

// ------------------------------------------------------------
// Tests
// ------------------------------------------------------------

func TestFullSessionLifecycle(t *testing.T) {
	server := newGameServer(t)
	host, port := server.hostPort(t)

	sessions := filestore.New(filepath.Join(t.TempDir(), "sessions.json"))
	c := startClient(t, testServerConfig(), sessions)
	c.Connect(host, port, "alice")

	waitUntil(t, "login and room list", func() bool {
		snap := c.Snapshot()
		return snap.Connected && snap.Session != "" && len(snap.Rooms) == 2
	})

	snap := c.Snapshot()
	if snap.LastServerMsg != "welcome" {
		t.Errorf("expected welcome banner, got %q", snap.LastServerMsg)
	}
	if r, ok := snap.Rooms[1]; !ok || r.Name != "lounge" {
		t.Errorf("expected room 1 lounge, got %+v", snap.Rooms)
	}

	token, err := sessions.Load("alice")
	if err != nil {
		t.Fatalf("store load failed: %v", err)
	}
	if token != snap.Session {
		t.Errorf("persisted token %q does not match session %q", token, snap.Session)
	}

	if err := c.JoinRoom(1); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	waitUntil(t, "room entry", func() bool { return c.Snapshot().InRoom() })

	if err := c.LeaveRoom(); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	waitUntil(t, "room exit", func() bool { return !c.Snapshot().InRoom() })
}

func TestResumeAfterServerDrop(t *testing.T) {
	server := newGameServer(t)
	host, port := server.hostPort(t)

	c := startClient(t, testServerConfig(), memory.New())
	c.Connect(host, port, "bob")

	waitUntil(t, "initial login", func() bool {
		snap := c.Snapshot()
		return snap.Connected && snap.Session != ""
	})
	token := c.Snapshot().Session

	server.dropAll()
	waitUntil(t, "disconnect", func() bool { return !c.Snapshot().Connected })

	waitUntil(t, "automatic resume", func() bool {
		snap := c.Snapshot()
		return snap.Connected && snap.Session == token
	})
}

func TestStaleTokenReplacedOverWire(t *testing.T) {
	server := newGameServer(t)
	host, port := server.hostPort(t)

	sessions := memory.New()
	if err := sessions.Save("carol", "tok-stale"); err != nil {
		t.Fatalf("seed store failed: %v", err)
	}

	c := startClient(t, testServerConfig(), sessions)
	c.Connect(host, port, "carol")

	// the server has never seen tok-stale, so the resume is rejected
	// and the client falls back to a fresh login
	waitUntil(t, "fresh login after rejected resume", func() bool {
		snap := c.Snapshot()
		return snap.Connected && snap.Session != "" && snap.Session != "tok-stale"
	})

	token, err := sessions.Load("carol")
	if err != nil {
		t.Fatalf("store load failed: %v", err)
	}
	if token == "tok-stale" || token == "" {
		t.Errorf("stale token not replaced, store holds %q", token)
	}
}

func TestNickCollisionSurfaces(t *testing.T) {
	server := newGameServer(t)
	host, port := server.hostPort(t)

	first := startClient(t, testServerConfig(), memory.New())
	first.Connect(host, port, "dora")
	waitUntil(t, "first login", func() bool { return first.Snapshot().Session != "" })

	second := startClient(t, testServerConfig(), memory.New())
	second.Connect(host, port, "dora")
	waitNotice(t, second, "already in use")

	if second.Snapshot().Session != "" {
		t.Error("second client must not obtain a session")
	}
}

func TestKeepaliveKeepsConnectionAlive(t *testing.T) {
	server := newGameServer(t)
	host, port := server.hostPort(t)

	cfg := testServerConfig()
	cfg.PingIntervalMS = 10
	cfg.PongTimeoutMS = 50

	c := startClient(t, cfg, memory.New())
	c.Connect(host, port, "eve")
	waitUntil(t, "login", func() bool { return c.Snapshot().Session != "" })

	// several ping rounds with the server answering: the connection
	// must not be dropped by the pong watchdog
	time.Sleep(200 * time.Millisecond)
	if !c.Snapshot().Connected {
		t.Error("connection dropped despite answered pings")
	}
}
