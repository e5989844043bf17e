// Package main is the prsinet console client entrypoint.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/risa-org/prsinet/client"
	"github.com/risa-org/prsinet/config"
	"github.com/risa-org/prsinet/logging"
	"github.com/risa-org/prsinet/state"
	"github.com/risa-org/prsinet/store"
	filestore "github.com/risa-org/prsinet/store/file"
	"github.com/risa-org/prsinet/store/memory"
	"github.com/risa-org/prsinet/store/sqlite"
)

var (
	logger logrus.FieldLogger = logrus.StandardLogger()

	cfgPath string
	host    string
	port    int
	nick    string
	backend string

	rootCmd = &cobra.Command{
		Use:   "prsinet",
		Short: "Console client for the card game server.",
		RunE:  runPlay,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")
	rootCmd.Flags().StringVar(&host, "host", "", "server host (overrides config)")
	rootCmd.Flags().IntVar(&port, "port", 0, "server port (overrides config)")
	rootCmd.Flags().StringVarP(&nick, "nick", "n", "", "nickname to log in with")
	rootCmd.Flags().StringVar(&backend, "session-store", "", "session store backend: file, sqlite or memory")
	_ = rootCmd.MarkFlagRequired("nick")
}

func runPlay(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return errors.Wrap(err, "load config failed")
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if backend != "" {
		cfg.Session.Backend = backend
	}
	logger = logging.Setup(cfg.Log)

	st, closeStore, err := openStore(cfg.Session)
	if err != nil {
		return errors.Wrap(err, "open session store failed")
	}
	defer closeStore()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := client.New(cfg.Server, st, client.WithLogger(logger))
	go func() { _ = c.Run(ctx) }()
	defer func() {
		_ = c.Close()
		<-c.Done()
	}()

	go printNotices(ctx, c)

	c.Connect(cfg.Server.Host, cfg.Server.Port, nick)
	return errors.Wrap(console(ctx, c), "console failed")
}

func openStore(cfg config.SessionConfig) (store.Store, func(), error) {
	switch cfg.Backend {
	case "file", "":
		return filestore.New(cfg.Path), func() {}, nil
	case "sqlite":
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "memory":
		return memory.New(), func() {}, nil
	default:
		return nil, nil, errors.Errorf("unknown session store backend %q", cfg.Backend)
	}
}

func printNotices(ctx context.Context, c *client.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-c.Notices():
			fmt.Println("* " + n)
		}
	}
}

// console reads commands from stdin until EOF or quit.
func console(ctx context.Context, c *client.Client) error {
	fmt.Println("commands: rooms, create <name> [size], join <id>, leave, start, draw, play <card> [wish], hand, state, raw <line>, quit")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if done := dispatch(c, strings.Fields(sc.Text())); done {
			return nil
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "read stdin failed")
	}
	return nil
}

func dispatch(c *client.Client, words []string) bool {
	if len(words) == 0 {
		return false
	}
	var err error
	switch words[0] {
	case "quit", "exit":
		return true
	case "rooms":
		c.ListRooms()
	case "create":
		if len(words) < 2 {
			fmt.Println("usage: create <name> [size]")
			return false
		}
		size := 0
		if len(words) > 2 {
			size, _ = strconv.Atoi(words[2])
		}
		err = c.CreateRoom(words[1], size)
	case "join":
		if len(words) < 2 {
			fmt.Println("usage: join <id>")
			return false
		}
		id, convErr := strconv.Atoi(words[1])
		if convErr != nil {
			fmt.Println("room id must be a number")
			return false
		}
		err = c.JoinRoom(id)
	case "leave":
		err = c.LeaveRoom()
	case "start":
		err = c.StartGame()
	case "draw":
		err = c.Draw()
	case "play":
		if len(words) < 2 {
			fmt.Println("usage: play <card> [wish]")
			return false
		}
		wish := ""
		if len(words) > 2 {
			wish = words[2]
		}
		err = c.PlayCard(words[1], wish)
	case "hand":
		printHand(c.Snapshot())
	case "state":
		printState(c.Snapshot())
	case "raw":
		if len(words) < 2 {
			fmt.Println("usage: raw <line>")
			return false
		}
		err = c.Send(strings.Join(words[1:], " "))
	default:
		fmt.Println("unknown command:", words[0])
	}
	if err != nil {
		fmt.Println("! " + err.Error())
	}
	return false
}

func printHand(snap state.Model) {
	if len(snap.Game.Hand) == 0 {
		fmt.Println("hand: (empty)")
		return
	}
	marks := make([]string, 0, len(snap.Game.Hand))
	for _, card := range snap.Game.Hand {
		if snap.Playable(card) {
			marks = append(marks, card+"*")
		} else {
			marks = append(marks, card)
		}
	}
	fmt.Println("hand:", strings.Join(marks, " "))
}

func printState(snap state.Model) {
	fmt.Printf("connected=%v nick=%s room=%s phase=%s\n",
		snap.Connected, snap.Nick, state.FormatRoomID(snap.Game.RoomID), snap.Game.Phase)
	if snap.Game.Phase == state.PhaseGame {
		fmt.Printf("top=%s suit=%s penalty=%d turn=%s\n",
			snap.Game.Top, snap.Game.ActiveSuit, snap.Game.Penalty, snap.Game.Turn)
	}
	ids := make([]int, 0, len(snap.Rooms))
	for id := range snap.Rooms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		r := snap.Rooms[id]
		fmt.Printf("room %d: %s %s %s\n", r.ID, r.Name, r.Players, r.State)
	}
	if snap.LastServerMsg != "" {
		fmt.Println("server:", snap.LastServerMsg)
	}
	if snap.LastError != "" {
		fmt.Println("error:", snap.LastError)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
