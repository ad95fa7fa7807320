package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/strangerchat/internal/proto"
	"github.com/vovakirdan/strangerchat/internal/utils"
)

// ws_smoke registers two anonymous users with a shared interest against a
// running server, waits until they are matched and relays one message.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:5000/ws", "WebSocket address")
	interest := flag.String("interest", "Default chat", "interest both users register with")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	alice, err := dial(ctx, *addr)
	if err != nil {
		return fmt.Errorf("dial alice: %w", err)
	}
	defer alice.Close(websocket.StatusNormalClosure, "bye")

	bob, err := dial(ctx, *addr)
	if err != nil {
		return fmt.Errorf("dial bob: %w", err)
	}
	defer bob.Close(websocket.StatusNormalClosure, "bye")

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		reg := proto.Register{ID: utils.NewID(utils.UserIDLength), Interests: []string{*interest}}
		if err := send(ctx, conn, reg); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}

	if _, err := waitFor(ctx, "alice", alice, proto.EventMatched); err != nil {
		return err
	}
	if _, err := waitFor(ctx, "bob", bob, proto.EventMatched); err != nil {
		return err
	}

	if err := send(ctx, alice, proto.SendMessage{Text: *text}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	ev, err := waitFor(ctx, "bob", bob, proto.EventReceiveMessage)
	if err != nil {
		return err
	}
	fmt.Printf("relay ok: %q\n", ev.(proto.ReceiveMessage).Text)

	if err := send(ctx, alice, proto.ManualDisconnect{}); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	if _, err := waitFor(ctx, "bob", bob, proto.EventPartnerDisconnected); err != nil {
		return err
	}
	fmt.Println("partner disconnect ok")
	return nil
}

func dial(ctx context.Context, addr string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	return conn, err
}

func send(ctx context.Context, conn *websocket.Conn, ev proto.ClientEvent) error {
	env, err := proto.Encode(ev)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, env)
}

// waitFor prints every event received on conn until one named want arrives.
func waitFor(ctx context.Context, who string, conn *websocket.Conn, want string) (proto.ServerEvent, error) {
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return nil, fmt.Errorf("%s waiting for %s: %w", who, want, err)
		}
		fmt.Printf("[%s] event=%s data=%s\n", who, env.Event, env.Data)

		ev, err := proto.DecodeServerEvent(env)
		if err != nil {
			fmt.Printf("[%s] skipping: %v\n", who, err)
			continue
		}
		if ev.EventName() == want {
			return ev, nil
		}
	}
}
