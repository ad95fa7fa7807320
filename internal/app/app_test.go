package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/strangerchat/internal/config"
	"github.com/vovakirdan/strangerchat/internal/core"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestNewChatPersistsIdentity(t *testing.T) {
	cfg := config.Default()
	cfg.DataPath = filepath.Join(t.TempDir(), "chat.db")

	first := NewChat(cfg, nopLogger())
	if first.store == nil {
		t.Fatal("expected sqlite store")
	}
	id := first.session.Snapshot().Identity.ID
	first.cleanup()

	second := NewChat(cfg, nopLogger())
	defer second.cleanup()
	if got := second.session.Snapshot().Identity.ID; got != id {
		t.Fatalf("identity not persisted: %q != %q", got, id)
	}
}

func TestNewChatFallsBackToMemory(t *testing.T) {
	cfg := config.Default()
	cfg.DataPath = filepath.Join(t.TempDir(), "missing", "dir", "chat.db")

	chat := NewChat(cfg, nopLogger())
	if chat.store != nil {
		t.Fatal("unopenable path should leave the store unset")
	}
	snap := chat.session.Snapshot()
	if snap.Identity.ID == "" || snap.State != core.StateIdle {
		t.Fatalf("session should still start: %+v", snap)
	}
}

func TestServerRunAndShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = freeAddr(t)
	cfg.Server.ShutdownTimeout = time.Second

	srv := NewServer(cfg, nopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	url := fmt.Sprintf("http://%s/health", cfg.Server.Addr)
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("unexpected status %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRelayCleanerKeepsMarkupUnlessConfigured(t *testing.T) {
	cfg := config.Default().Server

	if got := relayCleaner(cfg).Clean("a<b and c>d", nil); got != "a<b and c>d" {
		t.Fatalf("default relay cleaner changed text: %q", got)
	}

	cfg.StripMarkup = true
	if got := relayCleaner(cfg).Clean("<b>hi</b>", nil); got != "hi" {
		t.Fatalf("strip_markup relay cleaner = %q, want %q", got, "hi")
	}
}
