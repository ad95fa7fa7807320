package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %s", resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.TypingTimeout != 2*time.Second {
		t.Fatalf("unexpected typing timeout: %v", cfg.TypingTimeout)
	}
	if cfg.ServerURL != Default().ServerURL {
		t.Fatalf("unexpected server url: %s", cfg.ServerURL)
	}
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server_url: ws://chat.example:9000/ws\ntyping_timeout: 3s\nserver:\n  addr: \":7000\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("STRANGERCHAT_BANNED_WORDS", "foo, bar ,,baz")
	t.Setenv("STRANGERCHAT_SERVER_ADMIN_SECRET", "s3cret")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "ws://chat.example:9000/ws" {
		t.Fatalf("file value not applied: %s", cfg.ServerURL)
	}
	if cfg.TypingTimeout != 3*time.Second {
		t.Fatalf("duration not parsed: %v", cfg.TypingTimeout)
	}
	if cfg.Server.Addr != ":7000" {
		t.Fatalf("nested value not applied: %s", cfg.Server.Addr)
	}
	if cfg.Server.AdminSecret != "s3cret" {
		t.Fatalf("env value not applied: %q", cfg.Server.AdminSecret)
	}
	if want := []string{"foo", "bar", "baz"}; !reflect.DeepEqual(cfg.BannedWords, want) {
		t.Fatalf("banned words = %v, want %v", cfg.BannedWords, want)
	}
}

func TestUpdateFromOverridesNonZero(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{ServerURL: "ws://other/ws", Server: ServerConfig{MessageBurst: 3}})

	if cfg.ServerURL != "ws://other/ws" {
		t.Fatalf("server url not overridden: %s", cfg.ServerURL)
	}
	if cfg.Server.MessageBurst != 3 {
		t.Fatalf("burst not overridden: %d", cfg.Server.MessageBurst)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Fatalf("zero value should not override addr: %s", cfg.Server.Addr)
	}
}

func TestNormalizeWords(t *testing.T) {
	got := normalizeWords([]string{"a, b", " ", "c"})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("normalizeWords = %v, want %v", got, want)
	}
}
