package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("ADGEN_ENV", "production")
	t.Setenv("ADGEN_DATA_DIR", "/tmp/adgen")

	cfg := Load()
	if cfg.Dynamic.WebhookSecret != "s3cret" {
		t.Fatalf("expected secret from env, got %q", cfg.Dynamic.WebhookSecret)
	}
	if !cfg.Production() {
		t.Fatalf("expected production")
	}
	if cfg.DBPath != filepath.Join("/tmp/adgen", "adgen.db") {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.Dynamic.SeedSecret != DefaultSeedSecret {
		t.Fatalf("expected default seed secret")
	}
}

func TestConfigFileIsReadOnlyByLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adgen.yaml")
	if err := os.WriteFile(path, []byte("webhook_secret: from-file\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ADGEN_CONFIG", path)
	t.Setenv("WEBHOOK_SECRET", "from-env")

	cfg := Load()
	if cfg.ConfigFile != path || cfg.Dynamic.WebhookSecret != "from-env" {
		t.Fatalf("Load should only record the file: %+v", cfg)
	}
	if err := cfg.LoadFile(); err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.Dynamic.WebhookSecret != "from-file" {
		t.Fatalf("expected file value, got %q", cfg.Dynamic.WebhookSecret)
	}

	if err := os.WriteFile(path, []byte("bogus: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	before := cfg
	if err := cfg.LoadFile(); err == nil {
		t.Fatalf("expected error for invalid file")
	}
	if cfg != before {
		t.Fatalf("config changed after failed load: %+v", cfg)
	}
}

func TestParseFileRejectsUnknownKeys(t *testing.T) {
	if _, err := ParseFile([]byte("webhook_secret: a\nbogus: 1\n")); err == nil {
		t.Fatalf("expected unknown key error")
	}
	f, err := ParseFile([]byte("webhook_secret: a\nagents_url: http://x/run\nlog_level: debug\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.WebhookSecret != "a" || f.AgentsURL != "http://x/run" || f.LogLevel != "debug" {
		t.Fatalf("unexpected file: %+v", f)
	}
}

func TestApplyKeepsUnsetValues(t *testing.T) {
	cfg := Config{Dynamic: Dynamic{WebhookSecret: "env", TeamURL: "http://team"}}
	cfg.Apply(File{Dynamic: Dynamic{WebhookSecret: "file"}})
	if cfg.Dynamic.WebhookSecret != "file" || cfg.Dynamic.TeamURL != "http://team" {
		t.Fatalf("unexpected merge: %+v", cfg.Dynamic)
	}
}

func TestWatchReloadsDynamic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adgen.yaml")
	if err := os.WriteFile(path, []byte("webhook_secret: first\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	base := Dynamic{WebhookSecret: "base", SeedSecret: "dev"}
	live := NewLive(base)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, base, live, zerolog.Nop()) }()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("webhook_secret: second\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for live.Get().WebhookSecret != "second" {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for reload, have %+v", live.Get())
		case <-time.After(20 * time.Millisecond):
		}
	}
	if live.Get().SeedSecret != "dev" {
		t.Fatalf("expected base values kept")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}
}
