package chat

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8086" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.StoragePath != "chat.db" {
		t.Fatalf("expected default storage path, got %q", cfg.StoragePath)
	}
	if cfg.TokenSecret != "" {
		t.Fatalf("expected empty token secret, got %q", cfg.TokenSecret)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("DUOCHAT_CHAT_HTTP_ADDR", "env-chat")
	t.Setenv("DUOCHAT_CHAT_STORAGE_PATH", "env-store")
	t.Setenv("DUOCHAT_TOKEN_SECRET", "env-secret")
	t.Setenv("DUOCHAT_TOKEN_ISSUER", "env-issuer")

	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-chat",
		"-storage-path", "flag-store",
		"-token-secret", "flag-secret",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-chat" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.StoragePath != "flag-store" {
		t.Fatalf("expected flag storage path, got %q", cfg.StoragePath)
	}
	if cfg.TokenSecret != "flag-secret" {
		t.Fatalf("expected flag token secret, got %q", cfg.TokenSecret)
	}
	if cfg.TokenIssuer != "env-issuer" {
		t.Fatalf("expected env token issuer, got %q", cfg.TokenIssuer)
	}
}
