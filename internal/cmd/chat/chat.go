// Package chat parses chat command flags and composes transport entrypoints.
package chat

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/duochat/duochat/internal/platform/cmd"
	server "github.com/duochat/duochat/internal/services/chat/app"
)

// Config holds chat command configuration.
type Config struct {
	HTTPAddr    string `env:"DUOCHAT_CHAT_HTTP_ADDR"    envDefault:":8086"`
	StoragePath string `env:"DUOCHAT_CHAT_STORAGE_PATH" envDefault:"chat.db"`
	TokenSecret string `env:"DUOCHAT_TOKEN_SECRET"`
	TokenIssuer string `env:"DUOCHAT_TOKEN_ISSUER"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "chat HTTP listen address")
	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "chat SQLite database path")
	fs.StringVar(&cfg.TokenSecret, "token-secret", cfg.TokenSecret, "access token verification secret")
	fs.StringVar(&cfg.TokenIssuer, "token-issuer", cfg.TokenIssuer, "expected access token issuer")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the chat app and starts realtime transport behavior.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChat, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:    cfg.HTTPAddr,
			StoragePath: cfg.StoragePath,
			TokenSecret: cfg.TokenSecret,
			TokenIssuer: cfg.TokenIssuer,
		}); err != nil {
			return fmt.Errorf("serve chat: %w", err)
		}
		return nil
	})
}
