package otel

import (
	"context"
	"testing"
)

func TestSetupWithoutEndpointReturnsNoop(t *testing.T) {
	t.Setenv("DUOCHAT_OTEL_ENDPOINT", "")

	shutdown, err := Setup(context.Background(), "chat")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestSetupDisabledIgnoresEndpoint(t *testing.T) {
	t.Setenv("DUOCHAT_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("DUOCHAT_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "chat")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}
