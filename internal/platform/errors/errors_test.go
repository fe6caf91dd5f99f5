package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeUnknownUser, "user 9 is missing")
	if !stderrors.Is(err, New(CodeUnknownUser, "")) {
		t.Fatal("expected code match")
	}
	if stderrors.Is(err, New(CodeUnauthorized, "")) {
		t.Fatal("did not expect cross-code match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeStorageFailure, "append message", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause in chain")
	}
	if err.Error() != "append message" {
		t.Fatalf("message = %q, want %q", err.Error(), "append message")
	}
}

func TestCodeOfWalksWrappedChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeBadRequest, "malformed event"))
	if got := CodeOf(err); got != CodeBadRequest {
		t.Fatalf("code = %q, want %q", got, CodeBadRequest)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
}
