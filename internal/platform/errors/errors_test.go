package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeAlreadyBuzzed, "buzzer already set")
	target := New(CodeAlreadyBuzzed, "different message")

	if !stderrors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(err, New(CodeInvalidState, "buzzer already set")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeUnknown, "persist round", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found in chain")
	}
}

func TestCodeOfUnwraps(t *testing.T) {
	inner := New(CodeNotFound, "session missing")
	outer := fmt.Errorf("load session: %w", inner)

	if got := CodeOf(outer); got != CodeNotFound {
		t.Fatalf("code = %s, want %s", got, CodeNotFound)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %s, want %s", got, CodeUnknown)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeUnauthorizedRole, http.StatusForbidden},
		{CodeInvalidState, http.StatusConflict},
		{CodeAlreadyBuzzed, http.StatusConflict},
		{CodeAlreadySubmitted, http.StatusConflict},
		{CodeInsufficientPlayers, http.StatusConflict},
		{CodeNoTracksAvailable, http.StatusUnprocessableEntity},
		{CodePlayerEmptyDisplayName, http.StatusBadRequest},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Fatalf("%s status = %d, want %d", tt.code, got, tt.want)
		}
	}
}
