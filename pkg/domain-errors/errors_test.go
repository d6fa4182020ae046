package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesCodeAndMessage(t *testing.T) {
	err := New(CodeNotFound, "user not found")
	if !errors.Is(err, New(CodeNotFound, "user not found")) {
		t.Fatalf("expected errors.Is to match identical code and message")
	}
	if errors.Is(err, New(CodeNotFound, "other message")) {
		t.Fatalf("expected errors.Is to reject differing message")
	}
	if errors.Is(err, New(CodeConflict, "user not found")) {
		t.Fatalf("expected errors.Is to reject differing code")
	}
}

func TestWrapPreservesChain(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, CodeInternal, "failed to load profile")
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to remain in chain")
	}
	if !HasCode(err, CodeInternal) {
		t.Fatalf("expected HasCode to find the wrapping code")
	}
	if Wrap(nil, CodeInternal, "noop") != nil {
		t.Fatalf("wrapping nil must return nil")
	}
}

func TestHasCodeWalksNestedCodes(t *testing.T) {
	inner := New(CodeNotFound, "missing")
	outer := Wrap(inner, CodeInternal, "lookup failed")
	if !HasCode(outer, CodeNotFound) {
		t.Fatalf("expected inner code to be visible through the chain")
	}
	if HasCode(outer, CodeConflict) {
		t.Fatalf("did not expect an absent code to match")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeForbidden, "nope")); got != CodeForbidden {
		t.Fatalf("expected CodeForbidden, got %s", got)
	}
	if got := CodeOf(errors.New("plain")); got != CodeInternal {
		t.Fatalf("expected uncoded errors to default to CodeInternal, got %s", got)
	}
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:    http.StatusBadRequest,
		CodeUnauthorized:  http.StatusUnauthorized,
		CodeForbidden:     http.StatusForbidden,
		CodeNotFound:      http.StatusNotFound,
		CodeConflict:      http.StatusConflict,
		CodeLimitExceeded: http.StatusUnprocessableEntity,
		CodeUnavailable:   http.StatusServiceUnavailable,
		CodeInternal:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := ToHTTPStatus(code); got != want {
			t.Fatalf("code %s: expected %d, got %d", code, want, got)
		}
	}
}
