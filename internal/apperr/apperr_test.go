package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{Validation("bad input"), CodeValidation},
		{Validationf("bad %s", "field"), CodeValidation},
		{Permission("nope"), CodePermission},
		{Expired("too late"), CodeExpired},
		{NotFound("gone"), CodeNotFound},
		{errors.New("plain"), ""},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.want {
			t.Errorf("CodeOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("svc.Send: %w", Permission("blocked"))
	if got := CodeOf(err); got != CodePermission {
		t.Errorf("CodeOf(wrapped) = %q, want permission", got)
	}
	if got := MessageOf(err); got != "blocked" {
		t.Errorf("MessageOf(wrapped) = %q, want blocked", got)
	}
}

func TestMessageOfFallback(t *testing.T) {
	if got := MessageOf(errors.New("pq: connection refused")); got != "internal server error" {
		t.Errorf("MessageOf leaked internals: %q", got)
	}
	if got := MessageOf(NotFound("user not found")); got != "user not found" {
		t.Errorf("MessageOf = %q", got)
	}
}
