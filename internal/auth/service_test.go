package auth

import (
	"errors"
	"testing"
)

func TestAuthenticate(t *testing.T) {
	svc := NewService([]string{"secret-token", " padded "})

	if !svc.Enabled() {
		t.Fatalf("expected token mode")
	}
	if _, err := svc.Authenticate("Bearer secret-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Authenticate("bearer padded"); err != nil {
		t.Fatalf("scheme must be case-insensitive, got %v", err)
	}
	if _, err := svc.Authenticate(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token, got %v", err)
	}
	if _, err := svc.Authenticate("Bearer nope"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := svc.Authenticate("Basic abc"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong scheme, got %v", err)
	}
}

func TestServiceDisabledWithoutTokens(t *testing.T) {
	svc := NewService(nil)
	if svc.Enabled() {
		t.Fatalf("expected disabled mode without tokens")
	}
}
