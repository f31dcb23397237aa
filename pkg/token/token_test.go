package token

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue("secret", 42, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	uid, err := Parse("secret", tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if uid != 42 {
		t.Fatalf("uid = %d, want 42", uid)
	}
}

func TestParseRejectsWrongSecretAndExpired(t *testing.T) {
	tok, _ := Issue("secret", 42, time.Minute)
	if _, err := Parse("other", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: err = %v", err)
	}

	expired, _ := Issue("secret", 42, -time.Minute)
	if _, err := Parse("secret", expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: err = %v", err)
	}
}

func TestUserIDFromClaim(t *testing.T) {
	if id, err := UserIDFromClaim(float64(7)); err != nil || id != 7 {
		t.Fatalf("float claim: id=%d err=%v", id, err)
	}
	if _, err := UserIDFromClaim("abc"); err == nil {
		t.Fatal("expected error for non-numeric uid")
	}
	if _, err := UserIDFromClaim(nil); err == nil {
		t.Fatal("expected error for missing uid")
	}
}
