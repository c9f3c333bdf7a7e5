package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash must not equal the plaintext")
	}
	if err := VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password gave %v, want ErrInvalidCredentials", err)
	}
}

func TestTokenIssueAndVerify(t *testing.T) {
	tm, err := NewTokenManager("test-secret", 60)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}

	token, err := tm.Issue("user-123", "pro")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("user_id = %q, want user-123", claims.UserID)
	}
	if claims.Tier != "pro" {
		t.Errorf("tier = %q, want pro", claims.Tier)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	tm1, _ := NewTokenManager("secret-one", 60)
	tm2, _ := NewTokenManager("secret-two", 60)

	token, err := tm1.Issue("user-123", "free")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := tm2.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign token gave %v, want ErrInvalidToken", err)
	}
}

func TestTokenGarbageRejected(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", 60)
	if _, err := tm.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token gave %v, want ErrInvalidToken", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	tm, _ := NewTokenManager("test-secret", 60)
	tm.ttl = -time.Minute

	token, err := tm.Issue("user-123", "free")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := tm.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token gave %v, want ErrInvalidToken", err)
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := NewTokenManager("", 60); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
