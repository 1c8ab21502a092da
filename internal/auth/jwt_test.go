package auth

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{
		UserID: "user-1",
		Role:   "student",
		Name:   "Ada",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if claims.UserID != "user-1" || claims.Role != "student" || claims.Name != "Ada" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject to mirror user id, got %q", claims.Subject)
	}
}

func TestParseTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: "user-1", Role: "admin"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("other", "issuer", token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
	if _, err := ParseToken("secret", "someone-else", token); err == nil {
		t.Fatalf("expected issuer mismatch")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", -time.Minute, Claims{UserID: "user-1", Role: "student"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "issuer", token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}
