package auth

import (
	"testing"
	"time"

	"github.com/tabletalk-ai/tabletalk-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "tabletalk-test"}

func TestMintAndParseRoundTrip(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{
		UserID: "user_123",
		Email:  "owner@example.com",
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := ParseAccessToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user_123" {
		t.Fatalf("unexpected user id %q", claims.UserID)
	}
	if claims.Email != "owner@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token, err := MintAccessToken(config.JWTConfig{Secret: testJWT.Secret, Issuer: "other"}, time.Now(), AccessTokenPayload{UserID: "u"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatalf("expected issuer mismatch error")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{UserID: "u"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(config.JWTConfig{Secret: "wrong", Issuer: testJWT.Issuer}, token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: "u"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestMintRequiresUserID(t *testing.T) {
	if _, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{}); err == nil {
		t.Fatalf("expected user id error")
	}
}
