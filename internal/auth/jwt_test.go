package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestPrivilegeTokenRoundTrip(t *testing.T) {
	cfg := NewJWTConfig("test-secret", time.Hour)

	token, err := GenerateToken(cfg, "abc123")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "abc123" || claims.Subject != "abc123" || !claims.Privileged {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if err := VerifyPrivilege(cfg, token, "abc123"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyPrivilegeRejects(t *testing.T) {
	cfg := NewJWTConfig("test-secret", time.Hour)
	token, err := GenerateToken(cfg, "abc123")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := VerifyPrivilege(cfg, token, "someone-else"); !errors.Is(err, ErrUserMismatch) {
		t.Fatalf("expected ErrUserMismatch, got %v", err)
	}
	if err := VerifyPrivilege(NewJWTConfig("other-secret", 0), token, "abc123"); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
	if err := VerifyPrivilege(cfg, "not-a-token", "abc123"); err == nil {
		t.Fatal("garbage token must be rejected")
	}
	if err := VerifyPrivilege(NewJWTConfig("", 0), token, "abc123"); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	cfg := NewJWTConfig("test-secret", time.Hour)
	cfg.TTL = -time.Minute

	token, err := GenerateToken(cfg, "abc123")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestValidateTokenWrongAudience(t *testing.T) {
	cfg := NewJWTConfig("test-secret", time.Hour)

	claims := jwt.MapClaims{
		"user_id":    "abc123",
		"privileged": true,
		"iss":        DefaultIssuer,
		"aud":        "somewhere-else",
		"exp":        time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatal("token for another audience must be rejected")
	}
}

func TestGenerateTokenRequiresSecretAndUser(t *testing.T) {
	if _, err := GenerateToken(NewJWTConfig("", 0), "abc"); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
	if _, err := GenerateToken(NewJWTConfig("s", 0), ""); err == nil {
		t.Fatal("empty user id must be rejected")
	}
}
