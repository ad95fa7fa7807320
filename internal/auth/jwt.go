package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer is stamped into privilege tokens minted by the CLI.
	DefaultIssuer = "strangerchat"
	// DefaultAudience limits tokens to privileged registration.
	DefaultAudience = "strangerchat-privileged"
	// DefaultTTL is the lifetime of a privilege token.
	DefaultTTL = 30 * 24 * time.Hour
)

var (
	// ErrNoSecret is returned when no signing secret is configured.
	ErrNoSecret = errors.New("admin secret not configured")
	// ErrUserMismatch is returned when a token was issued for another user id.
	ErrUserMismatch = errors.New("token issued for another user")
)

// Claims binds a user id to the privileged role.
type Claims struct {
	UserID     string `json:"user_id"`
	Privileged bool   `json:"privileged"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// NewJWTConfig returns the configuration used for privilege tokens.
func NewJWTConfig(secret string, ttl time.Duration) *JWTConfig {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWTConfig{
		Secret:   []byte(secret),
		Issuer:   DefaultIssuer,
		Audience: DefaultAudience,
		TTL:      ttl,
	}
}

// GenerateToken creates a privilege token for userID.
func GenerateToken(cfg *JWTConfig, userID string) (string, error) {
	if len(cfg.Secret) == 0 {
		return "", ErrNoSecret
	}
	if userID == "" {
		return "", errors.New("user id is required")
	}

	now := time.Now()
	claims := Claims{
		UserID:     userID,
		Privileged: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateToken parses and validates a JWT token.
func ValidateToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("invalid issuer")
	}
	if cfg.Audience != "" && !slices.Contains(claims.Audience, cfg.Audience) {
		return nil, fmt.Errorf("invalid audience")
	}

	return claims, nil
}

// VerifyPrivilege checks that tokenString grants the privileged role to userID.
func VerifyPrivilege(cfg *JWTConfig, tokenString, userID string) error {
	claims, err := ValidateToken(cfg, tokenString)
	if err != nil {
		return err
	}
	if !claims.Privileged {
		return errors.New("token does not grant privileges")
	}
	if claims.UserID != userID {
		return ErrUserMismatch
	}
	return nil
}
