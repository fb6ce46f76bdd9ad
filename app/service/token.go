package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/linkloop/auth-service/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Opaque token sizes in raw bytes, hex-encoded before leaving the process.
const (
	VerifyTokenBytes  = 32
	ResetTokenBytes   = 32
	RefreshTokenBytes = 40
	OAuthStateBytes   = 16
)

type Claims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies signed access tokens and generates the
// opaque random tokens used for verification, reset, refresh and OAuth
// state. It holds no mutable state.
type TokenIssuer struct {
	cfg *config.Config
}

func NewTokenIssuer(cfg *config.Config) *TokenIssuer {
	return &TokenIssuer{cfg: cfg}
}

// MintAccessToken signs a short-lived bearer token carrying the user id as
// its only custom claim. When extended is true the remember-me lifetime
// applies.
func (t *TokenIssuer) MintAccessToken(userID uint64, extended bool) (string, time.Duration, error) {
	ttl := t.cfg.JWT.AccessTTL
	if extended {
		ttl = t.cfg.JWT.ExtendedTTL
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.cfg.JWT.Secret))
	if err != nil {
		return "", 0, err
	}
	return signed, ttl, nil
}

// VerifyAccessToken checks signature and expiry. Either failure yields
// ErrInvalidToken; there is no partial trust.
func (t *TokenIssuer) VerifyAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// NewOpaqueToken returns n cryptographically random bytes, hex-encoded.
// The raw value is handed out exactly once; only its hash may be stored.
func (t *TokenIssuer) NewOpaqueToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken is the one-way form under which opaque tokens are persisted. A
// plain SHA-256 suffices since the inputs are high-entropy nonces, not
// passwords.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
