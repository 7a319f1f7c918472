package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload carried by agent API tokens.
type Claims struct {
	Email  string `json:"email"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
	UserID int64  `json:"uid"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates agent tokens.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTManager creates a manager with the given signing secret and token
// lifetime.
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &JWTManager{secret: []byte(secret), ttl: ttl}
}

// Generate signs a token for the principal.
func (m *JWTManager) Generate(p *Principal) (string, error) {
	if m == nil || len(m.secret) == 0 {
		return "", fmt.Errorf("auth: jwt secret not configured")
	}
	now := time.Now()
	claims := Claims{
		Email:  p.Email,
		Role:   p.Role.String(),
		Active: p.Active,
		UserID: p.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Subject:   fmt.Sprintf("%d", p.ID),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses a token and reconstructs the principal.
func (m *JWTManager) Validate(tokenString string) (*Principal, error) {
	if m == nil || len(m.secret) == 0 {
		return nil, fmt.Errorf("auth: jwt secret not configured")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}
	return &Principal{
		ID:     claims.UserID,
		Email:  claims.Email,
		Role:   ParseRole(claims.Role),
		Active: claims.Active,
	}, nil
}
