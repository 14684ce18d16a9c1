package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload carried by both access and refresh tokens: a
// point-in-time snapshot of identity and resolved permissions. Permission
// changes take effect at the next issuance, not retroactively.
type Claims struct {
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies the two token classes with distinct secrets
// and expiries.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

func (i *TokenIssuer) SignAccess(userID, email string, permissions []string) (string, error) {
	return sign(i.accessSecret, userID, email, permissions, i.accessTTL)
}

func (i *TokenIssuer) SignRefresh(userID, email string, permissions []string) (string, error) {
	return sign(i.refreshSecret, userID, email, permissions, i.refreshTTL)
}

func (i *TokenIssuer) ParseAccess(token string) (*Claims, error) {
	return parse(token, i.accessSecret)
}

func (i *TokenIssuer) ParseRefresh(token string) (*Claims, error) {
	return parse(token, i.refreshSecret)
}

func sign(secret []byte, userID, email string, permissions []string, ttl time.Duration) (string, error) {
	if permissions == nil {
		permissions = []string{}
	}
	now := time.Now()
	claims := Claims{
		Email:       email,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func parse(tokenStr string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
