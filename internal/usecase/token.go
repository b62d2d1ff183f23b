package usecase

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultJWTTTL = 24 * time.Hour

// TokenIssuer signs operator tokens for the admin API.
type TokenIssuer struct {
	jwtKey []byte
	jwtTTL time.Duration
	now    func() time.Time
}

func NewTokenIssuer(jwtKey []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = defaultJWTTTL
	}
	return &TokenIssuer{jwtKey: jwtKey, jwtTTL: ttl, now: time.Now}
}

// Issue returns an HS256 token whose subject names the operator.
func (u *TokenIssuer) Issue(subject string) (string, error) {
	now := u.now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": "operator",
		"iat":  now.Unix(),
		"exp":  now.Add(u.jwtTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(u.jwtKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}
