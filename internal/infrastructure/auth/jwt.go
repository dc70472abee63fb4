package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/honeynil/wallet-service/pkg/errors"
)

const tokenTTL = time.Hour

// TokenIssuer mints and verifies HS256 bearer tokens carrying a single
// user_id claim. The signing secret is handed in once at construction and
// never read from the environment at call time.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: tokenTTL}
}

// Issue signs a token for userID, expiring one hour after issuance.
// An unset secret fails the call instead of signing with an empty key.
func (i *TokenIssuer) Issue(userID int32) (string, error) {
	if len(i.secret) == 0 {
		return "", pkgerrors.ErrMissingSecret
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(i.ttl).Unix(),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify decodes a token and returns the user id it was issued for.
// Expired, malformed or badly signed tokens all map to ErrInvalidToken.
func (i *TokenIssuer) Verify(tokenStr string) (int32, error) {
	if len(i.secret) == 0 {
		return 0, pkgerrors.ErrMissingSecret
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, pkgerrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, pkgerrors.ErrInvalidToken
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, pkgerrors.ErrInvalidToken
	}
	return int32(userID), nil
}
