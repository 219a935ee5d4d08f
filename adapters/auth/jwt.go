// Package auth provides stateless operator authentication using JWT.
// Authentication policy beyond session tokens lives outside this core.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims for an operator session.
type Claims struct {
	OperatorID string `json:"oid"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService provides stateless JWT token operations.
// Thread-safe and suitable for concurrent use.
type TokenService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// NewTokenService creates a new JWT token service.
// If secret is empty, a random 32-byte secret is generated; sessions then
// do not survive a restart.
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	var secretBytes []byte
	if secret == "" {
		secretBytes = make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			// A zeroed signing key must never be used.
			panic("auth: generate session secret: " + err.Error())
		}
	} else {
		secretBytes = []byte(secret)
	}

	if expiration == 0 {
		expiration = 12 * time.Hour
	}

	return &TokenService{
		secret:     secretBytes,
		issuer:     "backoffice",
		expiration: expiration,
	}
}

// GenerateToken creates a new session token for the given operator.
func (s *TokenService) GenerateToken(operatorID, email string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.expiration)

	claims := Claims{
		OperatorID: operatorID,
		Email:      email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// ValidateToken validates a session token and returns the claims.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// GenerateSecret generates a random secret suitable for JWT signing.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("auth: generate secret: " + err.Error())
	}
	return hex.EncodeToString(b)
}
