// Package auth provides issuing and verification of the HS256 bearer tokens
// that carry the owner identity on API requests. The identity provider that
// authenticates users and hands out tokens lives outside this service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long issued tokens stay valid.
const TokenTTL = 24 * time.Hour

// Static errors for token operations.
var (
	// ErrSecretRequired is returned when the signing secret is empty.
	ErrSecretRequired = errors.New("auth: signing secret is required")
	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrNoSubject is returned when a valid token carries no user id.
	ErrNoSubject = errors.New("auth: token has no user id")
)

// Verifier validates bearer tokens and extracts the owner id.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for tokens signed with the given secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// IssueToken signs a token for the given user id. Used by tests and by
// operators minting service tokens; end-user tokens come from the identity
// provider sharing the same secret.
func (v *Verifier) IssueToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(TokenTTL).Unix(),
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a bearer token and returns the user id it carries.
func (v *Verifier) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", ErrNoSubject
	}

	return userID, nil
}
