// Package auth implements the credential gate that guards new chat
// connections: it verifies signed session tokens and resolves the identity
// they carry.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Tyrowin/roomcast/internal/chat"
)

// Claims is the payload of a session token. The subject is the user's email.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs session tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIssuer returns an Issuer signing HS256 tokens for the given issuer name.
func NewIssuer(secret []byte, issuer string) *Issuer {
	return &Issuer{secret: secret, issuer: issuer, now: time.Now}
}

// Issue creates a signed token for identity that expires after ttl.
func (i *Issuer) Issue(identity chat.Identity, ttl time.Duration) (string, error) {
	email := strings.TrimSpace(identity.Email)
	if email == "" {
		return "", errors.New("identity email is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := i.now()
	claims := &Claims{
		Username: strings.TrimSpace(identity.Username),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
