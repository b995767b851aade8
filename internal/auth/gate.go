package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Tyrowin/roomcast/internal/chat"
)

// Gate verifies credentials presented when a connection opens. It holds no
// mutable state and is safe for concurrent use.
type Gate struct {
	secret    []byte
	issuer    string
	leeway    time.Duration
	directory Directory
	now       func() time.Time
}

// Option customises a Gate.
type Option func(*Gate)

// WithIssuer requires tokens to carry the given "iss" claim.
func WithIssuer(issuer string) Option {
	return func(g *Gate) { g.issuer = issuer }
}

// WithDirectory resolves every verified subject against dir; unknown or
// inactive users are refused.
func WithDirectory(dir Directory) Option {
	return func(g *Gate) { g.directory = dir }
}

// WithLeeway tolerates clock skew when checking expiry.
func WithLeeway(d time.Duration) Option {
	return func(g *Gate) { g.leeway = d }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate returns a Gate verifying HS256 tokens signed with secret.
func NewGate(secret []byte, opts ...Option) *Gate {
	g := &Gate{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate verifies credential and returns the identity it encodes.
// The error, if any, is an *Error of KindMissing or KindInvalid.
func (g *Gate) Authenticate(ctx context.Context, credential string) (chat.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return chat.Identity{}, missing()
	}

	claims, err := g.verify(credential)
	if err != nil {
		return chat.Identity{}, invalid(err)
	}

	identity := chat.Identity{
		Username: strings.TrimSpace(claims.Username),
		Email:    strings.TrimSpace(claims.Subject),
	}
	if identity.Email == "" {
		return chat.Identity{}, invalid(errors.New("token has no subject"))
	}

	if g.directory == nil {
		return identity, nil
	}

	user, err := g.directory.LookupByEmail(ctx, identity.Email)
	if err != nil {
		return chat.Identity{}, invalid(fmt.Errorf("lookup %q: %w", identity.Email, err))
	}
	if !user.Active {
		return chat.Identity{}, invalid(fmt.Errorf("user %q is inactive", identity.Email))
	}
	if user.Username != "" {
		identity.Username = user.Username
	}
	return identity, nil
}

func (g *Gate) verify(credential string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(g.leeway),
		jwt.WithTimeFunc(g.now),
	}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}
