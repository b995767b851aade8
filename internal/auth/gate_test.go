package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Tyrowin/roomcast/internal/chat"
	"github.com/Tyrowin/roomcast/internal/mocks"
)

var (
	testSecret = []byte("0123456789abcdef0123456789abcdef")
	alice      = chat.Identity{Username: "alice", Email: "alice@example.com"}
)

func issue(t *testing.T, secret []byte, identity chat.Identity, ttl time.Duration) string {
	t.Helper()
	token, err := NewIssuer(secret, "gochat").Issue(identity, ttl)
	require.NoError(t, err)
	return token
}

func TestAuthenticate_MissingCredential(t *testing.T) {
	gate := NewGate(testSecret)

	for _, credential := range []string{"", "   "} {
		_, err := gate.Authenticate(context.Background(), credential)
		require.ErrorIs(t, err, ErrMissingCredential)
		require.NotErrorIs(t, err, ErrInvalidCredential)
		require.Equal(t, KindMissing, KindOf(err))
	}
}

func TestAuthenticate_ValidCredential(t *testing.T) {
	req := require.New(t)
	gate := NewGate(testSecret, WithIssuer("gochat"))

	identity, err := gate.Authenticate(context.Background(), issue(t, testSecret, alice, time.Minute))
	req.NoError(err)
	req.Equal(alice, identity)
}

func TestAuthenticate_InvalidCredential(t *testing.T) {
	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   alice.Email,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: alice.Email},
	}).SignedString(testSecret)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(testSecret)
	require.NoError(t, err)

	otherIssuer, err := NewIssuer(testSecret, "someone-else").Issue(alice, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		credential string
		gate       *Gate
	}{
		{"malformed", "not-a-token", NewGate(testSecret)},
		{"forged signature", issue(t, []byte("another-secret-another-secret!!"), alice, time.Minute), NewGate(testSecret)},
		{"expired", issue(t, testSecret, alice, time.Minute), NewGate(testSecret, WithClock(func() time.Time {
			return time.Now().Add(2 * time.Hour)
		}))},
		{"alg none", noneToken, NewGate(testSecret)},
		{"no expiry", noExpiry, NewGate(testSecret)},
		{"no subject", noSubject, NewGate(testSecret)},
		{"wrong issuer", otherIssuer, NewGate(testSecret, WithIssuer("gochat"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.gate.Authenticate(context.Background(), tt.credential)
			require.ErrorIs(t, err, ErrInvalidCredential)
			require.Equal(t, KindInvalid, KindOf(err))
		})
	}
}

func TestAuthenticate_LeewayToleratesSkew(t *testing.T) {
	gate := NewGate(testSecret, WithLeeway(time.Minute), WithClock(func() time.Time {
		return time.Now().Add(90 * time.Second)
	}))

	_, err := gate.Authenticate(context.Background(), issue(t, testSecret, alice, time.Minute))
	require.NoError(t, err)
}

func TestAuthenticate_Directory(t *testing.T) {
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectory(ctrl)
	gate := NewGate(testSecret, WithDirectory(directory))
	token := issue(t, testSecret, chat.Identity{Email: alice.Email}, time.Minute)

	t.Run("active user resolves username", func(t *testing.T) {
		directory.EXPECT().LookupByEmail(gomock.Any(), alice.Email).
			Return(chat.User{Identity: alice, Active: true}, nil)

		identity, err := gate.Authenticate(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, alice, identity)
	})

	t.Run("inactive user is refused", func(t *testing.T) {
		directory.EXPECT().LookupByEmail(gomock.Any(), alice.Email).
			Return(chat.User{Identity: alice, Active: false}, nil)

		_, err := gate.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("unknown user is refused", func(t *testing.T) {
		directory.EXPECT().LookupByEmail(gomock.Any(), alice.Email).
			Return(chat.User{}, errors.New("not found"))

		_, err := gate.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("missing credential never reaches directory", func(t *testing.T) {
		_, err := gate.Authenticate(context.Background(), "")
		require.ErrorIs(t, err, ErrMissingCredential)
	})
}

func TestIssue_RejectsBadInput(t *testing.T) {
	issuer := NewIssuer(testSecret, "gochat")

	_, err := issuer.Issue(chat.Identity{Username: "nobody"}, time.Minute)
	require.Error(t, err)

	_, err = issuer.Issue(alice, 0)
	require.Error(t, err)
}
