package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayFixture struct {
	gateway  *AuthGateway
	users    *memUserRepo
	sessions *RedisSessionStore
	clock    *testClock
	user     Identity
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	clock := newTestClock()
	users := newMemUserRepo()
	user := users.addUser(t, "laztopaz", "tope@example.com", "tope0852")
	sessions, _ := newTestSessionStore(t, time.Hour)
	return &gatewayFixture{
		gateway:  NewAuthGateway(newTestAuthService(users), newTestTokenService(t, clock), sessions),
		users:    users,
		sessions: sessions,
		clock:    clock,
		user:     user,
	}
}

func (f *gatewayFixture) login(t *testing.T, sid string) LoginResult {
	t.Helper()
	res, err := f.gateway.Login(context.Background(), LoginRequest{
		SessionID:   sid,
		Issuer:      "localhost",
		Credentials: Credentials{Username: "laztopaz", Password: "tope0852"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.Status)
	return res
}

func TestAuthGateway_LoginSuccess(t *testing.T) {
	f := newGatewayFixture(t)

	res := f.login(t, "sid")
	require.NotNil(t, res.Token)
	assert.Equal(t, f.user, res.Token.Claims.Data)
	assert.Equal(t, f.user, res.Identity)

	current, err := f.sessions.Current(context.Background(), "sid")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, f.user, *current)

	f.clock.Advance(tokenGracePeriod)
	claims, err := f.gateway.tokens.Verify(res.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, f.user, claims.Data)
}

func TestAuthGateway_LoginRejected(t *testing.T) {
	cases := []struct {
		name  string
		creds Credentials
	}{
		{"unknown user", Credentials{Username: "xxxx", Password: "xxxxxxxx"}},
		{"wrong password", Credentials{Username: "laztopaz", Password: "wrong"}},
		{"empty username", Credentials{Password: "tope0852"}},
		{"empty password", Credentials{Username: "laztopaz"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newGatewayFixture(t)

			res, err := f.gateway.Login(context.Background(), LoginRequest{SessionID: "sid", Issuer: "localhost", Credentials: tc.creds})
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, res.Status)
			assert.Nil(t, res.Token)
			assert.ErrorIs(t, res.Reason, ErrInvalidCredentials)

			current, err := f.sessions.Current(context.Background(), "sid")
			require.NoError(t, err)
			assert.Nil(t, current, "failed login must not start a session")
		})
	}
}

func TestAuthGateway_LoginStorageFailure(t *testing.T) {
	f := newGatewayFixture(t)
	f.users.err = errors.New("connection refused")

	_, err := f.gateway.Login(context.Background(), LoginRequest{
		SessionID:   "sid",
		Credentials: Credentials{Username: "laztopaz", Password: "tope0852"},
	})
	assert.Error(t, err)
}

func TestAuthGateway_LoginWithoutSigningKey(t *testing.T) {
	users := newMemUserRepo()
	users.addUser(t, "laztopaz", "tope@example.com", "tope0852")
	sessions, _ := newTestSessionStore(t, time.Hour)
	gateway := NewAuthGateway(newTestAuthService(users), nil, sessions)

	_, err := gateway.Login(context.Background(), LoginRequest{
		SessionID:   "sid",
		Credentials: Credentials{Username: "laztopaz", Password: "tope0852"},
	})
	assert.ErrorIs(t, err, ErrConfiguration)

	current, err := sessions.Current(context.Background(), "sid")
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestAuthGateway_LogoutClearsSession(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	f.login(t, "sid")

	res, err := f.gateway.Logout(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)

	current, err := f.gateway.Current(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, current)

	// logging out again is still fine
	res, err = f.gateway.Logout(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestAuthGateway_Authorize(t *testing.T) {
	f := newGatewayFixture(t)
	res := f.login(t, "sid")
	f.clock.Advance(tokenGracePeriod)
	jwtString := res.Token.Token

	cases := []struct {
		name    string
		header  string
		value   string
		allowed bool
		reason  error
	}{
		{"envelope", "Authorization", `{"jwt":"` + jwtString + `"}`, true, nil},
		{"bearer", "Authorization", "Bearer " + jwtString, true, nil},
		{"raw", "Authorization", jwtString, true, nil},
		{"token header", TokenHeader, jwtString, true, nil},
		{"missing", "", "", false, ErrMissingToken},
		{"broken envelope", "Authorization", `{"jwt":`, false, ErrMalformedToken},
		{"empty envelope", "Authorization", `{"jwt":""}`, false, ErrMalformedToken},
		{"garbage", "Authorization", "Bearer garbage", false, ErrMalformedToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			d := f.gateway.Authorize(req)
			assert.Equal(t, tc.allowed, d.Allowed)
			if tc.allowed {
				require.NotNil(t, d.Claims)
				assert.Equal(t, f.user, d.Claims.Data)
				return
			}
			assert.Equal(t, http.StatusUnauthorized, d.Status)
			assert.ErrorIs(t, d.Reason, tc.reason)
		})
	}
}

func TestAuthGateway_AuthorizeRejectsForeignSignature(t *testing.T) {
	f := newGatewayFixture(t)
	other, err := NewTokenService("c29tZS1vdGhlci1rZXk=", WithTokenClock(f.clock.Now))
	require.NoError(t, err)
	forged, err := other.Issue("localhost", f.user)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+forged.Token)

	d := f.gateway.Authorize(req)
	assert.False(t, d.Allowed)
	assert.Equal(t, http.StatusUnauthorized, d.Status)
	assert.ErrorIs(t, d.Reason, ErrInvalidSignature)
}

func TestAuthGateway_AuthorizeSession(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	res := f.login(t, "sid")
	claims := &res.Token.Claims

	assert.True(t, f.gateway.AuthorizeSession(ctx, "sid", claims).Allowed)
	assert.False(t, f.gateway.AuthorizeSession(ctx, "other-sid", claims).Allowed)
	assert.False(t, f.gateway.AuthorizeSession(ctx, "sid", nil).Allowed)

	_, err := f.gateway.Logout(ctx, "sid")
	require.NoError(t, err)

	d := f.gateway.AuthorizeSession(ctx, "sid", claims)
	assert.False(t, d.Allowed)
	assert.ErrorIs(t, d.Reason, ErrSessionEnded)
}
