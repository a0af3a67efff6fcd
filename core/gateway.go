package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// TokenHeader carries the raw token on login responses and may carry it on requests.
const TokenHeader = "token"

// Credentials is the login payload. Bound from JSON or form bodies.
type Credentials struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// LoginRequest bundles what the transport layer knows about a login attempt.
type LoginRequest struct {
	SessionID   string
	Issuer      string
	Credentials Credentials
}

// LoginResult is 200 with Token set, or 400 with Reason set.
type LoginResult struct {
	Status   int
	Token    *IssuedToken
	Identity Identity
	Reason   error
}

// LogoutResult is always 200 when the session store is reachable.
type LogoutResult struct {
	Status int
}

// AuthDecision is the outcome of a request authorization check.
type AuthDecision struct {
	Allowed bool
	Status  int
	Claims  *Claims
	Reason  error
}

func allow(claims *Claims) AuthDecision {
	return AuthDecision{Allowed: true, Status: http.StatusOK, Claims: claims}
}

func deny(reason error) AuthDecision {
	if errors.Is(reason, ErrConfiguration) {
		return AuthDecision{Status: http.StatusInternalServerError, Reason: reason}
	}
	return AuthDecision{Status: http.StatusUnauthorized, Reason: reason}
}

// AuthGateway composes credential checks, token issuance and the session store.
type AuthGateway struct {
	auth     AuthService
	tokens   *TokenService
	sessions SessionStore
}

func NewAuthGateway(auth AuthService, tokens *TokenService, sessions SessionStore) *AuthGateway {
	return &AuthGateway{auth: auth, tokens: tokens, sessions: sessions}
}

// Login verifies credentials and, only on success, starts the session for
// req.SessionID and issues a token. The error return is reserved for
// configuration and storage failures.
func (g *AuthGateway) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	creds := req.Credentials
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return LoginResult{Status: http.StatusBadRequest, Reason: ErrInvalidCredentials}, nil
	}

	identity, err := g.auth.Authenticate(ctx, creds.Username, creds.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		log.Printf("auth: login rejected username=%q reason=%v", creds.Username, err)
		return LoginResult{Status: http.StatusBadRequest, Reason: err}, nil
	}
	if err != nil {
		return LoginResult{}, err
	}

	issued, err := g.tokens.Issue(req.Issuer, identity)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	if err := g.sessions.Start(ctx, req.SessionID, identity); err != nil {
		return LoginResult{}, fmt.Errorf("start session: %w", err)
	}

	log.Printf("auth: login ok user_id=%d jti=%s", identity.ID, issued.Claims.ID)
	return LoginResult{Status: http.StatusOK, Token: &issued, Identity: identity}, nil
}

// Logout ends the session for sid. The bearer token is not revoked and stays
// valid until it expires.
func (g *AuthGateway) Logout(ctx context.Context, sid string) (LogoutResult, error) {
	current, err := g.sessions.Current(ctx, sid)
	if err != nil {
		return LogoutResult{}, err
	}
	if err := g.sessions.End(ctx, sid); err != nil {
		return LogoutResult{}, err
	}
	if current != nil {
		log.Printf("auth: logout user_id=%d", current.ID)
	}
	return LogoutResult{Status: http.StatusOK}, nil
}

// Current returns the identity of the session sid, or nil.
func (g *AuthGateway) Current(ctx context.Context, sid string) (*Identity, error) {
	return g.sessions.Current(ctx, sid)
}

// Authorize extracts the bearer token from r and verifies it.
func (g *AuthGateway) Authorize(r *http.Request) AuthDecision {
	raw, err := extractToken(r.Header)
	if err != nil {
		return deny(err)
	}
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return deny(err)
	}
	return allow(claims)
}

// AuthorizeSession requires that sid still holds a session for the token subject.
func (g *AuthGateway) AuthorizeSession(ctx context.Context, sid string, claims *Claims) AuthDecision {
	if claims == nil {
		return deny(ErrMissingToken)
	}
	current, err := g.sessions.Current(ctx, sid)
	if err != nil {
		return deny(err)
	}
	if current == nil || current.ID != claims.Data.ID {
		return deny(ErrSessionEnded)
	}
	return allow(claims)
}

// extractToken reads Authorization, falling back to the token header. The
// value may be a {"jwt": "..."} envelope, "Bearer <jwt>" or the bare jwt.
func extractToken(h http.Header) (string, error) {
	raw := strings.TrimSpace(h.Get("Authorization"))
	if raw == "" {
		raw = strings.TrimSpace(h.Get(TokenHeader))
	}
	if raw == "" {
		return "", ErrMissingToken
	}
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if strings.HasPrefix(raw, "{") {
		var env TokenEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil || env.JWT == "" {
			return "", ErrMalformedToken
		}
		return env.JWT, nil
	}
	return raw, nil
}
