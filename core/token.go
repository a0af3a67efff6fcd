package core

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// tokenGracePeriod separates issuance from the first instant a token is accepted.
	tokenGracePeriod = 10 * time.Second
	// tokenValidity is counted from notBefore.
	tokenValidity = 30 * 24 * time.Hour
)

var tokenSigningMethod = jwt.SigningMethodHS512

// Claims is the signed claim set of an access token.
type Claims struct {
	jwt.RegisteredClaims
	Data Identity `json:"data"`
}

// TokenEnvelope is the JSON shape tokens travel in: {"jwt": "..."}.
type TokenEnvelope struct {
	JWT string `json:"jwt"`
}

// IssuedToken is the result of TokenService.Issue.
type IssuedToken struct {
	Token    string
	Envelope TokenEnvelope
	Claims   Claims
}

// TokenService signs and verifies HS512 access tokens with a process-wide key.
type TokenService struct {
	key    []byte
	now    func() time.Time
	leeway time.Duration
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithTokenClock replaces time.Now for issuance and verification.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// WithTokenLeeway tolerates clock skew when checking nbf/exp/iat.
func WithTokenLeeway(d time.Duration) TokenOption {
	return func(s *TokenService) { s.leeway = d }
}

// NewTokenService decodes the base64 secret. An empty or undecodable secret
// yields ErrConfiguration.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	key, err := decodeSecret(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	s := &TokenService{key: key, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue builds and signs a token for subject. notBefore is issuedAt plus the
// grace period and expiry is notBefore plus the validity window.
func (s *TokenService) Issue(issuer string, subject Identity) (IssuedToken, error) {
	if s == nil || len(s.key) == 0 {
		return IssuedToken{}, ErrConfiguration
	}
	if !subject.Valid() {
		return IssuedToken{}, ErrInvalidSubject
	}

	jti, err := newTokenID()
	if err != nil {
		return IssuedToken{}, fmt.Errorf("token id: %w", err)
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	notBefore := issuedAt.Add(tokenGracePeriod)
	expiresAt := notBefore.Add(tokenValidity)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        jti,
			Issuer:    issuer,
			NotBefore: jwt.NewNumericDate(notBefore),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Data: subject,
	}

	signed, err := jwt.NewWithClaims(tokenSigningMethod, claims).SignedString(s.key)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}

	return IssuedToken{
		Token:    signed,
		Envelope: TokenEnvelope{JWT: signed},
		Claims:   claims,
	}, nil
}

// Verify checks signature, algorithm and timestamps and returns the claims.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	if s == nil || len(s.key) == 0 {
		return nil, ErrConfiguration
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{tokenSigningMethod.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, mapTokenError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}
	if claims.NotBefore == nil || !claims.Data.Valid() {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrMalformedToken
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

// decodeSecret accepts padded or unpadded standard base64.
func decodeSecret(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty secret")
	}
	key, err := base64.RawStdEncoding.DecodeString(value)
	if err != nil {
		key, err = base64.StdEncoding.DecodeString(value)
	}
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	if len(key) == 0 {
		return nil, errors.New("empty secret")
	}
	return key, nil
}
