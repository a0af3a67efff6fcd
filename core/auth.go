package core

import (
	"context"
	"errors"
)

// Identity is the user snapshot carried by sessions and access tokens.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Valid reports whether all identity fields are populated.
func (i Identity) Valid() bool {
	return i.ID > 0 && i.Username != "" && i.Email != ""
}

var (
	// ErrInvalidCredentials is returned when username/password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by repositories when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("user already exists")

	// ErrConfiguration marks a missing or malformed signing secret.
	ErrConfiguration = errors.New("token signing is not configured")
	// ErrInvalidSubject rejects identities with an empty field.
	ErrInvalidSubject =errors.New("token subject requires id, username and email")

	ErrMissingToken     = errors.New("missing token")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not valid yet")

	// ErrSessionEnded is returned when a sid that was logged out is started again.
	ErrSessionEnded = errors.New("session ended")
)

// AuthService defines authentication behaviour.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (Identity, error)
	Register(ctx context.Context, username, email, password string) (Identity, error)
}
