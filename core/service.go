package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const credentialLookupTimeout = 3 * time.Second

// RepositoryAuthService checks credentials against a UserRepository with bcrypt.
type RepositoryAuthService struct {
	users UserRepository
	cost  int
}

func NewRepositoryAuthService(users UserRepository) *RepositoryAuthService {
	return &RepositoryAuthService{users: users, cost: bcrypt.DefaultCost}
}

// Authenticate returns the identity for username when password matches the
// stored bcrypt hash. Unknown users and wrong passwords both yield
// ErrInvalidCredentials; unknown users additionally match ErrUserNotFound.
func (s *RepositoryAuthService) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, credentialLookupTimeout)
	defer cancel()

	u, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) || (err == nil && u == nil) {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrUserNotFound)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return u.Identity(), nil
}

// Register hashes password and stores a new user.
func (s *RepositoryAuthService) Register(ctx context.Context, username, email, password string) (Identity, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, credentialLookupTimeout)
	defer cancel()

	id, err := s.users.Create(ctx, username, email, string(hash))
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: id, Username: username, Email: email}, nil
}
