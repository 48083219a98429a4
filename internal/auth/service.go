// Package auth registers users and manages their login sessions.
package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dfs-go/internal/dfs"
	"dfs-go/internal/model"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrUnauthenticated is returned by Authenticate for an unknown or expired token.
var ErrUnauthenticated = errors.New("session invalid or expired")

const minPasswordLength = 8

// UserStore is the part of the metadata store the auth service needs.
type UserStore interface {
	CreateUser(username, email, passwordHash string) (*model.User, error)
	FindUserByEmail(email string) (*model.User, error)
	CreateSession(token string, userID int64, expiresAt time.Time) error
	FindUserBySession(token string, now time.Time) (*model.User, error)
	DeleteSession(token string) error
}

// Service contains the authentication logic. A session grants its user full
// owner rights for its lifetime.
type Service struct {
	users  UserStore
	clock  dfs.Clock
	tokens dfs.IDGenerator
	ttl    time.Duration
	cost   int
	logger dfs.Logger
}

// NewService creates a Service issuing sessions that expire ttl after login.
func NewService(users UserStore, clock dfs.Clock, tokens dfs.IDGenerator, ttl time.Duration, logger dfs.Logger) *Service {
	return &Service{
		users:  users,
		clock:  clock,
		tokens: tokens,
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		logger: logger,
	}
}

// Register creates a user. The email is normalized to lower case and must be unused.
func (s *Service) Register(username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = model.NormalizeEmail(email)

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", dfs.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", dfs.ErrValidation, email)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", dfs.ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.CreateUser(username, email, string(hash))
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", email, err)
	}
	s.logger.Info("user registered", "user", user.ID, "email", email)
	return user, nil
}

// Login checks the password and starts a session, returning its token.
func (s *Service) Login(email, password string) (string, *model.User, error) {
	user, err := s.users.FindUserByEmail(model.NormalizeEmail(email))
	if err != nil {
		return "", nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("login failed", "user", user.ID)
		return "", nil, ErrInvalidCredentials
	}

	token := s.tokens.New()
	expiresAt := s.clock.Now().Add(s.ttl)
	if err := s.users.CreateSession(token, user.ID, expiresAt); err != nil {
		return "", nil, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Info("user logged in", "user", user.ID, "expires_at", expiresAt)
	return token, user, nil
}

// Authenticate returns the user owning a live session token.
func (s *Service) Authenticate(token string) (*model.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.FindUserBySession(token, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("finding session: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// Logout ends a session. Ending an unknown session is not an error.
func (s *Service) Logout(token string) error {
	if err := s.users.DeleteSession(token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
