// Package service: authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// Accounts are name + password. The user store only ever sees the bcrypt
// hash; plaintext passwords stop here.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/pantry/internal/apperror"
	"github.com/sakif/pantry/internal/auth"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository"
)

// MaxUserNameLength bounds registration names.
const MaxUserNameLength = 64

// AuthService handles registration, login and logout.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can set the
// cookie and respond in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register creates a non-admin account and logs it in.
//
// Rules, in order: name present and not too long, password present, password
// equals confirmation, name not taken.
func (s *AuthService) Register(ctx context.Context, name, password, confirm string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len(name) > MaxUserNameLength {
		return nil, apperror.ValidationFailed("name", fmt.Sprintf("name must be %d characters or fewer", MaxUserNameLength))
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if password != confirm {
		return nil, apperror.ValidationFailed("confirm", "passwords do not match")
	}

	taken, err := s.users.Exists(ctx, repository.ByName(name))
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking name %q: %w", name, err)
	}
	if taken {
		return nil, apperror.Conflict(model.KindUser.Resource(), name)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}
	user, err := model.NewUser(name, hash, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.Save(ctx, user); err != nil {
		s.logger.Error("failed to register user",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID()),
		slog.String("name", user.Name()),
	)
	return s.issue(user)
}

// Login checks name + password and issues a token. Unknown name and wrong
// password produce the same error.
func (s *AuthService) Login(ctx context.Context, name, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil, apperror.ValidationFailed("name", "name and password are required")
	}

	user, ok, err := s.users.Load(ctx, repository.ByName(name))
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user %q: %w", name, err)
	}
	if !ok {
		return nil, apperror.Unauthorized("invalid name or password")
	}
	if err := s.passwords.Verify(user.PasswordHash(), password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("login rejected", slog.String("name", name))
			return nil, apperror.Unauthorized("invalid name or password")
		}
		return nil, fmt.Errorf("service/auth: verifying password for %q: %w", name, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID()))
	return s.issue(user)
}

// Logout revokes the caller's token.
func (s *AuthService) Logout(id auth.Identity) {
	s.tokens.Revoke(id)
	s.logger.Info("user logged out", slog.Int64("userID", id.UserID))
}

// GetUser returns the user for the /api/me handler.
func (s *AuthService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, ok, err := s.users.Load(ctx, repository.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user %d: %w", id, err)
	}
	if !ok {
		return nil, apperror.NotFound(model.KindUser.Resource(), id)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID(), user.IsAdmin())
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID(), err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
