package service

import (
	"context"
	"errors"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/pkg/apperrors"
)

// ErrUserNotFound is returned by user repositories for unknown emails.
var ErrUserNotFound = errors.New("user not found")

type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// AuthService handles login and token refresh.
type AuthService struct {
	users  UserRepo
	tokens *auth.TokenService
}

func NewAuthService(users UserRepo, tokens *auth.TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Login verifies credentials and issues an access/refresh pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.NewAuthFailed("invalid email or password")
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, apperrors.NewAuthFailed("invalid email or password")
	}
	return s.tokens.IssuePair(user)
}

// Refresh exchanges a validated refresh identity for a new access token.
// The caller's current role is re-read so revoked privileges do not survive
// the refresh.
func (s *AuthService) Refresh(ctx context.Context, identity *model.Identity) (*model.RefreshResponse, error) {
	user, err := s.users.GetByID(ctx, identity.SubjectID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.New(apperrors.ErrInvalidToken, "token subject no longer exists", nil)
		}
		return nil, err
	}
	token, expiresAt, err := s.tokens.Issue(user, auth.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return &model.RefreshResponse{AccessToken: token, AccessTokenExpiresAt: expiresAt}, nil
}
