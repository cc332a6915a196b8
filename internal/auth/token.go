package auth

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/pkg/apperrors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type tokenClaims struct {
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	TokenType string     `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies RS256 bearer tokens. Asymmetric only;
// tokens are stateless — validity is signature + embedded expiry.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	timeFunc   func() time.Time // injectable for tests
	clockSkew  time.Duration
}

// NewTokenService loads the PEM key pair from disk. Missing or malformed
// key material is a fatal startup error.
func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	privPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubPEM, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	accessTTL, err := time.ParseDuration(cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("access ttl: %w", err)
	}
	refreshTTL, err := time.ParseDuration(cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("refresh ttl: %w", err)
	}

	return NewTokenServiceWithKeys(privateKey, publicKey, cfg.Issuer, cfg.Audience, accessTTL, refreshTTL), nil
}

// NewTokenServiceWithKeys wires pre-parsed keys directly (tests, embedding).
func NewTokenServiceWithKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		privateKey: priv,
		publicKey:  pub,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		timeFunc:   time.Now,
		clockSkew:  time.Minute,
	}
}

// Issue signs one token of the given kind for the user.
func (s *TokenService) Issue(user *model.User, tokenType string) (string, time.Time, error) {
	now := s.timeFunc()
	ttl := s.accessTTL
	if tokenType == TokenTypeRefresh {
		ttl = s.refreshTTL
	}
	expiresAt := now.Add(ttl)

	claims := tokenClaims{
		Email:     user.Email,
		Role:      user.Role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, expiresAt, nil
}

// IssuePair signs an access/refresh pair: two independent signings sharing
// the payload, differing in typ and expiry.
func (s *TokenService) IssuePair(user *model.User) (*model.LoginResponse, error) {
	access, accessExp, err := s.Issue(user, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.Issue(user, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refreshExp,
		User:                  user.Public(),
	}, nil
}

// Validate verifies signature, algorithm, expiry, issuer and audience, then
// checks the typ claim against what the route expects.
func (s *TokenService) Validate(tokenString, expectedType string) (*model.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&tokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.publicKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(s.timeFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidToken, "token verification failed", err)
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, apperrors.New(apperrors.ErrInvalidToken, "invalid token claims", nil)
	}
	if claims.TokenType != expectedType {
		return nil, apperrors.New(apperrors.ErrInvalidTokenType,
			fmt.Sprintf("%s token required, got %s", expectedType, claims.TokenType), nil)
	}

	identity := &model.Identity{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		TokenType: claims.TokenType,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}
