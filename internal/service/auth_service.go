package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

// AuthService coordinates official accounts and login.
type AuthService struct {
	officials repository.OfficialRepository
	tokenMgr  *auth.TokenManager
	passwords *auth.SecretManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, officials repository.OfficialRepository) *AuthService {
	return &AuthService{
		officials: officials,
		tokenMgr:  auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		passwords: auth.NewSecretManager(cfg.BcryptCost),
	}
}

// CreateOfficial registers a new active official.
func (s *AuthService) CreateOfficial(ctx context.Context, name, email, password string, role domain.OfficialRole) (*domain.Official, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	if len(password) < 8 || len(password) > auth.MaxSecretLength {
		return nil, apperrors.NewValidationError("password must be between 8 and 72 bytes", nil)
	}
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}
	official := &domain.Official{
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.officials.Create(ctx, official); err != nil {
		return nil, err
	}
	return official, nil
}

// LoginOfficial authenticates an official and returns a role-bearing token.
func (s *AuthService) LoginOfficial(ctx context.Context, email, password string) (*domain.Official, string, time.Time, error) {
	official, err := s.officials.GetByEmail(ctx, email)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if !official.Active {
		return nil, "", time.Time{}, apperrors.NewForbidden("official inactive")
	}
	if !s.passwords.Verify(password, official.PasswordHash) {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(official.ID, official.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return official, token, exp, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
