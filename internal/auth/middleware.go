package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

const officialKey = "auth_official"

// AuthMiddleware admits requests carrying a valid token of an active official.
type AuthMiddleware struct {
	tokens    *TokenManager
	officials repository.OfficialRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, officials repository.OfficialRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, officials: officials}
}

// Handle loads the official named by the bearer token into the request.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	official, err := m.officials.GetByID(c.UserContext(), claims.Subject)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.NewUnauthorized("official not found")
	case err != nil:
		return apperrors.MapError(err)
	case !official.Active:
		return apperrors.NewUnauthorized("official deactivated")
	}

	c.Locals(officialKey, official)
	return c.Next()
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}

// OfficialFromContext returns the official loaded by Handle.
func OfficialFromContext(c *fiber.Ctx) (*domain.Official, bool) {
	official, ok := c.Locals(officialKey).(*domain.Official)
	return official, ok && official != nil
}
