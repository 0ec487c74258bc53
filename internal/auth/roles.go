package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/grievance-service/internal/domain"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

// RequireOfficialRole admits officials holding one of allowed. With no roles
// listed any authenticated official passes.
func RequireOfficialRole(allowed ...domain.OfficialRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		official, ok := OfficialFromContext(c)
		if !ok {
			return apperrors.NewForbidden("official required")
		}
		if len(allowed) == 0 || official.Role.In(allowed...) {
			return c.Next()
		}
		return apperrors.NewForbidden("insufficient role")
	}
}
