package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

// RequireStaffRole admits staff principals holding one of the allowed roles.
// With no roles listed any authenticated staff member passes.
func RequireStaffRole(allowed ...domain.StaffRole) fiber.Handler {
	allowedSet := make(map[domain.StaffRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Staff == nil {
			return apperrors.NewUnauthenticated("staff authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Staff.Role]; !exists {
			return apperrors.NewUnauthorized("insufficient role", map[string]any{
				"role":     principal.Staff.Role,
				"required": allowed,
			})
		}
		return c.Next()
	}
}
