package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

// RBAC enforces role-based access control on the loaded session.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, _ := c.Get(ContextKeySession).(*domain.Session)
			if sess == nil {
				return c.JSON(http.StatusForbidden, map[string]string{"message": "Insufficient permissions"})
			}
			if _, ok := allowed[sess.Role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"message": "Insufficient permissions"})
			}
			return next(c)
		}
	}
}
