package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

var dashboardMessages = map[domain.Role]string{
	domain.RoleFarmer: "Farmer dashboard data",
	domain.RoleVendor: "Vendor dashboard data",
	domain.RoleAdmin:  "Admin dashboard data",
}

// Dashboard returns a handler for the role-gated dashboard of role.
//
// @Summary      Role dashboard
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/farmer/dashboard [get]
// @Router       /api/vendor/dashboard [get]
// @Router       /api/admin/dashboard [get]
func Dashboard(role domain.Role) echo.HandlerFunc {
	msg := dashboardMessages[role]
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": msg})
	}
}
