package handler

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

func TestDashboard(t *testing.T) {
	e := echo.New()
	for role, want := range map[domain.Role]string{
		domain.RoleFarmer: "Farmer dashboard data",
		domain.RoleVendor: "Vendor dashboard data",
		domain.RoleAdmin:  "Admin dashboard data",
	} {
		c, rec := newJSONContext(e, http.MethodGet, "/", "")
		if err := Dashboard(role)(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if got := decode(t, rec)["message"]; got != want {
			t.Fatalf("%s: expected %q, got %v", role, want, got)
		}
	}
}
