package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/farmiq/farmiq-backend/internal/api/middleware"
	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

// ctxSession extracts the session and user injected by the LoadSession
// middleware. Both must be present; a request that reached a protected
// handler without them is treated as unauthenticated.
func ctxSession(c echo.Context) (*domain.Session, *domain.PublicUser, error) {
	sess, _ := c.Get(middleware.ContextKeySession).(*domain.Session)
	user, _ := c.Get(middleware.ContextKeyUser).(*domain.PublicUser)
	if sess == nil || user == nil {
		return nil, nil, domain.ErrSessionInvalid
	}
	return sess, user, nil
}
