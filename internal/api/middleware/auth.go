package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

// Context keys set by LoadSession.
const (
	ContextKeySession = "session"
	ContextKeyUser    = "user"
)

// SessionResolver maps a cookie token to its session and user.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Session, *domain.PublicUser, error)
}

// LoadSession resolves the session cookie, when present, and injects the
// session and user into context. A cookie that no longer resolves is cleared
// and the request continues unauthenticated.
func LoadSession(resolver SessionResolver, cookie SessionCookie) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := cookie.Read(c)
			if token == "" {
				return next(c)
			}

			sess, user, err := resolver.Resolve(c.Request().Context(), token)
			if err != nil {
				if !errors.Is(err, domain.ErrSessionInvalid) {
					return err
				}
				cookie.Clear(c)
				return next(c)
			}

			c.Set(ContextKeySession, sess)
			c.Set(ContextKeyUser, user)
			return next(c)
		}
	}
}

// RequireAuth rejects requests LoadSession did not authenticate.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := c.Get(ContextKeySession).(*domain.Session); !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Authentication required"})
			}
			return next(c)
		}
	}
}
