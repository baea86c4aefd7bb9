package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// DefaultCookieName names the session cookie.
const DefaultCookieName = "farmiq.sid"

// SessionCookie reads and writes the HttpOnly session cookie.
type SessionCookie struct {
	Name   string
	Secure bool
}

func NewSessionCookie(secure bool) SessionCookie {
	return SessionCookie{Name: DefaultCookieName, Secure: secure}
}

// Read returns the cookie value, or "" when absent.
func (sc SessionCookie) Read(c echo.Context) string {
	ck, err := c.Cookie(sc.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// Set writes token with the given expiry.
func (sc SessionCookie) Set(c echo.Context, token string, expires time.Time) {
	c.SetCookie(sc.build(token, expires, int(time.Until(expires).Seconds())))
}

// Clear expires the cookie in the browser.
func (sc SessionCookie) Clear(c echo.Context) {
	c.SetCookie(sc.build("", time.Unix(0, 0), -1))
}

func (sc SessionCookie) build(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sc.Name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sc.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
