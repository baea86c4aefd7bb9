package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/farmiq/farmiq-backend/internal/api/middleware"
	"github.com/farmiq/farmiq-backend/internal/core/domain"
	"github.com/farmiq/farmiq-backend/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	sessions    ports.SessionService
	cookie      middleware.SessionCookie
}

func NewAuthHandler(authService ports.AuthService, sessions ports.SessionService, cookie middleware.SessionCookie) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions, cookie: cookie}
}

type registerRequest struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Aadhar   string `json:"aadhar"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	OK     bool   `json:"ok"`
	UserID uint64 `json:"userId"`
}

type loginRequest struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success     bool               `json:"success"`
	User        *domain.PublicUser `json:"user"`
	RedirectURL string             `json:"redirectUrl"`
}

type sessionResponse struct {
	Authenticated bool               `json:"authenticated"`
	User          *domain.PublicUser `json:"user,omitempty"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	id, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Role:     req.Role,
		Name:     req.Name,
		Phone:    req.Phone,
		Aadhar:   req.Aadhar,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, registerResponse{OK: true, UserID: id})
}

// Login authenticates a user and starts a cookie session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	ctx := c.Request().Context()
	user, err := h.authService.Login(ctx, req.Role, req.Username, req.Password)
	if err != nil {
		return err
	}

	token, sess, err := h.sessions.Issue(ctx, user)
	if err != nil {
		return err
	}
	h.cookie.Set(c, token, sess.ExpiresAt)

	return c.JSON(http.StatusOK, loginResponse{
		Success:     true,
		User:        user,
		RedirectURL: user.Role.DashboardPath(),
	})
}

// Session reports whether the caller holds a live session.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /api/auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	_, user, err := ctxSession(c)
	if err != nil {
		return c.JSON(http.StatusOK, sessionResponse{Authenticated: false})
	}
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: true, User: user})
}

// GetUser returns the caller's own profile.
//
// @Summary      Get own profile
// @Tags         auth
// @Produce      json
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  domain.PublicUser
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/auth/user/{id} [get]
func (h *AuthHandler) GetUser(c echo.Context) error {
	sess, _, err := ctxSession(c)
	if err != nil {
		return err
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id != sess.UserID {
		return domain.ErrForbidden
	}

	user, err := h.authService.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, user)
}

// Logout destroys the current session.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  okResponse
// @Failure      500  {object}  map[string]string
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if token := h.cookie.Read(c); token != "" {
		if err := h.sessions.Revoke(c.Request().Context(), token); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Could not log out").SetInternal(err)
		}
	}
	h.cookie.Clear(c)
	return c.JSON(http.StatusOK, okResponse{OK: true})
}
