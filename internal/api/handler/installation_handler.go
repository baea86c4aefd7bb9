package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
	"github.com/farmiq/farmiq-backend/internal/core/ports"
)

// InstallationHandler handles HTTP requests for IoT sensor installations.
type InstallationHandler struct {
	service ports.InstallationService
}

func NewInstallationHandler(service ports.InstallationService) *InstallationHandler {
	return &InstallationHandler{service: service}
}

// Status handles GET /api/iot/status.
//
// @Summary      Current installation request
// @Tags         iot
// @Produce      json
// @Success      200  {object}  domain.InstallationRequest
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/iot/status [get]
func (h *InstallationHandler) Status(c echo.Context) error {
	sess, _, err := ctxSession(c)
	if err != nil {
		return err
	}

	req, err := h.service.Status(c.Request().Context(), sess.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

// Create handles POST /api/iot/request.
//
// @Summary      Request a sensor installation
// @Tags         iot
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string                     false  "Idempotency key to prevent duplicate submissions"
// @Param        body             body      createInstallationRequest  true   "Installation details"
// @Success      200              {object}  domain.InstallationRequest  "Replayed request"
// @Success      201              {object}  domain.InstallationRequest
// @Failure      400              {object}  map[string]string
// @Failure      401              {object}  map[string]string
// @Failure      500              {object}  map[string]string
// @Router       /api/iot/request [post]
func (h *InstallationHandler) Create(c echo.Context) error {
	sess, _, err := ctxSession(c)
	if err != nil {
		return err
	}

	var body createInstallationRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return domain.Invalid(err.Error())
	}

	key := strings.TrimSpace(c.Request().Header.Get(idempotencyHeader))
	req, replayed, err := h.service.Create(c.Request().Context(), toCreateInstallationInput(sess.UserID, key, body))
	if err != nil {
		return err
	}

	if replayed {
		c.Response().Header().Set("Idempotent-Replayed", "true")
		return c.JSON(http.StatusOK, req)
	}
	return c.JSON(http.StatusCreated, req)
}

// Reschedule handles POST /api/iot/reschedule.
//
// @Summary      Reschedule the installation visit
// @Tags         iot
// @Accept       json
// @Produce      json
// @Param        body  body      rescheduleRequest  true  "New slot"
// @Success      200   {object}  domain.InstallationRequest
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/iot/reschedule [post]
func (h *InstallationHandler) Reschedule(c echo.Context) error {
	sess, _, err := ctxSession(c)
	if err != nil {
		return err
	}

	var body rescheduleRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	req, err := h.service.Reschedule(c.Request().Context(), toRescheduleInput(sess.UserID, body))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}

// Cancel handles POST /api/iot/cancel.
//
// @Summary      Cancel the installation request
// @Tags         iot
// @Accept       json
// @Produce      json
// @Param        body  body      requestIDRequest  true  "Request id"
// @Success      200   {object}  okResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/iot/cancel [post]
func (h *InstallationHandler) Cancel(c echo.Context) error {
	sess, _, err := ctxSession(c)
	if err != nil {
		return err
	}

	var body requestIDRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	if err := h.service.Cancel(c.Request().Context(), sess.UserID, body.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// MarkInstalled handles POST /api/iot/mark-installed.
//
// @Summary      Confirm a sensor installation
// @Tags         iot
// @Accept       json
// @Produce      json
// @Param        body  body      requestIDRequest  true  "Request id"
// @Success      200   {object}  domain.InstallationRequest
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/iot/mark-installed [post]
func (h *InstallationHandler) MarkInstalled(c echo.Context) error {
	var body requestIDRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	req, err := h.service.MarkInstalled(c.Request().Context(), body.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req)
}
