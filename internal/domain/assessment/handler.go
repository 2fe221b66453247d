package assessment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/frma/frma/internal/platform/auth"
	"github.com/frma/frma/internal/platform/middleware"
	"github.com/frma/frma/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/assessments", h.Start)
	api.GET("/assessments/:id", h.Get)
	api.POST("/assessments/:id/advance", h.Advance)
	api.POST("/assessments/:id/retreat", h.Retreat)
	api.PUT("/assessments/:id/location", h.UpdateLocation)
	api.POST("/assessments/:id/retry", h.Retry)
	api.GET("/assessments/:id/wait", h.Wait)
	api.POST("/assessments/:id/restart", h.Restart)
	api.DELETE("/assessments/:id", h.Exit)

	api.GET("/assessment-records", h.ListRecords)
	api.GET("/assessment-records/:id", h.GetRecord)
}

type advanceRequest struct {
	Answer AnswerValue `json:"answer"`
}

type locationRequest struct {
	Location string `json:"location"`
}

func userID(c echo.Context) (string, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	return uid, nil
}

func confirmed(c echo.Context) bool {
	ok, _ := strconv.ParseBool(c.QueryParam("confirm"))
	return ok
}

// httpError maps domain errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "assessment not found")
	case errors.Is(err, ErrInvalidAnswer):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrConfigurationMissing):
		return echo.NewHTTPError(http.StatusNotFound, "Emergency configuration missing")
	case errors.Is(err, ErrExitConfirmationRequired),
		errors.Is(err, ErrSubmissionInFlight),
		errors.Is(err, ErrTerminalStage),
		errors.Is(err, ErrRetryNotAllowed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Start(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Location = middleware.SanitizeString(req.Location)
	if req.EmergencyType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "emergency_type is required")
	}
	v, err := h.svc.Start(c.Request().Context(), uid, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Get(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.View(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Advance(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req advanceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	answer := req.Answer
	if text, ok := answer.StringValue(); ok && answer.Kind() == ValueText {
		answer = Text(middleware.SanitizeString(text))
	}
	v, err := h.svc.Advance(c.Request().Context(), uid, c.Param("id"), answer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Retreat(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Retreat(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateLocation(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req locationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.UpdateLocation(c.Request().Context(), uid, c.Param("id"), middleware.SanitizeString(req.Location))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Retry(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Retry(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, v)
}

func (h *Handler) Wait(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Wait(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		if c.Request().Context().Err() != nil {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "submission still in progress")
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Restart(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Restart(c.Request().Context(), uid, c.Param("id"), confirmed(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Exit(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Exit(c.Request().Context(), uid, c.Param("id"), confirmed(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListRecords(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRecords(c.Request().Context(), uid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) GetRecord(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetRecord(c.Request().Context(), uid, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "assessment record not found")
	}
	return c.JSON(http.StatusOK, r)
}
