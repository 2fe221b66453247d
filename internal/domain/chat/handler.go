package chat

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/frma/frma/internal/platform/auth"
	"github.com/frma/frma/internal/platform/inference"
	"github.com/frma/frma/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/chat", h.Ask)
}

func (h *Handler) Ask(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Prompt = middleware.SanitizeString(req.Prompt)
	for i := range req.History {
		req.History[i].Content = middleware.SanitizeString(req.History[i].Content)
	}

	resp, err := h.svc.Ask(c.Request().Context(), uid, req)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, inference.ErrChatUnsupported):
		return echo.NewHTTPError(http.StatusNotImplemented, "chat is not available with the configured model")
	default:
		return echo.NewHTTPError(http.StatusBadGateway, "the medical assistant could not answer, please try again")
	}
}
