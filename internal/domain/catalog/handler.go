package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/frma/frma/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the catalog. Responses carry ETags since the catalog
// only changes on restart.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	etag := middleware.ETag(middleware.DefaultETagConfig())
	api.GET("/emergency-types", h.List, etag)
	api.GET("/emergency-types/:id", h.Get, etag)
}

func (h *Handler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": h.svc.List(),
	})
}

func (h *Handler) Get(c echo.Context) error {
	t, err := h.svc.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "emergency type not found")
	}
	return c.JSON(http.StatusOK, t)
}
