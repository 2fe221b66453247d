package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication. c.Path() is the route pattern, so
// parameterized routes are listed as registered.
var publicPaths = map[string]bool{
	"/health":                     true,
	"/health/db":                  true,
	"/health/inference":           true,
	"/metrics":                    true,
	"/api/v1/emergency-types":     true,
	"/api/v1/emergency-types/:id": true,
}

// AuthSkipper reports whether the request's route is public.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
