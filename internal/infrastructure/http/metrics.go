package http

import (
	"sync"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
)

// requestMetrics registers the HTTP collectors once per process. Routers built
// later, in tests for example, share them.
var requestMetrics = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace: "farmiq",
		Subsystem: "http",
		// Unmatched paths share one series instead of one per raw URL.
		DoNotUseRequestPathFor404: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	})
})
