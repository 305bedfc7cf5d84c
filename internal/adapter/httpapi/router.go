package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"rag-agent/internal/infra/logger"
)

// NewRouter assembles the echo instance: recovery, request IDs, trace
// propagation, the /v1 routes, and the metrics endpoint. metrics may be nil
// when no Prometheus emitter is configured.
func NewRouter(h *Handler, metrics http.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestIDContext())
	e.Use(otelecho.Middleware("rag-agent"))

	v1 := e.Group("/v1")
	v1.POST("/ask", h.Ask)
	v1.POST("/search", h.Search)
	v1.GET("/collections", h.Collections)
	v1.GET("/healthz", h.Healthz)
	v1.GET("/readyz", h.Readyz)

	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
	return e
}

// requestIDContext copies the generated request id into the request context
// so downstream log records correlate with the X-Request-ID response header.
func requestIDContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				ctx := logger.WithRequestID(c.Request().Context(), id)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}
