// Package server assembles the HTTP surface: middleware chain, route
// groups, and server timeouts.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/middleware"
	"github.com/Ramsey-B/fern/pkg/routes/ambiguouscase"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/player"
	"github.com/Ramsey-B/fern/pkg/routes/resolution"
	"github.com/Ramsey-B/fern/pkg/routes/sourcelink"
)

// New builds the echo application. The caller owns startup and shutdown.
func New(cfg *config.Config, logger ectologger.Logger, checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	player.Register(api.Group("/players"))
	sourcelink.Register(api.Group("/links"))
	ambiguouscase.Register(api.Group("/cases"))
	resolution.Register(api.Group("/resolution"))

	return e
}

// Start runs the server until it fails or is shut down
func Start(e *echo.Echo, cfg *config.Config) error {
	err := e.Start(fmt.Sprintf(":%d", cfg.Port))
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
