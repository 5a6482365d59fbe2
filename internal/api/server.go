// Package api exposes the story lifecycle over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samvad-hq/samvad-story-service/internal/logger"
)

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Stories StoryService
	Tenants TenantResolver
	Log     logger.Logger
	// Hooks run around every request after the default logging and
	// metrics hooks.
	Hooks []Hook
	Now   func() time.Time
}

// Server holds the Echo instance.
type Server struct {
	e   *echo.Echo
	log logger.Logger
}

// New creates the server and registers every route.
func New(deps Deps) *Server {
	log := logger.Ensure(deps.Log)
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	hooks := append([]Hook{LoggingHook{Log: log}, MetricsHook{}}, deps.Hooks...)
	e.Use(middleware.Recover())
	e.Use(requestIDMiddleware())
	e.Use(hooksMiddleware(hooks...))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := &storyHandler{svc: deps.Stories, now: now}
	g := e.Group("/api/v1/tenants/:tenantID/stories", tenantMiddleware(deps.Tenants))
	g.GET("", h.find)
	g.POST("", h.create)
	g.POST("/find-or-create", h.findOrCreate)
	g.PATCH("/:storyID", h.update)
	g.PATCH("/:storyID/settings", h.updateSettings)
	g.POST("/:storyID/open", h.open)
	g.POST("/:storyID/close", h.close)
	g.DELETE("/:storyID", h.remove)
	g.POST("/:storyID/merge", h.merge)
	g.POST("/:storyID/comments", h.recordComment)
	g.POST("/:storyID/comments/:commentID/actions", h.recordAction)
	g.POST("/:storyID/counts", h.adjustCounts)

	return &Server{e: e, log: log}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.InfoObj("http server listening", "http_addr", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
