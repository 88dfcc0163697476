// Package server exposes match searches over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/matching"
)

// Matcher is the part of the pipeline the API needs.
type Matcher interface {
	FindMatches(ctx context.Context, query, requesterID string) (*matching.Result, error)
	Recommend(ctx context.Context, requesterID string, limit int) ([]matching.Snapshot, error)
}

// Check reports whether a dependency is usable. It backs /ready.
type Check func(ctx context.Context) error

type Config struct {
	Host string
	Port int
	// AllowOrigins feeds the CORS middleware. Empty allows every origin.
	AllowOrigins []string
	// RequestTimeout bounds a single API call, scoring included.
	RequestTimeout time.Duration
	Checks         map[string]Check
}

type Server struct {
	echo    *echo.Echo
	matcher Matcher
	logger  *zap.Logger
	config  Config
}

func New(matcher Matcher, logger *zap.Logger, cfg Config) (*Server, error) {
	if matcher == nil {
		return nil, errors.New("matcher cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
	}))
	e.Use(middleware.BodyLimit("64K"))
	e.Use(accessLog(logger))

	s := &Server{echo: e, matcher: matcher, logger: logger, config: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/ready", s.handleReady)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/match", s.handleMatch)
	v1.GET("/recommendations", s.handleRecommendations)
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

func accessLog(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}
