package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/matching"
)

type MatchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId"`
}

type ErrorBody struct {
	Code      matching.Kind `json:"code"`
	Message   string        `json:"message"`
	Retryable bool          `json:"retryable"`
}

// ErrorResponse is sent with status 200 so clients branch on the payload.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type RecommendationsResponse struct {
	Profiles []matching.Snapshot `json:"profiles"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleReady(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Checks: map[string]string{}}
	code := http.StatusOK
	for name, check := range s.config.Checks {
		if err := check(c.Request().Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(code, resp)
}

func (s *Server) handleMatch(c echo.Context) error {
	var req MatchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Debug("invalid match request", zap.Error(err))
		return s.fail(c, matching.ValidationError("invalid request body"))
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.matcher.FindMatches(ctx, req.Query, req.UserID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleRecommendations(c echo.Context) error {
	limit := matching.DefaultRecommendLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return s.fail(c, matching.ValidationError("limit must be a positive integer"))
		}
		limit = n
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	items, err := s.matcher.Recommend(ctx, c.QueryParam("userId"), limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, RecommendationsResponse{Profiles: items})
}

func (s *Server) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	ctx := matching.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// fail renders pipeline errors as a 200 error payload. Anything unclassified is a 500.
func (s *Server) fail(c echo.Context, err error) error {
	var merr *matching.Error
	if !errors.As(err, &merr) {
		s.logger.Error("unclassified pipeline error", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, ErrorResponse{Error: ErrorBody{
		Code:      merr.Kind,
		Message:   merr.Message,
		Retryable: merr.Retryable,
	}})
}
