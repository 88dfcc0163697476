// Package mcpserver exposes match searches as an MCP tool over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/spigell/ikimatch/internal/matching"
)

const (
	ServerName   = "ikimatch"
	toolFindName = "find_matches"
)

type Matcher interface {
	FindMatches(ctx context.Context, query, requesterID string) (*matching.Result, error)
}

type Server struct {
	mcp     *server.MCPServer
	matcher Matcher
	logger  *zap.Logger
}

func New(matcher Matcher, version string, logger *zap.Logger) (*Server, error) {
	if matcher == nil {
		return nil, errors.New("matcher cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		matcher: matcher,
		logger:  logger,
	}
	s.mcp.AddTool(findMatchesTool(), s.handleFindMatches)
	return s, nil
}

// Serve blocks until ctx is cancelled or the client closes stdin.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("serving mcp over stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func findMatchesTool() mcp.Tool {
	return mcp.NewTool(toolFindName,
		mcp.WithDescription("Rank platform members against a free-text description of who you are looking for. "+
			"Returns scored matches grouped into perfect, strong and potential tiers."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What kind of person you are looking for, e.g. 'technical cofounder with fintech experience'"),
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("UUID of the member running the search; excluded from results"),
		),
	)
}

func (s *Server) handleFindMatches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID, err := request.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx = matching.WithRequestID(ctx, uuid.NewString())
	result, err := s.matcher.FindMatches(ctx, query, userID)
	if err != nil {
		return errorResult(err), nil
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	body := map[string]any{
		"code":      matching.KindOf(err),
		"message":   "internal error",
		"retryable": matching.IsRetryable(err),
	}
	var merr *matching.Error
	if errors.As(err, &merr) {
		body["message"] = merr.Message
	}
	payload, _ := json.Marshal(map[string]any{"error": body})
	return mcp.NewToolResultError(string(payload))
}
