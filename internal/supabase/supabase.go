// Package supabase reads candidate profiles from the PostgREST endpoint of the
// backend that owns them.
package supabase

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	restPath  = "/rest/v1"
	userAgent = "spigell/ikimatch"
	// Max rows PostgREST returns per page with the default config.
	defaultPageSize = 1000
)

type Client struct {
	apiKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
	PageSize   int
}

// New returns a client for the project at baseURL authenticated with the
// service key. The key must be allowed to read non-public profile columns.
func New(logger *zap.Logger, baseURL, apiKey string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
		PageSize:  defaultPageSize,
	}
}

func (c *Client) tableURL(table string) string {
	return c.BaseURL + restPath + "/" + table
}
